package ollama

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"

	"github.com/menta2k/image-annotator/pkg/client"
)

// DefaultTimeout applies when the caller's context has no deadline
const DefaultTimeout = 300 * time.Second

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	timeout time.Duration
}

var _ client.ChatClient = (*Client)(nil)

// NewClient creates a new Ollama client. Any path on ollamaURL (such as /api/chat) is ignored.
func NewClient(ollamaURL string, timeout time.Duration) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid ollama URL")
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, errors.Errorf("invalid ollama URL %q", ollamaURL)
	}

	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Explicit URL, ignoring OLLAMA_HOST
	return &Client{client: api.NewClient(baseURL, http.DefaultClient), timeout: timeout}, nil
}

// Query implements client.ChatClient
func (c *Client) Query(ctx context.Context, model, prompt string, image []byte) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg := api.Message{Role: "user", Content: prompt}
	if len(image) > 0 {
		msg.Images = []api.ImageData{api.ImageData(image)}
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: []api.Message{msg},
		Stream:   &streamFalse,
		Options:  modelOptions(model),
	}

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "ollama chat")
	}
	if content.Len() == 0 {
		return "", errors.New("empty response from ollama")
	}
	return content.String(), nil
}

// modelOptions returns sampling options tuned for known models
func modelOptions(model string) map[string]any {
	options := map[string]any{"temperature": 0.2}

	m := strings.ToLower(model)
	if strings.Contains(m, "minicpm-v4") ||
		strings.Contains(m, "minicpm-v-4") ||
		strings.Contains(m, "minicpmv4") {
		options["temperature"] = 0.7
		options["top_p"] = 0.8
		options["num_ctx"] = 4096
	}
	return options
}
