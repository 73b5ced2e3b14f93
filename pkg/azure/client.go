// Package azure is a VisionClient for the Azure Computer Vision REST API (v3.2).
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/types"
)

// DefaultAPIVersion is the Computer Vision API version path segment
const DefaultAPIVersion = "v3.2"

// Config holds the Azure endpoint settings
type Config struct {
	Endpoint   string
	Key        string
	APIVersion string
	Timeout    time.Duration
}

// Client talks to a Computer Vision resource
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ client.VisionClient = (*Client)(nil)

// ServiceError is a non-2xx reply from the service
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("azure vision: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("azure vision: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// NewClient creates a Client. Endpoint is the resource URL, e.g. https://name.cognitiveservices.azure.com
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("azure vision: invalid endpoint %q", cfg.Endpoint)
	}
	if cfg.Key == "" {
		return nil, errors.New("azure vision: subscription key is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.Endpoint, "/") + "/vision/" + cfg.APIVersion,
		key:        cfg.Key,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Analyze implements client.VisionClient
func (c *Client) Analyze(ctx context.Context, image []byte, features []types.Feature) (*types.AnalysisRecord, error) {
	q := url.Values{}
	q.Set("visualFeatures", strings.Join(lo.Map(features, func(f types.Feature, _ int) string {
		return string(f)
	}), ","))

	body, err := c.post(ctx, "/analyze", q, image)
	if err != nil {
		return nil, err
	}

	var resp analyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "azure vision: decode analyze response")
	}
	c.logger.Debug("azure analyze finished",
		zap.String("request_id", resp.RequestID),
		zap.Int("objects", len(resp.Objects)),
		zap.Int("tags", len(resp.Tags)))
	return resp.record(), nil
}

// GenerateThumbnail implements client.VisionClient
func (c *Client) GenerateThumbnail(ctx context.Context, width, height int, image []byte, smartCrop bool) ([]byte, error) {
	q := url.Values{}
	q.Set("width", strconv.Itoa(width))
	q.Set("height", strconv.Itoa(height))
	q.Set("smartCropping", strconv.FormatBool(smartCrop))
	return c.post(ctx, "/generateThumbnail", q, image)
}

func (c *Client) post(ctx context.Context, op string, q url.Values, image []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+op+"?"+q.Encode(), bytes.NewReader(image))
	if err != nil {
		return nil, errors.Wrap(err, "azure vision: create request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "azure vision: %s", strings.TrimPrefix(op, "/"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "azure vision: read response")
	}
	if resp.StatusCode/100 != 2 {
		return nil, parseError(resp.StatusCode, body)
	}
	return body, nil
}

// parseError accepts both the nested {"error":{...}} and the flat {"code","message"} forms
func parseError(status int, body []byte) error {
	var nested struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return &ServiceError{StatusCode: status, Code: nested.Error.Code, Message: nested.Error.Message}
	}

	var flat struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Message != "" {
		return &ServiceError{StatusCode: status, Code: flat.Code, Message: flat.Message}
	}
	return &ServiceError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
