package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Vision backends
const (
	BackendAzure    = "azure"
	BackendGoogle   = "google"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Output backends
const (
	OutputFile = "file"
	OutputGCS  = "gcs"
)

// Config holds the application configuration
type Config struct {
	Vision VisionConfig `json:"vision"`
	Output OutputConfig `json:"output"`
	Server ServerConfig `json:"server"`
	Log    LogConfig    `json:"log"`
}

// VisionConfig selects and configures the remote vision backend
type VisionConfig struct {
	Backend        string         `json:"backend"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	Azure          AzureConfig    `json:"azure"`
	Google         GoogleConfig   `json:"google"`
	Ollama         EndpointConfig `json:"ollama"`
	LlamaCpp       EndpointConfig `json:"llamacpp"`
	// Model, SendFormat, SendSize and SendQuality apply to the LLM backends.
	Model       string `json:"model"`
	SendFormat  string `json:"send_format"`
	SendSize    int    `json:"send_size"`
	SendQuality int    `json:"send_quality"`
}

// AzureConfig holds the Computer Vision resource settings
type AzureConfig struct {
	Endpoint   string `json:"endpoint"`
	Key        string `json:"key"`
	APIVersion string `json:"api_version"`
}

// GoogleConfig holds Cloud Vision credentials
type GoogleConfig struct {
	CredentialsFile string `json:"credentials_file"`
}

// EndpointConfig is a plain server URL
type EndpointConfig struct {
	URL string `json:"url"`
}

// OutputConfig holds configuration for artifact storage
type OutputConfig struct {
	Backend      string    `json:"backend"`
	Dir          string    `json:"dir"`
	AnnotatedDir string    `json:"annotated_dir"`
	ThumbnailDir string    `json:"thumbnail_dir"`
	JPEGQuality  int       `json:"jpeg_quality"`
	URLPrefix    string    `json:"url_prefix"`
	GCS          GCSConfig `json:"gcs"`
	Concurrent   bool      `json:"concurrent"`
}

// GCSConfig holds the Cloud Storage bucket settings
type GCSConfig struct {
	Bucket  string `json:"bucket"`
	Prefix  string `json:"prefix"`
	BaseURL string `json:"base_url"`
}

// ServerConfig holds the HTTP surface settings
type ServerConfig struct {
	Addr           string   `json:"addr"`
	MaxUploadBytes int64    `json:"max_upload_bytes"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// LogConfig holds logging settings. An empty File logs to stderr only.
type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Vision: VisionConfig{
			Backend:        BackendAzure,
			TimeoutSeconds: 60,
			Azure:          AzureConfig{APIVersion: "v3.2"},
			Ollama:         EndpointConfig{URL: "http://localhost:11434"},
			LlamaCpp:       EndpointConfig{URL: "http://localhost:8080"},
			Model:          "qwen2.5vl:7b",
			SendFormat:     "jpeg",
			SendSize:       1024,
			SendQuality:    85,
		},
		Output: OutputConfig{
			Backend:      OutputFile,
			Dir:          "./wwwroot",
			AnnotatedDir: "TempImages",
			ThumbnailDir: "Thumbnails",
			JPEGQuality:  90,
			URLPrefix:    "/",
			Concurrent:   true,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 32 << 20,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Timeout returns the remote call timeout
func (v VisionConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// LoadFromFile loads configuration from a JSON file. Missing keys keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	return config, nil
}

// Read reads filename when it is non-empty, otherwise starts from defaults, then
// applies the environment overlay. The result is not validated, so callers can
// layer their own overrides before calling Validate.
func Read(filename string) (*Config, error) {
	config := Default()
	if filename != "" {
		var err error
		if config, err = LoadFromFile(filename); err != nil {
			return nil, err
		}
	}
	config.ApplyEnv()
	return config, nil
}

// Load is Read followed by Validate.
func Load(filename string) (*Config, error) {
	config, err := Read(filename)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overlays environment variables, reading a .env file first if one exists.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("VISION_BACKEND", &c.Vision.Backend)
	setString("AZURE_VISION_ENDPOINT", &c.Vision.Azure.Endpoint)
	setString("AZURE_VISION_KEY", &c.Vision.Azure.Key)
	setString("GOOGLE_APPLICATION_CREDENTIALS", &c.Vision.Google.CredentialsFile)
	setString("OLLAMA_URL", &c.Vision.Ollama.URL)
	setString("LLAMACPP_URL", &c.Vision.LlamaCpp.URL)
	setString("VISION_MODEL", &c.Vision.Model)
	setString("OUTPUT_DIR", &c.Output.Dir)
	setString("OUTPUT_BACKEND", &c.Output.Backend)
	setString("GCS_BUCKET", &c.Output.GCS.Bucket)
	setString("SERVER_ADDR", &c.Server.Addr)
	setString("LOG_LEVEL", &c.Log.Level)
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// The file can hold the Azure key.
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Vision.Backend) {
	case BackendAzure:
		if c.Vision.Azure.Endpoint == "" || c.Vision.Azure.Key == "" {
			return errors.New("vision.azure.endpoint and vision.azure.key are required for the azure backend")
		}
	case BackendGoogle:
	case BackendOllama:
		if c.Vision.Ollama.URL == "" {
			return errors.New("vision.ollama.url is required for the ollama backend")
		}
	case BackendLlamaCpp:
		if c.Vision.LlamaCpp.URL == "" {
			return errors.New("vision.llamacpp.url is required for the llamacpp backend")
		}
	default:
		return errors.Errorf("vision.backend %q is not one of azure, google, ollama, llamacpp", c.Vision.Backend)
	}

	if c.Vision.TimeoutSeconds < 1 {
		return errors.New("vision.timeout_seconds must be positive")
	}
	if f := strings.ToLower(c.Vision.SendFormat); f != "jpeg" && f != "jpg" && f != "png" {
		return errors.Errorf("vision.send_format %q must be jpeg or png", c.Vision.SendFormat)
	}

	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return errors.New("output.jpeg_quality must be between 1 and 100")
	}
	if c.Output.AnnotatedDir == "" || c.Output.ThumbnailDir == "" {
		return errors.New("output.annotated_dir and output.thumbnail_dir cannot be empty")
	}
	switch c.Output.Backend {
	case OutputFile:
		if c.Output.Dir == "" {
			return errors.New("output.dir cannot be empty for the file backend")
		}
	case OutputGCS:
		if c.Output.GCS.Bucket == "" {
			return errors.New("output.gcs.bucket is required for the gcs backend")
		}
	default:
		return errors.Errorf("output.backend %q is not one of file, gcs", c.Output.Backend)
	}

	if c.Server.MaxUploadBytes < 1 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-annotator", "config.json")
}
