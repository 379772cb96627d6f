package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full kernel configuration, loaded from SKALD_* env vars.
type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	DBPath     string `envconfig:"DB_PATH" default:"skald.db"`

	MaxConcurrentJobs int64 `envconfig:"MAX_CONCURRENT_JOBS" default:"4"`

	LLM     LLMConfig
	Image   ImageConfig
	Caption CaptionConfig
	Storage StorageConfig
	Video   VideoConfig
}

// LLMConfig selects and configures the text generation backend.
type LLMConfig struct {
	Provider string `envconfig:"LLM_PROVIDER" default:"ollama"` // ollama | openai
	BaseURL  string `envconfig:"LLM_BASE_URL"`
	APIKey   string `envconfig:"LLM_API_KEY"`
	Model    string `envconfig:"LLM_MODEL"`
}

// ImageConfig configures the optional image generation backend.
type ImageConfig struct {
	BaseURL string `envconfig:"IMAGE_BASE_URL"`
	APIKey  string `envconfig:"IMAGE_API_KEY"`
	Model   string `envconfig:"IMAGE_MODEL"`
}

// CaptionConfig configures the external captioning provider.
type CaptionConfig struct {
	BaseURL string `envconfig:"CAPTION_BASE_URL" default:"https://vidcap.xyz"`
	APIKey  string `envconfig:"CAPTION_API_KEY"`
	Locale  string `envconfig:"CAPTION_LOCALE" default:"ko"`
}

// StorageConfig configures the object store holding transcripts, rendered
// visuals, reports and metadata.
type StorageConfig struct {
	Endpoint  string `envconfig:"S3_ENDPOINT" default:"localhost:9000"`
	Bucket    string `envconfig:"S3_BUCKET" default:"skald"`
	AccessKey string `envconfig:"S3_ACCESS_KEY"`
	SecretKey string `envconfig:"S3_SECRET_KEY"`
	UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`
}

// VideoConfig configures video metadata enrichment and the render sandbox.
type VideoConfig struct {
	YoutubeAPIKey string `envconfig:"YOUTUBE_API_KEY"`
	SandboxImage  string `envconfig:"SANDBOX_IMAGE" default:"skaldhq/renderer:py3.11"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("skald", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
