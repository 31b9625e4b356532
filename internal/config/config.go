package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the MorphCV server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Compiler CompilerConfig
	Pipeline PipelineConfig
	Artifact ArtifactConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider      string
	TailorTimeout time.Duration
	TailorRetries int
	OpenAI        OpenAIConfig
	Anthropic     AnthropicConfig
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type CompilerConfig struct {
	LatexPath   string
	PreviewPath string // pdftoppm binary; empty disables previews
	Timeout     time.Duration
	WorkDir     string
}

type PipelineConfig struct {
	Workers         int
	QueueName       string
	MaxJobsPerOwner int
	RequeueDelay    time.Duration
	StorageRetries  int
}

type ArtifactConfig struct {
	BaseDir string
}

var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("MORPHCV_PORT", 8080),
			Env:  envString("MORPHCV_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider:      os.Getenv("AI_PROVIDER"),
			TailorTimeout: envDurationSecs("AI_TAILOR_TIMEOUT_SECS", 60*time.Second),
			TailorRetries: envInt("AI_TAILOR_RETRIES", 3),
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			},
		},
		Compiler: CompilerConfig{
			LatexPath:   envString("LATEX_PATH", "pdflatex"),
			PreviewPath: envString("PREVIEW_PATH", "pdftoppm"),
			Timeout:     envDurationSecs("LATEX_TIMEOUT_SECS", 30*time.Second),
			WorkDir:     envString("LATEX_WORK_DIR", os.TempDir()),
		},
		Pipeline: PipelineConfig{
			Workers:         envInt("PIPELINE_WORKERS", 4),
			QueueName:       envString("PIPELINE_QUEUE", "morphcv:jobs"),
			MaxJobsPerOwner: envInt("PIPELINE_MAX_JOBS_PER_OWNER", 2),
			RequeueDelay:    envDuration("PIPELINE_REQUEUE_DELAY", 2*time.Second),
			StorageRetries:  envInt("PIPELINE_STORAGE_RETRIES", 2),
		},
		Artifact: ArtifactConfig{
			BaseDir: envString("ARTIFACT_DIR", "artifacts"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, anthropic, mock; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}

	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("PIPELINE_WORKERS must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxJobsPerOwner <= 0 {
		return fmt.Errorf("PIPELINE_MAX_JOBS_PER_OWNER must be positive, got %d", c.Pipeline.MaxJobsPerOwner)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
