package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config drives one annotation run. Everything has a workable default
// except the API key, which must come from the environment, a .env
// file, or the config file.
type Config struct {
	AI struct {
		Provider       string  `yaml:"provider"`
		Model          string  `yaml:"model"`
		APIKey         string  `yaml:"api_key"`
		BaseURL        string  `yaml:"base_url"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float32 `yaml:"temperature"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
	} `yaml:"ai"`
	Run struct {
		Concurrency       int     `yaml:"concurrency"`
		Retries           int     `yaml:"retries"`
		RetryBaseMS       int     `yaml:"retry_base_ms"`
		QuotaPauseSeconds int     `yaml:"quota_pause_seconds"`
		MaxPauses         int     `yaml:"max_pauses"`
		RPS               float64 `yaml:"rps"`
		Burst             int     `yaml:"burst"`
		MaxFuncBytes      int     `yaml:"max_func_bytes"`
		FreeTier          bool    `yaml:"free_tier"`
	} `yaml:"run"`
	Output struct {
		Width int `yaml:"width"`
	} `yaml:"output"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.AI.Provider = "gemini"
	cfg.AI.Model = "gemini-2.5-flash"
	cfg.AI.MaxTokens = 4096
	cfg.AI.Temperature = 0.6
	cfg.AI.TimeoutSeconds = 60
	cfg.Run.Concurrency = 4
	cfg.Run.Retries = 3
	cfg.Run.RetryBaseMS = 300
	cfg.Run.QuotaPauseSeconds = 30
	cfg.Run.MaxPauses = 2
	cfg.Run.Burst = 1
	cfg.Run.MaxFuncBytes = 4000
	cfg.Output.Width = 80
	return cfg
}

// Load builds the configuration from defaults, then the YAML file when
// path is not empty, then environment variables. A .env file in the
// working directory is read first so its variables count as
// environment.
func Load(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Defaults, overlaid with the YAML config
	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// 3. Override with environment variables if present
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CDOC_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("CDOC_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("CDOC_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("CDOC_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case "gemini":
			cfg.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// ApplyFreeTier reshapes the run limits for free tier quotas in the
// spirit of Gemini's 15 requests per minute: low concurrency, one
// request every four seconds, and patient retries.
func (c *Config) ApplyFreeTier() {
	c.Run.Concurrency = 2
	c.Run.RPS = 0.25
	c.Run.Burst = 1
	c.Run.Retries = 4
	c.Run.RetryBaseMS = 1000
	c.Run.QuotaPauseSeconds = 60
}

func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported provider: %s (expected gemini or openai)", c.AI.Provider)
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("api key is required (set CDOC_API_KEY, a provider key, or ai.api_key)")
	}
	if c.AI.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.AI.MaxTokens)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", c.AI.Temperature)
	}
	if c.Run.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Run.Concurrency)
	}
	if c.Run.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Run.Retries)
	}
	if c.Run.RPS < 0 {
		return fmt.Errorf("rps must not be negative, got %g", c.Run.RPS)
	}
	if c.Run.MaxFuncBytes < 0 {
		return fmt.Errorf("max_func_bytes must not be negative, got %d", c.Run.MaxFuncBytes)
	}
	if c.Output.Width < 1 {
		return fmt.Errorf("output width must be positive, got %d", c.Output.Width)
	}
	return nil
}
