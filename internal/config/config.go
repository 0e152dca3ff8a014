// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.carebot/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Retrieval: index directory, embedding model, top-K
//   - Generation: provider credentials, max tokens, temperature
//   - Serve: listen address, CORS, rate limiting
//
// Exactly one LLM provider should be configured; when several are, the
// gateway resolves them by a fixed precedence (OpenAI, Azure, Ollama,
// Gemini). Sensitive fields are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidTopK indicates top_k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidMaxTokens indicates max_tokens is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max_tokens")

	// ErrInvalidTemperature indicates temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrMissingIndexDir indicates the index directory is not set.
	ErrMissingIndexDir = errors.New("missing index directory")

	// ErrPartialAzureConfig indicates an incomplete Azure OpenAI configuration.
	// Azure needs key, endpoint, and deployment together.
	ErrPartialAzureConfig = errors.New("partial Azure OpenAI configuration")
)

// Default values mirrored from the serving defaults.
const (
	DefaultIndexDir  = "storage"
	DefaultTopK      = 5
	DefaultMaxTokens = 700

	// DefaultTemperature keeps answers close to the grounding context.
	DefaultTemperature float32 = 0.2

	DefaultAddr = ":8000"

	DefaultOpenAIModel  = "gpt-4o-mini"
	DefaultOpenAIBase   = "https://api.openai.com/v1"
	DefaultAzureVersion = "2024-06-01"
	DefaultOllamaHost   = "http://localhost:11434"
	DefaultGeminiModel  = "gemini-2.5-flash"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys), update MarshalJSON.
type Config struct {
	// Retrieval configuration
	IndexDir      string `mapstructure:"index_dir" json:"index_dir"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	TopK          int    `mapstructure:"top_k" json:"top_k"`

	// Generation configuration
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`

	// OpenAI-compatible provider
	OpenAIAPIKey  string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	OpenAIModel   string `mapstructure:"openai_model" json:"openai_model"`
	OpenAIBaseURL string `mapstructure:"openai_base_url" json:"openai_base_url"`

	// Azure OpenAI deployment
	AzureAPIKey     string `mapstructure:"azure_api_key" json:"azure_api_key"` // SENSITIVE: masked in MarshalJSON
	AzureEndpoint   string `mapstructure:"azure_endpoint" json:"azure_endpoint"`
	AzureDeployment string `mapstructure:"azure_deployment" json:"azure_deployment"`
	AzureAPIVersion string `mapstructure:"azure_api_version" json:"azure_api_version"`

	// Ollama local runtime
	OllamaModel string `mapstructure:"ollama_model" json:"ollama_model"`
	OllamaHost  string `mapstructure:"ollama_host" json:"ollama_host"`

	// Gemini
	GeminiAPIKey string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	GeminiModel  string `mapstructure:"gemini_model" json:"gemini_model"`

	// Serve configuration
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".carebot")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults + env apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("index_dir", DefaultIndexDir)
	viper.SetDefault("top_k", DefaultTopK)
	viper.SetDefault("max_tokens", DefaultMaxTokens)
	viper.SetDefault("temperature", DefaultTemperature)

	viper.SetDefault("openai_model", DefaultOpenAIModel)
	viper.SetDefault("openai_base_url", DefaultOpenAIBase)
	viper.SetDefault("azure_api_version", DefaultAzureVersion)
	viper.SetDefault("ollama_host", DefaultOllamaHost)
	viper.SetDefault("gemini_model", DefaultGeminiModel)

	viper.SetDefault("addr", DefaultAddr)
	viper.SetDefault("cors_origins", []string{})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 0)

	viper.SetDefault("log_json", false)
	viper.SetDefault("log_level", "info")
}

// bindEnvVariables binds environment variables explicitly.
// Provider credentials use their conventional variable names so deployments
// can share them with other tooling; everything else is CAREBOT_-prefixed.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("index_dir", "CAREBOT_INDEX_DIR")
	mustBind("embedder_model", "CAREBOT_EMBEDDING_MODEL")
	mustBind("top_k", "CAREBOT_TOP_K")
	mustBind("max_tokens", "CAREBOT_MAX_TOKENS")

	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("openai_model", "OPENAI_MODEL")
	mustBind("openai_base_url", "OPENAI_BASE_URL")

	mustBind("azure_api_key", "AZURE_OPENAI_API_KEY")
	mustBind("azure_endpoint", "AZURE_OPENAI_ENDPOINT")
	mustBind("azure_deployment", "AZURE_OPENAI_DEPLOYMENT")

	mustBind("ollama_model", "OLLAMA_MODEL")
	mustBind("ollama_host", "OLLAMA_HOST")

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("gemini_model", "GEMINI_MODEL")

	mustBind("addr", "CAREBOT_ADDR")
	mustBind("cors_origins", "CAREBOT_CORS_ORIGINS")
	mustBind("trust_proxy", "CAREBOT_TRUST_PROXY")
	mustBind("rate_burst", "CAREBOT_RATE_BURST")

	mustBind("log_json", "CAREBOT_LOG_JSON")
	mustBind("log_level", "CAREBOT_LOG_LEVEL")
}

// Validate checks configuration values, failing fast on anything that would
// only surface as a broken request later.
func (c *Config) Validate() error {
	if c.IndexDir == "" {
		return ErrMissingIndexDir
	}
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: %d (must be 1-50)", ErrInvalidTopK, c.TopK)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 32768 {
		return fmt.Errorf("%w: %d (must be 1-32768)", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be 0.0-2.0)", ErrInvalidTemperature, c.Temperature)
	}

	// Azure is all-or-nothing: a partial configuration would silently lose
	// the provider in precedence selection.
	azureSet := 0
	for _, v := range []string{c.AzureAPIKey, c.AzureEndpoint, c.AzureDeployment} {
		if v != "" {
			azureSet++
		}
	}
	if azureSet != 0 && azureSet != 3 {
		return fmt.Errorf("%w: need AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_DEPLOYMENT together", ErrPartialAzureConfig)
	}

	return nil
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// MarshalJSON masks sensitive fields so a dumped config never leaks keys.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	masked := alias(c)
	if masked.OpenAIAPIKey != "" {
		masked.OpenAIAPIKey = maskedValue
	}
	if masked.AzureAPIKey != "" {
		masked.AzureAPIKey = maskedValue
	}
	if masked.GeminiAPIKey != "" {
		masked.GeminiAPIKey = maskedValue
	}
	return json.Marshal(masked)
}
