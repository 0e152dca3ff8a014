package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		IndexDir:    "storage",
		TopK:        5,
		MaxTokens:   700,
		Temperature: 0.2,
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"missing index dir", func(c *Config) { c.IndexDir = "" }, ErrMissingIndexDir},
		{"top_k zero", func(c *Config) { c.TopK = 0 }, ErrInvalidTopK},
		{"top_k too large", func(c *Config) { c.TopK = 51 }, ErrInvalidTopK},
		{"max_tokens zero", func(c *Config) { c.MaxTokens = 0 }, ErrInvalidMaxTokens},
		{"temperature negative", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"azure partial", func(c *Config) { c.AzureAPIKey = "key" }, ErrPartialAzureConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_AzureComplete(t *testing.T) {
	cfg := validConfig()
	cfg.AzureAPIKey = "key"
	cfg.AzureEndpoint = "https://example.openai.azure.com"
	cfg.AzureDeployment = "gpt-4o-mini"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with complete Azure config = %v, want nil", err)
	}
}

func TestMarshalJSON_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.OpenAIAPIKey = "sk-super-secret-value"
	cfg.GeminiAPIKey = "gm-another-secret"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	out := string(data)
	if strings.Contains(out, "sk-super-secret-value") || strings.Contains(out, "gm-another-secret") {
		t.Errorf("marshaled config leaked a secret: %s", out)
	}
	if !strings.Contains(out, maskedValue) {
		t.Errorf("marshaled config missing mask placeholder: %s", out)
	}
}

func TestMarshalJSON_EmptySecretsStayEmpty(t *testing.T) {
	data, err := json.Marshal(validConfig())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), maskedValue) {
		t.Errorf("empty secrets should not be masked: %s", data)
	}
}
