package embed

import (
	"fmt"
	"time"
)

// ProviderConfig holds all configuration needed to create any embedding
// provider.
type ProviderConfig struct {
	Provider  string // "openai", "ollama", "together", "custom", "static"
	APIKey    string
	Model     string
	BaseURL   string // Override for self-hosted / custom endpoints
	Dimension int

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// KnownProviders documents the built-in OpenAI-compatible presets.
var KnownProviders = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"ollama":   "http://localhost:11434/v1",
	"together": "https://api.together.xyz/v1",
	"deepseek": "https://api.deepseek.com/v1",
}

// NewProvider builds a Provider from config, wrapped with retry logic for
// remote backends. "static" needs no network and gets no retry wrapper.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	switch cfg.Provider {
	case "static":
		return NewStatic(cfg.Dimension), nil
	case "custom":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("custom embedding provider requires base_url")
		}
		return wrapRetry(NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimension), cfg), nil
	default:
		base, ok := KnownProviders[cfg.Provider]
		if !ok {
			names := make([]string, 0, len(KnownProviders)+2)
			for k := range KnownProviders {
				names = append(names, k)
			}
			names = append(names, "custom", "static")
			return nil, fmt.Errorf("unknown embedding provider %q, registered: %v", cfg.Provider, names)
		}
		if cfg.BaseURL != "" {
			base = cfg.BaseURL
		}
		return wrapRetry(NewOpenAI(cfg.APIKey, cfg.Model, base, cfg.Dimension), cfg), nil
	}
}

func wrapRetry(p Provider, cfg ProviderConfig) Provider {
	rc := DefaultRetryConfig()
	if cfg.Timeout > 0 {
		rc.Timeout = cfg.Timeout
	}
	if cfg.MaxRetries > 0 {
		rc.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		rc.RetryDelay = cfg.RetryDelay
	}
	return WithRetry(p, rc)
}
