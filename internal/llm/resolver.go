package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/secrets"
	"github.com/customerpulse/pulse/internal/store"
)

// Source hands out the provider to use for the next call
type Source interface {
	Resolve(ctx context.Context) (Provider, error)
}

// ConfigStore is the slice of persistence the resolver reads
type ConfigStore interface {
	ActiveLLMConfig(ctx context.Context) (*models.LLMConfig, error)
}

// Resolver builds a provider from the active stored configuration on every call,
// so switching providers takes effect without a restart.
type Resolver struct {
	configs  ConfigStore
	cipher   secrets.Cipher
	baseURLs map[string]string
	build    func(Config) (Provider, error)
}

// NewResolver creates a resolver backed by stored configuration
func NewResolver(configs ConfigStore, cipher secrets.Cipher) *Resolver {
	return &Resolver{
		configs:  configs,
		cipher:   cipher,
		baseURLs: map[string]string{},
		build:    NewProvider,
	}
}

// WithBaseURL routes calls for one provider to a different endpoint
func (r *Resolver) WithBaseURL(provider, baseURL string) *Resolver {
	if provider != "" && baseURL != "" {
		r.baseURLs[provider] = baseURL
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context) (Provider, error) {
	cfg, err := r.configs.ActiveLLMConfig(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoActiveProvider
		}
		return nil, fmt.Errorf("failed to load LLM config: %w", err)
	}

	apiKey, err := r.cipher.Decrypt(cfg.APIKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s API key: %w", cfg.Provider, err)
	}

	return r.build(Config{
		Provider: cfg.Provider,
		APIKey:   apiKey,
		Model:    cfg.ModelName,
		BaseURL:  r.baseURLs[cfg.Provider],
	})
}

type fixed struct {
	provider Provider
}

// Fixed always resolves to the given provider; a nil provider resolves to ErrNoActiveProvider
func Fixed(p Provider) Source {
	return fixed{provider: p}
}

func (f fixed) Resolve(ctx context.Context) (Provider, error) {
	if f.provider == nil {
		return nil, ErrNoActiveProvider
	}
	return f.provider, nil
}
