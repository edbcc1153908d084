// Package llm provides the text analyzer capability behind a single
// Generate call. Concrete vendors are a closed set selected by stored
// configuration.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider names as stored on an LLM configuration record
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderMock      = "mock"
)

const (
	defaultMaxTokens = 1024
	defaultTimeout   = 60 * time.Second
)

var (
	// ErrNoActiveProvider is returned when no provider configuration is active
	ErrNoActiveProvider = errors.New("no active LLM provider")
	// ErrUnsupportedProvider is returned by the factory for unknown provider names
	ErrUnsupportedProvider = errors.New("unsupported LLM provider")
	// ErrEmptyResponse is returned when a provider answers without any text
	ErrEmptyResponse = errors.New("empty LLM response")
)

// Provider generates text given a prompt and an optional system prompt
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Config holds what the factory needs to build a provider
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string // optional endpoint override
}

// NewProvider builds the provider named by cfg.Provider
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	case ProviderGoogle:
		return NewGoogleProvider(cfg)
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// IsSupported reports whether the factory knows the provider name
func IsSupported(provider string) bool {
	switch provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderMock:
		return true
	}
	return false
}
