package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{"anthropic", Config{Provider: ProviderAnthropic, APIKey: "k"}, ProviderAnthropic, nil},
		{"openai", Config{Provider: ProviderOpenAI, APIKey: "k"}, ProviderOpenAI, nil},
		{"google", Config{Provider: ProviderGoogle, APIKey: "k"}, ProviderGoogle, nil},
		{"mock needs no key", Config{Provider: ProviderMock}, ProviderMock, nil},
		{"unknown", Config{Provider: "cohere", APIKey: "k"}, "", ErrUnsupportedProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, IsSupported(tt.cfg.Provider))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
			assert.True(t, IsSupported(tt.cfg.Provider))
		})
	}
}

func TestNewProviderRequiresKey(t *testing.T) {
	for _, name := range []string{ProviderAnthropic, ProviderOpenAI, ProviderGoogle} {
		_, err := NewProvider(Config{Provider: name})
		assert.Error(t, err, name)
	}
}

func TestAnthropicGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body.Model)
		assert.Equal(t, "be brief", body.System)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "hello", body.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"hi there"}]}`))
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(Config{APIKey: "secret", Model: "claude-test", BaseURL: server.URL})
	require.NoError(t, err)

	out, err := p.Generate(context.Background(), "hello", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestAnthropicGenerateErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(Config{APIKey: "secret", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "hello", "")
	assert.ErrorContains(t, err, "401")
}

func TestGoogleGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 1)
		assert.Equal(t, "system\n\nprompt", body.Contents[0].Parts[0].Text)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"gemini says hi"}]}}]}`))
	}))
	defer server.Close()

	p, err := NewGoogleProvider(Config{APIKey: "secret", Model: "gemini-test", BaseURL: server.URL})
	require.NoError(t, err)

	out, err := p.Generate(context.Background(), "prompt", "system")
	require.NoError(t, err)
	assert.Equal(t, "gemini says hi", out)
}

func TestGoogleGenerateEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	p, err := NewGoogleProvider(Config{APIKey: "secret", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "prompt", "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()

	out, err := p.Generate(context.Background(), "Return a JSON object with the following fields", "")
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "negative", parsed["sentiment"])

	out, err = p.Generate(context.Background(), "Explain this score", "")
	require.NoError(t, err)
	assert.Equal(t, mockAssessment, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Generate(ctx, "anything", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResult(t *testing.T) {
	ok := Ok(42)
	assert.Equal(t, 42, ok.Value)
	assert.False(t, ok.Degraded)
	assert.Empty(t, ok.Reason)

	degraded := Degraded("fallback", "provider down")
	assert.Equal(t, "fallback", degraded.Value)
	assert.True(t, degraded.Degraded)
	assert.Equal(t, "provider down", degraded.Reason)
}
