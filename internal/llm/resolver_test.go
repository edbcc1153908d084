package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/secrets"
	"github.com/customerpulse/pulse/internal/store"
)

type MockConfigStore struct {
	mock.Mock
}

func (m *MockConfigStore) ActiveLLMConfig(ctx context.Context) (*models.LLMConfig, error) {
	args := m.Called(ctx)
	if cfg, ok := args.Get(0).(*models.LLMConfig); ok {
		return cfg, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestResolver(t *testing.T) {
	cipher, err := secrets.New("resolver-test-secret")
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("sk-live")
	require.NoError(t, err)

	t.Run("no active config", func(t *testing.T) {
		configs := new(MockConfigStore)
		configs.On("ActiveLLMConfig", mock.Anything).Return(nil, store.ErrNotFound)

		_, err := NewResolver(configs, cipher).Resolve(context.Background())
		assert.ErrorIs(t, err, ErrNoActiveProvider)
		configs.AssertExpectations(t)
	})

	t.Run("store failure is not masked", func(t *testing.T) {
		configs := new(MockConfigStore)
		configs.On("ActiveLLMConfig", mock.Anything).Return(nil, errors.New("connection reset"))

		_, err := NewResolver(configs, cipher).Resolve(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoActiveProvider)
	})

	t.Run("decrypts key and builds provider", func(t *testing.T) {
		configs := new(MockConfigStore)
		configs.On("ActiveLLMConfig", mock.Anything).Return(&models.LLMConfig{
			Provider:        ProviderAnthropic,
			ModelName:       "claude-test",
			APIKeyEncrypted: encrypted,
			IsActive:        true,
		}, nil)

		var got Config
		r := NewResolver(configs, cipher).
			WithBaseURL(ProviderAnthropic, "https://gateway.internal.test").
			WithBaseURL(ProviderOpenAI, "https://other.test")
		r.build = func(cfg Config) (Provider, error) {
			got = cfg
			return NewMockProvider(), nil
		}

		p, err := r.Resolve(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, p)
		assert.Equal(t, ProviderAnthropic, got.Provider)
		assert.Equal(t, "sk-live", got.APIKey)
		assert.Equal(t, "claude-test", got.Model)
		assert.Equal(t, "https://gateway.internal.test", got.BaseURL)
	})

	t.Run("undecryptable key", func(t *testing.T) {
		configs := new(MockConfigStore)
		configs.On("ActiveLLMConfig", mock.Anything).Return(&models.LLMConfig{
			Provider:        ProviderOpenAI,
			APIKeyEncrypted: "bm90LWEtdmFsaWQtY2lwaGVydGV4dC1hdC1hbGw=",
			IsActive:        true,
		}, nil)

		_, err := NewResolver(configs, cipher).Resolve(context.Background())
		assert.ErrorIs(t, err, secrets.ErrDecryptionFailed)
	})
}

func TestFixed(t *testing.T) {
	p, err := Fixed(NewMockProvider()).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, p.Name())

	_, err = Fixed(nil).Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveProvider)
}
