package ai_test

import (
	"testing"
	"time"

	"github.com/morphcv/morphcv/internal/ai"
	"github.com/morphcv/morphcv/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_OpenAI(t *testing.T) {
	cfg := config.AIConfig{
		Provider: "openai",
		OpenAI:   config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"},
	}
	p, err := ai.NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNewProvider_OpenAI_MissingKey(t *testing.T) {
	cfg := config.AIConfig{
		Provider: "openai",
		OpenAI:   config.OpenAIConfig{Model: "gpt-4o-mini"},
	}
	_, err := ai.NewProvider(cfg)
	require.Error(t, err)
}

func TestNewProvider_Anthropic(t *testing.T) {
	cfg := config.AIConfig{
		Provider:      "anthropic",
		TailorTimeout: 30 * time.Second,
		Anthropic:     config.AnthropicConfig{APIKey: "sk-ant-test", Model: "claude-sonnet-4-5-20250929", BaseURL: "https://api.anthropic.com"},
	}
	p, err := ai.NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

func TestNewProvider_Mock(t *testing.T) {
	cfg := config.AIConfig{Provider: "mock"}
	p, err := ai.NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())
}

func TestNewProvider_Unknown(t *testing.T) {
	cfg := config.AIConfig{Provider: "unknown-provider"}
	_, err := ai.NewProvider(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown text provider")
	assert.Contains(t, err.Error(), "unknown-provider")
}

func TestNewProvider_Empty(t *testing.T) {
	cfg := config.AIConfig{Provider: ""}
	_, err := ai.NewProvider(cfg)
	require.Error(t, err)
}
