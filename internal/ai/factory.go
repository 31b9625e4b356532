package ai

import (
	"fmt"

	"github.com/morphcv/morphcv/internal/ai/anthropic"
	"github.com/morphcv/morphcv/internal/ai/mock"
	"github.com/morphcv/morphcv/internal/ai/openai"
	"github.com/morphcv/morphcv/internal/config"
	"github.com/morphcv/morphcv/pkg/models"
)

// NewProvider constructs the appropriate text provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.TextProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI)
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.TailorTimeout), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown text provider %q: must be one of openai, anthropic, mock", cfg.Provider)
	}
}
