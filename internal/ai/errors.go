package ai

import (
	"github.com/morphcv/morphcv/internal/ai/aicore"
	"github.com/morphcv/morphcv/pkg/models"
)

// Shared sentinels and prompt building live in aicore so provider
// subpackages can use them without importing this package back.
var (
	ErrProviderUnavailable = aicore.ErrProviderUnavailable
	ErrTailorTimeout       = aicore.ErrTailorTimeout
	ErrInvalidResponse     = aicore.ErrInvalidResponse
)

// BuildTailorPrompt renders the shared prompt used by every real provider.
func BuildTailorPrompt(req models.TailorRequest) string {
	return aicore.BuildTailorPrompt(req)
}
