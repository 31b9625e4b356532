package mock

import (
	"context"
	"strings"

	"github.com/morphcv/morphcv/internal/ai/aicore"
	"github.com/morphcv/morphcv/pkg/models"
)

// MockProvider satisfies models.TextProvider for testing.
type MockProvider struct {
	Name_      string
	TailorFunc func(ctx context.Context, req models.TailorRequest) (models.TailorResult, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Tailor(ctx context.Context, req models.TailorRequest) (models.TailorResult, error) {
	if m.TailorFunc != nil {
		return m.TailorFunc(ctx, req)
	}
	return models.TailorResult{}, nil
}

// NewProvider returns a MockProvider with sensible default responses.
func NewProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		TailorFunc: func(_ context.Context, req models.TailorRequest) (models.TailorResult, error) {
			summary := req.Content.Summary
			if summary == "" {
				summary = "Experienced professional"
			}
			return models.TailorResult{
				Summary:    summary + " (tailored for " + strings.TrimSpace(req.TargetRole) + ")",
				Experience: req.Content.Experience,
				Skills:     req.Content.Skills,
			}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		TailorFunc: func(_ context.Context, _ models.TailorRequest) (models.TailorResult, error) {
			return models.TailorResult{}, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		TailorFunc: func(ctx context.Context, _ models.TailorRequest) (models.TailorResult, error) {
			<-ctx.Done()
			return models.TailorResult{}, aicore.ErrTailorTimeout
		},
	}
}

// Compile-time check that MockProvider implements TextProvider.
var _ models.TextProvider = (*MockProvider)(nil)
