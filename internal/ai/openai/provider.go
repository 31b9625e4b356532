package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/morphcv/morphcv/internal/ai/aicore"
	"github.com/morphcv/morphcv/internal/config"
	"github.com/morphcv/morphcv/pkg/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// ErrAPIKeyNotSet is returned when the provider is constructed without a key.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

// Provider implements models.TextProvider using the OpenAI chat API.
type Provider struct {
	client openai.Client
	model  string
}

func NewProvider(cfg config.OpenAIConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	return &Provider{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Tailor(ctx context.Context, req models.TailorRequest) (models.TailorResult, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(aicore.BuildTailorPrompt(req)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.TailorResult{}, aicore.ErrTailorTimeout
		}
		return models.TailorResult{}, fmt.Errorf("%w: %v", aicore.ErrProviderUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return models.TailorResult{}, aicore.ErrInvalidResponse
	}

	var result models.TailorResult
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &result); err != nil {
		return models.TailorResult{}, fmt.Errorf("%w: %v", aicore.ErrInvalidResponse, err)
	}
	return result, nil
}

var _ models.TextProvider = (*Provider)(nil)
