package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/morphcv/morphcv/internal/ai/aicore"
	"github.com/morphcv/morphcv/internal/config"
	"github.com/morphcv/morphcv/pkg/models"
)

const apiVersion = "2023-06-01"

// Provider implements models.TextProvider against the Anthropic messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig, timeout time.Duration) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "anthropic" }

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *Provider) Tailor(ctx context.Context, req models.TailorRequest) (models.TailorResult, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: 2048,
		Messages: []message{
			{Role: "user", Content: aicore.BuildTailorPrompt(req)},
		},
	})
	if err != nil {
		return models.TailorResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return models.TailorResult{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.TailorResult{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.TailorResult{}, fmt.Errorf("%w: status %d", aicore.ErrProviderUnavailable, resp.StatusCode)
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return models.TailorResult{}, fmt.Errorf("%w: %v", aicore.ErrInvalidResponse, err)
	}

	var text strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	var result models.TailorResult
	if err := json.Unmarshal([]byte(stripCodeFences(text.String())), &result); err != nil {
		return models.TailorResult{}, fmt.Errorf("%w: %v", aicore.ErrInvalidResponse, err)
	}
	return result, nil
}

// stripCodeFences removes markdown fences that models sometimes wrap JSON in
// despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return s
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return aicore.ErrTailorTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return aicore.ErrTailorTimeout
	}
	return fmt.Errorf("%w: %v", aicore.ErrProviderUnavailable, err)
}

var _ models.TextProvider = (*Provider)(nil)
