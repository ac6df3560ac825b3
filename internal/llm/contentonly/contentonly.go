// Package contentonly implements llm.Provider for the secondary,
// non-OpenAI-compatible endpoint shape (/api/v1/models, /api/v1/chat):
// content-only responses, no tool calling, no streaming.
package contentonly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chora-ai/chai/internal/llm"
	"github.com/chora-ai/chai/internal/model"
)

// Config configures the content-only backend.
type Config struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// Backend implements llm.Provider against a minimal content-only chat
// endpoint. Tool definitions in the request are ignored; ChatStream always
// fails with llm.ErrStreamingUnsupported.
type Backend struct {
	client       *http.Client
	baseURL      string
	defaultModel string
}

var _ llm.Provider = (*Backend)(nil)

// New creates a content-only backend.
func New(cfg Config) *Backend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Backend{
		client:       &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
	}
}

// Name implements llm.Provider.
func (b *Backend) Name() string { return "content-only" }

// ListModels calls GET /api/v1/models.
func (b *Backend) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/v1/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contentonly: list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("contentonly: list models: status %d", resp.StatusCode)
	}
	var body struct {
		Models []string `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("contentonly: list models: decode: %w", err)
	}
	out := make([]llm.ModelInfo, 0, len(body.Models))
	for _, m := range body.Models {
		out = append(out, llm.ModelInfo{ID: m, Name: m})
	}
	return out, nil
}

// Chat calls POST /api/v1/chat and returns the response content verbatim.
// Tool definitions on the request are ignored by design; this backend
// never returns tool calls.
func (b *Backend) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResult, error) {
	modelName := strings.TrimSpace(req.Model)
	if modelName == "" {
		modelName = b.defaultModel
	}
	if modelName == "" {
		return llm.ChatResult{}, llm.ErrModelRequired
	}

	payload := chatRequest{Model: modelName, Messages: buildMessages(req)}
	body, err := json.Marshal(payload)
	if err != nil {
		return llm.ChatResult{}, fmt.Errorf("contentonly: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return llm.ChatResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return llm.ChatResult{}, fmt.Errorf("contentonly: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return llm.ChatResult{}, fmt.Errorf("contentonly: status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return llm.ChatResult{}, fmt.Errorf("contentonly: decode response: %w", err)
	}
	return llm.ChatResult{Content: out.Content}, nil
}

// ChatStream always fails: this endpoint has no streaming mode.
func (b *Backend) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.ChatChunk, error) {
	return nil, llm.ErrStreamingUnsupported
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessageDTO `json:"messages"`
}

type chatMessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Content string `json:"content"`
}

func buildMessages(req llm.ChatRequest) []chatMessageDTO {
	out := make([]chatMessageDTO, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		out = append(out, chatMessageDTO{Role: "system", Content: system})
	}
	for _, msg := range req.Messages {
		role := string(msg.Role)
		if role == "" {
			role = string(model.RoleUser)
		}
		out = append(out, chatMessageDTO{Role: role, Content: msg.Content})
	}
	return out
}
