// Package openaicompat implements llm.Provider against an OpenAI-compatible
// chat completions endpoint using raw SSE framing (data: ... / [DONE]),
// reusing sashabaranov/go-openai's wire DTOs for marshaling only (not its
// streaming client), grounded on the teacher's
// internal/agent/providers/openai.go tool-call accumulation pattern.
package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chora-ai/chai/internal/llm"
	"github.com/chora-ai/chai/internal/model"
)

// Config configures the OpenAI-compatible backend.
type Config struct {
	BaseURL      string // e.g. https://api.openai.com/v1 or a local gateway
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
}

// Backend implements llm.Provider against any server exposing an
// OpenAI-compatible /chat/completions endpoint with SSE streaming.
type Backend struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	defaultModel string
}

var _ llm.Provider = (*Backend)(nil)

// New creates an OpenAI-compatible backend.
func New(cfg Config) *Backend {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Backend{
		client:       &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
	}
}

// Name implements llm.Provider.
func (b *Backend) Name() string { return "openai-compatible" }

// ListModels calls GET /models.
func (b *Backend) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	b.setAuth(req)
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("openaicompat: list models: status %d", resp.StatusCode)
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("openaicompat: list models: decode: %w", err)
	}
	out := make([]llm.ModelInfo, 0, len(body.Data))
	for _, m := range body.Data {
		out = append(out, llm.ModelInfo{ID: m.ID, Name: m.ID})
	}
	return out, nil
}

// Chat accumulates the streamed response into a ChatResult.
func (b *Backend) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResult, error) {
	chunks, err := b.ChatStream(ctx, req)
	if err != nil {
		return llm.ChatResult{}, err
	}
	var result llm.ChatResult
	for chunk := range chunks {
		if chunk.Err != nil {
			return llm.ChatResult{}, chunk.Err
		}
		if chunk.Text != "" {
			result.Content += chunk.Text
		}
		if chunk.ToolCall != nil {
			result.ToolCalls = append(result.ToolCalls, *chunk.ToolCall)
		}
	}
	return result, nil
}

func (b *Backend) setAuth(req *http.Request) {
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
}

// ChatStream opens /chat/completions with stream=true and decodes the raw
// `data: {...}` / `data: [DONE]` SSE framing, accumulating sparse
// index-keyed tool-call deltas across lines.
func (b *Backend) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.ChatChunk, error) {
	modelName := strings.TrimSpace(req.Model)
	if modelName == "" {
		modelName = b.defaultModel
	}
	if modelName == "" {
		return nil, llm.ErrModelRequired
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: buildMessages(req),
		Stream:   true,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = buildTools(req.Tools)
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	b.setAuth(httpReq)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("openaicompat: status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	out := make(chan llm.ChatChunk)
	go streamSSE(ctx, resp.Body, out)
	return out, nil
}

func streamSSE(ctx context.Context, body io.ReadCloser, out chan<- llm.ChatChunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	toolCalls := map[int]*model.ToolCall{}
	emit := func(tc *model.ToolCall) {
		if tc.ID != "" && tc.Name != "" {
			out <- llm.ChatChunk{ToolCall: tc}
		}
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- llm.ChatChunk{Err: ctx.Err(), Done: true}
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			for _, tc := range toolCalls {
				emit(tc)
			}
			out <- llm.ChatChunk{Done: true}
			return
		}

		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			out <- llm.ChatChunk{Err: fmt.Errorf("openaicompat: decode chunk: %w", err), Done: true}
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			out <- llm.ChatChunk{Text: choice.Delta.Content}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			if toolCalls[idx] == nil {
				toolCalls[idx] = &model.ToolCall{Type: "function"}
			}
			if tc.ID != "" {
				toolCalls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[idx].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCalls[idx].Arguments = append(toolCalls[idx].Arguments, []byte(tc.Function.Arguments)...)
			}
		}
		if choice.FinishReason == "tool_calls" {
			for idx, tc := range toolCalls {
				emit(tc)
				delete(toolCalls, idx)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		out <- llm.ChatChunk{Err: err, Done: true}
	}
}

func buildTools(defs []llm.ToolDef) []openai.Tool {
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}

// buildMessages converts internal messages to the OpenAI wire form using
// positional call-id assignment (spec.md §4.4): each assistant tool-call is
// relabeled call_<n> in submission order, and each following tool-role
// message is paired with the next pending id in that same order, grounded
// on original_source's messages_to_openai (lm_studio.rs).
func buildMessages(req llm.ChatRequest) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	var pendingIDs []string
	nextID := 0

	for _, msg := range req.Messages {
		switch msg.Role {
		case model.RoleAssistant:
			cm := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			if len(msg.ToolCalls) > 0 {
				pendingIDs = pendingIDs[:0]
				for _, tc := range msg.ToolCalls {
					callID := fmt.Sprintf("call_%d", nextID)
					nextID++
					pendingIDs = append(pendingIDs, callID)

					typ := tc.Type
					if typ == "" {
						typ = "function"
					}
					cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
						ID:   callID,
						Type: openai.ToolType(typ),
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(tc.Arguments),
						},
					})
				}
			}
			out = append(out, cm)
		case model.RoleTool:
			var callID string
			if len(pendingIDs) > 0 {
				callID = pendingIDs[0]
				pendingIDs = pendingIDs[1:]
			} else {
				callID = fmt.Sprintf("call_%d", nextID)
				nextID++
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: callID,
			})
		case model.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		default:
			pendingIDs = pendingIDs[:0]
			nextID = 0
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		}
	}
	return out
}
