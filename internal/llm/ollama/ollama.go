// Package ollama implements llm.Provider against Ollama's native NDJSON
// /api/chat and /api/tags endpoints, grounded on the teacher's
// internal/agent/providers/ollama.go.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chora-ai/chai/internal/llm"
	"github.com/chora-ai/chai/internal/model"
)

// Config configures the Ollama backend.
type Config struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// Backend implements llm.Provider against a local or remote Ollama server.
type Backend struct {
	client       *http.Client
	baseURL      string
	defaultModel string
}

var _ llm.Provider = (*Backend)(nil)

// New creates an Ollama backend.
func New(cfg Config) *Backend {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Backend{
		client:       &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
	}
}

// Name implements llm.Provider.
func (b *Backend) Name() string { return "ollama" }

// ListModels calls GET /api/tags.
func (b *Backend) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("ollama list models: status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("ollama list models: decode: %w", err)
	}
	out := make([]llm.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		out = append(out, llm.ModelInfo{ID: m.Name, Name: m.Name})
	}
	return out, nil
}

// Chat accumulates the full streamed response into a ChatResult.
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

// ChatStream implements llm.Provider by opening the NDJSON stream from
// /api/chat and decoding one JSON object per line.
func (b *Backend) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.ChatChunk, error) {
	modelName := strings.TrimSpace(req.Model)
	if modelName == "" {
		modelName = b.defaultModel
	}
	if modelName == "" {
		return nil, llm.ErrModelRequired
	}

	payload := chatRequest{
		Model:    modelName,
		Stream:   true,
		Messages: buildMessages(req),
		Tools:    buildTools(req.Tools),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	out := make(chan llm.ChatChunk)
	go streamResponse(ctx, resp.Body, out)
	return out, nil
}

func streamResponse(ctx context.Context, body io.ReadCloser, out chan<- llm.ChatChunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	emitted := map[string]struct{}{}
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- llm.ChatChunk{Err: ctx.Err(), Done: true}
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resp chatResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			out <- llm.ChatChunk{Err: fmt.Errorf("ollama: decode response: %w", err), Done: true}
			return
		}
		if resp.Error != "" {
			out <- llm.ChatChunk{Err: errors.New(resp.Error), Done: true}
			return
		}
		if resp.Message != nil {
			if resp.Message.Content != "" {
				out <- llm.ChatChunk{Text: resp.Message.Content}
			}
			for _, tc := range resp.Message.ToolCalls {
				id := strings.TrimSpace(tc.ID)
				if id == "" {
					id = toolCallKey(tc)
					if id == "" {
						id = uuid.NewString()
					}
				}
				if _, ok := emitted[id]; ok {
					continue
				}
				emitted[id] = struct{}{}
				args := tc.Function.Arguments
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				out <- llm.ChatChunk{ToolCall: &model.ToolCall{
					ID:        id,
					Type:      "function",
					Name:      strings.TrimSpace(tc.Function.Name),
					Arguments: args,
				}}
			}
		}
		if resp.Done {
			out <- llm.ChatChunk{Done: true}
			return
		}
	}
	if err := scanner.Err(); err != nil {
		out <- llm.ChatChunk{Err: err, Done: true}
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Tools    []toolDef      `json:"tools,omitempty"`
	Stream   bool           `json:"stream"`
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

type chatResponse struct {
	Message *chatMessage `json:"message"`
	Done    bool         `json:"done"`
	Error   string       `json:"error"`
}

type toolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type toolDef struct {
	Type     string       `json:"type"`
	Function toolFuncSpec `json:"function"`
}

type toolFuncSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

func buildTools(defs []llm.ToolDef) []toolDef {
	if len(defs) == 0 {
		return nil
	}
	out := make([]toolDef, 0, len(defs))
	for _, d := range defs {
		out = append(out, toolDef{
			Type: "function",
			Function: toolFuncSpec{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}

func buildMessages(req llm.ChatRequest) []chatMessage {
	out := make([]chatMessage, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		out = append(out, chatMessage{Role: "system", Content: system})
	}
	toolNames := map[string]string{}
	for _, msg := range req.Messages {
		for _, tc := range msg.ToolCalls {
			if tc.ID != "" && tc.Name != "" {
				toolNames[tc.ID] = tc.Name
			}
		}
	}
	for _, msg := range req.Messages {
		role := string(msg.Role)
		if role == "" {
			role = "user"
		}
		switch model.Role(role) {
		case model.RoleAssistant:
			cm := chatMessage{Role: role, Content: msg.Content}
			if len(msg.ToolCalls) > 0 {
				cm.ToolCalls = make([]toolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					args := tc.Arguments
					if len(args) == 0 {
						args = json.RawMessage(`{}`)
					}
					cm.ToolCalls[i] = toolCall{ID: tc.ID, Type: "function", Function: toolFunction{Name: tc.Name, Arguments: args}}
				}
			}
			out = append(out, cm)
		case model.RoleTool:
			out = append(out, chatMessage{Role: role, Content: msg.Content, ToolName: msg.ToolName})
		default:
			out = append(out, chatMessage{Role: role, Content: msg.Content})
		}
	}
	return out
}

func toolCallKey(tc toolCall) string {
	if strings.TrimSpace(tc.ID) != "" {
		return strings.TrimSpace(tc.ID)
	}
	name := strings.TrimSpace(tc.Function.Name)
	args := strings.TrimSpace(string(tc.Function.Arguments))
	if name == "" && args == "" {
		return ""
	}
	return name + ":" + args
}
