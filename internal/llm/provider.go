// Package llm defines the uniform LLM backend trait (list models, chat,
// chat stream) implemented by the ollama and openaicompat subpackages,
// grounded on the teacher's agent.LLMProvider interface
// (internal/agent/provider_types.go).
package llm

import (
	"context"

	"github.com/chora-ai/chai/internal/model"
)

// ModelInfo describes one model a backend can serve.
type ModelInfo struct {
	ID   string
	Name string
}

// ToolDef is the backend-agnostic shape of one callable tool definition
// passed to Chat/ChatStream, matching a JSON Schema function descriptor.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatRequest is a backend-agnostic chat completion request.
type ChatRequest struct {
	Model    string
	System   string
	Messages []model.Message
	Tools    []ToolDef
}

// ChatChunk is one increment of a streamed response. A chunk carries either
// text, a completed tool call, or a terminal error; Done marks the final
// chunk of the stream.
type ChatChunk struct {
	Text     string
	ToolCall *model.ToolCall
	Err      error
	Done     bool
}

// ChatResult is the fully-accumulated result of a non-streaming chat call.
type ChatResult struct {
	Content   string
	ToolCalls []model.ToolCall
}

// Provider is the uniform trait every LLM backend implements.
type Provider interface {
	Name() string
	ListModels(ctx context.Context) ([]ModelInfo, error)
	Chat(ctx context.Context, req ChatRequest) (ChatResult, error)
	// ChatStream streams the response. Backends that cannot stream (the
	// secondary non-OpenAI-compatible endpoint) return ErrStreamingUnsupported.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error)
}
