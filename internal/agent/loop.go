// Package agent implements the bounded tool-calling agent loop (spec §4.9),
// grounded on the shape of the teacher's internal/agent/loop.go generalized
// down to the fixed MAX_TOOL_LOOP bound.
package agent

import (
	"context"
	"fmt"

	"github.com/chora-ai/chai/internal/llm"
	"github.com/chora-ai/chai/internal/model"
	"github.com/chora-ai/chai/internal/session"
)

// MaxToolLoop bounds the number of tool-call round trips a single turn may
// take before the loop gives up and returns whatever content it has.
const MaxToolLoop = 5

// ToolExecutor runs one tool call and returns its result text, or an error
// describing why it failed.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, call model.ToolCall) (string, error)
}

// ChunkFunc receives streamed text chunks from the first iteration of a
// turn, when streaming is requested.
type ChunkFunc func(text string)

// Loop drives one assistant turn against a session: it calls the LLM,
// executes any tool calls the model requests, and journals the assistant
// and tool messages it produces into the session.
type Loop struct {
	Provider llm.Provider
	Sessions *session.Store
	Executor ToolExecutor // nil disables tool execution entirely
	Tools    []llm.ToolDef
	Model    string
}

// Result is the outcome of one bounded turn.
type Result struct {
	Content   string
	ToolCalls []model.ToolCall
}

// Run executes one bounded turn for sessionID. systemContext, if non-empty,
// is prepended as a system-role message ahead of the session snapshot; it
// is never itself appended to the session. onChunk, if non-nil, receives
// streamed text from the first iteration only.
func (l *Loop) Run(ctx context.Context, sessionID string, systemContext string, onChunk ChunkFunc) (Result, error) {
	snapshot, ok := l.Sessions.Get(sessionID)
	if !ok {
		return Result{}, session.ErrNoSuchSession
	}

	working := make([]model.Message, 0, len(snapshot)+1)
	if systemContext != "" {
		working = append(working, model.Message{Role: model.RoleSystem, Content: systemContext})
	}
	working = append(working, snapshot...)

	var last Result
	for iteration := 0; iteration < MaxToolLoop; iteration++ {
		req := llm.ChatRequest{Model: l.Model, Messages: working, Tools: l.Tools}

		var result llm.ChatResult
		var err error
		if iteration == 0 && onChunk != nil {
			result, err = l.runStreaming(ctx, req, onChunk)
		} else {
			result, err = l.Provider.Chat(ctx, req)
		}
		if err != nil {
			return Result{}, fmt.Errorf("agent: chat: %w", err)
		}

		assistantMsg := model.Message{
			Role:      model.RoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		}
		working = append(working, assistantMsg)
		if err := l.Sessions.Append(sessionID, assistantMsg); err != nil {
			return Result{}, fmt.Errorf("agent: append assistant message: %w", err)
		}
		last = Result{Content: result.Content, ToolCalls: result.ToolCalls}

		if len(result.ToolCalls) == 0 {
			return last, nil
		}
		if l.Executor == nil {
			return last, nil
		}

		for _, call := range result.ToolCalls {
			output, err := l.Executor.ExecuteTool(ctx, call)
			if err != nil {
				output = fmt.Sprintf("error: %s", err.Error())
			}
			toolMsg := model.Message{Role: model.RoleTool, Content: output, ToolName: call.Name}
			working = append(working, toolMsg)
			if err := l.Sessions.Append(sessionID, toolMsg); err != nil {
				return Result{}, fmt.Errorf("agent: append tool message: %w", err)
			}
		}
	}

	return last, nil
}

func (l *Loop) runStreaming(ctx context.Context, req llm.ChatRequest, onChunk ChunkFunc) (llm.ChatResult, error) {
	chunks, err := l.Provider.ChatStream(ctx, req)
	if err != nil {
		// Backend can't stream (e.g. the content-only backend); fall back.
		return l.Provider.Chat(ctx, req)
	}

	var result llm.ChatResult
	for chunk := range chunks {
		if chunk.Err != nil {
			return llm.ChatResult{}, chunk.Err
		}
		if chunk.Text != "" {
			result.Content += chunk.Text
			onChunk(chunk.Text)
		}
		if chunk.ToolCall != nil {
			result.ToolCalls = append(result.ToolCalls, *chunk.ToolCall)
		}
	}
	return result, nil
}
