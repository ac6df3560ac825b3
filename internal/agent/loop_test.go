package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chora-ai/chai/internal/llm"
	"github.com/chora-ai/chai/internal/model"
	"github.com/chora-ai/chai/internal/session"
)

type scriptedProvider struct {
	results []llm.ChatResult
	calls   int
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	return nil, nil
}
func (p *scriptedProvider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResult, error) {
	r := p.results[p.calls]
	p.calls++
	return r, nil
}
func (p *scriptedProvider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.ChatChunk, error) {
	return nil, llm.ErrStreamingUnsupported
}

type fakeExecutor struct {
	fn func(call model.ToolCall) (string, error)
}

func (f *fakeExecutor) ExecuteTool(ctx context.Context, call model.ToolCall) (string, error) {
	return f.fn(call)
}

func TestRunStopsWhenNoToolCalls(t *testing.T) {
	store := session.New()
	id := store.Create()
	require.NoError(t, store.Append(id, model.Message{Role: model.RoleUser, Content: "hi"}))

	provider := &scriptedProvider{results: []llm.ChatResult{{Content: "hello"}}}
	loop := &Loop{Provider: provider, Sessions: store}

	result, err := loop.Run(context.Background(), id, "", nil)
	require.NoError(t, err)
	require.Equal(t, "hello", result.Content)
	require.Equal(t, 1, provider.calls)

	msgs, _ := store.Get(id)
	require.Len(t, msgs, 2)
	require.Equal(t, model.RoleAssistant, msgs[1].Role)
}

func TestRunExecutesToolCallAndJournalsResult(t *testing.T) {
	store := session.New()
	id := store.Create()
	require.NoError(t, store.Append(id, model.Message{Role: model.RoleUser, Content: "find X"}))

	toolCall := model.ToolCall{ID: "c1", Type: "function", Name: "search", Arguments: json.RawMessage(`{"q":"X"}`)}
	provider := &scriptedProvider{results: []llm.ChatResult{
		{Content: "", ToolCalls: []model.ToolCall{toolCall}},
		{Content: "found: X"},
	}}
	executor := &fakeExecutor{fn: func(call model.ToolCall) (string, error) {
		require.Equal(t, "search", call.Name)
		return "X found in notes", nil
	}}
	loop := &Loop{Provider: provider, Sessions: store, Executor: executor}

	result, err := loop.Run(context.Background(), id, "", nil)
	require.NoError(t, err)
	require.Equal(t, "found: X", result.Content)

	msgs, _ := store.Get(id)
	require.Len(t, msgs, 4)
	require.Equal(t, model.RoleAssistant, msgs[1].Role)
	require.Equal(t, model.RoleTool, msgs[2].Role)
	require.Equal(t, "search", msgs[2].ToolName)
	require.Equal(t, "X found in notes", msgs[2].Content)
	require.Equal(t, model.RoleAssistant, msgs[3].Role)
}

func TestRunSubstitutesErrorOnToolFailure(t *testing.T) {
	store := session.New()
	id := store.Create()
	require.NoError(t, store.Append(id, model.Message{Role: model.RoleUser, Content: "do it"}))

	toolCall := model.ToolCall{ID: "c1", Type: "function", Name: "broken", Arguments: json.RawMessage(`{}`)}
	provider := &scriptedProvider{results: []llm.ChatResult{
		{ToolCalls: []model.ToolCall{toolCall}},
		{Content: "done"},
	}}
	executor := &fakeExecutor{fn: func(call model.ToolCall) (string, error) {
		return "", errors.New("boom")
	}}
	loop := &Loop{Provider: provider, Sessions: store, Executor: executor}

	_, err := loop.Run(context.Background(), id, "", nil)
	require.NoError(t, err)

	msgs, _ := store.Get(id)
	require.Equal(t, "error: boom", msgs[2].Content)
}

func TestRunBreaksWithContentWhenNoExecutor(t *testing.T) {
	store := session.New()
	id := store.Create()
	require.NoError(t, store.Append(id, model.Message{Role: model.RoleUser, Content: "hi"}))

	toolCall := model.ToolCall{ID: "c1", Type: "function", Name: "search", Arguments: json.RawMessage(`{}`)}
	provider := &scriptedProvider{results: []llm.ChatResult{{Content: "partial", ToolCalls: []model.ToolCall{toolCall}}}}
	loop := &Loop{Provider: provider, Sessions: store}

	result, err := loop.Run(context.Background(), id, "", nil)
	require.NoError(t, err)
	require.Equal(t, "partial", result.Content)
	require.Equal(t, 1, provider.calls)
}

func TestRunStopsAtMaxToolLoop(t *testing.T) {
	store := session.New()
	id := store.Create()
	require.NoError(t, store.Append(id, model.Message{Role: model.RoleUser, Content: "loop forever"}))

	toolCall := model.ToolCall{ID: "c1", Type: "function", Name: "search", Arguments: json.RawMessage(`{}`)}
	results := make([]llm.ChatResult, MaxToolLoop)
	for i := range results {
		results[i] = llm.ChatResult{Content: "still going", ToolCalls: []model.ToolCall{toolCall}}
	}
	provider := &scriptedProvider{results: results}
	executor := &fakeExecutor{fn: func(call model.ToolCall) (string, error) { return "ok", nil }}
	loop := &Loop{Provider: provider, Sessions: store, Executor: executor}

	result, err := loop.Run(context.Background(), id, "", nil)
	require.NoError(t, err)
	require.Equal(t, "still going", result.Content)
	require.Equal(t, MaxToolLoop, provider.calls)
}
