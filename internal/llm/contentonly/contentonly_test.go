package contentonly

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chora-ai/chai/internal/llm"
	"github.com/chora-ai/chai/internal/model"
)

func TestChatReturnsContentOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/chat", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"content": "hello there"})
	}))
	defer srv.Close()

	b := New(Config{BaseURL: srv.URL, DefaultModel: "m1"})
	result, err := b.Chat(context.Background(), llm.ChatRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", result.Content)
	require.Empty(t, result.ToolCalls)
}

func TestChatStreamUnsupported(t *testing.T) {
	b := New(Config{BaseURL: "http://unused", DefaultModel: "m1"})
	_, err := b.ChatStream(context.Background(), llm.ChatRequest{})
	require.ErrorIs(t, err, llm.ErrStreamingUnsupported)
}
