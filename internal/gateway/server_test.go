package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chora-ai/chai/internal/agent"
	"github.com/chora-ai/chai/internal/config"
	"github.com/chora-ai/chai/internal/llm"
)

func newDispatchTestServer(t *testing.T, reply string) *Server {
	t.Helper()
	s := New(&config.Config{Agents: config.AgentsConfig{DefaultBackend: "ollama"}})
	s.Backends = map[string]llm.Provider{"ollama": &staticProvider{reply: reply}}
	s.NewLoop = func(backend llm.Provider) *agent.Loop {
		return &agent.Loop{Provider: backend, Sessions: s.Sessions}
	}
	return s
}

func TestDispatchHealthReturnsRuntimeRunning(t *testing.T) {
	s := newDispatchTestServer(t, "")
	resp := s.dispatch(context.Background(), &connState{}, RequestFrame{Type: FrameRequest, ID: "1", Method: "health"})
	require.True(t, resp.OK)
}

func TestDispatchUnknownMethodErrors(t *testing.T) {
	s := newDispatchTestServer(t, "")
	resp := s.dispatch(context.Background(), &connState{}, RequestFrame{Type: FrameRequest, ID: "1", Method: "bogus"})
	require.False(t, resp.OK)
	require.Equal(t, ErrUnknownMethod.Error(), resp.Error)
}

func TestDispatchStatusReportsConfiguredBackend(t *testing.T) {
	s := newDispatchTestServer(t, "")
	resp := s.dispatch(context.Background(), &connState{}, RequestFrame{Type: FrameRequest, ID: "1", Method: "status"})
	require.True(t, resp.OK)
	payload, ok := resp.Payload.(statusPayload)
	require.True(t, ok)
	require.Equal(t, "ollama", payload.Backend)
}

func TestDispatchSendRoutesToRegisteredChannel(t *testing.T) {
	s := newDispatchTestServer(t, "")
	handle := &recordingHandle{}
	s.Channels.Register(handle)

	params, err := json.Marshal(sendParams{ChannelID: "telegram", ConversationID: "1", Message: "hello"})
	require.NoError(t, err)

	resp := s.dispatch(context.Background(), &connState{}, RequestFrame{Type: FrameRequest, ID: "1", Method: "send", Params: params})
	require.True(t, resp.OK)

	handle.mu.Lock()
	defer handle.mu.Unlock()
	require.Equal(t, []string{"hello"}, handle.sent)
}

func TestDispatchSendUnknownChannelErrors(t *testing.T) {
	s := newDispatchTestServer(t, "")
	params, err := json.Marshal(sendParams{ChannelID: "discord", ConversationID: "1", Message: "hi"})
	require.NoError(t, err)

	resp := s.dispatch(context.Background(), &connState{}, RequestFrame{Type: FrameRequest, ID: "1", Method: "send", Params: params})
	require.False(t, resp.OK)
}

func TestDispatchAgentCreatesSessionAndReturnsReply(t *testing.T) {
	s := newDispatchTestServer(t, "assistant reply")

	params, err := json.Marshal(agentParams{Message: "hi there"})
	require.NoError(t, err)

	resp := s.dispatch(context.Background(), &connState{}, RequestFrame{Type: FrameRequest, ID: "1", Method: "agent", Params: params})
	require.True(t, resp.OK)

	payload, ok := resp.Payload.(agentResponsePayload)
	require.True(t, ok)
	require.Equal(t, "assistant reply", payload.Reply)
	require.NotEmpty(t, payload.SessionID)
}

func TestDispatchAgentUnknownBackendErrors(t *testing.T) {
	s := newDispatchTestServer(t, "")
	params, err := json.Marshal(agentParams{Message: "hi", Backend: "claude"})
	require.NoError(t, err)

	resp := s.dispatch(context.Background(), &connState{}, RequestFrame{Type: FrameRequest, ID: "1", Method: "agent", Params: params})
	require.False(t, resp.OK)
}
