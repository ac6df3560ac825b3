package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chora-ai/chai/internal/channels"
	"github.com/chora-ai/chai/internal/model"
)

// RunInboundProcessor drains queue until ctx is cancelled or the queue's
// channel closes, turning each InboundMessage into a session append, an
// agent-loop run, and a reply, per spec.md §4.12.
func (s *Server) RunInboundProcessor(ctx context.Context, queue *channels.InboundQueue) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-queue.C():
			if !ok {
				return
			}
			s.processInbound(ctx, msg)
		}
	}
}

func (s *Server) processInbound(ctx context.Context, msg model.InboundMessage) {
	if strings.EqualFold(strings.TrimSpace(msg.Text), NewSessionTrigger) {
		s.rebindToFreshSession(ctx, msg)
		return
	}

	sessionID, existed := s.Bindings.ResolveSession(msg.ChannelID, msg.ConversationID)
	if existed {
		sessionID = s.Sessions.GetOrCreate(sessionID)
	} else {
		sessionID = s.Sessions.Create()
		s.Bindings.Bind(msg.ChannelID, msg.ConversationID, sessionID)
	}

	if err := s.Sessions.Append(sessionID, model.Message{Role: model.RoleUser, Content: msg.Text}); err != nil {
		s.Logger.Error("gateway: append inbound user message failed", "error", err)
		return
	}
	s.Broadcaster.Publish(newEvent("session.message", SessionMessageEvent{
		SessionID:      sessionID,
		Role:           string(model.RoleUser),
		Content:        msg.Text,
		ChannelID:      msg.ChannelID,
		ConversationID: msg.ConversationID,
	}))

	s.runTurnAndReply(ctx, sessionID, msg.ChannelID, msg.ConversationID)
}

func (s *Server) rebindToFreshSession(ctx context.Context, msg model.InboundMessage) {
	if existing, ok := s.Bindings.ResolveSession(msg.ChannelID, msg.ConversationID); ok {
		s.Sessions.Remove(existing)
		s.Bindings.Evict(existing)
	}
	sessionID := s.Sessions.Create()
	s.Bindings.Bind(msg.ChannelID, msg.ConversationID, sessionID)

	if err := s.Channels.Send(ctx, msg.ChannelID, msg.ConversationID, "session restarted. next message will start with a clean history."); err != nil {
		s.Logger.Warn("gateway: send new-session confirmation failed", "error", err)
	}
}

// runTurnAndReply runs the agent loop for sessionID against the default
// backend, broadcasts the assistant reply, and sends it to the originating
// channel if non-empty. On failure it sends a human-readable error to the
// channel instead; the session is preserved either way.
func (s *Server) runTurnAndReply(ctx context.Context, sessionID, channelID, conversationID string) {
	backend, err := s.resolveBackend("")
	if err != nil {
		s.Channels.Send(ctx, channelID, conversationID, fmt.Sprintf("error: %v", err))
		return
	}

	loop := s.NewLoop(backend)
	systemCtx := ""
	if s.SystemContext != nil {
		systemCtx = s.SystemContext()
	}

	start := time.Now()
	result, err := loop.Run(ctx, sessionID, systemCtx, nil)
	status := "success"
	if err != nil {
		status = "error"
	}
	s.Metrics.RecordAgentTurn(s.Config.Agents.DefaultBackend, status, time.Since(start).Seconds())
	if err != nil {
		if sendErr := s.Channels.Send(ctx, channelID, conversationID, fmt.Sprintf("error: %v", err)); sendErr != nil {
			s.Logger.Error("gateway: send turn-failure message failed", "error", sendErr)
		}
		return
	}

	s.Broadcaster.Publish(newEvent("session.message", SessionMessageEvent{
		SessionID:      sessionID,
		Role:           string(model.RoleAssistant),
		Content:        result.Content,
		ChannelID:      channelID,
		ConversationID: conversationID,
	}))

	if strings.TrimSpace(result.Content) == "" {
		return
	}
	if err := s.Channels.Send(ctx, channelID, conversationID, result.Content); err != nil {
		s.Logger.Error("gateway: send assistant reply failed", "error", err)
	}
}
