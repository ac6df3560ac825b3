package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chora-ai/chai/internal/agent"
	"github.com/chora-ai/chai/internal/channels"
	"github.com/chora-ai/chai/internal/config"
	"github.com/chora-ai/chai/internal/llm"
	"github.com/chora-ai/chai/internal/model"
	"github.com/chora-ai/chai/internal/pairing"
	"github.com/chora-ai/chai/internal/routing"
	"github.com/chora-ai/chai/internal/session"
	"github.com/chora-ai/chai/internal/skills"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the gateway protocol server: it owns every shared store, the
// channel registry, the agent-loop factory, and the broadcast bus, and
// serves both the duplex transport and the plain HTTP routes on one port.
type Server struct {
	Config      *config.Config
	Sessions    *session.Store
	Bindings    *routing.Store
	Pairing     *pairing.Store
	Channels    *channels.Registry
	Skills      []*skills.Entry
	Backends    map[string]llm.Provider
	Logger      *slog.Logger
	Broadcaster *Broadcaster
	Metrics     *Metrics // optional; nil disables counters

	// NewLoop builds an agent.Loop for a turn, given the resolved backend.
	NewLoop func(backend llm.Provider) *agent.Loop

	// SystemContext builds the per-turn system-context string (§4.13).
	SystemContext func() string

	Port int

	shuttingDown chan struct{}
	closeOnce    sync.Once

	modelsMu sync.RWMutex
	models   map[string][]string
}

// New constructs a Server with empty stores and the default logger. It
// starts nothing: callers start channel handles themselves and run the
// inbound processor with RunInboundProcessor.
func New(cfg *config.Config) *Server {
	return &Server{
		Config:       cfg,
		Sessions:     session.New(),
		Bindings:     routing.New(),
		Channels:     channels.New(),
		Backends:     make(map[string]llm.Provider),
		Logger:       slog.Default(),
		Broadcaster:  NewBroadcaster(nil),
		shuttingDown: make(chan struct{}),
		models:       make(map[string][]string),
	}
}

// DiscoverModels calls ListModels against every registered backend and
// caches the resulting model ids, guarded by modelsMu per spec.md §5's
// discovered-model-cache requirement. A backend whose discovery call fails
// is logged and left with an empty cache entry rather than aborting the
// others.
func (s *Server) DiscoverModels(ctx context.Context) {
	for name, backend := range s.Backends {
		models, err := backend.ListModels(ctx)
		if err != nil {
			s.Logger.Warn("gateway: model discovery failed", "backend", name, "error", err)
			s.setModelCache(name, nil)
			continue
		}
		ids := make([]string, 0, len(models))
		for _, m := range models {
			ids = append(ids, m.ID)
		}
		s.setModelCache(name, ids)
	}
}

func (s *Server) setModelCache(backend string, ids []string) {
	s.modelsMu.Lock()
	defer s.modelsMu.Unlock()
	s.models[backend] = ids
}

func (s *Server) modelCacheSnapshot() map[string][]string {
	s.modelsMu.RLock()
	defer s.modelsMu.RUnlock()
	out := make(map[string][]string, len(s.models))
	for k, v := range s.models {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// resolveBackend picks the named backend, falling back to the configured
// default.
func (s *Server) resolveBackend(name string) (llm.Provider, error) {
	if name == "" {
		name = s.Config.Agents.DefaultBackend
	}
	backend, ok := s.Backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidParams, name)
	}
	return backend, nil
}

// HTTPHandler returns the mux serving `/`, `/ws`, and
// `/telegram/webhook` (the latter only if webhookHandler is non-nil).
func (s *Server) HTTPHandler(webhookHandler http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.Handle("/metrics", promhttp.Handler())
	if webhookHandler != nil {
		mux.HandleFunc("/telegram/webhook", webhookHandler)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"runtime":  "running",
		"protocol": Protocol,
		"port":     s.Port,
	})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("gateway: websocket upgrade failed", "error", err)
		return
	}
	s.serveConnection(conn)
}

// connState tracks what a single duplex connection has negotiated.
type connState struct {
	challenge Challenge
	connected bool
}

// serveConnection drives one client connection: emits the challenge,
// then alternates between reading client frames and forwarding broadcast
// events, until the socket closes or shutdown is observed.
func (s *Server) serveConnection(conn *websocket.Conn) {
	defer conn.Close()

	challenge, err := newChallenge()
	if err != nil {
		s.Logger.Error("gateway: mint challenge failed", "error", err)
		return
	}
	state := &connState{challenge: challenge}

	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := writeJSON(newEvent("connect.challenge", challenge)); err != nil {
		return
	}

	events, unsubscribe := s.Broadcaster.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeJSON(ev); err != nil {
					return
				}
			case <-s.shuttingDown:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		select {
		case <-s.shuttingDown:
			return
		default:
		}

		var frame RequestFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			// Malformed JSON is silently ignored, per spec.md §4.10.
			continue
		}
		if err := validateRequestFrame(raw, &frame); err != nil {
			writeJSON(errResponse(frame.ID, fmt.Errorf("%w: %v", ErrInvalidParams, err)))
			continue
		}

		resp := s.dispatch(context.Background(), state, frame)
		if err := writeJSON(resp); err != nil {
			break
		}
	}
	<-done
}

func (s *Server) dispatch(ctx context.Context, state *connState, frame RequestFrame) ResponseFrame {
	switch frame.Method {
	case "connect":
		return s.handleConnectMethod(state, frame)
	case "health":
		return okResponse(frame.ID, map[string]any{"runtime": "running", "protocol": Protocol})
	case "status":
		return okResponse(frame.ID, s.buildStatus())
	case "send":
		return s.handleSendMethod(ctx, frame)
	case "agent":
		return s.handleAgentMethod(ctx, frame)
	default:
		return errResponse(frame.ID, ErrUnknownMethod)
	}
}

func (s *Server) handleConnectMethod(state *connState, frame RequestFrame) ResponseFrame {
	params, err := decodeParams[ConnectParams](frame.Params)
	if err != nil {
		return errResponse(frame.ID, err)
	}

	result, err := s.handleConnect(params, state.challenge)
	if err != nil {
		return errResponse(frame.ID, err)
	}
	state.connected = true

	return okResponse(frame.ID, HelloOk{
		Type:     "hello-ok",
		Protocol: negotiateProtocol(params.MaxProtocol),
		Auth:     result.auth,
	})
}

type statusPayload struct {
	Backend       string              `json:"backend"`
	Model         string              `json:"model"`
	Backends      []string            `json:"backends"`
	BackendModels map[string][]string `json:"backendModels"`
	AgentContext  string              `json:"agentContext"`
	SkillsContext string              `json:"skillsContext"`
	ContextMode   string              `json:"contextMode"`
	Date          string              `json:"date"`
}

func (s *Server) buildStatus() statusPayload {
	backends := make([]string, 0, len(s.Backends))
	for name := range s.Backends {
		backends = append(backends, name)
	}
	agentCtx := ""
	if s.SystemContext != nil {
		agentCtx = s.SystemContext()
	}
	contextMode := skills.ContextMode(s.Config.Skills.ContextMode)
	if contextMode == "" {
		contextMode = skills.ContextModeFull
	}
	return statusPayload{
		Backend:       s.Config.Agents.DefaultBackend,
		Model:         s.Config.Agents.DefaultModel,
		Backends:      backends,
		BackendModels: s.modelCacheSnapshot(),
		AgentContext:  agentCtx,
		SkillsContext: skills.SkillsContext(s.Skills, contextMode),
		ContextMode:   s.Config.Skills.ContextMode,
		Date:          time.Now().Format("2006-01-02"),
	}
}

type sendParams struct {
	ChannelID      string `json:"channelId"`
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

func (s *Server) handleSendMethod(ctx context.Context, frame RequestFrame) ResponseFrame {
	params, err := decodeParams[sendParams](frame.Params)
	if err != nil {
		return errResponse(frame.ID, err)
	}
	if err := s.Channels.Send(ctx, params.ChannelID, params.ConversationID, params.Message); err != nil {
		return errResponse(frame.ID, fmt.Errorf("%w: %v", ErrNoSuchChannel, err))
	}
	return okResponse(frame.ID, map[string]any{"ok": true})
}

type agentParams struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Backend   string `json:"backend"`
	Model     string `json:"model"`
}

type agentResponsePayload struct {
	Reply     string           `json:"reply"`
	SessionID string           `json:"sessionId"`
	ToolCalls []model.ToolCall `json:"toolCalls"`
}

func (s *Server) handleAgentMethod(ctx context.Context, frame RequestFrame) ResponseFrame {
	params, err := decodeParams[agentParams](frame.Params)
	if err != nil {
		return errResponse(frame.ID, err)
	}

	sessionID := params.SessionID
	if sessionID == "" {
		sessionID = s.Sessions.Create()
	} else {
		sessionID = s.Sessions.GetOrCreate(sessionID)
	}

	channelID, conversationID, bound := s.Bindings.ResolveBinding(sessionID)

	if err := s.Sessions.Append(sessionID, model.Message{Role: model.RoleUser, Content: params.Message}); err != nil {
		return errResponse(frame.ID, err)
	}
	userEvent := SessionMessageEvent{
		SessionID: sessionID,
		Role:      string(model.RoleUser),
		Content:   params.Message,
	}
	if bound {
		userEvent.ChannelID = channelID
		userEvent.ConversationID = conversationID
	}
	s.Broadcaster.Publish(newEvent("session.message", userEvent))

	backend, err := s.resolveBackend(params.Backend)
	if err != nil {
		return errResponse(frame.ID, err)
	}
	backendName := params.Backend
	if backendName == "" {
		backendName = s.Config.Agents.DefaultBackend
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
	s.Metrics.RecordAgentTurn(backendName, status, time.Since(start).Seconds())
	if err != nil {
		return errResponse(frame.ID, err)
	}

	assistantEvent := SessionMessageEvent{
		SessionID: sessionID,
		Role:      string(model.RoleAssistant),
		Content:   result.Content,
	}
	if bound {
		assistantEvent.ChannelID = channelID
		assistantEvent.ConversationID = conversationID
	}
	s.Broadcaster.Publish(newEvent("session.message", assistantEvent))

	if bound && strings.TrimSpace(result.Content) != "" {
		if sendErr := s.Channels.Send(ctx, channelID, conversationID, result.Content); sendErr != nil {
			s.Logger.Warn("gateway: deliver agent reply to bound channel failed", "error", sendErr)
		}
	}

	return okResponse(frame.ID, agentResponsePayload{
		Reply:     result.Content,
		SessionID: sessionID,
		ToolCalls: result.ToolCalls,
	})
}

// SessionMessageEvent is the payload of a session.message broadcast event.
type SessionMessageEvent struct {
	SessionID      string `json:"sessionId"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	ChannelID      string `json:"channelId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Shutdown broadcasts a shutdown event and stops every registered channel
// handle, per spec.md §5's cancellation policy.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.Broadcaster.Publish(newEvent("shutdown", struct{}{}))
		close(s.shuttingDown)
		err = s.Channels.StopAll(ctx)
	})
	return err
}
