package gateway

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chora-ai/chai/internal/agent"
	"github.com/chora-ai/chai/internal/config"
	"github.com/chora-ai/chai/internal/execsafe"
	"github.com/chora-ai/chai/internal/llm"
	"github.com/chora-ai/chai/internal/llm/contentonly"
	"github.com/chora-ai/chai/internal/llm/ollama"
	"github.com/chora-ai/chai/internal/llm/openaicompat"
	"github.com/chora-ai/chai/internal/pairing"
	"github.com/chora-ai/chai/internal/skills"
	"github.com/chora-ai/chai/internal/toolrun"
)

// BuildExecutor constructs an execsafe.Executor with every (binary,
// subcommand) pair any loaded skill's tools.json allowlist names. The
// caller is responsible for honoring skills.allowScripts separately:
// toolrun.New's allowScripts flag gates script-based resolvers regardless
// of what the executor itself allows.
func BuildExecutor(entries []*skills.Entry) *execsafe.Executor {
	exec := execsafe.New()
	for _, entry := range entries {
		if entry.Tools == nil {
			continue
		}
		for binary, subcommands := range entry.Tools.Allowlist {
			for _, sub := range subcommands {
				exec.Allow(binary, sub)
			}
		}
	}
	return exec
}

// resolveBackendFlavor returns the llm.Provider constructed for a single
// configured backend, per its flavor.
func resolveBackendFlavor(name string, cfg config.BackendConfig) (llm.Provider, error) {
	switch cfg.Flavor {
	case "", "openai-compatible":
		return openaicompat.New(openaicompat.Config{BaseURL: cfg.BaseURL}), nil
	case "ollama-native":
		return ollama.New(ollama.Config{BaseURL: cfg.BaseURL}), nil
	case "content-only":
		return contentonly.New(contentonly.Config{BaseURL: cfg.BaseURL}), nil
	default:
		return nil, fmt.Errorf("gateway: backend %q: unknown flavor %q", name, cfg.Flavor)
	}
}

// BuildBackends constructs one llm.Provider per entry in
// cfg.Agents.EnabledBackends, keyed by backend name ("ollama"/"lmstudio").
func BuildBackends(cfg *config.Config) (map[string]llm.Provider, error) {
	backends := make(map[string]llm.Provider, len(cfg.Agents.EnabledBackends))
	for _, name := range cfg.Agents.EnabledBackends {
		var backendCfg config.BackendConfig
		switch name {
		case "ollama":
			backendCfg = cfg.Agents.Backends.Ollama
		case "lmstudio":
			backendCfg = cfg.Agents.Backends.LMStudio
		default:
			return nil, fmt.Errorf("gateway: unknown backend name %q in agents.enabledBackends", name)
		}
		provider, err := resolveBackendFlavor(name, backendCfg)
		if err != nil {
			return nil, err
		}
		backends[name] = provider
	}
	return backends, nil
}

// BuildOptions bundles everything New needs beyond the raw config, so
// callers (tests, cmd/chai-gatewayd) can assemble a Server without
// duplicating wiring logic.
type BuildOptions struct {
	Config  *config.Config
	Logger  *slog.Logger
	Pairing *pairing.Store
	Skills  []*skills.Entry
}

// Build assembles a fully-wired Server: backends, skill-tool executor,
// agent-loop factory, and system-context builder, ready to have its HTTP
// handler mounted and channel handles started.
func Build(opts BuildOptions) (*Server, error) {
	backends, err := BuildBackends(opts.Config)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(prometheus.DefaultRegisterer)

	executor := BuildExecutor(opts.Skills)
	runtime := toolrun.New(executor, opts.Config.Skills.AllowScripts)
	toolExecutor := &agent.SkillToolExecutor{Entries: opts.Skills, Runtime: runtime, Metrics: metrics}
	toolDefs := agent.BuildToolDefs(opts.Skills)

	agentCtx, err := ReadAgentContext(opts.Config.Skills.AgentContextPath)
	if err != nil {
		return nil, err
	}
	contextMode := skills.ContextMode(opts.Config.Skills.ContextMode)
	if contextMode == "" {
		contextMode = skills.ContextModeFull
	}

	s := New(opts.Config)
	s.Logger = opts.Logger
	s.Pairing = opts.Pairing
	s.Skills = opts.Skills
	s.Backends = backends
	s.Port = opts.Config.Gateway.Port
	s.Metrics = metrics
	s.Broadcaster = NewBroadcaster(metrics)
	s.SystemContext = func() string {
		return skills.BuildSystemContext(time.Now(), agentCtx, opts.Skills, contextMode)
	}
	s.NewLoop = func(backend llm.Provider) *agent.Loop {
		return &agent.Loop{
			Provider: backend,
			Sessions: s.Sessions,
			Executor: toolExecutor,
			Tools:    toolDefs,
			Model:    opts.Config.Agents.DefaultModel,
		}
	}

	return s, nil
}
