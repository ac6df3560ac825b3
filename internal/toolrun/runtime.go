package toolrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chora-ai/chai/internal/execsafe"
)

// ErrInvalidScriptName is returned when a resolver's script name escapes the
// skill's scripts/ directory via "..", "/", or "\".
var ErrInvalidScriptName = errors.New("invalid-script-name")

// Runtime builds argv for a tool invocation from an ExecutionSpec and a JSON
// params object, then runs it through an Executor.
type Runtime struct {
	executor     *execsafe.Executor
	allowScripts bool
}

// New returns a Runtime bound to executor. allowScripts gates whether
// script-based resolvers may run (skills.allowScripts config option).
func New(executor *execsafe.Executor, allowScripts bool) *Runtime {
	return &Runtime{executor: executor, allowScripts: allowScripts}
}

// Execute runs spec against params (a JSON object), resolving the skill's
// scripts/ directory from skillDir for script-based resolvers.
func (r *Runtime) Execute(ctx context.Context, spec ExecutionSpec, params json.RawMessage, skillDir string) (string, error) {
	argv, err := r.buildArgv(ctx, spec, params, skillDir)
	if err != nil {
		return "", err
	}
	return r.executor.Run(ctx, spec.Binary, spec.Subcommand, argv)
}

func (r *Runtime) buildArgv(ctx context.Context, spec ExecutionSpec, params json.RawMessage, skillDir string) ([]string, error) {
	var obj map[string]any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &obj); err != nil {
			return nil, fmt.Errorf("arguments must be an object: %w", err)
		}
	}
	if obj == nil {
		obj = map[string]any{}
	}

	var argv []string
	for _, arg := range spec.Args {
		switch arg.Kind {
		case KindPositional:
			raw, ok := obj[arg.Param]
			if !ok {
				return nil, fmt.Errorf("missing parameter: %s", arg.Param)
			}
			s, ok := jsonScalarToString(raw)
			if !ok {
				return nil, fmt.Errorf("parameter %s must be a string, number, or boolean", arg.Param)
			}
			value, err := r.transformValue(ctx, s, arg, skillDir)
			if err != nil {
				return nil, err
			}
			argv = append(argv, value)

		case KindFlag:
			raw, ok := obj[arg.Param]
			if !ok || raw == nil {
				continue
			}
			s, ok := jsonScalarToString(raw)
			if !ok {
				return nil, fmt.Errorf("parameter %s must be a string, number, or boolean", arg.Param)
			}
			flagName := arg.Flag
			if flagName == "" {
				flagName = arg.Param
			}
			value, err := r.transformValue(ctx, s, arg, skillDir)
			if err != nil {
				return nil, err
			}
			argv = append(argv, "--"+flagName, value)

		case KindFlagIfBoolean:
			truthy := parseTruthy(obj[arg.Param])
			var flag string
			if truthy {
				flag = arg.FlagIfTrue
			} else {
				flag = arg.FlagIfFalse
			}
			if flag != "" {
				argv = append(argv, flag)
			}

		default:
			return nil, fmt.Errorf("unknown argument mapping kind: %s", arg.Kind)
		}
	}
	return argv, nil
}

// transformValue applies, in order: newline normalization, then resolver
// substitution. Resolver failure or empty resolver output retains the
// pre-resolution value.
func (r *Runtime) transformValue(ctx context.Context, value string, arg ArgMapping, skillDir string) (string, error) {
	if arg.NormalizeNewlines {
		value = normalizeNewlines(value)
	}
	if arg.ResolveCommand == nil {
		return value, nil
	}
	resolved, err := r.resolve(ctx, value, arg.ResolveCommand, skillDir)
	if err != nil {
		if errors.Is(err, ErrInvalidScriptName) {
			return "", err
		}
		return value, nil
	}
	if resolved == "" {
		return value, nil
	}
	return resolved, nil
}

func (r *Runtime) resolve(ctx context.Context, value string, cmd *ResolveCommand, skillDir string) (string, error) {
	argv := make([]string, len(cmd.Args))
	for i, a := range cmd.Args {
		argv[i] = strings.ReplaceAll(a, "$param", value)
	}

	if r.allowScripts && cmd.Script != "" {
		out, err := runScript(ctx, skillDir, cmd.Script, argv)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	}

	if cmd.Binary != "" && cmd.Subcommand != "" {
		out, err := r.executor.Run(ctx, cmd.Binary, cmd.Subcommand, argv)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	}

	return value, nil
}

// runScript runs a skill-local resolver script. The script name must lie
// within skillDir/scripts and must not contain "..", "/", or "\".
func runScript(ctx context.Context, skillDir, scriptName string, argv []string) (string, error) {
	if strings.Contains(scriptName, "..") || strings.Contains(scriptName, "/") || strings.Contains(scriptName, "\\") {
		return "", ErrInvalidScriptName
	}
	scriptsDir := filepath.Join(skillDir, "scripts")
	scriptPath := filepath.Join(scriptsDir, scriptName)
	if _, err := os.Stat(scriptPath); err != nil {
		return "", fmt.Errorf("script not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", append([]string{scriptPath}, argv...)...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("script exec failed: %w", err)
	}
	return string(out), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	return s
}

func jsonScalarToString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// parseTruthy evaluates a JSON value as a boolean per spec.md §4.2:
// booleans directly, strings case-insensitive "true", numbers non-zero.
func parseTruthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true")
	case float64:
		return val != 0
	default:
		return false
	}
}
