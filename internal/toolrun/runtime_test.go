package toolrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chora-ai/chai/internal/execsafe"
)

func newTestRuntime(allowScripts bool) (*Runtime, *execsafe.Executor) {
	ex := execsafe.New()
	return New(ex, allowScripts), ex
}

func TestPositionalArgRequired(t *testing.T) {
	r, _ := newTestRuntime(false)
	spec := ExecutionSpec{
		Tool: "search", Binary: "notesmd", Subcommand: "search",
		Args: []ArgMapping{{Param: "query", Kind: KindPositional}},
	}
	_, err := r.buildArgv(context.Background(), spec, []byte(`{}`), "")
	require.Error(t, err)
}

func TestPositionalAndFlagArgv(t *testing.T) {
	r, ex := newTestRuntime(false)
	ex.Allow("notesmd", "search")
	spec := ExecutionSpec{
		Tool: "search", Binary: "notesmd", Subcommand: "search",
		Args: []ArgMapping{
			{Param: "query", Kind: KindPositional},
			{Param: "limit", Kind: KindFlag, Flag: "max"},
		},
	}
	argv, err := r.buildArgv(context.Background(), spec, []byte(`{"query":"X","limit":5}`), "")
	require.NoError(t, err)
	require.Equal(t, []string{"X", "--max", "5"}, argv)
}

func TestFlagOmittedWhenNull(t *testing.T) {
	r, _ := newTestRuntime(false)
	spec := ExecutionSpec{
		Args: []ArgMapping{{Param: "limit", Kind: KindFlag}},
	}
	argv, err := r.buildArgv(context.Background(), spec, []byte(`{"limit":null}`), "")
	require.NoError(t, err)
	require.Empty(t, argv)
}

func TestFlagIfBooleanEmitsTrueBranch(t *testing.T) {
	r, _ := newTestRuntime(false)
	spec := ExecutionSpec{
		Args: []ArgMapping{{Param: "recursive", Kind: KindFlagIfBoolean, FlagIfTrue: "-r", FlagIfFalse: ""}},
	}
	argv, err := r.buildArgv(context.Background(), spec, []byte(`{"recursive":"TRUE"}`), "")
	require.NoError(t, err)
	require.Equal(t, []string{"-r"}, argv)
}

func TestFlagIfBooleanEmitsNothingWhenUnconfigured(t *testing.T) {
	r, _ := newTestRuntime(false)
	spec := ExecutionSpec{
		Args: []ArgMapping{{Param: "recursive", Kind: KindFlagIfBoolean}},
	}
	argv, err := r.buildArgv(context.Background(), spec, []byte(`{"recursive":false}`), "")
	require.NoError(t, err)
	require.Empty(t, argv)
}

func TestNewlineNormalization(t *testing.T) {
	r, _ := newTestRuntime(false)
	spec := ExecutionSpec{
		Args: []ArgMapping{{Param: "body", Kind: KindPositional, NormalizeNewlines: true}},
	}
	argv, err := r.buildArgv(context.Background(), spec, []byte(`{"body":"a\\nb\\tc"}`), "")
	require.NoError(t, err)
	require.Equal(t, []string{"a\nb\tc"}, argv)
}

func TestScriptResolverRunsWithinScriptsDir(t *testing.T) {
	dir := t.TempDir()
	scriptsDir := filepath.Join(dir, "scripts")
	require.NoError(t, os.MkdirAll(scriptsDir, 0o755))
	script := "resolve.sh"
	require.NoError(t, os.WriteFile(filepath.Join(scriptsDir, script), []byte("#!/bin/sh\necho resolved-$1\n"), 0o755))

	r, _ := newTestRuntime(true)
	spec := ExecutionSpec{
		Args: []ArgMapping{{
			Param: "query", Kind: KindPositional,
			ResolveCommand: &ResolveCommand{Script: script, Args: []string{"$param"}},
		}},
	}
	argv, err := r.buildArgv(context.Background(), spec, []byte(`{"query":"X"}`), dir)
	require.NoError(t, err)
	require.Equal(t, []string{"resolved-X"}, argv)
}

func TestScriptNameRejectsPathEscape(t *testing.T) {
	r, _ := newTestRuntime(true)
	spec := ExecutionSpec{
		Args: []ArgMapping{{
			Param: "query", Kind: KindPositional,
			ResolveCommand: &ResolveCommand{Script: "../evil.sh"},
		}},
	}
	_, err := r.buildArgv(context.Background(), spec, []byte(`{"query":"X"}`), t.TempDir())
	require.ErrorIs(t, err, ErrInvalidScriptName)
}

func TestResolverFailureRetainsOriginalValue(t *testing.T) {
	r, _ := newTestRuntime(true)
	spec := ExecutionSpec{
		Args: []ArgMapping{{
			Param: "query", Kind: KindPositional,
			ResolveCommand: &ResolveCommand{Script: "missing.sh"},
		}},
	}
	argv, err := r.buildArgv(context.Background(), spec, []byte(`{"query":"X"}`), t.TempDir())
	require.NoError(t, err)
	require.Equal(t, []string{"X"}, argv)
}
