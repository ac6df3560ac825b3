package execsafe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunRejectsUnknownBinary(t *testing.T) {
	e := New()
	_, err := e.Run(context.Background(), "echo", "hello", nil)
	require.ErrorIs(t, err, ErrNotAllowlisted)
}

func TestRunAllowsAllowlistedPair(t *testing.T) {
	e := New()
	e.Allow("echo", "hi")
	out, err := e.Run(context.Background(), "echo", "hi", []string{"there"})
	require.NoError(t, err)
	require.Equal(t, "hi there", out)
}

func TestRunSurfacesNonzeroExit(t *testing.T) {
	e := New()
	e.Allow("false", "x")
	_, err := e.Run(context.Background(), "false", "x", nil)
	require.ErrorIs(t, err, ErrNonzeroExit)
}

func TestSanitizeExecutableValue(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		wantErr error
	}{
		{"empty", "", ErrEmptyValue},
		{"shell metachar", "foo;bar", ErrShellMetachar},
		{"quote", `foo"bar`, ErrQuoteChar},
		{"option injection", "-rf", ErrOptionInjection},
		{"bare name ok", "notesmd", nil},
		{"path ok", "./scripts/run.sh", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SanitizeExecutableValue(tc.value)
			if tc.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}
