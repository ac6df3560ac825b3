package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
gateway:
  port: 15151
  bind: 127.0.0.1
  auth:
    mode: token
    token: filetoken
channels:
  telegram:
    token: filetgtoken
agents:
  defaultBackend: ollama
  defaultModel: llama3
skills:
  directory: /skills
  contextMode: full
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 15151, cfg.Gateway.Port)
	require.Equal(t, "token", cfg.Gateway.Auth.Mode)
	require.Equal(t, "filetoken", cfg.Gateway.Auth.Token)
	require.Equal(t, "ollama", cfg.Agents.DefaultBackend)
	require.Equal(t, "full", cfg.Skills.ContextMode)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv(EnvGatewayToken, "envtoken")
	t.Setenv(EnvTelegramToken, "envtgtoken")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "envtoken", cfg.Gateway.Auth.Token)
	require.Equal(t, "envtgtoken", cfg.Channels.Telegram.Token)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
