package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromString(t *testing.T, toml string) (*Config, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lumen.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))
	t.Setenv("LUMEN_CONFIG", path)
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("LUMEN_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Runtime.Workers)
	assert.False(t, cfg.Runtime.Deterministic)
	assert.Equal(t, 256, cfg.Runtime.MaxFrames)
}

func TestLoad_ProvidersAndRuntime(t *testing.T) {
	cfg, err := loadFromString(t, `
[runtime]
workers = 4
deterministic = true

[providers]
web = "http"
llm = "anthropic"

[providers.config.http]
endpoint = "wss://example.com/tool"

[providers.mcp.files]
uri = "stdio:///usr/bin/mcp-files"
tools = ["read", "write"]
env = ["MCP_TOKEN"]
`)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Runtime.Workers)
	assert.True(t, cfg.Runtime.Deterministic)

	name, ok := cfg.ProviderFor("web")
	require.True(t, ok)
	assert.Equal(t, "http", name)
	_, ok = cfg.ProviderFor("missing")
	assert.False(t, ok)

	require.Contains(t, cfg.ProviderConf, "http")
	assert.Equal(t, "wss://example.com/tool", cfg.ProviderConf["http"]["endpoint"])

	require.Contains(t, cfg.MCP, "files")
	assert.Equal(t, "stdio:///usr/bin/mcp-files", cfg.MCP["files"].URI)
	assert.Equal(t, []string{"read", "write"}, cfg.MCP["files"].Tools)
	assert.Equal(t, []string{"MCP_TOKEN"}, cfg.MCP["files"].Env)
}

func TestLoad_RejectsBadRuntime(t *testing.T) {
	_, err := loadFromString(t, "[runtime]\nworkers = -1\n")
	assert.Error(t, err)

	_, err = loadFromString(t, "[runtime]\nmax_frames = 0\n")
	assert.Error(t, err)
}
