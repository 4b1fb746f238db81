package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestLoadClientConfig_Missing(t *testing.T) {
	config, err := LoadClientConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, config.MCPServers)
}

func TestLoadClientConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadClientConfig(path)
	assert.Error(t, err)
}

func TestRegister_PreservesOtherSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{
  "theme": "dark",
  "mcpServers": {"weather": {"command": "/usr/bin/weather"}}
}`), 0o644))

	binary := writeExecutable(t, dir, "mcp-server-lite")
	entry, err := Register(path, Options{BinaryPath: binary, DataDir: "/data/scan"})
	require.NoError(t, err)
	assert.Equal(t, binary, entry.Command)
	assert.Equal(t, "/data/scan", entry.Env[DataDirEnv])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"dark"`, string(raw["theme"]))

	config, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Contains(t, config.MCPServers, "weather")
	assert.Contains(t, config.MCPServers, ServerName)
}

func TestUnregister(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	removed, err := Unregister(path)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = Register(path, Options{BinaryPath: writeExecutable(t, dir, "srv")})
	require.NoError(t, err)

	removed, err = Unregister(path)
	require.NoError(t, err)
	assert.True(t, removed)

	config, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.NotContains(t, config.MCPServers, ServerName)
}

func TestGetStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	status, err := GetStatus(path, dir)
	require.NoError(t, err)
	assert.False(t, status.Registered)
	assert.Len(t, status.Issues, 1)

	binary := writeExecutable(t, dir, "mcp-server-lite")
	_, err = Register(path, Options{BinaryPath: binary, DataDir: dir})
	require.NoError(t, err)

	status, err = GetStatus(path, "/unused")
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Equal(t, binary, status.ServerPath)
	assert.Equal(t, dir, status.DataDir)
	assert.Empty(t, status.Issues)

	_, err = Register(path, Options{BinaryPath: filepath.Join(dir, "gone")})
	require.NoError(t, err)
	status, err = GetStatus(path, dir)
	require.NoError(t, err)
	assert.NotEmpty(t, status.Issues)
}

func TestFindBinary_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	_, err := FindBinary("ingrescan-definitely-missing")
	assert.Error(t, err)
}

func TestFindBinary_BuildDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("PATH", t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build"), 0o755))
	writeExecutable(t, filepath.Join(dir, "build"), "mcp-server-lite")

	path, err := FindBinary("mcp-server-lite")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "mcp-server-lite", filepath.Base(path))
}
