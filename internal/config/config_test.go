package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/td/internal/conflict"
)

// isolate points every XDG directory into a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "state"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	return base
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := DefaultPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	base := isolate(t)

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Empty(t, cfg.Path)
	assert.Empty(t, cfg.Warnings)
	assert.Equal(t, filepath.Join(base, "data", "td"), cfg.DataDir)
	assert.Equal(t, "todos.json", cfg.StoreFile)
	assert.Equal(t, filepath.Join(base, "data", "td", "todos.json"), cfg.StorePath())
	assert.Equal(t, filepath.Join(base, "state", "td", "td.log"), cfg.Log.File)
	assert.Equal(t, conflict.StrategyManual, cfg.Conflict.Strategy)
	assert.Equal(t, conflict.DefaultMaxPrompts, cfg.Conflict.MaxPrompts)
	assert.Equal(t, 2*time.Minute, cfg.Sync.NetworkTimeout)
	assert.False(t, cfg.Sync.Auto)
	assert.True(t, cfg.Identity().IsZero())
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
data-dir: /srv/todos
git:
  remote: git@example.com:me/todos.git
  author-name: Ada
  author-email: ada@example.com
sync:
  auto: true
  network-timeout: 45s
conflict:
  strategy: union
  max-prompts: 5
`)

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "/srv/todos", cfg.DataDir)
	assert.Equal(t, "git@example.com:me/todos.git", cfg.Git.Remote)
	assert.Equal(t, "Ada", cfg.Identity().Name)
	assert.Equal(t, "ada@example.com", cfg.Identity().Email)
	assert.True(t, cfg.Sync.Auto)
	assert.Equal(t, 45*time.Second, cfg.Sync.NetworkTimeout)
	assert.Equal(t, conflict.StrategyUnion, cfg.Conflict.Strategy)
	assert.Equal(t, 5, cfg.Conflict.MaxPrompts)
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)
	writeConfig(t, "conflict:\n  strategy: ours\ngit:\n  remote: from-file\n")
	t.Setenv("TD_CONFLICT_STRATEGY", "theirs")
	t.Setenv("TD_SYNC_NETWORK_TIMEOUT", "10s")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, conflict.StrategyTheirs, cfg.Conflict.Strategy, "env beats file")
	assert.Equal(t, 10*time.Second, cfg.Sync.NetworkTimeout)
	assert.Equal(t, "from-file", cfg.Git.Remote)

	cfg, err = Load(LoadOptions{Overrides: map[string]any{KeyConflictStrategy: "both", KeyDataDir: "/tmp/x"}})
	require.NoError(t, err)
	assert.Equal(t, conflict.StrategyBoth, cfg.Conflict.Strategy, "override beats env")
	assert.Equal(t, "/tmp/x", cfg.DataDir)
}

func TestLoadUnknownOverride(t *testing.T) {
	isolate(t)
	_, err := Load(LoadOptions{Overrides: map[string]any{"bogus": 1}})
	assert.Error(t, err)
}

func TestLoadInvalidStrategyWarns(t *testing.T) {
	isolate(t)
	writeConfig(t, "conflict:\n  strategy: newest-wins\n  max-prompts: 0\n")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, conflict.StrategyManual, cfg.Conflict.Strategy)
	assert.Equal(t, conflict.DefaultMaxPrompts, cfg.Conflict.MaxPrompts)
	require.Len(t, cfg.Warnings, 2)
	assert.Contains(t, cfg.Warnings[0], "newest-wins")
}

func TestLoadMalformedFile(t *testing.T) {
	isolate(t)
	writeConfig(t, "git: [unclosed\n")

	_, err := Load(LoadOptions{})
	assert.Error(t, err)
}

func TestLoadExpandsHome(t *testing.T) {
	isolate(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(LoadOptions{Overrides: map[string]any{KeyDataDir: "~/todos"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "todos"), cfg.DataDir)
}

func TestSetCreatesAndUpdatesFile(t *testing.T) {
	isolate(t)

	require.NoError(t, Set("", KeyGitRemote, "https://example.com/todos.git"))
	require.NoError(t, Set("", KeySyncAuto, "true"))
	require.NoError(t, Set("", KeySyncNetworkTimeout, "90s"))
	require.NoError(t, Set("", KeyConflictStrategy, "Theirs"))

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/todos.git", cfg.Git.Remote)
	assert.True(t, cfg.Sync.Auto)
	assert.Equal(t, 90*time.Second, cfg.Sync.NetworkTimeout)
	assert.Equal(t, conflict.StrategyTheirs, cfg.Conflict.Strategy)

	require.NoError(t, Set("", KeyGitRemote, "https://example.com/other.git"))
	cfg, err = Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/other.git", cfg.Git.Remote)
	assert.True(t, cfg.Sync.Auto, "other keys survive")
}

func TestSetRejectsInvalidValues(t *testing.T) {
	isolate(t)

	tests := []struct {
		key   string
		value string
	}{
		{"no-such-key", "x"},
		{KeySyncAuto, "maybe"},
		{KeyConflictMaxPrompts, "0"},
		{KeyConflictMaxPrompts, "three"},
		{KeySyncLockTimeout, "soon"},
		{KeyConflictStrategy, "newest-wins"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			assert.Error(t, Set("", tt.key, tt.value))
		})
	}

	_, err := os.Stat(DefaultPath())
	assert.True(t, os.IsNotExist(err), "nothing written for invalid values")
}

func TestValuesListsEveryKey(t *testing.T) {
	isolate(t)
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	values := cfg.Values()
	require.Len(t, values, len(Keys()))
	for i, kv := range values {
		assert.Equal(t, Keys()[i], kv[0])
	}
}
