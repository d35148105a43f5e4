// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every KCHAT_* override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"KCHAT_ESTIMATED_ITEM_HEIGHT",
		"KCHAT_STORAGE_BACKEND",
		"KCHAT_STORAGE_PATH",
		"KCHAT_MUTE",
		"KCHAT_DEBUG",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 6, cfg.VList.EstimatedItemHeight)
	assert.Equal(t, 3, cfg.VList.OverscanBefore)
	assert.Equal(t, 2, cfg.VList.OverscanAfter)
	assert.Equal(t, 100*time.Millisecond, cfg.VList.ResizeThrottle())
	assert.Equal(t, 50*time.Millisecond, cfg.VList.ScrollThrottle())
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.Assistant.PromptWindow)
	assert.Equal(t, 25*time.Millisecond, cfg.Assistant.StreamDelay())
	assert.Equal(t, 30*time.Second, cfg.Session.AutoSaveInterval())
}

func TestStoragePath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = "/tmp/custom.db"
	p, err := cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", p)

	cfg.Storage.Path = ""
	p, err = cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, "kchat.db", filepath.Base(p))

	cfg.Storage.Backend = BackendFile
	p, err = cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, "store", filepath.Base(p))
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoadFromPath_TOMLKeepsUnsetDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.toml", `
[vlist]
estimated_item_height = 9
overscan_before = 0

[storage]
backend = "FILE"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.VList.EstimatedItemHeight)
	assert.Equal(t, 0, cfg.VList.OverscanBefore, "explicit zero overscan is honoured")
	assert.Equal(t, 2, cfg.VList.OverscanAfter, "missing key keeps default")
	assert.Equal(t, BackendFile, cfg.Storage.Backend, "backend is normalised")
	assert.True(t, cfg.UI.Markdown)
}

func TestLoadFromPath_JSON(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.json", `{"assistant": {"mute": true, "prompt_window": 8}}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.True(t, cfg.Assistant.Mute)
	assert.Equal(t, 8, cfg.Assistant.PromptWindow)
	assert.Equal(t, 6, cfg.VList.EstimatedItemHeight)
}

func TestLoadFromPath_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := LoadFromPath(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.toml", "[vlist\nestimated_item_height = ")
	_, err = LoadFromPath(bad)
	assert.Error(t, err)

	invalid := writeFile(t, dir, "invalid.toml", `
[vlist]
estimated_item_height = -4
[ui]
theme = "neon"
`)
	_, err = LoadFromPath(invalid)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "vlist.estimated_item_height")
	assert.Contains(t, err.Error(), "ui.theme")
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KCHAT_ESTIMATED_ITEM_HEIGHT", "11")
	t.Setenv("KCHAT_STORAGE_BACKEND", "file")
	t.Setenv("KCHAT_STORAGE_PATH", "/var/kchat")
	t.Setenv("KCHAT_MUTE", "true")
	t.Setenv("KCHAT_DEBUG", "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, 11, cfg.VList.EstimatedItemHeight)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "/var/kchat", cfg.Storage.Path)
	assert.True(t, cfg.Assistant.Mute)
	assert.True(t, cfg.Logging.Debug)
}

func TestApplyEnvOverrides_IgnoresBadInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("KCHAT_ESTIMATED_ITEM_HEIGHT", "tall")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 6, cfg.VList.EstimatedItemHeight)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero throttles allowed", func(c *Config) {
			c.VList.ResizeThrottleMs = 0
			c.VList.ScrollThrottleMs = 0
		}, ""},
		{"hidden sidebar", func(c *Config) { c.UI.SidebarWidth = 0 }, ""},
		{"narrow sidebar", func(c *Config) { c.UI.SidebarWidth = 4 }, "ui.sidebar_width"},
		{"negative overscan", func(c *Config) { c.VList.OverscanAfter = -1 }, "vlist.overscan_after"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"zero prompt window", func(c *Config) { c.Assistant.PromptWindow = 0 }, "assistant.prompt_window"},
		{"short autosave", func(c *Config) { c.Session.AutoSaveIntervalSecs = 1 }, "session.auto_save_interval_secs"},
		{"autosave off ignores interval", func(c *Config) {
			c.Session.AutoSave = false
			c.Session.AutoSaveIntervalSecs = 1
		}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, 6, cfg.VList.EstimatedItemHeight)
	assert.Equal(t, 20, cfg.VList.DefaultViewportHeight)
	assert.Equal(t, "dark", cfg.UI.Theme)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.Assistant.PromptWindow)
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// SAVE
// =============================================================================

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.VList.OverscanAfter = 7
	cfg.UI.Theme = "light"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Assistant.Mute = true
	require.NoError(t, SaveJSON(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// =============================================================================
// GET / SET
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("vlist.overscan_before")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	require.NoError(t, cfg.Set("vlist.overscan_before", "5"))
	assert.Equal(t, 5, cfg.VList.OverscanBefore)

	require.NoError(t, cfg.Set("assistant.mute", "yes"))
	assert.True(t, cfg.Assistant.Mute)

	require.NoError(t, cfg.Set("ui.theme", "light"))
	assert.Equal(t, "light", cfg.UI.Theme)

	require.NoError(t, cfg.Set("ui.sidebar_width", 30))
	assert.Equal(t, 30, cfg.UI.SidebarWidth)

	_, err = cfg.Get("vlist.nope")
	assert.Error(t, err)
	_, err = cfg.Get("vlist")
	assert.Error(t, err, "sections are not values")
	_, err = cfg.Get("")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("vlist.overscan_before", "many"))
	assert.Error(t, cfg.Set("ui.theme.color", "x"))
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoErrorf(t, err, "key %s", key)
	}
}

func TestClone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.VList.OverscanBefore = 99
	assert.Equal(t, 3, cfg.VList.OverscanBefore)
	assert.Contains(t, cfg.String(), `"estimated_item_height": 6`)
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", "[vlist]\nestimated_item_height = 6\n")

	w, err := NewWatcher(path, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Close()

	// Unrelated files in the directory are ignored.
	writeFile(t, dir, "other.toml", "x = 1")
	writeFile(t, dir, "config.toml", "[vlist]\nestimated_item_height = 14\n")

	select {
	case msg := <-w.Updates():
		require.NoError(t, msg.Err)
		assert.Equal(t, 14, msg.Config.VList.EstimatedItemHeight)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_ReportsInvalidConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", "")

	w, err := NewWatcher(path, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Close()

	writeFile(t, dir, "config.toml", "[storage]\nbackend = \"tape\"\n")

	select {
	case msg := <-w.Updates():
		assert.Error(t, msg.Err)
		assert.Nil(t, msg.Config)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "")
	w, err := NewWatcher(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())

	_, open := <-w.Updates()
	assert.False(t, open)
}
