// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for kchat.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - VListConfig: Transcript virtualization tuning (estimates, overscan, throttles)
//   - StorageConfig: Chat list persistence backend
//   - Watcher: fsnotify-based hot reload
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (KCHAT_*)
//   - ~/.kchat/config.toml
//   - ~/.kchat/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Watch for edits:
//
//	w, _ := config.NewWatcher(path, 0)
//	_ = w.Start()
//	for msg := range w.Updates() {
//	    apply(msg.Config)
//	}
package config
