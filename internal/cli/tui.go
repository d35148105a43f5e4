// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/kchat/internal/config"
	"github.com/jeranaias/kchat/internal/responder"
	"github.com/jeranaias/kchat/internal/session"
	"github.com/jeranaias/kchat/internal/storage"
	"github.com/jeranaias/kchat/internal/ui/chat"
	"github.com/jeranaias/kchat/internal/ui/styles"
)

// runTUI starts the chat client.
func (a *app) runTUI(ctx context.Context) error {
	if a.mock < 0 {
		return &UsageError{Message: "--mock must not be negative"}
	}
	cfg, err := a.config()
	if err != nil {
		return err
	}
	if err := RequiresTTY("start the chat client"); err != nil {
		return err
	}

	// Bubble Tea owns the terminal, so log lines go to a file.
	logPath, err := cfg.LogPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := tea.LogToFile(logPath, "kchat")
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	debugf(cfg, "starting kchat %s", Version)

	store, closeStore, err := openChatList(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	mgr := session.NewManager(session.ConfigFrom(cfg), store, nil)
	if err := mgr.Load(ctx); err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	if a.mute {
		mgr.SetMute(true)
	}
	if a.mock > 0 {
		mgr.NewMockChat(a.mock)
		debugf(cfg, "seeded mock chat with %d messages", a.mock)
	}

	watcher := a.startWatcher(cfg)
	if watcher != nil {
		defer watcher.Close()
	}

	m := chat.New(chat.Deps{
		Config:    cfg,
		Session:   mgr,
		Responder: responder.NewEcho(cfg.Assistant.StreamDelay()),
		Theme:     styles.NewTheme(cfg.UI.Theme),
		Watcher:   watcher,
	})

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse support
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running kchat: %w", err)
	}
	return nil
}

// startWatcher watches the config file for changes. It returns nil when
// there is no file to watch or watching fails.
func (a *app) startWatcher(cfg *config.Config) *config.Watcher {
	path, err := a.configFile()
	if err != nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		debugf(cfg, "config watcher: %s not found, hot reload disabled", path)
		return nil
	}
	w, err := config.NewWatcher(path, 0)
	if err != nil {
		log.Printf("config watcher: %v", err)
		return nil
	}
	if err := w.Start(); err != nil {
		log.Printf("config watcher: %v", err)
		w.Close()
		return nil
	}
	return w
}

// openChatList opens the configured storage backend. The returned function
// closes it.
func openChatList(cfg *config.Config) (*storage.ChatListStore, func(), error) {
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, nil, err
	}
	kv, err := storage.Open(cfg.Storage.Backend, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	closeFn := func() {
		if err := kv.Close(); err != nil {
			log.Printf("storage: close: %v", err)
		}
	}
	return storage.NewChatListStore(kv), closeFn, nil
}

// debugf logs when debug logging is enabled.
func debugf(cfg *config.Config, format string, args ...interface{}) {
	if cfg.Logging.Debug {
		log.Printf("debug: "+format, args...)
	}
}
