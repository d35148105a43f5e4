// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce collapses the burst of events editors emit on save.
const DefaultReloadDebounce = 150 * time.Millisecond

// ReloadedMsg carries a freshly loaded configuration, or the error that
// prevented loading it. It is delivered to the UI as a Bubble Tea message.
type ReloadedMsg struct {
	Config *Config
	Err    error
}

// =============================================================================
// WATCHER
// =============================================================================

// Watcher reloads a config file whenever it changes on disk.
//
// The parent directory is watched rather than the file itself so that
// editors which save by rename keep triggering reloads.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	updates  chan ReloadedMsg

	ctx    context.Context
	cancel context.CancelFunc

	started   bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher creates a watcher for path. A non-positive debounce uses
// DefaultReloadDebounce.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     abs,
		watcher:  fw,
		debounce: debounce,
		updates:  make(chan ReloadedMsg, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Updates returns the channel reloads are delivered on. It is closed by
// Close.
func (w *Watcher) Updates() <-chan ReloadedMsg {
	return w.updates
}

// Start begins watching. It returns once the watch is registered.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	w.started = true
	go w.loop()
	return nil
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.cancel()
		err = w.watcher.Close()
		if w.started {
			<-w.done
		}
		close(w.updates)
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	var fire <-chan time.Time
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				fire = time.After(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher: %v", err)

		case <-fire:
			fire = nil
			cfg, err := LoadFromPath(w.path)
			msg := ReloadedMsg{Config: cfg, Err: err}
			select {
			case w.updates <- msg:
			case <-w.ctx.Done():
				return
			}
		}
	}
}
