// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/kchat/internal/util"
)

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileKV stores each key as a file in a directory.
type FileKV struct {
	dir    string
	mu     sync.RWMutex
	closed bool
}

// NewFileKV creates a file store rooted at dir, creating it if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if dir == "" {
		return nil, errors.New("storage directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

// Dir returns the storage directory.
func (f *FileKV) Dir() string {
	return f.dir
}

// keyPath escapes key so it cannot leave the storage directory.
func (f *FileKV) keyPath(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// Get implements KV.
func (f *FileKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}

	data, err := os.ReadFile(f.keyPath(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return data, nil
}

// Set implements KV.
func (f *FileKV) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	if err := util.AtomicWriteFileWithDir(f.keyPath(key), value, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Delete implements KV.
func (f *FileKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	if err := os.Remove(f.keyPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Close implements KV.
func (f *FileKV) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
