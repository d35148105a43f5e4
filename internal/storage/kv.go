// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when a key or conversation doesn't exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &StorageError{Message: "not found"}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = &StorageError{Message: "store is closed"}

// StorageError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StorageError struct {
	Message string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing storage errors.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// KEY-VALUE INTERFACE
// =============================================================================

// KV is a minimal blob store.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the store.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Open creates the KV for backend at path. SQLite expects a database file
// path, the file backend a directory.
func Open(backend, path string) (KV, error) {
	switch strings.ToLower(backend) {
	case BackendSQLite, "":
		return OpenSQLite(path)
	case BackendFile:
		return NewFileKV(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	return nil
}
