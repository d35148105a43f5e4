// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// =============================================================================
// STREAM CANCELLATION (THREAD-SAFE)
// =============================================================================

// cancelManager holds the cancel functions of running replies, keyed by the
// fingerprint of the message each one fills.
// It must be used as a pointer in Model so Bubble Tea's model copies share
// one mutex.
type cancelManager struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// newCancelManager creates a new cancelManager pointer.
func newCancelManager() *cancelManager {
	return &cancelManager{cancels: make(map[string]context.CancelFunc)}
}

// start derives a cancellable context for the reply fingerprint.
func (cm *cancelManager) start(parent context.Context, fingerprint string) context.Context {
	ctx, cancel := context.WithCancel(parent)
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if prev, ok := cm.cancels[fingerprint]; ok {
		prev()
	}
	cm.cancels[fingerprint] = cancel
	return ctx
}

// cancel stops the reply for fingerprint. Safe to call for unknown or
// finished replies.
func (cm *cancelManager) cancel(fingerprint string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	fn, ok := cm.cancels[fingerprint]
	if !ok {
		return false
	}
	fn()
	delete(cm.cancels, fingerprint)
	return true
}

// done releases the context of a finished reply.
func (cm *cancelManager) done(fingerprint string) {
	cm.cancel(fingerprint)
}

// running returns the number of replies in flight.
func (cm *cancelManager) running() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.cancels)
}

// cancelAll stops every reply.
func (cm *cancelManager) cancelAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for fp, fn := range cm.cancels {
		fn()
		delete(cm.cancels, fp)
	}
}
