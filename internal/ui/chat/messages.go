// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/kchat/internal/config"
)

// =============================================================================
// CHAT MESSAGES
// =============================================================================

// StatusMsg sets the status line. Err messages are styled as errors.
type StatusMsg struct {
	Text string
	Err  bool
}

// clearStatusMsg clears a status line if it is still the one identified by
// seq.
type clearStatusMsg struct {
	seq int
}

// listenForReload waits for the next config reload. It returns nil when the
// watcher is closed.
func listenForReload(w *config.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-w.Updates()
		if !ok {
			return nil
		}
		return msg
	}
}
