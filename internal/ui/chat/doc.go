// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the main chat view of kchat.

The Model is a Bubble Tea model laid out as a chat list sidebar on the left
and the transcript, input box and status bar on the right.

# Transcript (layout.go)

The transcript is virtualized. Only the messages the vlist.Controller
resolves for the current window are rendered; each rendered block reports
its height back through OnSizeObserved, and the window is resolved again
until the heights settle. Scrolling is measured from the newest message, so
a streaming reply stays pinned to the bottom while older measurements
change above the window.

# Sidebar (sidebar.go)

One card per conversation with its title, number of exchanges and the time
of its newest message. Tab and shift+tab move the selection; ctrl+f hides
the sidebar for a full-screen transcript.

# Usage

	m := chat.New(chat.Deps{
		Config:    cfg,
		Session:   mgr,
		Responder: responder.NewEcho(cfg.Assistant.StreamDelay()),
		Theme:     styles.NewTheme(cfg.UI.Theme),
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
*/
package chat
