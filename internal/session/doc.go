// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the state of a running kchat client.
//
// A Manager holds the chat list, the measurement cache of the transcript
// virtualizer and the bookkeeping for saving:
//
//   - Chat list operations: NewChat, NewMockChat, Select, Delete (which also
//     evicts the conversation's measurements)
//   - Messages: Send returns the reply request, AppendChunk and FinishReply
//     apply the streamed reply, Undo drops the newest exchange
//   - Persistence: SaveCmd snapshots the list and writes it off the UI
//     goroutine; HandleTick triggers auto-save when the list is dirty
//
// # Usage
//
//	mgr := session.NewManager(session.ConfigFrom(cfg), store, nil)
//	if err := mgr.Load(ctx); err != nil { ... }
//	req, err := mgr.Send("hello")
package session
