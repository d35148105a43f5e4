// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across kchat.
//
// # Key Functions
//
// Terminal Text:
//   - StringWidth: display width using go-runewidth
//   - TruncateWidth, PadRight: column-exact truncation and padding
//   - WrapWidth: word wrap by display width
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	lines := util.WrapWidth(msg.Content, 60)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
