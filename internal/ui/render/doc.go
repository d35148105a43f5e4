// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns chat messages into terminal blocks.
//
// The number of lines of a rendered block is the height the transcript
// virtualizer measures for that message. Blocks are cached by message
// fingerprint, content revision, width and separator flag, so re-rendering
// an unchanged message on every frame is a map lookup.
//
// Assistant messages are rendered as markdown with glamour when enabled;
// otherwise fenced code blocks are highlighted with chroma and the rest of
// the text is wrapped by display width.
package render
