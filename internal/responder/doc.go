// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package responder generates assistant replies.
//
// A Responder streams a reply for a window of prompts as a channel of
// chunks. Echo is the built-in responder: it quotes the newest prompt back,
// a few runes at a time, which is enough to drive streaming, measurement
// and auto-scroll in the transcript without a network dependency.
//
// The Bubble Tea glue (Start, Stream.Next, TitleCmd) turns a stream into
// ChunkMsg and DoneMsg messages tagged with the conversation id and the
// fingerprint of the pending reply, so late chunks for a deleted
// conversation can be recognised and dropped.
package responder
