// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package responder

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/kchat/internal/model"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// ChunkMsg delivers streamed text for a pending reply.
type ChunkMsg struct {
	ConversationID string
	Fingerprint    string
	Text           string

	stream *Stream
}

// Next returns the command that waits for the following chunk.
func (m ChunkMsg) Next() tea.Cmd {
	if m.stream == nil {
		return nil
	}
	return m.stream.Next()
}

// DoneMsg signals that a reply finished, failed or was cancelled.
type DoneMsg struct {
	ConversationID string
	Fingerprint    string
	Err            error
}

// TitleMsg carries a generated conversation title.
type TitleMsg struct {
	ConversationID string
	Title          string
	Err            error
}

// =============================================================================
// STREAM
// =============================================================================

// Stream ties a responder channel to the reply it fills.
type Stream struct {
	ConversationID string
	Fingerprint    string

	ctx context.Context
	ch  <-chan Chunk
}

// Start opens a reply stream and returns the command that delivers its
// first message. Cancelling ctx ends the stream with ctx's error.
func Start(ctx context.Context, r Responder, conversationID, fingerprint string, prompts []model.Prompt) tea.Cmd {
	return func() tea.Msg {
		ch, err := r.Stream(ctx, prompts)
		if err != nil {
			return DoneMsg{ConversationID: conversationID, Fingerprint: fingerprint, Err: err}
		}
		s := &Stream{
			ConversationID: conversationID,
			Fingerprint:    fingerprint,
			ctx:            ctx,
			ch:             ch,
		}
		return s.wait()
	}
}

// Next returns a command that waits for the next chunk.
func (s *Stream) Next() tea.Cmd {
	return func() tea.Msg {
		return s.wait()
	}
}

func (s *Stream) wait() tea.Msg {
	chunk, ok := <-s.ch
	if !ok {
		return DoneMsg{ConversationID: s.ConversationID, Fingerprint: s.Fingerprint, Err: s.ctx.Err()}
	}
	if chunk.Err != nil {
		return DoneMsg{ConversationID: s.ConversationID, Fingerprint: s.Fingerprint, Err: chunk.Err}
	}
	return ChunkMsg{
		ConversationID: s.ConversationID,
		Fingerprint:    s.Fingerprint,
		Text:           chunk.Text,
		stream:         s,
	}
}

// TitleCmd asks r for a conversation title.
func TitleCmd(ctx context.Context, r Responder, conversationID string, prompts []model.Prompt) tea.Cmd {
	return func() tea.Msg {
		title, err := r.Title(ctx, prompts)
		return TitleMsg{ConversationID: conversationID, Title: title, Err: err}
	}
}
