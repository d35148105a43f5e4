// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/kchat/internal/util"
)

// Greeting is the assistant message every new conversation starts with.
const Greeting = "Hi! How can I help you today?"

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who wrote a message.
type Sender int

const (
	SenderUser Sender = iota
	SenderAssistant
)

// String returns the completion role of the sender.
func (s Sender) String() string {
	switch s {
	case SenderUser:
		return "user"
	case SenderAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderAssistant:
		return "Assistant"
	default:
		return "Unknown"
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry of a conversation.
type Message struct {
	// Fingerprint is unique within the conversation and keys rendered output.
	Fingerprint string    `json:"fingerprint"`
	Sender      Sender    `json:"sender"`
	Time        time.Time `json:"time"`
	Content     string    `json:"content"`

	// Streaming state (not persisted)
	Streaming  bool `json:"-"`
	Connecting bool `json:"-"`

	// Revision changes whenever Content changes so renderers can cache by
	// (Fingerprint, Revision).
	Revision int `json:"-"`
}

// NewMessage creates a message stamped now with a fresh fingerprint.
func NewMessage(content string, sender Sender) *Message {
	return &Message{
		Fingerprint: uuid.NewString(),
		Sender:      sender,
		Time:        time.Now(),
		Content:     norm.NFC.String(content),
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return NewMessage(content, SenderUser)
}

// NewGreeting creates the assistant greeting that opens a conversation.
func NewGreeting() *Message {
	return NewMessage(Greeting, SenderAssistant)
}

// NewPendingReply creates an empty assistant message waiting for the first
// streamed chunk.
func NewPendingReply() *Message {
	msg := NewMessage("", SenderAssistant)
	msg.Streaming = true
	msg.Connecting = true
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendChunk appends streamed text. The first chunk ends the connecting
// phase.
func (m *Message) AppendChunk(chunk string) {
	if !m.Streaming || chunk == "" {
		return
	}
	m.Connecting = false
	m.Content += chunk
	m.Revision++
}

// FinishStream ends streaming. A non-nil err replaces empty content with the
// error text.
func (m *Message) FinishStream(err error) {
	if !m.Streaming {
		return
	}
	m.Streaming = false
	m.Connecting = false
	if err != nil && strings.TrimSpace(m.Content) == "" {
		m.Content = err.Error()
	}
	m.Content = norm.NFC.String(m.Content)
	m.Revision++
}

// Preview returns the content cut to maxWidth terminal columns on one line.
func (m *Message) Preview(maxWidth int) string {
	oneLine := strings.Join(strings.Fields(m.Content), " ")
	return util.TruncateWidth(oneLine, maxWidth)
}

// IsEmpty reports whether the message has no content.
func (m *Message) IsEmpty() bool {
	return m.Content == ""
}

// Clone returns a copy of the message.
func (m *Message) Clone() *Message {
	c := *m
	return &c
}
