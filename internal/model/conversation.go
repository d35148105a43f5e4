// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewChatTitle is the title of a conversation that has not been named yet.
const NewChatTitle = "New Chat"

// titleWidth bounds titles derived from the first prompt.
const titleWidth = 32

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an ordered, append-only list of messages. Index 0 is the
// oldest message.
type Conversation struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Messages  []*Message `json:"messages"`
}

// NewConversation creates a conversation holding only the greeting.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		Title:     NewChatTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []*Message{NewGreeting()},
	}
}

// Prompt is one message of the context sent to the responder.
type Prompt struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds msg as the newest message.
func (c *Conversation) Append(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// Last returns the newest message, or nil.
func (c *Conversation) Last() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// Exchanges returns the number of messages after the greeting.
func (c *Conversation) Exchanges() int {
	return max(0, len(c.Messages)-1)
}

// LastTime returns the time of the newest message.
func (c *Conversation) LastTime() time.Time {
	if last := c.Last(); last != nil {
		return last.Time
	}
	return time.Time{}
}

// MessageByFingerprint looks a message up by fingerprint.
func (c *Conversation) MessageByFingerprint(fp string) (int, *Message) {
	for i, m := range c.Messages {
		if m.Fingerprint == fp {
			return i, m
		}
	}
	return -1, nil
}

// Streaming reports whether the newest message is still being streamed.
func (c *Conversation) Streaming() bool {
	last := c.Last()
	return last != nil && last.Streaming
}

// Prompts returns the newest window messages, skipping the greeting, in
// chronological order.
func (c *Conversation) Prompts(window int) []Prompt {
	if window <= 0 || len(c.Messages) <= 1 {
		return nil
	}
	msgs := c.Messages[1:]
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	out := make([]Prompt, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Prompt{Role: m.Sender.String(), Content: m.Content})
	}
	return out
}

// UndoLastExchange removes the newest user message and everything after it.
// The greeting is never removed. It returns the number of messages dropped.
func (c *Conversation) UndoLastExchange() int {
	for i := len(c.Messages) - 1; i >= 1; i-- {
		if c.Messages[i].Sender == SenderUser {
			dropped := len(c.Messages) - i
			c.Messages = c.Messages[:i]
			c.UpdatedAt = time.Now()
			return dropped
		}
	}
	return 0
}

// =============================================================================
// TITLE
// =============================================================================

// SetTitle renames the conversation. Blank titles are ignored.
func (c *Conversation) SetTitle(title string) {
	if title == "" {
		return
	}
	c.Title = title
	c.UpdatedAt = time.Now()
}

// HasDefaultTitle reports whether the conversation still has NewChatTitle.
func (c *Conversation) HasDefaultTitle() bool {
	return c.Title == "" || c.Title == NewChatTitle
}

// DeriveTitle builds a title from the first user message.
func (c *Conversation) DeriveTitle() string {
	for _, m := range c.Messages {
		if m.Sender == SenderUser && !m.IsEmpty() {
			return m.Preview(titleWidth)
		}
	}
	return NewChatTitle
}

// =============================================================================
// METADATA
// =============================================================================

// ConversationMeta holds lightweight metadata for listing.
type ConversationMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Exchanges int       `json:"exchanges"`
	LastTime  time.Time `json:"last_time"`
	Preview   string    `json:"preview"`
}

// Meta returns listing metadata for the conversation.
func (c *Conversation) Meta() ConversationMeta {
	meta := ConversationMeta{
		ID:        c.ID,
		Title:     c.Title,
		Exchanges: c.Exchanges(),
		LastTime:  c.LastTime(),
	}
	if last := c.Last(); last != nil {
		meta.Preview = last.Preview(60)
	}
	return meta
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		clone.Messages[i] = msg.Clone()
	}
	return &clone
}

// =============================================================================
// MOCK DATA
// =============================================================================

// Mock returns n messages alternating between user and assistant, with the
// decimal index as content. Used to exercise the transcript at scale.
func Mock(n int) []*Message {
	if n <= 0 {
		return nil
	}
	out := make([]*Message, n)
	sender := SenderUser
	for i := range out {
		out[i] = NewMessage(strconv.Itoa(i), sender)
		if sender == SenderUser {
			sender = SenderAssistant
		} else {
			sender = SenderUser
		}
	}
	return out
}

// NewMockConversation creates a conversation whose messages are Mock(n).
func NewMockConversation(n int) *Conversation {
	conv := NewConversation()
	if n > 0 {
		conv.Messages = Mock(n)
		conv.UpdatedAt = time.Now()
	}
	return conv
}
