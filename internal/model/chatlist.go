// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// CHAT LIST
// =============================================================================

// ChatList is the ordered set of conversations, newest first, plus the
// selected index. It is never empty once normalized.
type ChatList struct {
	Conversations []*Conversation `json:"conversations"`
	Selected      int             `json:"selected"`
}

// NewChatList creates a list holding one fresh conversation.
func NewChatList() *ChatList {
	return &ChatList{Conversations: []*Conversation{NewConversation()}}
}

// Normalize restores the invariants after decoding: at least one
// conversation, no nil entries, every conversation opens with a message and
// Selected in range.
func (l *ChatList) Normalize() {
	convs := l.Conversations[:0]
	for _, c := range l.Conversations {
		if c == nil {
			continue
		}
		if len(c.Messages) == 0 {
			c.Messages = []*Message{NewGreeting()}
		}
		if c.Title == "" {
			c.Title = NewChatTitle
		}
		convs = append(convs, c)
	}
	l.Conversations = convs
	if len(l.Conversations) == 0 {
		l.Conversations = []*Conversation{NewConversation()}
	}
	if l.Selected < 0 || l.Selected >= len(l.Conversations) {
		l.Selected = 0
	}
}

// Len returns the number of conversations.
func (l *ChatList) Len() int {
	return len(l.Conversations)
}

// Current returns the selected conversation.
func (l *ChatList) Current() *Conversation {
	if len(l.Conversations) == 0 {
		l.Normalize()
	}
	return l.Conversations[l.Selected]
}

// NewChat prepends conv, or a fresh conversation when conv is nil, and
// selects it.
func (l *ChatList) NewChat(conv *Conversation) *Conversation {
	if conv == nil {
		conv = NewConversation()
	}
	l.Conversations = append([]*Conversation{conv}, l.Conversations...)
	l.Selected = 0
	return conv
}

// Select makes index the selected conversation. Out-of-range indices are
// ignored.
func (l *ChatList) Select(index int) bool {
	if index < 0 || index >= len(l.Conversations) {
		return false
	}
	l.Selected = index
	return true
}

// Delete removes the conversation at index and returns it.
//
// Removing the last remaining conversation replaces it with a fresh one.
// Removing the selected conversation selects the first; removing one before
// the selection keeps the same conversation selected.
func (l *ChatList) Delete(index int) (*Conversation, bool) {
	if index < 0 || index >= len(l.Conversations) {
		return nil, false
	}
	removed := l.Conversations[index]

	if len(l.Conversations) <= 1 {
		l.Conversations = []*Conversation{NewConversation()}
		l.Selected = 0
		return removed, true
	}

	next := make([]*Conversation, 0, len(l.Conversations)-1)
	next = append(next, l.Conversations[:index]...)
	next = append(next, l.Conversations[index+1:]...)
	l.Conversations = next

	switch {
	case index == l.Selected:
		l.Selected = 0
	case index < l.Selected:
		l.Selected--
	}
	return removed, true
}

// Find returns the index and conversation with the given id.
func (l *ChatList) Find(id string) (int, *Conversation) {
	for i, c := range l.Conversations {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

// Clone returns a deep copy, safe to persist while the original keeps
// changing.
func (l *ChatList) Clone() *ChatList {
	out := &ChatList{
		Conversations: make([]*Conversation, len(l.Conversations)),
		Selected:      l.Selected,
	}
	for i, c := range l.Conversations {
		out.Conversations[i] = c.Clone()
	}
	return out
}
