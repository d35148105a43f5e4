// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jeranaias/kchat/internal/model"
)

// ChatListKey is the key the chat list blob is stored under.
const ChatListKey = "chat_list--key"

// =============================================================================
// CHAT LIST STORE
// =============================================================================

// ChatListStore loads and saves the chat list as a single JSON blob.
type ChatListStore struct {
	kv KV
}

// NewChatListStore wraps kv.
func NewChatListStore(kv KV) *ChatListStore {
	return &ChatListStore{kv: kv}
}

// KV returns the underlying store.
func (s *ChatListStore) KV() KV {
	return s.kv
}

// Load reads the chat list. A missing blob yields a fresh list holding one
// new conversation; the returned list is always normalized.
func (s *ChatListStore) Load(ctx context.Context) (*model.ChatList, error) {
	data, err := s.kv.Get(ctx, ChatListKey)
	if errors.Is(err, ErrNotFound) {
		return model.NewChatList(), nil
	}
	if err != nil {
		return nil, err
	}

	var list model.ChatList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse chat list: %w", err)
	}
	list.Normalize()
	return &list, nil
}

// Save writes the chat list.
func (s *ChatListStore) Save(ctx context.Context, list *model.ChatList) error {
	if list == nil {
		return errors.New("chat list cannot be nil")
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode chat list: %w", err)
	}
	return s.kv.Set(ctx, ChatListKey, data)
}

// List returns listing metadata for every stored conversation, most
// recently active first.
func (s *ChatListStore) List(ctx context.Context) ([]model.ConversationMeta, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	metas := make([]model.ConversationMeta, 0, list.Len())
	for _, c := range list.Conversations {
		metas = append(metas, c.Meta())
	}
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].LastTime.After(metas[j].LastTime)
	})
	return metas, nil
}

// Find loads the conversation whose id is id or starts with id.
// Ambiguous prefixes are rejected.
func (s *ChatListStore) Find(ctx context.Context, id string) (*model.Conversation, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := findIndex(list, id)
	if err != nil {
		return nil, err
	}
	return list.Conversations[idx], nil
}

// Delete removes the conversation matching id (or a unique prefix of it)
// and saves the list.
func (s *ChatListStore) Delete(ctx context.Context, id string) (*model.Conversation, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := findIndex(list, id)
	if err != nil {
		return nil, err
	}
	removed, _ := list.Delete(idx)
	if err := s.Save(ctx, list); err != nil {
		return nil, err
	}
	return removed, nil
}

func findIndex(list *model.ChatList, id string) (int, error) {
	if id == "" {
		return -1, ErrNotFound
	}
	if idx, _ := list.Find(id); idx >= 0 {
		return idx, nil
	}
	match := -1
	for i, c := range list.Conversations {
		if strings.HasPrefix(c.ID, id) {
			if match >= 0 {
				return -1, fmt.Errorf("ambiguous conversation id %q", id)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, ErrNotFound
	}
	return match, nil
}
