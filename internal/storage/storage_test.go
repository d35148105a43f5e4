// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/kchat/internal/model"
)

// backends returns a fresh KV for every backend.
func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := Open(BackendSQLite, filepath.Join(dir, "kchat.db"))
	require.NoError(t, err)
	file, err := Open(BackendFile, filepath.Join(dir, "store"))
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlite.Close()
		file.Close()
	})
	return map[string]KV{BackendSQLite: sqlite, BackendFile: file}
}

// =============================================================================
// KV TESTS
// =============================================================================

func TestKV_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set(ctx, "k", []byte("one")))
			require.NoError(t, kv.Set(ctx, "k", []byte("two")))

			got, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "two", string(got))

			require.NoError(t, kv.Delete(ctx, "k"))
			_, err = kv.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting again is not an error.
			assert.NoError(t, kv.Delete(ctx, "k"))
		})
	}
}

func TestKV_EmptyKeyRejected(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, kv.Set(context.Background(), "", []byte("x")))
		})
	}
}

func TestKV_Closed(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Close())
			_, err := kv.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, kv.Set(ctx, "k", nil), ErrClosed)
			assert.NoError(t, kv.Close())
		})
	}
}

func TestFileKV_KeyCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(filepath.Join(dir, "store"))
	require.NoError(t, err)

	require.NoError(t, kv.Set(context.Background(), "../escape", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "store", entries[0].Name())
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	assert.Error(t, err)
}

func TestSQLiteKV_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kchat.db")
	ctx := context.Background()

	kv, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "k", []byte("v")))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLite(path)
	require.NoError(t, err)
	defer kv.Close()

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestStorageError_Is(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrNotFound)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(ErrClosed, ErrNotFound))
	assert.True(t, errors.Is(&StorageError{Message: "not found"}, ErrNotFound))
}

// =============================================================================
// CHAT LIST STORE TESTS
// =============================================================================

func TestChatListStore_LoadMissingIsFresh(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			list, err := NewChatListStore(kv).Load(context.Background())
			require.NoError(t, err)
			require.Equal(t, 1, list.Len())
			assert.Equal(t, 0, list.Selected)
			assert.Equal(t, model.NewChatTitle, list.Current().Title)
			assert.Equal(t, model.Greeting, list.Current().Messages[0].Content)
		})
	}
}

func TestChatListStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewChatListStore(kv)

			list := model.NewChatList()
			list.Current().Append(model.NewUserMessage("hello"))
			second := list.NewChat(model.NewMockConversation(10))
			second.SetTitle("mock")
			list.Select(1)

			require.NoError(t, store.Save(ctx, list))

			loaded, err := store.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, 2, loaded.Len())
			assert.Equal(t, 1, loaded.Selected)
			assert.Equal(t, "mock", loaded.Conversations[0].Title)
			assert.Len(t, loaded.Conversations[0].Messages, 10)
			assert.Equal(t, "hello", loaded.Conversations[1].Messages[1].Content)
			assert.Equal(t, list.Conversations[1].Messages[1].Fingerprint,
				loaded.Conversations[1].Messages[1].Fingerprint)
		})
	}
}

func TestChatListStore_StoredUnderChatListKey(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, NewChatListStore(kv).Save(ctx, model.NewChatList()))

	data, err := kv.Get(ctx, ChatListKey)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestChatListStore_LoadNormalizes(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, kv.Set(ctx, ChatListKey, []byte(`{"conversations":[],"selected":7}`)))

	list, err := NewChatListStore(kv).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Len())
	assert.Equal(t, 0, list.Selected)
}

func TestChatListStore_LoadCorrupt(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, ChatListKey, []byte(`{not json`)))

	_, err = NewChatListStore(kv).Load(ctx)
	assert.Error(t, err)
}

func TestChatListStore_ListFindDelete(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	store := NewChatListStore(kv)

	list := model.NewChatList()
	older := list.Current()
	older.Messages[0].Time = time.Now().Add(-time.Hour)
	newer := list.NewChat(nil)
	require.NoError(t, store.Save(ctx, list))

	metas, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, newer.ID, metas[0].ID)

	found, err := store.Find(ctx, older.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, older.ID, found.ID)

	_, err = store.Find(ctx, "zzzz")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := store.Delete(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, removed.ID)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())
	assert.Equal(t, older.ID, loaded.Current().ID)
}

// =============================================================================
// EXPORT TESTS
// =============================================================================

func TestExportMarkdown(t *testing.T) {
	conv := model.NewConversation()
	conv.SetTitle("Greetings")
	conv.Append(model.NewUserMessage("hi"))

	md := ExportMarkdown(conv)
	assert.True(t, strings.HasPrefix(md, "# Greetings\n"))
	assert.Contains(t, md, "**Assistant**")
	assert.Contains(t, md, "**You**")
	assert.Contains(t, md, "hi")
	assert.Contains(t, md, conv.ID)
}

func TestExportJSON(t *testing.T) {
	conv := model.NewMockConversation(4)
	data, err := ExportJSON(conv)
	require.NoError(t, err)

	var decoded model.Conversation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, conv.ID, decoded.ID)
	assert.Len(t, decoded.Messages, 4)
}

func TestFormatSessionList(t *testing.T) {
	assert.Equal(t, "No sessions found.", FormatSessionList(nil))

	conv := model.NewMockConversation(3)
	conv.SetTitle("A rather long title that will certainly be truncated")
	out := FormatSessionList([]model.ConversationMeta{conv.Meta()})

	assert.Contains(t, out, conv.ID[:8])
	assert.NotContains(t, out, conv.ID)
	assert.Contains(t, out, "...")
	assert.Contains(t, out, model.FormatDate(conv.LastTime()))
}
