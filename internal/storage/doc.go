// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the chat list for kchat.
//
// The whole chat list is one JSON blob stored under ChatListKey in a small
// key-value store. Two backends implement KV:
//
//   - SQLiteKV: a single-table SQLite database (modernc.org/sqlite)
//   - FileKV: one file per key in a directory, written atomically
//
// # Usage
//
//	kv, err := storage.Open(cfg.Storage.Backend, cfg.StoragePath())
//	store := storage.NewChatListStore(kv)
//	list, err := store.Load(ctx)
//	err = store.Save(ctx, list)
//
// Conversations can be exported for sharing:
//
//	md := storage.ExportMarkdown(conv)
//	data, err := storage.ExportJSON(conv)
package storage
