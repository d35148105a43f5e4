// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - ChatList: Ordered conversations, newest first, with a selection; never empty
//   - Conversation: Append-only message list opened by an assistant greeting
//   - Message: Content, sender, time and a fingerprint that keys rendering
//   - Sender: user or assistant
//
// # Usage
//
//	list := model.NewChatList()
//	conv := list.Current()
//	conv.Append(model.NewUserMessage("hello"))
//	prompts := conv.Prompts(5)
package model
