// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the kchat command line.
//
// # Commands
//
//	kchat                              Start the chat client
//	kchat sessions list                List saved conversations
//	kchat sessions export <id>         Print a conversation (--format md|json)
//	kchat sessions delete <id>         Delete a conversation
//	kchat config path|init|show        Inspect or create the config file
//	kchat config get|set <key> [val]   Read or change one setting
//
// Session ids may be abbreviated to any unique prefix.
//
// # Usage
//
//	os.Exit(cli.Execute())
package cli
