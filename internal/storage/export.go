// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jeranaias/kchat/internal/model"
	"github.com/jeranaias/kchat/internal/util"
)

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

const listRule = "------------------------------------------------------------------------\n"

// FormatSessionList formats conversation metadata as a table.
func FormatSessionList(sessions []model.ConversationMeta) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString("Sessions:\n")
	sb.WriteString(listRule)
	sb.WriteString(util.PadRight("ID", 10) + " " + util.PadRight("Last active", 19) + " " +
		util.PadRight("Msgs", 5) + " Title\n")
	sb.WriteString(listRule)

	for _, s := range sessions {
		idStr := s.ID
		if len(idStr) > 8 {
			idStr = idStr[:8]
		}
		sb.WriteString(util.PadRight(idStr, 10) + " " +
			util.PadRight(model.FormatDate(s.LastTime), 19) + " " +
			util.PadRight(strconv.Itoa(s.Exchanges), 5) + " " +
			util.TruncateWidth(s.Title, 32) + "\n")
	}
	return sb.String()
}

// =============================================================================
// SESSION EXPORT
// =============================================================================

// ExportMarkdown renders the conversation as Markdown, one section per
// message with its sender and time.
func ExportMarkdown(c *model.Conversation) string {
	var sb strings.Builder
	sb.WriteString("# " + c.Title + "\n\n")
	sb.WriteString("Session: " + c.ID + "\n\n")
	sb.WriteString("Created: " + model.FormatDate(c.CreatedAt) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range c.Messages {
		sb.WriteString("**" + msg.Sender.DisplayName() + "** (" + model.FormatDate(msg.Time) + "):\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// ExportJSON encodes the conversation as indented JSON.
func ExportJSON(c *model.Conversation) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
