// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/jeranaias/kchat/internal/model"
	"github.com/jeranaias/kchat/internal/util"
)

// cardRows is the height of one conversation card including its gap.
const cardRows = 4

// =============================================================================
// SIDEBAR
// =============================================================================

// sidebarStart returns the first card shown so the selected card stays
// visible in rows rows.
func (m Model) sidebarStart(rows int) int {
	visible := max(1, rows/cardRows)
	return max(0, m.session.Selected()-visible+1)
}

// cardAt maps a screen row to a card index.
func (m Model) cardAt(y int) (int, bool) {
	row := y - headerRows
	rows := m.transcriptHeight() + inputRows
	if row < 0 || row >= rows {
		return 0, false
	}
	idx := m.sidebarStart(rows) + row/cardRows
	if idx >= m.session.List().Len() {
		return 0, false
	}
	return idx, true
}

// renderSidebar draws one card per conversation.
func (m Model) renderSidebar(rows int) string {
	t := m.theme
	list := m.session.List()
	cardWidth := max(1, m.sidebarWidth-1)

	var lines []string
	for i := m.sidebarStart(rows); i < list.Len() && len(lines)+cardRows <= rows; i++ {
		card := m.renderCard(list.Conversations[i], cardWidth, i == list.Selected)
		lines = append(lines, splitLines(card)...)
		lines = append(lines, "")
	}
	if len(lines) > rows {
		lines = lines[:rows]
	}

	return t.Sidebar.
		Width(cardWidth).
		Height(rows).
		MaxHeight(rows).
		Render(strings.Join(lines, "\n"))
}

// renderCard shows the title, the number of exchanges and the time of the
// newest message.
func (m Model) renderCard(conv *model.Conversation, width int, selected bool) string {
	t := m.theme
	inner := max(1, width-2)

	title := util.TruncateWidth(conv.Title, inner)
	count := fmt.Sprintf("%d exchanges", conv.Exchanges())
	var when string
	if last := conv.LastTime(); !last.IsZero() {
		when = model.FormatDate(last)
	}

	content := t.CardTitle.Render(title) + "\n" +
		t.CardMeta.Render(util.TruncateWidth(count, inner)) + "\n" +
		t.CardMeta.Render(util.TruncateWidth(when, inner))
	if selected {
		return t.CardSelected.Width(width - 1).Render(content)
	}
	return t.Card.Width(width).Render(content)
}
