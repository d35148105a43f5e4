// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/kchat/internal/session"
	"github.com/jeranaias/kchat/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat interface.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width <= 0 || m.height <= 0 {
		return "Loading..."
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTranscript(),
		m.renderInput(),
	)
	if m.sidebarWidth > 0 {
		main = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderSidebar(m.transcriptHeight()+inputRows),
			main,
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		main,
		m.renderStatus(),
	)
}

// renderHeader shows the conversation title and message count.
func (m Model) renderHeader() string {
	conv := m.session.Current()
	subtitle := fmt.Sprintf("  %d messages", conv.Len())
	if m.session.Muted() {
		subtitle += "  [muted]"
	}
	titleWidth := max(1, m.width-2-lipgloss.Width(subtitle))
	title := util.TruncateWidth(conv.Title, titleWidth)

	content := m.theme.HeaderTitle.Render(title) + m.theme.HeaderSubtitle.Render(subtitle)
	return m.theme.Header.Width(m.width).MaxWidth(m.width).Render(content)
}

// renderTranscript draws the visible window of the transcript and its
// scroll indicator, or the full key help when it is toggled on.
func (m Model) renderTranscript() string {
	rows := m.transcriptHeight()
	width := m.messageWidth()

	var lines []string
	if m.showHelp {
		lines = splitLines(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		lines = m.transcriptLines()
	}

	bar := m.scrollbar(rows)
	out := make([]string, rows)
	for i := range out {
		line := ""
		if i < len(lines) {
			line = lines[i]
		}
		out[i] = padLine(line, width) + bar[i]
	}
	return strings.Join(out, "\n")
}

// renderInput draws the bordered input line.
func (m Model) renderInput() string {
	return m.theme.InputContainer.
		Width(max(1, m.transcriptWidth-2)).
		Render(m.input.View())
}

// renderStatus shows the transient status, or the key hints, on the left
// and the save state and scroll position on the right.
func (m Model) renderStatus() string {
	t := m.theme
	st := m.session.GetStatus()

	var save string
	switch {
	case st.LastSaveErr != nil:
		save = t.StatusError.Render("save failed")
	case st.Dirty:
		save = t.StatusDirty.Render("unsaved")
	case !st.LastSave.IsZero():
		save = t.StatusSaved.Render("saved " + session.FormatDuration(st.SinceSave) + " ago")
	}

	var scroll string
	switch {
	case m.ctrl.AtBottom():
		scroll = "bottom"
	case m.ctrl.AtTop():
		scroll = "top"
	default:
		scroll = fmt.Sprintf("%3.0f%%", m.ctrl.ScrollPercent()*100)
	}
	right := strings.TrimSpace(save + "  " + scroll)

	var left string
	switch {
	case m.status != "" && m.statusIsErr:
		left = t.StatusError.Render(m.status)
	case m.status != "":
		left = m.status
	default:
		left = m.help.ShortHelpView(m.keys.ShortHelp())
	}

	inner := max(0, m.width-2)
	space := inner - lipgloss.Width(right) - 1
	if lipgloss.Width(left) > space {
		left = lipgloss.NewStyle().MaxWidth(max(0, space)).Render(left)
	}
	gap := max(1, inner-lipgloss.Width(left)-lipgloss.Width(right))
	return t.StatusBar.Width(m.width).MaxWidth(m.width).
		Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// HELPERS
// =============================================================================

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// padLine pads a styled line with spaces to width columns.
func padLine(line string, width int) string {
	if w := lipgloss.Width(line); w < width {
		return line + strings.Repeat(" ", width-w)
	}
	return line
}
