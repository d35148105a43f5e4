// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/kchat/internal/model"
	"github.com/jeranaias/kchat/internal/ui/render"
	"github.com/jeranaias/kchat/internal/ui/styles"
	"github.com/jeranaias/kchat/internal/vlist"
)

// =============================================================================
// LAYOUT CONSTANTS
// =============================================================================

const (
	headerRows = 1
	statusRows = 1
	inputRows  = 3 // bordered single line

	// inputChrome is the border, padding, prompt and cursor around the
	// text input, plus one spare column.
	inputChrome = 8

	// scrollbarCols is the width of the transcript scroll indicator.
	scrollbarCols = 1
)

// maxLayoutPasses bounds the render/measure loop of one update.
var maxLayoutPasses = 4

// entriesKey identifies the message list last handed to the controller.
type entriesKey struct {
	conversationID string
	count          int
	last           string
	width          int
}

// =============================================================================
// SIZES
// =============================================================================

// computeSizes splits the window width between the sidebar and the
// transcript. The sidebar is hidden in full screen and on narrow terminals.
func (m *Model) computeSizes() {
	m.sidebarWidth = 0
	if w := m.cfg.UI.SidebarWidth; !m.fullScreen && w > 0 && m.width > 0 &&
		m.theme.GetLayoutMode() != styles.LayoutNarrow && w <= m.width/2 {
		m.sidebarWidth = w
	}
	m.transcriptWidth = max(0, m.width-m.sidebarWidth)
	m.input.Width = max(1, m.transcriptWidth-inputChrome)
	m.help.Width = m.transcriptWidth
}

// transcriptHeight is the number of rows left for messages.
func (m *Model) transcriptHeight() int {
	return max(1, m.height-headerRows-inputRows-statusRows)
}

// messageWidth is the width messages are rendered at.
func (m *Model) messageWidth() int {
	return max(1, m.transcriptWidth-scrollbarCols)
}

// =============================================================================
// RENDER / MEASURE LOOP
// =============================================================================

// relayout resolves the visible window, renders its messages and reports
// their heights until the layout settles. Newly measured heights move the
// items after them, which can change the window, so the loop repeats; it
// stops after maxLayoutPasses and the next update continues from there.
func (m *Model) relayout() {
	conv := m.session.Current()
	m.syncEntries(conv)

	if m.width <= 0 {
		m.frame = m.ctrl.Render()
		m.blocks = make(map[int]string)
		return
	}

	width := m.messageWidth()
	spin := m.spinner.View()
	blocks := make(map[int]string)

	block := func(index int) string {
		if b, ok := blocks[index]; ok {
			return b
		}
		var prev *model.Message
		if index > 0 {
			prev = conv.Messages[index-1]
		}
		b := m.renderer.Message(conv.Messages[index], prev, width, spin)
		blocks[index] = b
		return b
	}

	var frame vlist.Frame
	for pass := 0; pass < maxLayoutPasses; pass++ {
		frame = m.ctrl.Render()
		changed := false
		for _, it := range frame.Items {
			if m.ctrl.OnSizeObserved(conv.ID, it.Index, render.Height(block(it.Index))) {
				changed = true
			}
		}
		if !changed {
			m.storeFrame(frame, block)
			return
		}
	}

	// Out of passes: place the items with the heights observed last.
	frame = m.ctrl.Render()
	m.storeFrame(frame, block)
}

// storeFrame keeps frame and the blocks of its items for View.
func (m *Model) storeFrame(frame vlist.Frame, block func(int) string) {
	m.frame = frame
	m.blocks = make(map[int]string, len(frame.Items))
	for _, it := range frame.Items {
		m.blocks[it.Index] = block(it.Index)
	}
}

// syncEntries hands the controller the current conversation when it, its
// length or the render width changed since the last call.
func (m *Model) syncEntries(conv *model.Conversation) {
	key := entriesKey{
		conversationID: conv.ID,
		count:          conv.Len(),
		width:          m.messageWidth(),
	}
	if last := conv.Last(); last != nil {
		key.last = last.Fingerprint
	}
	if key == m.entries {
		return
	}
	m.entries = key

	entries := make([]vlist.Entry, len(conv.Messages))
	for i, msg := range conv.Messages {
		entries[i] = vlist.Entry{ID: msg.Fingerprint}
		if m.width > 0 {
			entries[i].SizeHint = render.Estimate(msg, key.width)
		}
	}
	m.ctrl.SetMessages(conv.ID, entries)
}

// =============================================================================
// WINDOW
// =============================================================================

// transcriptLines places the rendered blocks of the last frame into the
// viewport rows. Rows with no message are empty.
func (m *Model) transcriptLines() []string {
	vh := m.frame.Viewport
	lines := make([]string, vh)
	for _, it := range m.frame.Items {
		block, ok := m.blocks[it.Index]
		if !ok {
			continue
		}
		for j, line := range splitLines(block) {
			row := it.Top + j - m.frame.WindowTop
			if row < 0 || row >= vh {
				continue
			}
			lines[row] = line
		}
	}
	return lines
}

// scrollbar draws one column with a thumb sized to the visible share of
// the transcript. It is blank when everything fits.
func (m *Model) scrollbar(rows int) []string {
	col := make([]string, rows)
	extent := m.frame.Extent
	if extent <= rows || rows <= 0 {
		for i := range col {
			col[i] = " "
		}
		return col
	}

	thumb := max(1, rows*rows/extent)
	top := m.frame.WindowTop
	pos := top * (rows - thumb) / max(1, extent-rows)
	pos = min(max(pos, 0), rows-thumb)

	for i := range col {
		if i >= pos && i < pos+thumb {
			col[i] = m.theme.ScrollBar.Render(styles.ScrollThumb)
		} else {
			col[i] = m.theme.ScrollBar.Render(styles.ScrollTrack)
		}
	}
	return col
}
