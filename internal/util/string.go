// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// StringWidth returns the display width of a string in terminal columns.
// Wide characters (CJK, most emoji) count as 2.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// TruncateWidth cuts s to at most maxWidth columns, ending with "..." when
// something was cut and there is room for it.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth < 4 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadRight pads s with spaces to exactly width columns. Wider strings are
// truncated.
func PadRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, width, "")
	return runewidth.FillRight(s, width)
}

// WrapWidth wraps text to lines of at most width columns. Words are kept
// whole when they fit; longer words are split. Existing newlines are kept
// and an empty input yields one empty line.
func WrapWidth(text string, width int) []string {
	if width <= 0 {
		width = 1
	}

	var out []string
	for _, para := range strings.Split(text, "\n") {
		out = append(out, wrapParagraph(para, width)...)
	}
	return out
}

func wrapParagraph(para string, width int) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var line strings.Builder
	lineWidth := 0

	flush := func() {
		lines = append(lines, line.String())
		line.Reset()
		lineWidth = 0
	}

	for _, word := range words {
		w := runewidth.StringWidth(word)

		if lineWidth > 0 && lineWidth+1+w <= width {
			line.WriteByte(' ')
			line.WriteString(word)
			lineWidth += 1 + w
			continue
		}
		if lineWidth > 0 {
			flush()
		}

		// Split words wider than a whole line.
		for w > width {
			head := runewidth.Truncate(word, width, "")
			if head == "" {
				// A single rune wider than the line.
				r := []rune(word)
				head = string(r[0])
			}
			lines = append(lines, head)
			word = word[len(head):]
			w = runewidth.StringWidth(word)
		}
		line.WriteString(word)
		lineWidth = w
	}
	if lineWidth > 0 {
		flush()
	}
	return lines
}
