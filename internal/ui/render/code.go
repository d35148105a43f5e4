// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/kchat/internal/util"
)

// =============================================================================
// FENCED BLOCK SPLITTING
// =============================================================================

// segment is a run of prose or a fenced code block.
type segment struct {
	code     bool
	language string
	text     string
}

// splitFences separates fenced code blocks from prose. An unclosed fence
// runs to the end of the text, which is what a streaming reply looks like
// mid-block.
func splitFences(text string) []segment {
	var (
		out      []segment
		buf      []string
		inCode   bool
		language string
	)
	flush := func() {
		if inCode || len(buf) > 0 {
			out = append(out, segment{code: inCode, language: language, text: strings.Join(buf, "\n")})
		}
		buf = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			flush()
			if inCode {
				inCode = false
				language = ""
			} else {
				inCode = true
				language = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
			}
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return out
}

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// highlightCode applies syntax highlighting to code using the chroma library.
// It returns the code unchanged when highlighting fails.
func highlightCode(code, language, styleName string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}

	// The lexer appends a newline; fold whatever follows it (reset codes)
	// back onto the last line so the line count matches the input.
	lines := strings.Split(buf.String(), "\n")
	want := strings.Count(code, "\n") + 1
	if len(lines) > want {
		lines[want-1] += strings.Join(lines[want:], "")
		lines = lines[:want]
	}
	return strings.Join(lines, "\n")
}

// renderPlain wraps prose to width and highlights fenced code. Code lines
// are hard-wrapped before highlighting so no line exceeds width.
func renderPlain(text string, width int, chromaStyle string) string {
	var lines []string
	for _, seg := range splitFences(text) {
		if !seg.code {
			lines = append(lines, util.WrapWidth(seg.text, width)...)
			continue
		}
		var wrapped []string
		for _, line := range strings.Split(seg.text, "\n") {
			wrapped = append(wrapped, hardWrap(line, width)...)
		}
		lines = append(lines, highlightCode(strings.Join(wrapped, "\n"), seg.language, chromaStyle))
	}
	return strings.Join(lines, "\n")
}

// hardWrap cuts line into pieces of at most width columns, keeping
// indentation.
func hardWrap(line string, width int) []string {
	if width <= 0 || util.StringWidth(line) <= width {
		return []string{line}
	}
	var out []string
	var cur strings.Builder
	w := 0
	for _, r := range line {
		rw := util.StringWidth(string(r))
		if w+rw > width && w > 0 {
			out = append(out, cur.String())
			cur.Reset()
			w = 0
		}
		cur.WriteRune(r)
		w += rw
	}
	return append(out, cur.String())
}
