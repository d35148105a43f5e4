// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"log"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/kchat/internal/model"
	"github.com/jeranaias/kchat/internal/ui/styles"
	"github.com/jeranaias/kchat/internal/util"
)

// minBubbleWidth is the narrowest bubble content area.
const minBubbleWidth = 8

// bubbleChrome is the border and padding around bubble content.
const bubbleChrome = 4

// Options control how messages are rendered.
type Options struct {
	// Markdown renders assistant messages with glamour.
	Markdown bool

	// ShowTimestamps adds the send time to every message label.
	ShowTimestamps bool
}

// =============================================================================
// RENDERER
// =============================================================================

// Renderer renders messages for a theme. It is not safe for concurrent use;
// the UI calls it from the update goroutine only.
type Renderer struct {
	theme *styles.Theme
	opts  Options

	markdown map[int]*glamour.TermRenderer
	cache    *blockCache
}

// New creates a renderer.
func New(theme *styles.Theme, opts Options) *Renderer {
	if theme == nil {
		theme = styles.NewTheme(styles.ModeDark)
	}
	return &Renderer{
		theme:    theme,
		opts:     opts,
		markdown: make(map[int]*glamour.TermRenderer),
		cache:    newBlockCache(DefaultCacheSize),
	}
}

// Options returns the current options.
func (r *Renderer) Options() Options {
	return r.opts
}

// SetOptions changes the options, dropping cached blocks when they differ.
func (r *Renderer) SetOptions(opts Options) {
	if opts == r.opts {
		return
	}
	r.opts = opts
	r.cache.reset()
}

// SetTheme switches themes and drops every cached block.
func (r *Renderer) SetTheme(theme *styles.Theme) {
	if theme == nil {
		return
	}
	r.theme = theme
	r.markdown = make(map[int]*glamour.TermRenderer)
	r.cache.reset()
}

// Stats returns cache statistics.
func (r *Renderer) Stats() CacheStats {
	return CacheStats{Entries: len(r.cache.entries), Hits: r.cache.hits, Misses: r.cache.misses}
}

// Height returns the number of rows a rendered block occupies.
func Height(block string) int {
	return lipgloss.Height(block)
}

// Estimate guesses the height of msg without rendering it: the wrapped
// content plus the label, the bubble border and the spacer row. Markdown
// output and time separators are not accounted for.
func Estimate(msg *model.Message, width int) int {
	if msg == nil {
		return 0
	}
	width = max(width, minBubbleWidth+bubbleChrome)
	inner := max(minBubbleWidth, width*5/6-bubbleChrome)
	if msg.Connecting {
		return 1 + 3 + 1
	}
	return 1 + len(util.WrapWidth(msg.Content, inner)) + 2 + 1
}

// Message renders msg for a transcript of the given width. prev is the
// message before it (nil for the first) and decides whether a time
// separator is drawn. spinner is the current frame of the connecting
// indicator.
func (r *Renderer) Message(msg, prev *model.Message, width int, spinner string) string {
	if msg == nil {
		return ""
	}
	width = max(width, minBubbleWidth+bubbleChrome)
	separator := prev != nil && model.NeedsSeparator(prev.Time, msg.Time)

	// The connecting indicator animates, so it is never cached.
	if msg.Connecting {
		return r.render(msg, width, separator, spinner)
	}

	key := cacheKey{fingerprint: msg.Fingerprint, revision: msg.Revision, width: width, separator: separator}
	if block, ok := r.cache.get(key); ok {
		return block
	}
	block := r.render(msg, width, separator, spinner)
	r.cache.put(key, block)
	return block
}

func (r *Renderer) render(msg *model.Message, width int, separator bool, spinner string) string {
	t := r.theme
	isUser := msg.Sender == model.SenderUser

	var parts []string
	if separator {
		parts = append(parts, r.separator(msg, width))
	}

	label := t.SenderLabel.Render(msg.Sender.DisplayName())
	if r.opts.ShowTimestamps && !msg.Time.IsZero() {
		label += "  " + t.Timestamp.Render(model.FormatDate(msg.Time))
	}

	// Bubbles take at most 5/6 of the transcript width.
	inner := max(minBubbleWidth, width*5/6-bubbleChrome)

	var body string
	switch {
	case msg.Connecting:
		body = t.Connecting.Render(strings.TrimSpace(spinner + " Connecting..."))
	case !isUser && r.opts.Markdown:
		body = r.renderMarkdown(msg.Content, inner)
	default:
		body = renderPlain(msg.Content, inner, t.ChromaStyle())
	}
	if body == "" {
		body = " "
	}

	style := t.AssistantBubble
	if isUser {
		style = t.UserBubble
	}
	// Shrink to the content so short messages get short bubbles.
	contentWidth := min(inner, max(lipgloss.Width(body), 1))
	bubble := style.Width(contentWidth + 2).Render(body)

	if isUser {
		label = lipgloss.PlaceHorizontal(width, lipgloss.Right, label)
		bubble = lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble)
	}
	parts = append(parts, label, bubble, "")
	return strings.Join(parts, "\n")
}

func (r *Renderer) separator(msg *model.Message, width int) string {
	text := " " + model.FormatDate(msg.Time) + " "
	rule := max(0, (width-lipgloss.Width(text))/2)
	line := strings.Repeat("-", rule) + text + strings.Repeat("-", rule)
	return r.theme.TimeSeparator.Width(width).Render(line)
}

// renderMarkdown renders content with a glamour renderer for width. It
// falls back to plain rendering when glamour fails.
func (r *Renderer) renderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	tr, ok := r.markdown[width]
	if !ok {
		var err error
		tr, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.theme.GlamourStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			log.Printf("render: markdown renderer unavailable: %v", err)
			tr = nil
		}
		r.markdown[width] = tr
	}
	if tr == nil {
		return renderPlain(content, width, r.theme.ChromaStyle())
	}
	out, err := tr.Render(content)
	if err != nil {
		return renderPlain(content, width, r.theme.ChromaStyle())
	}
	// glamour surrounds output with blank lines; trim for bubble display.
	return strings.Trim(out, "\n")
}
