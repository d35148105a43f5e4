// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeDark  = "dark"
	ModeLight = "light"
	ModeAuto  = "auto"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// SIDEBAR STYLES
	// ==========================================================================

	Sidebar      lipgloss.Style
	Card         lipgloss.Style
	CardSelected lipgloss.Style
	CardTitle    lipgloss.Style
	CardMeta     lipgloss.Style

	// ==========================================================================
	// MESSAGE BUBBLE STYLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	SenderLabel     lipgloss.Style
	Timestamp       lipgloss.Style
	TimeSeparator   lipgloss.Style
	Connecting      lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	StatusSaved    lipgloss.Style
	StatusDirty    lipgloss.Style
	StatusError    lipgloss.Style
	ScrollBar      lipgloss.Style
	Help           lipgloss.Style
}

// NewTheme creates a theme for mode ("dark", "light" or "auto"). Auto asks
// the terminal for its background.
func NewTheme(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case ModeLight:
		isDark = false
	case ModeAuto:
		isDark = termenv.HasDarkBackground()
	default:
		isDark = true
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay)

	t.Card = lipgloss.NewStyle().
		Padding(0, 1)

	t.CardSelected = t.Card.
		Background(SelectionBg).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(Purple).
		PaddingLeft(0)

	t.CardTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.CardMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Message bubbles
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1)

	t.SenderLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.TimeSeparator = lipgloss.NewStyle().
		Foreground(TextMuted).
		Align(lipgloss.Center)

	t.Connecting = lipgloss.NewStyle().
		Foreground(Purple).
		Italic(true)

	// Input and status
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.StatusSaved = lipgloss.NewStyle().Foreground(Emerald)
	t.StatusDirty = lipgloss.NewStyle().Foreground(Amber)
	t.StatusError = lipgloss.NewStyle().Foreground(Rose)

	t.ScrollBar = lipgloss.NewStyle().Foreground(OverlayFg(t.IsDark))

	t.Help = lipgloss.NewStyle().Foreground(TextMuted)
}

// OverlayFg returns a readable color for thin decorations.
func OverlayFg(isDark bool) lipgloss.Color {
	if isDark {
		return lipgloss.Color("#45475A")
	}
	return lipgloss.Color("#D4D4D4")
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, sidebar hidden
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// ChromaStyle returns the chroma style name matching the theme.
func (t *Theme) ChromaStyle() string {
	if t.IsDark {
		return "monokai"
	}
	return "github"
}
