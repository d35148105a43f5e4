// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for kchat.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. A Theme bundles the styles for the header, the chat list sidebar,
message bubbles, the input box and the status bar:

	theme := styles.NewTheme(cfg.UI.Theme)
	theme.UserBubble.Width(60).Render(text)

The theme mode ("dark", "light", "auto") also selects the matching glamour
and chroma styles for markdown and code rendering.
*/
package styles
