// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package vlist implements the virtualized, bottom-anchored message list used by
the kchat transcript.

Only the messages that intersect the viewport (plus a small overscan margin)
are ever rendered. Heights are estimated until a rendered message reports its
real size, and the scroll position stays stable while those measurements
arrive in any order.

# Components

## Store (measure.go)

Per-conversation cache of item heights and cumulative offsets. Offsets are
anchored at the top of the list (index 0, the oldest message):

	offset[0]   = 0
	offset[i+1] = offset[i] + height[i]

Entries are placed lazily. Growing the list at the newest end never touches
existing offsets, and a height change at index k only shifts k+1..extent.

## Resolver (resolver.go)

Given the distance scrolled away from the newest message, the viewport
height and the item count, computes the inclusive index range to render.

## Controller (controller.go)

Owns viewport height, scroll offset and the mounted set of the last frame.
Scroll and resize events are coalesced by a Throttle (throttle.go) that keeps
the latest value and replays it on the trailing edge.

# Usage

	store := vlist.NewStore(6)
	ctrl := vlist.NewController(store, vlist.DefaultOptions())
	ctrl.SetMessages(conv.ID, entries)
	ctrl.Resize(height)
	frame := ctrl.Render()
	for _, it := range frame.Items {
		lines := render(it.Index)
		ctrl.OnSizeObserved(conv.ID, it.Index, len(lines))
	}

All units are terminal rows.
*/
package vlist
