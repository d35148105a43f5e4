// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vlist

import "sort"

// DefaultViewportHeight is used until the container reports its real size.
const DefaultViewportHeight = 20

// =============================================================================
// RANGE
// =============================================================================

// Range is an inclusive span of item indices. The empty range has End < Start.
type Range struct {
	Start int
	End   int
}

// EmptyRange is returned for lists without items.
var EmptyRange = Range{Start: 0, End: -1}

// Empty reports whether the range holds no index.
func (r Range) Empty() bool {
	return r.End < r.Start
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether index lies in the range.
func (r Range) Contains(index int) bool {
	return !r.Empty() && index >= r.Start && index <= r.End
}

// =============================================================================
// RESOLVER
// =============================================================================

// RenderRange computes the indices that cover the viewport.
//
// scrolledOffset is the distance scrolled away from the newest message; 0
// keeps the newest message at the bottom of the viewport. overscanBefore pads
// older items, overscanAfter pads newer ones.
func (s *Store) RenderRange(conversationID string, itemCount, viewportHeight, scrolledOffset, overscanBefore, overscanAfter int) Range {
	if itemCount <= 0 {
		return EmptyRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.getOrCreate(conversationID, itemCount)
	return in.renderRange(itemCount, viewportHeight, scrolledOffset, overscanBefore, overscanAfter)
}

func (in *Info) renderRange(itemCount, viewportHeight, scrolledOffset, overscanBefore, overscanAfter int) Range {
	if itemCount <= 0 {
		return EmptyRange
	}
	if viewportHeight <= 0 {
		viewportHeight = DefaultViewportHeight
	}

	// A fresh conversation opens at its newest message; placing it places
	// everything above it with estimates.
	newest := itemCount - 1
	if in.extentIndex < newest {
		in.get(newest)
		in.virtualExtent = in.extentFor(itemCount)
	}

	extent := in.items[newest].Bottom()
	scrolledOffset = clamp(scrolledOffset, 0, max(0, extent-viewportHeight))

	windowBottom := extent - scrolledOffset
	end := in.edgeIndex(windowBottom, newest)

	// Walk toward older items until the viewport is covered.
	start := end
	covered := windowBottom - in.items[end].Offset
	for covered < viewportHeight && start > 0 {
		start--
		covered += in.items[start].Height
	}

	start = max(0, start-max(0, overscanBefore))
	end = min(newest, end+max(0, overscanAfter))
	return Range{Start: start, End: end}
}

// edgeIndex returns the newest item whose top edge lies above windowBottom.
// Offsets over [0, newest] are dense and non-decreasing.
func (in *Info) edgeIndex(windowBottom, newest int) int {
	i := sort.Search(newest+1, func(i int) bool {
		return in.items[i].Offset >= windowBottom
	})
	return clamp(i-1, 0, newest)
}
