// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vlist

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HELPERS
// =============================================================================

func entries(prefix string, n int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{ID: fmt.Sprintf("%s-%d", prefix, i)}
	}
	return out
}

// unthrottled returns options that apply every scroll and resize at once.
func unthrottled(estimate int) Options {
	opts := DefaultOptions()
	opts.EstimatedItemHeight = estimate
	opts.ResizeThrottle = 0
	opts.ScrollThrottle = 0
	return opts
}

func newTestController(estimate int) *Controller {
	return NewController(NewStore(estimate), unthrottled(estimate))
}

// =============================================================================
// CONTROLLER TESTS
// =============================================================================

func TestNewController_Defaults(t *testing.T) {
	c := NewController(nil, Options{})

	require.NotNil(t, c.Store())
	assert.Equal(t, DefaultEstimatedItemHeight, c.Options().EstimatedItemHeight)
	assert.Equal(t, DefaultViewportHeight, c.Viewport())
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.AtBottom())
}

func TestController_EmptyRender(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("c", nil)

	f := c.Render()
	assert.True(t, f.Range.Empty())
	assert.Empty(t, f.Items)
	assert.Equal(t, 0, f.Extent)
}

func TestController_ThreeItemsBottomAnchored(t *testing.T) {
	c := newTestController(120)
	c.SetMessages("c", entries("m", 3))
	assert.Nil(t, c.Resize(300))

	f := c.Render()
	require.Equal(t, Range{Start: 0, End: 2}, f.Range)
	require.Len(t, f.Items, 3)

	assert.Equal(t, 360, f.Extent)
	assert.Equal(t, 300, f.Viewport)
	assert.Equal(t, 60, f.WindowTop)

	newest := f.Items[2]
	assert.Equal(t, "m-2", newest.ID)
	assert.Equal(t, 0, newest.PositionOffset)
	assert.Equal(t, 120, f.Items[1].PositionOffset)
	assert.Equal(t, 240, f.Items[0].PositionOffset)
	assert.Equal(t, 0, f.Items[0].Top)
}

func TestController_ShortListHasNegativeWindowTop(t *testing.T) {
	c := newTestController(5)
	c.SetMessages("c", entries("m", 2))
	c.Resize(30)

	f := c.Render()
	assert.Equal(t, -20, f.WindowTop)
	assert.Equal(t, 0, c.MaxScroll())
	assert.Equal(t, 1.0, c.ScrollPercent())
}

func TestController_MeasurementKeepsBottomPinned(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("c", entries("m", 100))
	c.Resize(50)

	f := c.Render()
	require.Equal(t, Range{Start: 92, End: 99}, f.Range)

	assert.True(t, c.OnSizeObserved("c", 99, 25))
	assert.Equal(t, 1015, c.Extent())
	assert.True(t, c.AtBottom())

	f = c.Render()
	last := f.Items[len(f.Items)-1]
	assert.Equal(t, 99, last.Index)
	assert.Equal(t, 0, last.PositionOffset)
	assert.Equal(t, 25, last.Height)
	assert.True(t, last.Measured)
}

func TestController_StaleReportsDropped(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("a", entries("a", 100))
	c.Resize(50)
	c.Render()

	extent := c.Extent()

	assert.False(t, c.OnSizeObserved("a", 3, 40), "index not mounted")
	assert.False(t, c.OnSizeObserved("a", 500, 40), "index out of range")
	assert.False(t, c.OnSizeObserved("a", 99, 0), "zero height")
	assert.False(t, c.OnSizeObserved("b", 99, 40), "other conversation")

	c.SetMessages("b", entries("b", 5))
	assert.False(t, c.OnSizeObserved("a", 99, 40), "report raced a conversation switch")
	assert.False(t, c.OnSizeObserved("b", 4, 40), "nothing mounted since the switch")

	// The old conversation's measurements are untouched.
	assert.Equal(t, extent, c.Store().Extent("a", 100))
}

func TestController_ReplacedSlotDropsReport(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("c", entries("m", 3))
	c.Render()

	next := entries("m", 3)
	next[1].ID = "replacement"
	c.SetMessages("c", next)

	assert.False(t, c.OnSizeObserved("c", 1, 40))
	assert.True(t, c.OnSizeObserved("c", 2, 40))
}

func TestController_SwitchResetsScroll(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("a", entries("a", 100))
	c.Resize(50)
	c.ScrollTo(120)
	require.Equal(t, 120, c.ScrollOffset())

	c.SetMessages("b", entries("b", 100))
	assert.Equal(t, 0, c.ScrollOffset())
	assert.Equal(t, "b", c.ConversationID())
	assert.False(t, c.Mounted(99))
}

func TestController_AppendFollowsNewest(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("c", entries("m", 100))
	c.Resize(50)
	c.ScrollTo(300)
	require.False(t, c.AtBottom())

	c.SetMessages("c", entries("m", 101))
	assert.True(t, c.AtBottom())
	assert.Equal(t, 1010, c.Extent())

	f := c.Render()
	assert.Equal(t, 100, f.Range.End)
}

func TestController_ShrinkDropsPlacements(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("c", entries("m", 10))
	c.Render()
	require.True(t, c.Mounted(9))

	c.SetMessages("c", entries("m", 4))
	assert.Equal(t, 40, c.Extent())
	assert.False(t, c.Mounted(9))
	assert.Len(t, c.Store().Snapshot("c"), 4)
}

func TestController_ReopenedConversationSyncsCount(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("a", entries("a", 5))
	c.Render()
	c.SetMessages("b", entries("b", 2))

	// "a" grew while another conversation was shown.
	c.SetMessages("a", entries("a", 8))
	assert.Equal(t, 80, c.Extent())
}

func TestController_ScrollClamping(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("c", entries("m", 100))
	c.Resize(50)

	c.ScrollTo(1_000_000)
	assert.Equal(t, 950, c.ScrollOffset())
	assert.True(t, c.AtTop())
	assert.Equal(t, 0.0, c.ScrollPercent())

	c.ScrollBy(-2_000_000)
	assert.Equal(t, 0, c.ScrollOffset())
	assert.True(t, c.AtBottom())

	c.ScrollToTop()
	assert.Equal(t, Range{Start: 0, End: 6}, c.Render().Range)

	c.ScrollToBottom()
	assert.Equal(t, 99, c.Render().Range.End)
}

func TestController_ResizeClampsScroll(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("c", entries("m", 10))
	c.Resize(20)
	c.ScrollTo(80)
	require.Equal(t, 80, c.ScrollOffset())

	c.Resize(60)
	assert.Equal(t, 40, c.ScrollOffset())

	assert.Nil(t, c.Resize(0), "non-positive heights are ignored")
	assert.Equal(t, 60, c.Viewport())
}

func TestController_SizeHintAppliedOnFirstMount(t *testing.T) {
	c := newTestController(10)
	list := entries("m", 2)
	list[0].SizeHint = 3
	c.SetMessages("c", list)

	f := c.Render()
	require.Len(t, f.Items, 2)
	assert.Equal(t, 3, f.Items[0].Height)
	assert.False(t, f.Items[0].Measured, "a hint is not an observation")
	assert.Equal(t, 13, f.Extent)

	// A real observation overrides the hint.
	assert.True(t, c.OnSizeObserved("c", 0, 7))
	f = c.Render()
	assert.Equal(t, 17, f.Extent)
	assert.True(t, f.Items[0].Measured)
}

func TestController_SizeHintsWidenRange(t *testing.T) {
	c := newTestController(10)
	list := entries("m", 20)
	for i := range list {
		list[i].SizeHint = 1
	}
	c.SetMessages("c", list)
	c.Resize(5)

	f := c.Render()
	require.NotEmpty(t, f.Items)
	for _, it := range f.Items {
		assert.Equalf(t, 1, it.Height, "item %d", it.Index)
		assert.Falsef(t, it.Measured, "item %d", it.Index)
	}

	// Five one-row items fill the viewport, plus the overscan above them.
	assert.Equal(t, Range{Start: 12, End: 19}, f.Range)
	assert.Equal(t, f.Range, c.Render().Range)
}

func TestController_SizeHintAppliedOnce(t *testing.T) {
	c := newTestController(10)
	list := entries("m", 1)
	list[0].SizeHint = 3
	c.SetMessages("c", list)
	c.Render()

	list[0].SizeHint = 8
	c.SetMessages("c", list)
	assert.Equal(t, 3, c.Render().Items[0].Height)
}

func TestController_ObservationMatchingHint(t *testing.T) {
	c := newTestController(10)
	list := entries("m", 1)
	list[0].SizeHint = 4
	c.SetMessages("c", list)
	c.Render()

	assert.False(t, c.OnSizeObserved("c", 0, 4), "height unchanged")
	assert.True(t, c.Render().Items[0].Measured)
}

func TestController_SetOptionsAppliesPendingValues(t *testing.T) {
	clock := newFakeClock()
	opts := unthrottled(10)
	opts.ScrollThrottle = time.Hour
	opts.ResizeThrottle = time.Hour

	c := NewController(NewStore(10), opts)
	c.scrollThrottle.now = clock.Now
	c.resizeThrottle.now = clock.Now
	c.SetMessages("c", entries("m", 100))

	assert.Nil(t, c.Resize(20))
	assert.NotNil(t, c.Resize(30))
	assert.Nil(t, c.ScrollTo(5))
	assert.NotNil(t, c.ScrollTo(40))
	require.Equal(t, 5, c.ScrollOffset())
	require.Equal(t, 20, c.Viewport())

	c.SetOptions(unthrottled(10))
	assert.Equal(t, 40, c.ScrollOffset())
	assert.Equal(t, 30, c.Viewport())

	// The flush scheduled before the reload finds nothing left to do.
	assert.False(t, c.Flush(FlushScroll))
	assert.False(t, c.Flush(FlushResize))
	assert.Equal(t, 40, c.ScrollOffset())
}

func TestController_ThrottledScrollCoalesces(t *testing.T) {
	clock := newFakeClock()
	opts := unthrottled(10)
	opts.ScrollThrottle = 50 * time.Millisecond

	c := NewController(NewStore(10), opts)
	c.scrollThrottle.now = clock.Now
	c.SetMessages("c", entries("m", 100))

	assert.Nil(t, c.ScrollTo(10), "leading edge applies at once")
	assert.Equal(t, 10, c.ScrollOffset())

	cmd := c.ScrollBy(5)
	assert.NotNil(t, cmd, "first throttled event schedules a flush")
	assert.Equal(t, 10, c.ScrollOffset())

	assert.Nil(t, c.ScrollBy(5), "flush already scheduled")
	assert.Equal(t, 10, c.ScrollOffset())

	clock.Advance(50 * time.Millisecond)
	assert.True(t, c.Flush(FlushScroll))
	assert.Equal(t, 20, c.ScrollOffset(), "trailing edge applies the latest value")
	assert.False(t, c.Flush(FlushScroll))
}

func TestController_ThrottledResize(t *testing.T) {
	clock := newFakeClock()
	opts := unthrottled(10)
	opts.ResizeThrottle = 100 * time.Millisecond

	c := NewController(NewStore(10), opts)
	c.resizeThrottle.now = clock.Now

	assert.Nil(t, c.Resize(30))
	assert.Equal(t, 30, c.Viewport())

	assert.NotNil(t, c.Resize(40))
	assert.Nil(t, c.Resize(45))
	assert.Equal(t, 30, c.Viewport())

	assert.True(t, c.Flush(FlushResize))
	assert.Equal(t, 45, c.Viewport())
}

func TestController_FlushUnknownKind(t *testing.T) {
	c := newTestController(10)
	assert.False(t, c.Flush(FlushKind(42)))
	assert.Equal(t, "unknown", FlushKind(42).String())
	assert.Equal(t, "scroll", FlushScroll.String())
	assert.Equal(t, "resize", FlushResize.String())
}

func TestController_SetOptions(t *testing.T) {
	c := newTestController(10)
	c.SetMessages("c", entries("m", 3))

	opts := c.Options()
	opts.OverscanBefore = 0
	opts.OverscanAfter = 0
	opts.EstimatedItemHeight = 4
	c.SetOptions(opts)

	assert.Equal(t, 4, c.Store().EstimatedItemHeight())
	assert.Equal(t, 0, c.Options().OverscanBefore)
	// Existing conversations keep their placements.
	assert.Equal(t, 30, c.Extent())
}
