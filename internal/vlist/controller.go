// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vlist

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Controller.
type Options struct {
	// EstimatedItemHeight is the height assumed for unmeasured messages.
	EstimatedItemHeight int

	// OverscanBefore is the number of extra older messages rendered above
	// the viewport.
	OverscanBefore int

	// OverscanAfter is the number of extra newer messages rendered below
	// the viewport.
	OverscanAfter int

	// ResizeThrottle and ScrollThrottle bound how often viewport and scroll
	// changes are applied.
	ResizeThrottle time.Duration
	ScrollThrottle time.Duration

	// DefaultViewportHeight is used until Resize reports a real height.
	DefaultViewportHeight int
}

// DefaultOptions returns the options used by the chat transcript.
func DefaultOptions() Options {
	return Options{
		EstimatedItemHeight:   DefaultEstimatedItemHeight,
		OverscanBefore:        3,
		OverscanAfter:         2,
		ResizeThrottle:        100 * time.Millisecond,
		ScrollThrottle:        50 * time.Millisecond,
		DefaultViewportHeight: DefaultViewportHeight,
	}
}

// =============================================================================
// FRAME
// =============================================================================

// Entry identifies one message handed to the controller.
type Entry struct {
	// ID is the message fingerprint. Rendered output is keyed by it.
	ID string

	// SizeHint, if positive, is applied as the message height the first time
	// it is mounted without a measurement.
	SizeHint int
}

// RenderItem is one mounted message of a Frame.
type RenderItem struct {
	Index int
	ID    string

	// Top is the item's offset from the top of the list.
	Top int

	// PositionOffset is the distance from the item's bottom edge to the
	// bottom of the list. The newest message has PositionOffset 0.
	PositionOffset int

	Height   int
	Measured bool
}

// Frame is the result of one Render call.
type Frame struct {
	Range Range
	Items []RenderItem

	// Extent is the total virtual height of the conversation.
	Extent int

	// Viewport is the height the frame was resolved for.
	Viewport int

	// ScrollOffset is the clamped distance from the newest message.
	ScrollOffset int

	// WindowTop is the list row shown at the top of the viewport. It is
	// negative when the whole list is shorter than the viewport.
	WindowTop int
}

// maxHintPasses bounds how often one Render resolves again after applying
// size hints.
const maxHintPasses = 8

// FlushKind selects which throttled value a FlushMsg applies.
type FlushKind int

const (
	FlushScroll FlushKind = iota
	FlushResize
)

// String returns the kind name.
func (k FlushKind) String() string {
	switch k {
	case FlushScroll:
		return "scroll"
	case FlushResize:
		return "resize"
	default:
		return "unknown"
	}
}

// FlushMsg is delivered on the trailing edge of a throttle window.
type FlushMsg struct {
	Kind FlushKind
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller wires the Store to one on-screen list. It tracks which
// conversation is shown, the viewport height, the scroll position and the
// set of mounted indices from the last Render.
//
// A Controller is driven from the Bubble Tea update loop and is not safe for
// concurrent use; the Store it wraps is.
type Controller struct {
	store *Store
	opts  Options

	conversationID string
	entries        []Entry

	viewportHeight  int
	pendingViewport int
	scrollOffset    int
	pendingScroll   int
	extent          int

	mounted map[int]string

	scrollThrottle *Throttle
	resizeThrottle *Throttle
}

// NewController creates a controller over store. Non-positive heights fall
// back to DefaultOptions; a zero throttle window disables that throttle.
func NewController(store *Store, opts Options) *Controller {
	opts = withDefaults(opts)
	if store == nil {
		store = NewStore(opts.EstimatedItemHeight)
	}
	return &Controller{
		store:          store,
		opts:           opts,
		mounted:        make(map[int]string),
		scrollThrottle: NewThrottle(opts.ScrollThrottle),
		resizeThrottle: NewThrottle(opts.ResizeThrottle),
	}
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.EstimatedItemHeight <= 0 {
		opts.EstimatedItemHeight = def.EstimatedItemHeight
	}
	if opts.OverscanBefore < 0 {
		opts.OverscanBefore = 0
	}
	if opts.OverscanAfter < 0 {
		opts.OverscanAfter = 0
	}
	if opts.DefaultViewportHeight <= 0 {
		opts.DefaultViewportHeight = def.DefaultViewportHeight
	}
	return opts
}

// SetOptions replaces the options. Measurements are kept; throttles restart
// after any value still waiting for its trailing edge has been applied.
func (c *Controller) SetOptions(opts Options) {
	if c.resizeThrottle.Pending() {
		c.applyViewport()
	}
	if c.scrollThrottle.Pending() {
		c.applyScroll()
	}
	c.opts = withDefaults(opts)
	c.store.SetEstimatedItemHeight(c.opts.EstimatedItemHeight)
	c.scrollThrottle.SetWindow(c.opts.ScrollThrottle)
	c.resizeThrottle.SetWindow(c.opts.ResizeThrottle)
	c.refreshExtent()
}

// Options returns the active options.
func (c *Controller) Options() Options {
	return c.opts
}

// Store returns the measurement store.
func (c *Controller) Store() *Store {
	return c.store
}

// ConversationID returns the conversation currently shown.
func (c *Controller) ConversationID() string {
	return c.conversationID
}

// Len returns the number of messages in the current conversation.
func (c *Controller) Len() int {
	return len(c.entries)
}

// SetMessages hands the controller the full message list of a conversation.
//
// Switching to another conversation resets the scroll to the newest message
// and forgets the mounted set. For the same conversation, messages added at
// the end are placed with estimates and the view follows them; a shorter
// list drops the placements of the removed items.
func (c *Controller) SetMessages(conversationID string, entries []Entry) {
	next := make([]Entry, len(entries))
	copy(next, entries)

	if conversationID != c.conversationID {
		c.conversationID = conversationID
		c.entries = next
		c.mounted = make(map[int]string)
		c.scrollOffset = 0
		c.pendingScroll = 0
		c.store.Sync(conversationID, len(next))
		c.refreshExtent()
		return
	}

	delta := len(next) - len(c.entries)
	c.entries = next
	if delta != 0 {
		c.store.AppendEstimate(conversationID, len(next), delta)
	}
	if delta > 0 {
		c.scrollOffset = 0
		c.pendingScroll = 0
	}
	for idx := range c.mounted {
		if idx >= len(next) {
			delete(c.mounted, idx)
		}
	}
	c.refreshExtent()
}

// Viewport returns the applied viewport height, or the default when none has
// been reported yet.
func (c *Controller) Viewport() int {
	if c.viewportHeight > 0 {
		return c.viewportHeight
	}
	return c.opts.DefaultViewportHeight
}

// Resize reports a new viewport height. The change is applied at once or on
// the trailing edge of the resize window, in which case the returned command
// delivers a FlushMsg.
func (c *Controller) Resize(height int) tea.Cmd {
	if height <= 0 {
		return nil
	}
	c.pendingViewport = height
	fire, delay := c.resizeThrottle.Trigger()
	if fire {
		c.applyViewport()
		return nil
	}
	return flushAfter(delay, FlushResize)
}

// ScrollTo requests an absolute scroll offset measured from the newest
// message. It is throttled like Resize.
func (c *Controller) ScrollTo(offset int) tea.Cmd {
	c.pendingScroll = clamp(offset, 0, c.MaxScroll())
	fire, delay := c.scrollThrottle.Trigger()
	if fire {
		c.applyScroll()
		return nil
	}
	return flushAfter(delay, FlushScroll)
}

// ScrollBy moves the scroll position by delta rows. Positive values move
// toward older messages. Successive calls inside one window accumulate.
func (c *Controller) ScrollBy(delta int) tea.Cmd {
	return c.ScrollTo(c.pendingScroll + delta)
}

// ScrollToBottom jumps to the newest message without throttling.
func (c *Controller) ScrollToBottom() {
	c.scrollOffset = 0
	c.pendingScroll = 0
}

// ScrollToTop jumps to the oldest message without throttling.
func (c *Controller) ScrollToTop() {
	c.scrollOffset = c.MaxScroll()
	c.pendingScroll = c.scrollOffset
}

// Flush applies the latest value of a throttled kind. It returns false when
// nothing was pending.
func (c *Controller) Flush(kind FlushKind) bool {
	switch kind {
	case FlushResize:
		if !c.resizeThrottle.Done() {
			return false
		}
		c.applyViewport()
	case FlushScroll:
		if !c.scrollThrottle.Done() {
			return false
		}
		c.applyScroll()
	default:
		return false
	}
	return true
}

func flushAfter(delay time.Duration, kind FlushKind) tea.Cmd {
	if delay <= 0 {
		return nil
	}
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return FlushMsg{Kind: kind}
	})
}

func (c *Controller) applyViewport() {
	if c.pendingViewport > 0 {
		c.viewportHeight = c.pendingViewport
	}
	c.clampScroll()
}

func (c *Controller) applyScroll() {
	c.scrollOffset = c.pendingScroll
	c.clampScroll()
}

// ScrollOffset returns the applied distance from the newest message.
func (c *Controller) ScrollOffset() int {
	return c.scrollOffset
}

// Extent returns the virtual height of the current conversation.
func (c *Controller) Extent() int {
	return c.extent
}

// MaxScroll returns the largest valid scroll offset.
func (c *Controller) MaxScroll() int {
	return max(0, c.extent-c.Viewport())
}

// AtBottom reports whether the newest message is pinned to the bottom.
func (c *Controller) AtBottom() bool {
	return c.scrollOffset <= 0
}

// AtTop reports whether the oldest message is visible at the top.
func (c *Controller) AtTop() bool {
	return c.scrollOffset >= c.MaxScroll()
}

// ScrollPercent returns 0 at the oldest message and 1 at the newest.
func (c *Controller) ScrollPercent() float64 {
	maxScroll := c.MaxScroll()
	if maxScroll == 0 {
		return 1
	}
	return 1 - float64(c.scrollOffset)/float64(maxScroll)
}

func (c *Controller) refreshExtent() {
	if len(c.entries) == 0 {
		c.extent = 0
		c.clampScroll()
		return
	}
	c.extent = c.store.Extent(c.conversationID, len(c.entries))
	c.clampScroll()
}

func (c *Controller) clampScroll() {
	c.scrollOffset = clamp(c.scrollOffset, 0, c.MaxScroll())
	c.pendingScroll = clamp(c.pendingScroll, 0, c.MaxScroll())
}

// =============================================================================
// RENDER / MEASURE
// =============================================================================

// Render resolves the current window and records the mounted set. Items
// mounted for the first time with a SizeHint get that height before the
// frame is built.
func (c *Controller) Render() Frame {
	vh := c.Viewport()
	n := len(c.entries)
	if n == 0 {
		c.mounted = make(map[int]string)
		c.extent = 0
		c.scrollOffset = 0
		c.pendingScroll = 0
		return Frame{Range: EmptyRange, Viewport: vh, WindowTop: -vh}
	}

	// Hints can shrink the window's items and pull more of them into range,
	// so resolve again until every mounted item has had its hint.
	r, placed, extent := c.resolve(vh)
	for pass := 0; pass < maxHintPasses && c.applyHints(r, placed); pass++ {
		r, placed, extent = c.resolve(vh)
	}

	c.extent = extent
	c.clampScroll()

	mounted := make(map[int]string, r.Len())
	items := make([]RenderItem, 0, r.Len())
	for i, p := range placed {
		idx := r.Start + i
		id := c.entries[idx].ID
		mounted[idx] = id
		items = append(items, RenderItem{
			Index:          idx,
			ID:             id,
			Top:            p.Offset,
			PositionOffset: extent - p.Bottom(),
			Height:         p.Height,
			Measured:       p.Measured,
		})
	}
	c.mounted = mounted

	return Frame{
		Range:        r,
		Items:        items,
		Extent:       extent,
		Viewport:     vh,
		ScrollOffset: c.scrollOffset,
		WindowTop:    extent - c.scrollOffset - vh,
	}
}

func (c *Controller) resolve(vh int) (Range, []MeasuredItem, int) {
	return c.store.Resolve(c.conversationID, len(c.entries), vh, c.scrollOffset,
		c.opts.OverscanBefore, c.opts.OverscanAfter)
}

func (c *Controller) applyHints(r Range, placed []MeasuredItem) bool {
	applied := false
	for i, p := range placed {
		idx := r.Start + i
		if p.Measured || p.hinted {
			continue
		}
		if hint := c.entries[idx].SizeHint; hint > 0 {
			if c.store.Hint(c.conversationID, idx, hint, len(c.entries)) {
				applied = true
			}
		}
	}
	return applied
}

// Mounted reports whether index was part of the last rendered frame.
func (c *Controller) Mounted(index int) bool {
	_, ok := c.mounted[index]
	return ok
}

// OnSizeObserved records the rendered height of a mounted message. Reports
// for another conversation, for an index that is no longer mounted, or for a
// slot now holding a different message are dropped. It returns true when the
// layout changed.
func (c *Controller) OnSizeObserved(conversationID string, index, height int) bool {
	if conversationID != c.conversationID {
		return false
	}
	if index < 0 || index >= len(c.entries) || height <= 0 {
		return false
	}
	id, ok := c.mounted[index]
	if !ok || id != c.entries[index].ID {
		return false
	}
	prev := c.store.Get(conversationID, index, len(c.entries))
	if !c.store.Update(conversationID, index, height, len(c.entries)) {
		return false
	}
	c.refreshExtent()
	return prev.Height != height
}
