// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vlist

import (
	"sync"
)

// DefaultEstimatedItemHeight is the fallback height, in rows, of a message
// that has not been measured yet.
const DefaultEstimatedItemHeight = 6

// =============================================================================
// MEASURED ITEM
// =============================================================================

// MeasuredItem is the placement of one message within one conversation.
type MeasuredItem struct {
	// Height is either the estimate or the last observed height.
	Height int

	// Offset is the distance from the top of the list to the item's top edge.
	Offset int

	// Measured is true once a real height has been observed.
	Measured bool

	// hinted is set once a size hint has been applied.
	hinted bool
}

// Bottom returns the row just below the item.
func (m MeasuredItem) Bottom() int {
	return m.Offset + m.Height
}

// =============================================================================
// PER-CONVERSATION STATE
// =============================================================================

// Info is the measurement state of a single conversation.
//
// items is dense over [0, extentIndex]; indices past extentIndex have no
// placement yet. Info is not safe for concurrent use on its own; Store
// serializes access.
type Info struct {
	items         []MeasuredItem
	extentIndex   int
	virtualExtent int
	estimate      int
	itemCount     int
}

func newInfo(itemCount, estimate int) *Info {
	if itemCount < 0 {
		itemCount = 0
	}
	return &Info{
		extentIndex:   -1,
		virtualExtent: itemCount * estimate,
		estimate:      estimate,
		itemCount:     itemCount,
	}
}

// ExtentIndex returns the highest placed index, or -1.
func (in *Info) ExtentIndex() int {
	return in.extentIndex
}

// ItemCount returns the item count last accounted for.
func (in *Info) ItemCount() int {
	return in.itemCount
}

// VirtualExtent returns the current total height of the list.
func (in *Info) VirtualExtent() int {
	return in.virtualExtent
}

// get returns the placement of index, extending the placed range up to it
// if needed. The caller clamps index.
func (in *Info) get(index int) MeasuredItem {
	if index < 0 {
		return MeasuredItem{}
	}
	if index <= in.extentIndex {
		return in.items[index]
	}

	offset := 0
	if in.extentIndex >= 0 {
		offset = in.items[in.extentIndex].Bottom()
	}
	for i := in.extentIndex + 1; i <= index; i++ {
		in.items = append(in.items, MeasuredItem{Height: in.estimate, Offset: offset})
		offset += in.estimate
	}
	in.extentIndex = index
	return in.items[index]
}

// update stores an observed height and re-accumulates the offsets past index.
func (in *Info) update(index, height, itemCount int) bool {
	if index < 0 || index >= itemCount || height <= 0 {
		return false
	}

	cur := in.get(index)
	if cur.Measured && cur.Height == height {
		return false
	}

	in.items[index].Measured = true
	in.resize(index, height, itemCount)
	return true
}

// hint applies a predicted height to an item that was never measured or
// hinted. The item stays unmeasured. It returns true when the height changed.
func (in *Info) hint(index, height, itemCount int) bool {
	if index < 0 || index >= itemCount || height <= 0 {
		return false
	}

	cur := in.get(index)
	if cur.Measured || cur.hinted {
		return false
	}
	in.items[index].hinted = true
	if cur.Height == height {
		return false
	}
	in.resize(index, height, itemCount)
	return true
}

// resize overwrites the height of a placed item and re-accumulates the
// offsets past it.
func (in *Info) resize(index, height, itemCount int) {
	old := in.items[index].Height
	in.items[index].Height = height

	// Heights are authoritative, so this is correct for any report order.
	offset := in.items[index].Bottom()
	for i := index + 1; i <= in.extentIndex; i++ {
		in.items[i].Offset = offset
		offset += in.items[i].Height
	}

	if in.extentIndex >= itemCount-1 {
		in.virtualExtent = in.items[itemCount-1].Bottom()
	} else {
		in.virtualExtent += height - old
	}
}

// appendEstimate places countDelta new items at the newest end.
func (in *Info) appendEstimate(newItemCount, countDelta int) {
	if countDelta < 0 {
		in.truncate(newItemCount)
		return
	}
	if countDelta == 0 {
		return
	}

	oldCount := newItemCount - countDelta
	if in.extentIndex >= 0 && in.extentIndex == oldCount-1 {
		in.get(newItemCount - 1)
	}
	in.virtualExtent += countDelta * in.estimate
	in.itemCount = newItemCount
}

// truncate drops placements past itemCount and recomputes the extent.
func (in *Info) truncate(itemCount int) {
	if itemCount < 0 {
		itemCount = 0
	}
	if in.extentIndex >= itemCount {
		in.items = in.items[:itemCount]
		in.extentIndex = itemCount - 1
	}
	in.virtualExtent = in.extentFor(itemCount)
	in.itemCount = itemCount
}

// extentFor recomputes the total height from placed items plus estimates.
func (in *Info) extentFor(itemCount int) int {
	if in.extentIndex < 0 {
		return itemCount * in.estimate
	}
	unplaced := itemCount - 1 - in.extentIndex
	if unplaced < 0 {
		unplaced = 0
	}
	return in.items[in.extentIndex].Bottom() + unplaced*in.estimate
}

// =============================================================================
// STORE
// =============================================================================

// Store holds one Info per conversation id.
//
// A Store is owned by the session that created it and lives as long as that
// session; conversations that are deleted must be removed with Evict.
// Thread-safe.
type Store struct {
	mu       sync.Mutex
	estimate int
	infos    map[string]*Info
}

// NewStore creates an empty store. A non-positive estimate falls back to
// DefaultEstimatedItemHeight.
func NewStore(estimatedItemHeight int) *Store {
	if estimatedItemHeight <= 0 {
		estimatedItemHeight = DefaultEstimatedItemHeight
	}
	return &Store{
		estimate: estimatedItemHeight,
		infos:    make(map[string]*Info),
	}
}

// EstimatedItemHeight returns the height used for unmeasured items.
func (s *Store) EstimatedItemHeight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimate
}

// SetEstimatedItemHeight changes the estimate for conversations created
// afterwards. Existing placements keep their heights.
func (s *Store) SetEstimatedItemHeight(h int) {
	if h <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimate = h
}

// getOrCreate must be called with s.mu held.
func (s *Store) getOrCreate(conversationID string, itemCount int) *Info {
	in, ok := s.infos[conversationID]
	if !ok {
		in = newInfo(itemCount, s.estimate)
		s.infos[conversationID] = in
	}
	return in
}

// GetOrCreate returns the conversation's state, creating it on first access
// with an extent of itemCount estimated items.
func (s *Store) GetOrCreate(conversationID string, itemCount int) *Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(conversationID, itemCount)
}

// Has reports whether the conversation has measurement state.
func (s *Store) Has(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.infos[conversationID]
	return ok
}

// Evict discards the measurement state of a conversation.
func (s *Store) Evict(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.infos, conversationID)
}

// Len returns the number of conversations with measurement state.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.infos)
}

// Get returns the placement of index, extending the placed range lazily.
// index is clamped into [0, itemCount-1]; an empty list yields the zero item.
func (s *Store) Get(conversationID string, index, itemCount int) MeasuredItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if itemCount <= 0 {
		return MeasuredItem{}
	}
	in := s.getOrCreate(conversationID, itemCount)
	return in.get(clamp(index, 0, itemCount-1))
}

// Update records an observed height for index. It returns false when the
// report was dropped or changed nothing.
func (s *Store) Update(conversationID string, index, observedHeight, itemCount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.getOrCreate(conversationID, itemCount)
	return in.update(index, observedHeight, itemCount)
}

// Hint applies a predicted height to an item that has neither been measured
// nor hinted before. It returns true when the layout changed.
func (s *Store) Hint(conversationID string, index, height, itemCount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.getOrCreate(conversationID, itemCount)
	return in.hint(index, height, itemCount)
}

// AppendEstimate accounts for countDelta items added at the newest end. A
// negative delta drops placements past newItemCount.
func (s *Store) AppendEstimate(conversationID string, newItemCount, countDelta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.infos[conversationID]
	if !ok {
		s.infos[conversationID] = newInfo(newItemCount, s.estimate)
		return
	}
	in.appendEstimate(newItemCount, countDelta)
}

// Sync reconciles the conversation with itemCount, treating the difference
// from the last known count as an append or a truncation. Used when a
// conversation is reopened after changing off-screen.
func (s *Store) Sync(conversationID string, itemCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.getOrCreate(conversationID, itemCount)
	if delta := itemCount - in.itemCount; delta != 0 {
		in.appendEstimate(itemCount, delta)
	}
}

// Resolve computes the render range and returns the placements of every
// index in it together with the virtual extent, in one critical section.
func (s *Store) Resolve(conversationID string, itemCount, viewportHeight, scrolledOffset, overscanBefore, overscanAfter int) (Range, []MeasuredItem, int) {
	if itemCount <= 0 {
		return EmptyRange, nil, 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.getOrCreate(conversationID, itemCount)
	r := in.renderRange(itemCount, viewportHeight, scrolledOffset, overscanBefore, overscanAfter)
	placed := make([]MeasuredItem, 0, r.Len())
	for i := r.Start; i <= r.End; i++ {
		placed = append(placed, in.get(i))
	}
	return r, placed, in.virtualExtent
}

// Extent returns the virtual extent of the conversation.
func (s *Store) Extent(conversationID string, itemCount int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(conversationID, itemCount).virtualExtent
}

// Snapshot returns a copy of the placed items of a conversation.
func (s *Store) Snapshot(conversationID string) []MeasuredItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.infos[conversationID]
	if !ok {
		return nil
	}
	out := make([]MeasuredItem, len(in.items))
	copy(out, in.items)
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
