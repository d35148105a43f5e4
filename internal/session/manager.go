// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/kchat/internal/config"
	"github.com/jeranaias/kchat/internal/model"
	"github.com/jeranaias/kchat/internal/storage"
	"github.com/jeranaias/kchat/internal/vlist"
)

// saveTimeout bounds a single save.
const saveTimeout = 10 * time.Second

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager owns the chat list, the per-conversation measurement cache and
// the persistence state of one running client.
//
// The chat list is mutated only from the Bubble Tea update goroutine; the
// mutex guards the dirty and save bookkeeping, which save commands touch
// from their own goroutine.
type Manager struct {
	mu sync.Mutex

	list    *model.ChatList
	measure *vlist.Store
	store   *storage.ChatListStore

	// Assistant behaviour
	mute         bool
	promptWindow int

	// Auto-save configuration
	autoSaveEnabled  bool
	autoSaveInterval time.Duration
	lastSave         time.Time
	lastSaveErr      error
	generation       uint64
	savedGeneration  uint64

	startTime time.Time
	now       func() time.Time
}

// Config holds configuration for the session manager.
type Config struct {
	// Mute appends user messages without requesting a reply.
	Mute bool

	// PromptWindow is how many recent messages are sent with a request.
	PromptWindow int

	// AutoSaveEnabled enables automatic saving
	AutoSaveEnabled bool

	// AutoSaveInterval is how often to auto-save (default: 30 seconds)
	AutoSaveInterval time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		PromptWindow:     5,
		AutoSaveEnabled:  true,
		AutoSaveInterval: 30 * time.Second,
	}
}

// ConfigFrom extracts the session settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Mute:             cfg.Assistant.Mute,
		PromptWindow:     cfg.Assistant.PromptWindow,
		AutoSaveEnabled:  cfg.Session.AutoSave,
		AutoSaveInterval: cfg.Session.AutoSaveInterval(),
	}
}

// NewManager creates a manager holding a fresh chat list. store may be nil,
// in which case nothing is persisted; measure may be nil, in which case a
// store with the default estimate is created.
func NewManager(cfg Config, store *storage.ChatListStore, measure *vlist.Store) *Manager {
	if measure == nil {
		measure = vlist.NewStore(vlist.DefaultOptions().EstimatedItemHeight)
	}
	m := &Manager{
		list:      model.NewChatList(),
		measure:   measure,
		store:     store,
		startTime: time.Now(),
		now:       time.Now,
	}
	m.applyConfig(cfg)
	m.lastSave = m.startTime
	return m
}

func (m *Manager) applyConfig(cfg Config) {
	if cfg.PromptWindow <= 0 {
		cfg.PromptWindow = DefaultConfig().PromptWindow
	}
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = DefaultConfig().AutoSaveInterval
	}
	m.mute = cfg.Mute
	m.promptWindow = cfg.PromptWindow
	m.autoSaveEnabled = cfg.AutoSaveEnabled
	m.autoSaveInterval = cfg.AutoSaveInterval
}

// SetConfig applies reloaded settings.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyConfig(cfg)
}

// Load replaces the chat list with the persisted one.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	list, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	m.list = list
	m.mu.Lock()
	m.savedGeneration = m.generation
	m.mu.Unlock()
	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// List returns the chat list.
func (m *Manager) List() *model.ChatList {
	return m.list
}

// Current returns the selected conversation.
func (m *Manager) Current() *model.Conversation {
	return m.list.Current()
}

// Selected returns the selected index.
func (m *Manager) Selected() int {
	return m.list.Selected
}

// Measure returns the measurement cache shared by every conversation.
func (m *Manager) Measure() *vlist.Store {
	return m.measure
}

// Muted reports whether replies are suppressed.
func (m *Manager) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mute
}

// SetMute toggles reply suppression.
func (m *Manager) SetMute(mute bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mute = mute
}

// StartTime returns when the manager was created.
func (m *Manager) StartTime() time.Time {
	return m.startTime
}

// =============================================================================
// CHAT LIST OPERATIONS
// =============================================================================

// NewChat prepends a fresh conversation and selects it.
func (m *Manager) NewChat() *model.Conversation {
	conv := m.list.NewChat(nil)
	m.MarkDirty()
	return conv
}

// NewMockChat prepends a conversation seeded with n mock messages.
func (m *Manager) NewMockChat(n int) *model.Conversation {
	conv := m.list.NewChat(model.NewMockConversation(n))
	conv.SetTitle("Mock " + conv.ID[:8])
	m.MarkDirty()
	return conv
}

// Select switches to the conversation at index.
func (m *Manager) Select(index int) bool {
	if index == m.list.Selected {
		return false
	}
	if !m.list.Select(index) {
		return false
	}
	m.MarkDirty()
	return true
}

// Delete removes the conversation at index and drops its measurement
// cache. The list never becomes empty.
func (m *Manager) Delete(index int) bool {
	removed, ok := m.list.Delete(index)
	if !ok {
		return false
	}
	m.measure.Evict(removed.ID)
	m.MarkDirty()
	return true
}

// Find returns the conversation with id, or nil.
func (m *Manager) Find(id string) *model.Conversation {
	_, conv := m.list.Find(id)
	return conv
}

// =============================================================================
// MESSAGES
// =============================================================================

// Request describes a reply to generate.
type Request struct {
	ConversationID string
	Fingerprint    string
	Prompts        []model.Prompt
}

// ErrStreaming is returned when a reply is still being streamed.
var ErrStreaming = errors.New("a reply is still streaming")

// ErrEmptyMessage is returned for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// Send appends a user message to the current conversation. Unless muted it
// also appends a pending assistant reply and returns the request for it;
// the prompts are taken before the pending reply is added.
func (m *Manager) Send(content string) (*Request, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	conv := m.Current()
	if conv.Streaming() {
		return nil, ErrStreaming
	}

	conv.Append(model.NewUserMessage(content))
	m.MarkDirty()

	m.mu.Lock()
	mute, window := m.mute, m.promptWindow
	m.mu.Unlock()
	if mute {
		return nil, nil
	}

	prompts := conv.Prompts(window)
	reply := model.NewPendingReply()
	conv.Append(reply)
	return &Request{
		ConversationID: conv.ID,
		Fingerprint:    reply.Fingerprint,
		Prompts:        prompts,
	}, nil
}

// reply finds the streaming target of a request. The conversation may have
// been deleted, or the message undone, since the request started.
func (m *Manager) reply(conversationID, fingerprint string) (*model.Conversation, *model.Message) {
	conv := m.Find(conversationID)
	if conv == nil {
		return nil, nil
	}
	_, msg := conv.MessageByFingerprint(fingerprint)
	return conv, msg
}

// AppendChunk appends streamed text to a pending reply. It reports whether
// the reply still exists.
func (m *Manager) AppendChunk(conversationID, fingerprint, chunk string) bool {
	_, msg := m.reply(conversationID, fingerprint)
	if msg == nil {
		return false
	}
	msg.AppendChunk(chunk)
	m.MarkDirty()
	return true
}

// FinishReply marks a reply complete. It returns the conversation when it
// still has the default title and should be named.
func (m *Manager) FinishReply(conversationID, fingerprint string, err error) (*model.Conversation, bool) {
	conv, msg := m.reply(conversationID, fingerprint)
	if msg == nil {
		return nil, false
	}
	msg.FinishStream(err)
	m.MarkDirty()
	if err != nil {
		log.Printf("session: reply %s failed: %v", fingerprint, err)
		return conv, false
	}
	return conv, conv.HasDefaultTitle()
}

// SetTitle renames a conversation.
func (m *Manager) SetTitle(conversationID, title string) bool {
	conv := m.Find(conversationID)
	if conv == nil {
		return false
	}
	conv.SetTitle(title)
	m.MarkDirty()
	return true
}

// Undo removes the newest exchange of the current conversation. Streaming
// replies are not undone.
func (m *Manager) Undo() int {
	conv := m.Current()
	if conv.Streaming() {
		return 0
	}
	n := conv.UndoLastExchange()
	if n > 0 {
		m.MarkDirty()
	}
	return n
}

// =============================================================================
// DIRTY TRACKING
// =============================================================================

// MarkDirty indicates the chat list has unsaved changes.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
}

// IsDirty returns whether the chat list has unsaved changes.
func (m *Manager) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation != m.savedGeneration
}

// ShouldAutoSave returns true if auto-save should trigger.
func (m *Manager) ShouldAutoSave() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.autoSaveEnabled || m.store == nil || m.generation == m.savedGeneration {
		return false
	}
	return m.now().Sub(m.lastSave) >= m.autoSaveInterval
}

// =============================================================================
// SAVING
// =============================================================================

// SavedMsg reports the outcome of a save.
type SavedMsg struct {
	Generation uint64
	Auto       bool
	Err        error
}

// Save writes the chat list synchronously.
func (m *Manager) Save(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	err := m.store.Save(ctx, m.list)
	m.HandleSaved(SavedMsg{Generation: gen, Err: err})
	return err
}

// SaveCmd snapshots the chat list and returns a command that writes it.
// Streaming may continue while the snapshot is written.
func (m *Manager) SaveCmd(auto bool) tea.Cmd {
	if m.store == nil {
		return nil
	}
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	snapshot := m.list.Clone()
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		return SavedMsg{Generation: gen, Auto: auto, Err: store.Save(ctx, snapshot)}
	}
}

// HandleSaved records a completed save. Changes made after the snapshot
// keep the list dirty.
func (m *Manager) HandleSaved(msg SavedMsg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSaveErr = msg.Err
	if msg.Err != nil {
		log.Printf("session: save failed: %v", msg.Err)
		return
	}
	m.lastSave = m.now()
	if msg.Generation > m.savedGeneration {
		m.savedGeneration = msg.Generation
	}
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent periodically to check session state.
type TickMsg struct {
	Time time.Time
}

// TickCmd returns a command that ticks periodically.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick starts an auto-save when one is due and keeps ticking.
func (m *Manager) HandleTick() tea.Cmd {
	if m.ShouldAutoSave() {
		// Push lastSave forward so a slow save is not started twice.
		m.mu.Lock()
		m.lastSave = m.now()
		m.mu.Unlock()
		return tea.Batch(m.SaveCmd(true), TickCmd())
	}
	return TickCmd()
}

// =============================================================================
// STATUS
// =============================================================================

// Status summarizes the session for the status bar.
type Status struct {
	Conversations int
	Selected      int
	Dirty         bool
	Muted         bool
	LastSave      time.Time
	SinceSave     time.Duration
	LastSaveErr   error
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Conversations: m.list.Len(),
		Selected:      m.list.Selected,
		Dirty:         m.generation != m.savedGeneration,
		Muted:         m.mute,
		LastSave:      m.lastSave,
		SinceSave:     m.now().Sub(m.lastSave),
		LastSaveErr:   m.lastSaveErr,
	}
}

// FormatDuration formats a duration for display (e.g., "5m 30s").
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return strconv.Itoa(int(d.Seconds())) + "s"
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return strconv.Itoa(m) + "m"
		}
		return strconv.Itoa(m) + "m " + strconv.Itoa(s) + "s"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if m == 0 {
		return strconv.Itoa(h) + "h"
	}
	return strconv.Itoa(h) + "h " + strconv.Itoa(m) + "m"
}
