// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/kchat/internal/config"
	"github.com/jeranaias/kchat/internal/responder"
	"github.com/jeranaias/kchat/internal/session"
	"github.com/jeranaias/kchat/internal/ui/render"
	"github.com/jeranaias/kchat/internal/ui/styles"
	"github.com/jeranaias/kchat/internal/vlist"
)

// statusTimeout is how long transient status messages stay visible.
const statusTimeout = 4 * time.Second

// quitSaveTimeout bounds the save performed on quit.
const quitSaveTimeout = 5 * time.Second

// Deps are the collaborators of a Model. Config, Session and Responder are
// required; Theme defaults to the configured theme and Watcher may be nil.
type Deps struct {
	Config    *config.Config
	Session   *session.Manager
	Responder responder.Responder
	Theme     *styles.Theme
	Watcher   *config.Watcher
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the main chat model.
type Model struct {
	cfg       *config.Config
	theme     *styles.Theme
	session   *session.Manager
	responder responder.Responder
	watcher   *config.Watcher

	ctrl     *vlist.Controller
	renderer *render.Renderer
	streams  *cancelManager

	// Widgets
	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    KeyMap

	// Layout
	width           int
	height          int
	sidebarWidth    int
	transcriptWidth int
	fullScreen      bool
	showHelp        bool

	// Status line
	status      string
	statusIsErr bool
	statusSeq   int

	// Last layout pass
	frame   vlist.Frame
	blocks  map[int]string
	entries entriesKey

	quitting bool
}

// New creates a chat model.
func New(d Deps) Model {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := d.Theme
	if theme == nil {
		theme = styles.NewTheme(cfg.UI.Theme)
	}

	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = styles.DotsSpinner.Spinner()
	sp.Style = theme.Connecting

	h := help.New()
	h.Styles.ShortKey = theme.Help
	h.Styles.ShortDesc = theme.Help
	h.Styles.FullKey = theme.InputPrompt
	h.Styles.FullDesc = theme.Help

	m := Model{
		cfg:       cfg,
		theme:     theme,
		session:   d.Session,
		responder: d.Responder,
		watcher:   d.Watcher,
		ctrl:      vlist.NewController(d.Session.Measure(), vlistOptions(cfg)),
		renderer: render.New(theme, render.Options{
			Markdown:       cfg.UI.Markdown,
			ShowTimestamps: cfg.UI.ShowTimestamps,
		}),
		streams: newCancelManager(),
		input:   ti,
		spinner: sp,
		help:    h,
		keys:    DefaultKeyMap(),
		blocks:  make(map[int]string),
	}
	m.computeSizes()
	m.relayout()
	return m
}

// vlistOptions maps the [vlist] config section onto controller options.
func vlistOptions(cfg *config.Config) vlist.Options {
	return vlist.Options{
		EstimatedItemHeight:   cfg.VList.EstimatedItemHeight,
		OverscanBefore:        cfg.VList.OverscanBefore,
		OverscanAfter:         cfg.VList.OverscanAfter,
		ResizeThrottle:        cfg.VList.ResizeThrottle(),
		ScrollThrottle:        cfg.VList.ScrollThrottle(),
		DefaultViewportHeight: cfg.VList.DefaultViewportHeight,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		session.TickCmd(),
		listenForReload(m.watcher),
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		cmds = append(cmds, m.handleResize(msg))

	case vlist.FlushMsg:
		m.ctrl.Flush(msg.Kind)

	case tea.KeyMsg:
		cmd, handled := m.handleKey(msg)
		if m.quitting {
			return m, cmd
		}
		cmds = append(cmds, cmd)
		if !handled {
			var inputCmd tea.Cmd
			m.input, inputCmd = m.input.Update(msg)
			cmds = append(cmds, inputCmd)
		}

	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg))

	case responder.ChunkMsg:
		if m.session.AppendChunk(msg.ConversationID, msg.Fingerprint, msg.Text) {
			cmds = append(cmds, msg.Next())
		} else {
			// Deleted or undone while streaming.
			m.streams.cancel(msg.Fingerprint)
		}

	case responder.DoneMsg:
		cmds = append(cmds, m.handleDone(msg))

	case responder.TitleMsg:
		if msg.Err != nil {
			log.Printf("chat: title for %s: %v", msg.ConversationID, msg.Err)
		} else if msg.Title != "" {
			m.session.SetTitle(msg.ConversationID, msg.Title)
		}

	case session.TickMsg:
		cmds = append(cmds, m.session.HandleTick())

	case session.SavedMsg:
		m.session.HandleSaved(msg)
		if msg.Err != nil {
			cmds = append(cmds, m.setStatus("Save failed: "+msg.Err.Error(), true))
		} else if !msg.Auto {
			cmds = append(cmds, m.setStatus("Saved", false))
		}

	case config.ReloadedMsg:
		cmds = append(cmds, m.handleReload(msg), listenForReload(m.watcher))

	case spinner.TickMsg:
		if m.streams.running() > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case StatusMsg:
		cmds = append(cmds, m.setStatus(msg.Text, msg.Err))

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusIsErr = false
		}
	}

	m.relayout()
	return m, tea.Batch(cmds...)
}

// =============================================================================
// RESIZE
// =============================================================================

// handleResize splits the window between the sidebar and the transcript
// and reports the transcript height to the controller.
func (m *Model) handleResize(msg tea.WindowSizeMsg) tea.Cmd {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.computeSizes()
	return m.ctrl.Resize(m.transcriptHeight())
}

// =============================================================================
// KEYS
// =============================================================================

// handleKey runs the action bound to msg. It reports whether the key was
// consumed; unconsumed keys go to the input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit(), true

	case key.Matches(msg, m.keys.Submit):
		return m.submit(), true

	case key.Matches(msg, m.keys.Cancel):
		if m.showHelp {
			m.showHelp = false
			return nil, true
		}
		return m.cancelCurrent(), true

	case key.Matches(msg, m.keys.Up):
		return m.ctrl.ScrollBy(mouseScrollRows), true
	case key.Matches(msg, m.keys.Down):
		return m.ctrl.ScrollBy(-mouseScrollRows), true
	case key.Matches(msg, m.keys.PageUp):
		return m.ctrl.ScrollBy(m.pageRows()), true
	case key.Matches(msg, m.keys.PageDown):
		return m.ctrl.ScrollBy(-m.pageRows()), true
	case key.Matches(msg, m.keys.Top):
		m.ctrl.ScrollToTop()
		return nil, true
	case key.Matches(msg, m.keys.Bottom):
		m.ctrl.ScrollToBottom()
		return nil, true

	case key.Matches(msg, m.keys.NextChat):
		m.cycleChat(1)
		return nil, true
	case key.Matches(msg, m.keys.PrevChat):
		m.cycleChat(-1)
		return nil, true
	case key.Matches(msg, m.keys.NewChat):
		m.session.NewChat()
		return m.setStatus("New chat", false), true
	case key.Matches(msg, m.keys.DeleteChat):
		return m.deleteCurrent(), true

	case key.Matches(msg, m.keys.Undo):
		if n := m.session.Undo(); n == 0 {
			return m.setStatus("Nothing to undo", false), true
		}
		return nil, true
	case key.Matches(msg, m.keys.Save):
		if cmd := m.session.SaveCmd(false); cmd != nil {
			return cmd, true
		}
		return m.setStatus("No storage configured", true), true
	case key.Matches(msg, m.keys.ToggleMute):
		muted := !m.session.Muted()
		m.session.SetMute(muted)
		if muted {
			return m.setStatus("Assistant muted", false), true
		}
		return m.setStatus("Assistant unmuted", false), true
	case key.Matches(msg, m.keys.FullScreen):
		m.fullScreen = !m.fullScreen
		m.computeSizes()
		return nil, true
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return nil, true
	}
	return nil, false
}

// pageRows is the scroll distance of one page, keeping two rows of context.
func (m *Model) pageRows() int {
	return max(1, m.ctrl.Viewport()-2)
}

// =============================================================================
// MOUSE
// =============================================================================

// mouseScrollRows is the number of rows one wheel notch or arrow key moves.
const mouseScrollRows = 3

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	switch msg.Type {
	case tea.MouseWheelUp:
		return m.ctrl.ScrollBy(mouseScrollRows)
	case tea.MouseWheelDown:
		return m.ctrl.ScrollBy(-mouseScrollRows)
	case tea.MouseLeft:
		if m.sidebarWidth > 0 && msg.X < m.sidebarWidth {
			if idx, ok := m.cardAt(msg.Y); ok {
				m.session.Select(idx)
			}
		}
	}
	return nil
}

// =============================================================================
// ACTIONS
// =============================================================================

// submit sends the input text and starts the reply stream.
func (m *Model) submit() tea.Cmd {
	content := m.input.Value()
	req, err := m.session.Send(content)
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		return nil
	case errors.Is(err, session.ErrStreaming):
		return m.setStatus("Wait for the reply to finish (Esc stops it)", true)
	case err != nil:
		return m.setStatus(err.Error(), true)
	}

	m.input.Reset()
	m.ctrl.ScrollToBottom()
	if req == nil {
		return nil
	}

	ctx := m.streams.start(context.Background(), req.Fingerprint)
	return tea.Batch(
		responder.Start(ctx, m.responder, req.ConversationID, req.Fingerprint, req.Prompts),
		m.spinner.Tick,
	)
}

// handleDone completes a reply and asks for a title when the conversation
// still has the default one.
func (m *Model) handleDone(msg responder.DoneMsg) tea.Cmd {
	m.streams.done(msg.Fingerprint)
	err := msg.Err
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	conv, wantTitle := m.session.FinishReply(msg.ConversationID, msg.Fingerprint, err)
	if conv == nil {
		return nil
	}
	if err != nil {
		return m.setStatus("Reply failed: "+err.Error(), true)
	}
	if !wantTitle {
		return nil
	}
	return responder.TitleCmd(context.Background(), m.responder, conv.ID, conv.Prompts(conv.Len()))
}

// cancelCurrent stops the streaming reply of the current conversation.
func (m *Model) cancelCurrent() tea.Cmd {
	conv := m.session.Current()
	last := conv.Last()
	if last == nil || !last.Streaming {
		return nil
	}
	if m.streams.cancel(last.Fingerprint) {
		return m.setStatus("Reply stopped", false)
	}
	return nil
}

// deleteCurrent removes the selected conversation, stopping its replies.
func (m *Model) deleteCurrent() tea.Cmd {
	conv := m.session.Current()
	for _, msg := range conv.Messages {
		if msg.Streaming {
			m.streams.cancel(msg.Fingerprint)
		}
	}
	if !m.session.Delete(m.session.Selected()) {
		return nil
	}
	return m.setStatus("Chat deleted", false)
}

// cycleChat moves the selection by delta, wrapping around.
func (m *Model) cycleChat(delta int) {
	n := m.session.List().Len()
	if n < 2 {
		return
	}
	next := ((m.session.Selected()+delta)%n + n) % n
	m.session.Select(next)
}

// quit saves synchronously and exits.
func (m *Model) quit() tea.Cmd {
	m.quitting = true
	m.streams.cancelAll()
	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			log.Printf("chat: closing config watcher: %v", err)
		}
	}
	if m.session.IsDirty() {
		ctx, cancel := context.WithTimeout(context.Background(), quitSaveTimeout)
		defer cancel()
		if err := m.session.Save(ctx); err != nil {
			log.Printf("chat: save on quit: %v", err)
		}
	}
	return tea.Quit
}

// handleReload applies a reloaded configuration.
func (m *Model) handleReload(msg config.ReloadedMsg) tea.Cmd {
	if msg.Err != nil {
		return m.setStatus("Config reload failed: "+msg.Err.Error(), true)
	}
	cfg := msg.Config
	if cfg.UI.Theme != m.cfg.UI.Theme {
		m.theme = styles.NewTheme(cfg.UI.Theme)
		m.theme.SetSize(m.width, m.height)
		m.renderer.SetTheme(m.theme)
		m.input.PromptStyle = m.theme.InputPrompt
		m.spinner.Style = m.theme.Connecting
	}
	m.cfg = cfg
	m.ctrl.SetOptions(vlistOptions(cfg))
	m.renderer.SetOptions(render.Options{
		Markdown:       cfg.UI.Markdown,
		ShowTimestamps: cfg.UI.ShowTimestamps,
	})
	m.session.SetConfig(session.ConfigFrom(cfg))
	var resize tea.Cmd
	if m.width > 0 && m.height > 0 {
		resize = m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})
	}
	if m.cfg.Logging.Debug && m.watcher != nil {
		log.Printf("chat: config reloaded from %s", m.watcher.Path())
	}
	return tea.Batch(resize, m.setStatus("Config reloaded", false))
}

// setStatus shows a transient status line.
func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.status = text
	m.statusIsErr = isErr
	seq := m.statusSeq
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Controller returns the transcript controller.
func (m Model) Controller() *vlist.Controller {
	return m.ctrl
}

// Frame returns the frame of the last layout pass.
func (m Model) Frame() vlist.Frame {
	return m.frame
}

// Status returns the status line text.
func (m Model) Status() string {
	return m.status
}
