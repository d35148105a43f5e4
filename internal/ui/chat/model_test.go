// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/kchat/internal/config"
	"github.com/jeranaias/kchat/internal/model"
	"github.com/jeranaias/kchat/internal/responder"
	"github.com/jeranaias/kchat/internal/session"
	"github.com/jeranaias/kchat/internal/ui/render"
	"github.com/jeranaias/kchat/internal/ui/styles"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// =============================================================================
// HELPERS
// =============================================================================

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.VList.ResizeThrottleMs = 0
	cfg.VList.ScrollThrottleMs = 0
	cfg.UI.Markdown = false
	return cfg
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	mgr := session.NewManager(session.DefaultConfig(), nil, nil)
	return New(Deps{
		Config:    testConfig(),
		Session:   mgr,
		Responder: responder.NewEcho(0),
		Theme:     styles.NewTheme(styles.ModeDark),
	})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func sized(t *testing.T, m Model, width, height int) Model {
	t.Helper()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: width, Height: height})
	return m
}

func keyMsg(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func send(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	return update(t, m, keyMsg(tea.KeyEnter))
}

// =============================================================================
// LAYOUT TESTS
// =============================================================================

func TestView_BeforeSize(t *testing.T) {
	m := newTestModel(t)
	assert.Equal(t, "Loading...", m.View())
}

func TestView_FillsWindow(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)

	view := m.View()
	lines := strings.Split(view, "\n")
	assert.Len(t, lines, 30)
	for i, line := range lines {
		assert.LessOrEqualf(t, lipgloss.Width(line), 100, "line %d", i)
	}
	assert.Contains(t, view, model.NewChatTitle)
}

func TestSidebar_HiddenWhenNarrow(t *testing.T) {
	m := sized(t, newTestModel(t), 120, 30)
	assert.Equal(t, 28, m.sidebarWidth)
	assert.Equal(t, 92, m.transcriptWidth)

	m = sized(t, m, 50, 30)
	assert.Equal(t, 0, m.sidebarWidth)
	assert.Equal(t, 50, m.transcriptWidth)
}

func TestSidebar_FullScreenToggle(t *testing.T) {
	m := sized(t, newTestModel(t), 120, 30)
	require.Equal(t, 28, m.sidebarWidth)

	m, _ = update(t, m, keyMsg(tea.KeyCtrlF))
	assert.Equal(t, 0, m.sidebarWidth)
	assert.Equal(t, 120, m.transcriptWidth)
	assert.Equal(t, 120-scrollbarCols, m.messageWidth())

	// Clicks where the sidebar was no longer select cards.
	m.session.NewChat()
	selected := m.session.Selected()
	m, _ = update(t, m, tea.MouseMsg{Type: tea.MouseLeft, X: 2, Y: headerRows + cardRows})
	assert.Equal(t, selected, m.session.Selected())

	// Full screen survives a resize.
	m = sized(t, m, 130, 30)
	assert.Equal(t, 0, m.sidebarWidth)

	m, _ = update(t, m, keyMsg(tea.KeyCtrlF))
	assert.Equal(t, 28, m.sidebarWidth)
	assert.Equal(t, 102, m.transcriptWidth)
}

func TestTranscript_HeightReachesController(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	assert.Equal(t, 30-headerRows-inputRows-statusRows, m.Controller().Viewport())
	assert.Equal(t, m.Controller().Viewport(), m.Frame().Viewport)
}

func TestTranscript_VirtualizesLargeConversation(t *testing.T) {
	m := newTestModel(t)
	m.session.NewMockChat(1000)
	m = sized(t, m, 100, 30)
	m, _ = update(t, m, nil)

	frame := m.Frame()
	require.NotEmpty(t, frame.Items)
	assert.Less(t, len(frame.Items), 30, "only the window is rendered")
	assert.Len(t, m.blocks, len(frame.Items))

	last := frame.Items[len(frame.Items)-1]
	assert.Equal(t, m.session.Current().Len()-1, last.Index)
	assert.Equal(t, 0, last.PositionOffset)
	assert.True(t, m.Controller().AtBottom())
}

func TestTranscript_MeasuredHeightsMatchBlocks(t *testing.T) {
	m := newTestModel(t)
	m.session.NewMockChat(50)
	m = sized(t, m, 100, 30)
	m, _ = update(t, m, nil)

	for _, it := range m.Frame().Items {
		assert.Truef(t, it.Measured, "item %d", it.Index)
		assert.Equalf(t, render.Height(m.blocks[it.Index]), it.Height, "item %d", it.Index)
	}
}

func TestTranscript_FrameCurrentWhenPassesRunOut(t *testing.T) {
	m := newTestModel(t)
	m.session.NewMockChat(50)
	m = sized(t, m, 100, 30)

	saved := maxLayoutPasses
	maxLayoutPasses = 1
	t.Cleanup(func() { maxLayoutPasses = saved })

	// Narrower messages wrap onto more rows than were measured.
	m = sized(t, m, 60, 30)

	frame := m.Frame()
	require.NotEmpty(t, frame.Items)
	assert.Equal(t, m.Controller().Render().Items, frame.Items)
	for i, it := range frame.Items {
		assert.Containsf(t, m.blocks, it.Index, "item %d", it.Index)
		if i > 0 {
			prev := frame.Items[i-1]
			assert.Equalf(t, prev.Top+prev.Height, it.Top, "item %d", it.Index)
		}
	}
}

func TestTranscript_ShortConversationSitsAtBottom(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)

	frame := m.Frame()
	require.Len(t, frame.Items, 1)
	assert.Negative(t, frame.WindowTop)

	lines := m.transcriptLines()
	assert.Empty(t, strings.TrimSpace(lines[0]), "space above a short list is blank")
	assert.Contains(t, strings.Join(lines, "\n"), model.Greeting)
}

// =============================================================================
// SCROLL TESTS
// =============================================================================

func TestScroll_KeysAndWheel(t *testing.T) {
	m := newTestModel(t)
	m.session.NewMockChat(200)
	m = sized(t, m, 100, 30)

	m, _ = update(t, m, keyMsg(tea.KeyUp))
	assert.Equal(t, mouseScrollRows, m.Controller().ScrollOffset())

	m, _ = update(t, m, tea.MouseMsg{Type: tea.MouseWheelUp})
	assert.Equal(t, 2*mouseScrollRows, m.Controller().ScrollOffset())

	m, _ = update(t, m, keyMsg(tea.KeyPgUp))
	assert.Equal(t, 2*mouseScrollRows+m.pageRows(), m.Controller().ScrollOffset())

	m, _ = update(t, m, keyMsg(tea.KeyCtrlHome))
	assert.True(t, m.Controller().AtTop())
	assert.Equal(t, 0, m.Frame().Items[0].Index)

	m, _ = update(t, m, keyMsg(tea.KeyCtrlEnd))
	assert.True(t, m.Controller().AtBottom())
}

func TestScroll_ThrottledDeliversFlush(t *testing.T) {
	mgr := session.NewManager(session.DefaultConfig(), nil, nil)
	cfg := testConfig()
	cfg.VList.ScrollThrottleMs = 1000
	m := New(Deps{Config: cfg, Session: mgr, Responder: responder.NewEcho(0)})
	mgr.NewMockChat(200)
	m = sized(t, m, 100, 30)

	m, cmd := update(t, m, keyMsg(tea.KeyUp))
	assert.Nil(t, cmd, "leading edge applies at once")
	assert.Equal(t, mouseScrollRows, m.Controller().ScrollOffset())

	m, cmd = update(t, m, keyMsg(tea.KeyUp))
	assert.NotNil(t, cmd, "trailing edge is scheduled")
	assert.Equal(t, mouseScrollRows, m.Controller().ScrollOffset())
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestSubmit_StreamsReply(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	conv := m.session.Current()

	m, cmd := send(t, m, "hello")
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())
	require.Equal(t, 3, conv.Len())
	reply := conv.Last()
	assert.True(t, reply.Connecting)
	assert.Equal(t, 1, m.streams.running())

	m, _ = update(t, m, responder.ChunkMsg{ConversationID: conv.ID, Fingerprint: reply.Fingerprint, Text: "hi "})
	m, _ = update(t, m, responder.ChunkMsg{ConversationID: conv.ID, Fingerprint: reply.Fingerprint, Text: "there"})
	assert.False(t, reply.Connecting)
	assert.Equal(t, "hi there", reply.Content)
	assert.True(t, m.Controller().AtBottom())

	m, cmd = update(t, m, responder.DoneMsg{ConversationID: conv.ID, Fingerprint: reply.Fingerprint})
	assert.False(t, reply.Streaming)
	assert.Equal(t, 0, m.streams.running())
	require.NotNil(t, cmd, "a default title asks for a new one")

	title, ok := cmd().(responder.TitleMsg)
	require.True(t, ok)
	m, _ = update(t, m, title)
	assert.Equal(t, "hello", conv.Title)
}

func TestSubmit_Empty(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, cmd := send(t, m, "   ")
	assert.Nil(t, cmd)
	assert.Equal(t, 1, m.session.Current().Len())
}

func TestSubmit_WhileStreaming(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, _ = send(t, m, "one")
	m, _ = send(t, m, "two")
	assert.Equal(t, 3, m.session.Current().Len())
	assert.Equal(t, "two", m.input.Value(), "input is kept")
	assert.Contains(t, m.Status(), "Wait")
}

func TestSubmit_Muted(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, _ = update(t, m, keyMsg(tea.KeyCtrlO))
	assert.True(t, m.session.Muted())

	m, _ = send(t, m, "quiet")
	assert.Equal(t, 2, m.session.Current().Len())
	assert.Equal(t, 0, m.streams.running())
}

func TestCancel_StopsReply(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, _ = send(t, m, "hello")
	conv := m.session.Current()
	reply := conv.Last()

	m, _ = update(t, m, keyMsg(tea.KeyEsc))
	assert.Equal(t, 0, m.streams.running())
	assert.Equal(t, "Reply stopped", m.Status())

	m, _ = update(t, m, responder.DoneMsg{ConversationID: conv.ID, Fingerprint: reply.Fingerprint, Err: context.Canceled})
	assert.False(t, reply.Streaming)
	assert.Equal(t, "Reply stopped", m.Status(), "cancellation is not an error")
}

func TestDone_ErrorShowsStatus(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, _ = send(t, m, "hello")
	conv := m.session.Current()

	m, cmd := update(t, m, responder.DoneMsg{ConversationID: conv.ID, Fingerprint: conv.Last().Fingerprint, Err: errors.New("boom")})
	assert.NotNil(t, cmd)
	assert.Contains(t, m.Status(), "boom")
	assert.True(t, m.statusIsErr)
}

func TestDelete_DropsLateChunks(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, _ = update(t, m, keyMsg(tea.KeyCtrlN))
	m, _ = send(t, m, "hello")
	conv := m.session.Current()
	fp := conv.Last().Fingerprint

	m, _ = update(t, m, keyMsg(tea.KeyCtrlX))
	assert.Equal(t, 1, m.session.List().Len())
	assert.Equal(t, 0, m.streams.running())

	m, cmd := update(t, m, responder.ChunkMsg{ConversationID: conv.ID, Fingerprint: fp, Text: "late"})
	assert.Nil(t, cmd)
	assert.Nil(t, m.session.Find(conv.ID))
}

func TestChats_NewAndCycle(t *testing.T) {
	m := sized(t, newTestModel(t), 120, 40)
	first := m.session.Current()

	m, _ = update(t, m, keyMsg(tea.KeyCtrlN))
	assert.Equal(t, 2, m.session.List().Len())
	assert.Equal(t, 0, m.session.Selected())
	assert.NotEqual(t, first.ID, m.session.Current().ID)
	assert.Equal(t, m.session.Current().ID, m.Controller().ConversationID())

	m, _ = update(t, m, keyMsg(tea.KeyTab))
	assert.Equal(t, first.ID, m.session.Current().ID)
	assert.Equal(t, first.ID, m.Controller().ConversationID())

	m, _ = update(t, m, keyMsg(tea.KeyShiftTab))
	assert.Equal(t, 0, m.session.Selected())
}

func TestChats_ClickSelectsCard(t *testing.T) {
	m := sized(t, newTestModel(t), 120, 40)
	m, _ = update(t, m, keyMsg(tea.KeyCtrlN))
	require.Equal(t, 0, m.session.Selected())

	m, _ = update(t, m, tea.MouseMsg{Type: tea.MouseLeft, X: 2, Y: headerRows + cardRows})
	assert.Equal(t, 1, m.session.Selected())
}

func TestUndo(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, _ = update(t, m, keyMsg(tea.KeyCtrlO))
	m, _ = send(t, m, "oops")
	require.Equal(t, 2, m.session.Current().Len())

	m, _ = update(t, m, keyMsg(tea.KeyCtrlZ))
	assert.Equal(t, 1, m.session.Current().Len())
	assert.Len(t, m.Frame().Items, 1)

	m, _ = update(t, m, keyMsg(tea.KeyCtrlZ))
	assert.Equal(t, "Nothing to undo", m.Status())
}

func TestSave_WithoutStore(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, _ = update(t, m, keyMsg(tea.KeyCtrlS))
	assert.True(t, m.statusIsErr)
}

func TestHelp_Toggle(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, _ = update(t, m, keyMsg(tea.KeyF1))
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "scroll up")

	m, _ = update(t, m, keyMsg(tea.KeyEsc))
	assert.False(t, m.showHelp)
}

func TestQuit(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, cmd := update(t, m, keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
	assert.Empty(t, m.View())
}

// =============================================================================
// STATUS AND RELOAD TESTS
// =============================================================================

func TestStatus_ClearedBySequence(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	m, _ = update(t, m, StatusMsg{Text: "first"})
	m, _ = update(t, m, StatusMsg{Text: "second"})

	m, _ = update(t, m, clearStatusMsg{seq: m.statusSeq - 1})
	assert.Equal(t, "second", m.Status(), "a stale clear is ignored")

	m, _ = update(t, m, clearStatusMsg{seq: m.statusSeq})
	assert.Empty(t, m.Status())
}

func TestReload_AppliesOptions(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)

	cfg := testConfig()
	cfg.VList.OverscanBefore = 7
	cfg.UI.ShowTimestamps = false
	cfg.Assistant.Mute = true
	m, _ = update(t, m, config.ReloadedMsg{Config: cfg})

	assert.Equal(t, 7, m.Controller().Options().OverscanBefore)
	assert.False(t, m.renderer.Options().ShowTimestamps)
	assert.True(t, m.session.Muted())
	assert.Equal(t, "Config reloaded", m.Status())
}

func TestReload_Error(t *testing.T) {
	m := sized(t, newTestModel(t), 100, 30)
	before := m.Controller().Options()

	m, _ = update(t, m, config.ReloadedMsg{Err: errors.New("bad toml")})
	assert.Equal(t, before, m.Controller().Options())
	assert.Contains(t, m.Status(), "bad toml")
}
