package ui

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func TestPagesStack(t *testing.T) {
	p := NewPages()
	for _, name := range []string{"Conversations", "Messages", "Details", "Search"} {
		p.AddPage(name, tview.NewBox(), true, false)
	}
	var seen [][]string
	p.SetOnChange(func(stack []string) { seen = append(seen, stack) })

	p.Reset("Conversations")
	p.Push("Messages")
	p.Push("Details")
	if got := p.Stack(); !slices.Equal(got, []string{"Conversations", "Messages", "Details"}) {
		t.Fatalf("stack = %v", got)
	}

	p.Push("Messages")
	if got := p.Stack(); !slices.Equal(got, []string{"Conversations", "Messages"}) {
		t.Errorf("re-push stack = %v", got)
	}

	if top := p.Pop(); top != "Messages" || p.Current() != "Conversations" {
		t.Errorf("Pop = %q, current = %q", top, p.Current())
	}
	if top := p.Pop(); top != "" || p.CanPop() {
		t.Errorf("Pop on root = %q, CanPop = %v", top, p.CanPop())
	}
	if len(seen) != 5 {
		t.Errorf("change notifications = %d, want 5", len(seen))
	}
}

func TestFlashModel(t *testing.T) {
	f := NewFlashModel()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	if _, ok := f.Current(); ok {
		t.Fatal("new model has a notice")
	}

	f.Err(errors.New("send failed"))
	msg, ok := f.Current()
	if !ok || msg.Level != FlashErr || msg.Text != "send failed" {
		t.Fatalf("notice = %+v, %v", msg, ok)
	}
	select {
	case <-f.Changed():
	default:
		t.Fatal("no change signal")
	}

	now = now.Add(flashTTL[FlashErr])
	if _, ok := f.Current(); ok {
		t.Error("expired notice still live")
	}

	f.InfoFor("saved", time.Minute)
	f.Warn("retrying")
	if msg, _ := f.Current(); msg.Text != "retrying" || msg.Level != FlashWarn {
		t.Errorf("latest notice = %+v", msg)
	}
	f.Clear()
	if _, ok := f.Current(); ok {
		t.Error("Clear kept the notice")
	}
}

func TestFlashBar(t *testing.T) {
	f := NewFlashModel()
	bar := NewFlashBar(DefaultTheme())

	f.Warn("no [red]match")
	bar.Show(f)
	if got := bar.GetText(true); !strings.Contains(got, "⚠ no [red]match") {
		t.Errorf("bar = %q", got)
	}
	f.Clear()
	bar.Show(f)
	if got := bar.GetText(true); got != "" {
		t.Errorf("bar after clear = %q", got)
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	var submitted []string
	p.SetOnSubmit(func(mode PromptMode, text string) {
		if mode == PromptCommand {
			submitted = append(submitted, text)
		}
	})

	p.Activate(PromptCommand)
	for _, cmd := range []string{"chat alice", "search invoice", "search invoice"} {
		p.SetText(cmd)
		p.InputHandler()(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), func(tview.Primitive) {})
	}
	if len(submitted) != 3 {
		t.Fatalf("submitted = %v", submitted)
	}
	if h := p.History(); !slices.Equal(h, []string{"chat alice", "search invoice"}) {
		t.Errorf("history = %v", h)
	}

	p.Activate(PromptCommand)
	p.recall(-1)
	if p.GetText() != "search invoice" {
		t.Errorf("recall -1 = %q", p.GetText())
	}
	p.recall(-1)
	p.recall(-1)
	if p.GetText() != "chat alice" {
		t.Errorf("recall past oldest = %q", p.GetText())
	}
	p.recall(1)
	p.recall(1)
	if p.GetText() != "" {
		t.Errorf("recall past newest = %q", p.GetText())
	}

	p.SetText("chat alice")
	p.InputHandler()(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), func(tview.Primitive) {})
	if h := p.History(); !slices.Equal(h, []string{"search invoice", "chat alice"}) {
		t.Errorf("history after repeat = %v", h)
	}
}

func TestPromptCompletions(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.SetCompletions([]string{"chat", "search", "label", "labels"})

	p.Activate(PromptCommand)
	tests := map[string][]string{
		"la":      {"label", "labels"},
		"LA":      {"label", "labels"},
		"label":   {"labels"},
		"s":       {"search"},
		"chat al": nil,
		"":        nil,
		"x":       nil,
	}
	for in, want := range tests {
		if got := p.complete(in); !slices.Equal(got, want) {
			t.Errorf("complete(%q) = %v, want %v", in, got, want)
		}
	}

	p.Activate(PromptFilter)
	if got := p.complete("la"); got != nil {
		t.Errorf("filter mode completions = %v", got)
	}
	if p.GetLabel() != "/" {
		t.Errorf("filter label = %q", p.GetLabel())
	}
}

func TestMenuColumns(t *testing.T) {
	m := NewMenu(DefaultTheme(), 2)
	m.Update([]MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "1-9", Description: "Jump", Numeric: true},
		{Key: "i", Description: "Info"},
		{Key: "/", Description: "Filter"},
	})

	want := map[[2]int]string{
		{0, 0}: "<1-9>",
		{0, 1}: "<Enter>",
		{1, 1}: "<i>",
		{0, 2}: "</>",
	}
	for pos, key := range want {
		cell := m.GetCell(pos[0], pos[1])
		if cell == nil || !strings.Contains(cell.Text, key) {
			t.Errorf("cell %v = %+v, want %s", pos, cell, key)
		}
	}
	if cols := m.GetColumnCount(); cols != 3 {
		t.Errorf("columns = %d, want 3", cols)
	}
}

func TestCrumbsTruncate(t *testing.T) {
	c := NewCrumbs(DefaultTheme())
	c.Update([]string{"Conversations", "Maria Aparecida dos Santos Oliveira"})

	text := c.GetText(true)
	if !strings.Contains(text, "Conversations") {
		t.Errorf("crumbs = %q", text)
	}
	if !strings.Contains(text, "Maria Aparecida dos San…") {
		t.Errorf("long crumb not truncated: %q", text)
	}
	if got := truncate("short", 24); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}

func TestSessionInfo(t *testing.T) {
	si := NewSessionInfo(DefaultTheme())
	si.Update(&SessionData{
		Session: "work", Phone: "5511999990000", Status: "CONNECTED", Detail: "Ready",
		Connected: true, ChatCount: 12, MessageCount: 340, OutboxQueued: 2,
		Uptime: 26 * time.Hour,
	})
	text := si.GetText(true)
	for _, want := range []string{"work", "+5511999990000", "CONNECTED (Ready)", "12 chats, 340 msgs, 2 queued", "1d2h"} {
		if !strings.Contains(text, want) {
			t.Errorf("panel missing %q:\n%s", want, text)
		}
	}

	for d, want := range map[time.Duration]string{
		90 * time.Second:              "1m",
		2*time.Hour + 5*time.Minute:   "2h5m",
		49*time.Hour + 30*time.Minute: "2d1h",
	} {
		if got := formatUptime(d); got != want {
			t.Errorf("formatUptime(%v) = %q, want %q", d, got, want)
		}
	}
}
