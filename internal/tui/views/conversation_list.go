package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppcrm/internal/inbox"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the main inbox table.
type ConversationList struct {
	*tview.Table
	theme    *ui.Theme
	convs    []inbox.Summary
	shown    []inbox.Summary
	filter   string
	presence func(counterpart string) string
}

// NewConversationList creates the inbox table. presence may be nil.
func NewConversationList(theme *ui.Theme, presence func(string) string) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{Table: table, theme: theme, presence: presence}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "i", Description: "Info"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "0-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the listed conversations, keeping the cursor on the same
// counterpart when it is still visible.
func (cl *ConversationList) Update(convs []inbox.Summary) {
	selected := cl.SelectedCounterpart()
	cl.convs = convs
	cl.render()
	if selected == "" {
		return
	}
	for i, s := range cl.shown {
		if s.Counterpart == selected {
			cl.Select(i+1, 0)
			return
		}
	}
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

// Filter returns the active filter text.
func (cl *ConversationList) Filter() string { return cl.filter }

// matches reports whether s passes the filter. "#label" matches on labels
// only; anything else matches name, number or last message.
func (cl *ConversationList) matches(s inbox.Summary) bool {
	if cl.filter == "" {
		return true
	}
	if label, ok := strings.CutPrefix(cl.filter, "#"); ok {
		for _, l := range s.Labels {
			if strings.EqualFold(l, label) {
				return true
			}
		}
		return false
	}
	return containsFold(s.Name, cl.filter) ||
		containsFold(s.Counterpart, cl.filter) ||
		containsFold(s.LastMessage, cl.filter)
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" LABELS", 0},
		{" TIME", 0},
		{" TYPE", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	cl.shown = cl.shown[:0]
	for _, s := range cl.convs {
		if !cl.matches(s) {
			continue
		}
		cl.shown = append(cl.shown, s)
		row := len(cl.shown)

		name := displayName(s)
		if s.UnreadCount > 0 {
			name = fmt.Sprintf("(%d) %s", s.UnreadCount, name)
		}
		color := cl.theme.FgColor
		if s.UnreadCount > 0 {
			color = cl.theme.UnreadColor
		}

		preview := s.LastMessage
		if cl.presence != nil {
			if p := presenceLabel(cl.presence(s.Counterpart)); p != "" {
				preview = p
			}
		}

		chatType := "DM"
		if s.IsGroup {
			chatType = "GROUP"
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(singleLine(name))).SetExpansion(1).SetTextColor(color))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(singleLine(preview))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(strings.Join(s.Labels, ","))).SetTextColor(cl.theme.LabelColor))
		cl.SetCell(row, 3, tview.NewTableCell(formatTimestamp(s.LastMessageAt)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 4, tview.NewTableCell(chatType).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.shown), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// SelectedCounterpart returns the counterpart under the cursor.
func (cl *ConversationList) SelectedCounterpart() string {
	row, _ := cl.GetSelection()
	return cl.CounterpartAt(row)
}

// CounterpartAt returns the counterpart of the Nth visible row (1-based).
func (cl *ConversationList) CounterpartAt(n int) string {
	if n < 1 || n > len(cl.shown) {
		return ""
	}
	return cl.shown[n-1].Counterpart
}

func displayName(s inbox.Summary) string {
	if s.Name != "" {
		return s.Name
	}
	if s.Counterpart != "" {
		return s.Counterpart
	}
	return s.JID
}

func presenceLabel(p string) string {
	switch p {
	case rpc.PresenceComposing:
		return "typing..."
	case rpc.PresenceRecording:
		return "recording audio..."
	}
	return ""
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
