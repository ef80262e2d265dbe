package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppcrm/internal/inbox"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders conversation details. presence is the last known presence
// of the counterpart, possibly empty.
func (ci *ConversationInfo) Update(s inbox.Summary, presence string) {
	ci.Clear()

	chatType := "Direct Message"
	if s.IsGroup {
		chatType = "Group"
	}
	lastActive := formatTimestamp(s.LastMessageAt)
	if lastActive == "" {
		lastActive = "-"
	}

	rows := []struct{ key, value string }{
		{"Name", displayName(s)},
		{"Number", s.Counterpart},
		{"JID", s.JID},
		{"Type", chatType},
		{"Labels", strings.Join(s.Labels, ", ")},
		{"Unread", fmt.Sprint(s.UnreadCount)},
		{"Presence", presence},
		{"Last Active", lastActive},
		{"Last Message", s.LastMessage},
		{"Avatar", s.AvatarURL},
	}

	key := colorName(ci.theme.FgColor)
	val := colorName(ci.theme.CounterColor)
	_, _ = fmt.Fprintln(ci)
	for _, r := range rows {
		if r.value == "" {
			r.value = "-"
		}
		_, _ = fmt.Fprintf(ci, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", key, r.key+":", val, tview.Escape(singleLine(r.value)))
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(singleLine(displayName(s)))))
}
