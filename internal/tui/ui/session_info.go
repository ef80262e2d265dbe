package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// SessionData is the daemon status shown in the header.
type SessionData struct {
	Session      string
	Phone        string
	Status       string
	Detail       string
	Connected    bool
	ChatCount    int64
	MessageCount int64
	OutboxQueued int64
	Uptime       time.Duration
}

// SessionInfo is the header panel with the daemon status.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates an empty panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)
	return &SessionInfo{TextView: tv, theme: theme}
}

// Update redraws the panel; nil clears it.
func (si *SessionInfo) Update(d *SessionData) {
	si.Clear()
	if d == nil {
		return
	}

	status := d.Status
	if d.Detail != "" && d.Detail != d.Status {
		status += " (" + d.Detail + ")"
	}
	statusColor := si.theme.FlashWarnColor
	if d.Connected {
		statusColor = si.theme.UnreadColor
	}
	phone := "-"
	if d.Phone != "" {
		phone = "+" + strings.TrimPrefix(d.Phone, "+")
	}
	volume := fmt.Sprintf("%d chats, %d msgs", d.ChatCount, d.MessageCount)
	if d.OutboxQueued > 0 {
		volume += fmt.Sprintf(", %d queued", d.OutboxQueued)
	}

	rows := []struct {
		label, value string
		color        string
	}{
		{"Session", d.Session, ""},
		{"Phone", phone, ""},
		{"Status", status, colorName(statusColor)},
		{"Inbox", volume, ""},
		{"Uptime", formatUptime(d.Uptime), ""},
	}
	label, value := colorName(si.theme.FgColor), colorName(si.theme.CounterColor)
	for i, r := range rows {
		c := value
		if r.color != "" {
			c = r.color
		}
		if i > 0 {
			_, _ = fmt.Fprint(si, "\n")
		}
		_, _ = fmt.Fprintf(si, "[%s::b]%-8s[-:-:-] [%s]%s[-]", label, r.label+":", c, tview.Escape(r.value))
	}
}

func formatUptime(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	case d >= time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
