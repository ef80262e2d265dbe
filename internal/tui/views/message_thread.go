package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppcrm/internal/inbox"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays one conversation and a composer.
type MessageThread struct {
	*tview.Flex
	theme       *ui.Theme
	messages    *tview.TextView
	composer    *tview.InputField
	chatName    string
	counterpart string
	hasMore     bool
	banner      string
	onSend      func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus, /file <path> to attach) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := composer.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		mt.onSend(text)
		composer.SetText("")
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.chatName != "" {
		return mt.chatName
	}
	return "Messages"
}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "m", Description: "Older"},
		{Key: "r", Description: "Reload"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Reset points the thread at a new conversation and clears what is shown.
func (mt *MessageThread) Reset(counterpart, name string) {
	mt.counterpart = counterpart
	mt.chatName = name
	mt.hasMore = false
	mt.banner = ""
	mt.messages.Clear()
	mt.composer.SetText("")
	mt.setTitle("")
}

// Counterpart returns the conversation shown.
func (mt *MessageThread) Counterpart() string {
	return mt.counterpart
}

// SetPresence shows a typing or recording hint next to the name.
func (mt *MessageThread) SetPresence(p string) {
	mt.setTitle(presenceLabel(p))
}

func (mt *MessageThread) setTitle(extra string) {
	title := " " + tview.Escape(singleLine(mt.chatName)) + " "
	if extra != "" {
		title += "[::d]" + extra + "[-:-:-] "
	}
	mt.messages.SetTitle(title)
}

// SetBanner shows a one-line notice above the messages, such as a load
// failure. An empty banner hides it.
func (mt *MessageThread) SetBanner(text string) {
	mt.banner = text
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update redraws the thread and scrolls to the newest message. msgs are
// oldest first.
func (mt *MessageThread) Update(msgs []inbox.Message, hasMore bool) {
	mt.hasMore = hasMore
	mt.messages.Clear()

	if mt.banner != "" {
		_, _ = fmt.Fprintf(mt.messages, "[%s::b]%s[-:-:-]\n\n", colorName(mt.theme.FlashErrColor), tview.Escape(mt.banner))
	}
	if hasMore {
		_, _ = fmt.Fprintf(mt.messages, "[%s::d]-- press m for older messages --[-:-:-]\n\n", colorName(mt.theme.PendingColor))
	}

	for _, m := range msgs {
		sender := m.SenderName
		if sender == "" {
			sender = m.Counterpart
		}
		if m.SentByMe {
			sender = "You"
		}

		header := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]",
			tview.Escape(singleLine(sender)), formatTimestamp(m.Timestamp))
		if m.SentByMe {
			header += " " + statusGlyph(m.DeliveryStatus)
		}

		body := tview.Escape(sanitizeForTerminal(messageBody(m)))
		if m.Provisional() {
			body = fmt.Sprintf("[%s]%s[-]", colorName(mt.theme.PendingColor), body)
		}
		_, _ = fmt.Fprintf(mt.messages, "%s\n%s\n\n", header, body)
	}

	mt.messages.ScrollToEnd()
}

// HasMore reports whether older history can be loaded.
func (mt *MessageThread) HasMore() bool {
	return mt.hasMore
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

func messageBody(m inbox.Message) string {
	var parts []string
	if m.HasMedia() {
		parts = append(parts, "<"+m.Kind+">")
	}
	switch {
	case m.Text != "":
		parts = append(parts, m.Text)
	case m.Caption != "":
		parts = append(parts, m.Caption)
	}
	if m.Transcription != "" {
		parts = append(parts, "«"+m.Transcription+"»")
	}
	if len(parts) == 0 {
		return m.Preview()
	}
	return strings.Join(parts, " ")
}

func statusGlyph(status string) string {
	switch status {
	case rpc.StatusSent, rpc.StatusQueued:
		return "[::d]⏱[-:-:-]"
	case rpc.StatusPending:
		return "✓"
	case rpc.StatusRead, rpc.StatusPlayed:
		return "[aqua]✓✓[-]"
	case rpc.StatusError:
		return "[red]!![-]"
	}
	return "✓✓"
}

// colorName converts a tcell color into a tview color tag name.
func colorName(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
