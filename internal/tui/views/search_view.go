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

// Match markers the store wraps around search hits in a snippet.
const (
	hitOpen  = "<<"
	hitClose = ">>"
)

// SearchView runs full-text queries over stored messages and lists the hits.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	hits    []*rpc.SearchResult
	names   func(counterpart string) string
	query   string
	onQuery func(query string)
}

// NewSearchView builds the view. names maps a counterpart to a contact name
// and may be nil.
func NewSearchView(theme *ui.Theme, names func(string) string) *SearchView {
	sv := &SearchView{theme: theme, names: names}

	sv.input = tview.NewInputField().
		SetLabel(" Find: ").
		SetFieldWidth(0).
		SetPlaceholder("words in any message, prefix matches the last one")
	sv.input.SetBackgroundColor(theme.BgColor)
	sv.input.SetFieldBackgroundColor(theme.BgColor)
	sv.input.SetFieldTextColor(theme.FgColor)
	sv.input.SetLabelColor(theme.MenuKeyColor)
	sv.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || sv.onQuery == nil {
			return
		}
		sv.query = strings.TrimSpace(sv.input.GetText())
		sv.onQuery(sv.query)
	})

	sv.results = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	sv.results.SetBorder(true)
	sv.results.SetBorderColor(theme.BorderColor)
	sv.results.SetBackgroundColor(theme.BgColor)
	sv.results.SetTitleColor(theme.TitleColor)
	sv.results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	sv.setTitle()

	sv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(sv.input, 1, 0, true).
		AddItem(sv.results, 0, 1, false)
	return sv
}

// Name implements Component.
func (sv *SearchView) Name() string { return "Search" }

// Hints implements Component.
func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Search/Open"},
		{Key: "Tab", Description: "Results"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// SetOnQuery registers the callback run when a query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) { sv.onQuery = fn }

// SetQuery fills the input without running it.
func (sv *SearchView) SetQuery(q string) {
	sv.input.SetText(q)
}

// Update shows the hits of the last query, best match first.
func (sv *SearchView) Update(hits []*rpc.SearchResult) {
	sv.hits = hits
	sv.results.Clear()

	for col, h := range []string{" CHAT", " FROM", " MATCH", " WHEN"} {
		sv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	for i, hit := range hits {
		var chat, from, when string
		if m := hit.Message; m != nil {
			chat = sv.chatName(m.ChatJID)
			from = senderLabel(m)
			when = formatTimestamp(m.TimestampUnixMs)
		}
		row := i + 1
		sv.results.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(singleLine(chat))).SetMaxWidth(24).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(singleLine(from))).SetMaxWidth(16).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 2, tview.NewTableCell(" "+highlightHits(hit.Snippet, sv.theme.CounterColor)).SetExpansion(1).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 3, tview.NewTableCell(when).SetAlign(tview.AlignRight).SetTextColor(sv.theme.FgColor))
	}
	if len(hits) > 0 {
		sv.results.Select(1, 0)
	}
	sv.setTitle()
}

func (sv *SearchView) setTitle() {
	switch {
	case sv.query == "":
		sv.results.SetTitle(" Results ")
	case len(sv.hits) == 0:
		sv.results.SetTitle(fmt.Sprintf(" No messages match %q ", tview.Escape(sv.query)))
	default:
		sv.results.SetTitle(fmt.Sprintf(" %d matches for %q ", len(sv.hits), tview.Escape(sv.query)))
	}
}

func (sv *SearchView) chatName(chatJID string) string {
	counterpart := inbox.NormalizeCounterpart(chatJID)
	if sv.names != nil {
		if n := sv.names(counterpart); n != "" {
			return n
		}
	}
	return counterpart
}

// SelectedCounterpart returns the conversation of the hit under the cursor.
func (sv *SearchView) SelectedCounterpart() string {
	row, _ := sv.results.GetSelection()
	if row < 1 || row > len(sv.hits) || sv.hits[row-1].Message == nil {
		return ""
	}
	return inbox.NormalizeCounterpart(sv.hits[row-1].Message.ChatJID)
}

// Input returns the query field.
func (sv *SearchView) Input() *tview.InputField { return sv.input }

// Results returns the hit table.
func (sv *SearchView) Results() *tview.Table { return sv.results }

func senderLabel(m *rpc.Message) string {
	switch {
	case m.FromMe:
		return "You"
	case m.SenderName != "":
		return m.SenderName
	case m.SenderJID != "":
		return inbox.NormalizeCounterpart(m.SenderJID)
	}
	return inbox.NormalizeCounterpart(m.ChatJID)
}

// highlightHits escapes a snippet for tview and turns the hit markers into
// bold color tags.
func highlightHits(snippet string, c tcell.Color) string {
	text := tview.Escape(singleLine(sanitizeForTerminal(snippet)))
	return strings.NewReplacer(
		hitOpen, "["+colorName(c)+"::b]",
		hitClose, "[-:-:-]",
	).Replace(text)
}
