package views

import (
	"fmt"

	"github.com/matheus3301/wppcrm/internal/tui/keys"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

// CommandHelp describes one ':' command.
type CommandHelp struct {
	Usage       string
	Description string
}

// HelpView displays the key binding and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	return &HelpView{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders the visible bindings of every scope in reg, then the
// command list and the composer shortcuts.
func (hv *HelpView) Update(reg *keys.Registry, commands []CommandHelp) {
	hv.Clear()
	kc := colorName(hv.theme.MenuKeyColor)

	for _, scope := range reg.Scopes() {
		bindings := reg.Bindings(scope)
		if len(bindings) == 0 {
			continue
		}
		title := scope
		if scope == keys.GlobalScope {
			title = "Global Keys"
		}
		_, _ = fmt.Fprintf(hv, "\n  [::b]%s[-:-:-]\n\n", tview.Escape(title))
		for _, a := range bindings {
			_, _ = fmt.Fprintf(hv, "  [%s]%-10s[-:-:-] %s\n", kc, tview.Escape(a.KeyLabel()), a.Description)
		}
	}

	_, _ = fmt.Fprint(hv, "\n  [::b]Commands (: mode)[-:-:-]\n\n")
	for _, c := range commands {
		_, _ = fmt.Fprintf(hv, "  [%s]%-22s[-:-:-] %s\n", kc, tview.Escape(":"+c.Usage), c.Description)
	}

	_, _ = fmt.Fprint(hv, "\n  [::b]Composer[-:-:-]\n\n")
	for _, c := range []CommandHelp{
		{"/file <path> [caption]", "Send a file, image or video"},
		{"/audio <path>", "Send a voice note"},
		{"//text", "Send text starting with /"},
	} {
		_, _ = fmt.Fprintf(hv, "  [%s]%-22s[-:-:-] %s\n", kc, tview.Escape(c.Usage), c.Description)
	}
	hv.ScrollToBeginning()
}
