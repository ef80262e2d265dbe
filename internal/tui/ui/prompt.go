package ui

import (
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode selects what a submitted prompt means.
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
)

var promptLooks = map[PromptMode]struct{ label, title string }{
	PromptCommand: {":", " Command "},
	PromptFilter:  {"/", " Filter (#label for labels) "},
}

const historySize = 50

// Prompt is the one-line input bar opened by ':' and '/'. Commands are kept
// in a history walked with the arrow keys, and command names complete as
// they are typed.
type Prompt struct {
	*tview.InputField
	mode     PromptMode
	onSubmit func(PromptMode, string)
	onCancel func()

	history []string
	pos     int
	words   []string
}

// NewPrompt returns a hidden prompt styled with theme.
func NewPrompt(theme *Theme) *Prompt {
	p := &Prompt{InputField: tview.NewInputField()}
	p.SetBorder(true)
	p.SetBorderColor(theme.PromptBorderColor)
	p.SetBackgroundColor(theme.BgColor)
	p.SetFieldBackgroundColor(theme.BgColor)
	p.SetFieldTextColor(theme.FgColor)
	p.SetLabelColor(theme.MenuKeyColor)

	p.SetDoneFunc(p.done)
	p.SetInputCapture(p.capture)
	p.SetAutocompleteFunc(p.complete)
	p.SetAutocompletedFunc(func(text string, _ int, source int) bool {
		if source == tview.AutocompletedNavigate {
			return false
		}
		p.SetText(text + " ")
		return true
	})
	return p
}

func (p *Prompt) done(key tcell.Key) {
	text := p.GetText()
	p.SetText("")
	switch key {
	case tcell.KeyEnter:
		if text == "" {
			return
		}
		if p.mode == PromptCommand {
			p.remember(text)
		}
		if p.onSubmit != nil {
			p.onSubmit(p.mode, text)
		}
	case tcell.KeyEscape:
		if p.onCancel != nil {
			p.onCancel()
		}
	}
}

func (p *Prompt) capture(ev *tcell.EventKey) *tcell.EventKey {
	if p.mode != PromptCommand || len(p.history) == 0 {
		return ev
	}
	switch ev.Key() {
	case tcell.KeyUp:
		p.recall(-1)
	case tcell.KeyDown:
		p.recall(1)
	default:
		return ev
	}
	return nil
}

// complete offers command names starting with the typed word, until an
// argument is being typed.
func (p *Prompt) complete(text string) []string {
	if p.mode != PromptCommand || text == "" || strings.Contains(text, " ") {
		return nil
	}
	var out []string
	for _, w := range p.words {
		if strings.HasPrefix(w, strings.ToLower(text)) && w != text {
			out = append(out, w)
		}
	}
	return out
}

// SetCompletions sets the command names offered while typing.
func (p *Prompt) SetCompletions(words []string) {
	p.words = slices.Clone(words)
}

// remember appends text to the history, moving an earlier copy to the end.
func (p *Prompt) remember(text string) {
	if i := slices.Index(p.history, text); i >= 0 {
		p.history = slices.Delete(p.history, i, i+1)
	}
	p.history = append(p.history, text)
	if extra := len(p.history) - historySize; extra > 0 {
		p.history = p.history[extra:]
	}
	p.pos = len(p.history)
}

// recall steps through the history. Stepping past the newest entry leaves
// an empty line.
func (p *Prompt) recall(step int) {
	p.pos = max(0, min(len(p.history), p.pos+step))
	if p.pos == len(p.history) {
		p.SetText("")
		return
	}
	p.SetText(p.history[p.pos])
}

// History returns submitted commands, oldest first.
func (p *Prompt) History() []string { return slices.Clone(p.history) }

func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) { p.onSubmit = fn }

func (p *Prompt) SetOnCancel(fn func()) { p.onCancel = fn }

// Activate clears the line and switches to mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.pos = len(p.history)
	p.SetText("")
	look := promptLooks[mode]
	p.SetLabel(look.label)
	p.SetTitle(look.title)
}

// Mode returns the active mode.
func (p *Prompt) Mode() PromptMode { return p.mode }
