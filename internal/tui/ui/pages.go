package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Pages is a navigation stack over tview.Pages. Only the top page is
// visible; the bottom page is the root and is never popped.
type Pages struct {
	*tview.Pages
	stack    []string
	onChange func(stack []string)
}

// NewPages creates an empty stack.
func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange registers fn to run with a copy of the stack after every
// change.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Reset makes name the only page on the stack.
func (p *Pages) Reset(name string) {
	p.switchTo(nil, name)
}

// Push shows name on top. If name is already on the stack, the pages above
// it are dropped instead of stacking a second copy.
func (p *Pages) Push(name string) {
	base := p.stack
	if i := slices.Index(base, name); i >= 0 {
		base = base[:i]
	}
	p.switchTo(base, name)
}

// Pop drops the top page and returns its name. It returns "" and does
// nothing when only the root is left.
func (p *Pages) Pop() string {
	if !p.CanPop() {
		return ""
	}
	n := len(p.stack)
	top := p.stack[n-1]
	p.switchTo(p.stack[:n-2], p.stack[n-2])
	return top
}

// CanPop reports whether there is a page above the root.
func (p *Pages) CanPop() bool {
	return len(p.stack) > 1
}

// Current returns the top page, or "" when the stack is empty.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Stack returns a copy of the stack, root first.
func (p *Pages) Stack() []string {
	return slices.Clone(p.stack)
}

func (p *Pages) switchTo(base []string, top string) {
	if cur := p.Current(); cur != "" {
		p.HidePage(cur)
	}
	p.stack = append(slices.Clone(base), top)
	p.ShowPage(top)
	p.SendToFront(top)
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}
