package ui

import "github.com/rivo/tview"

// MenuHint is one key shown in the header menu. Numeric hints (the 1-9
// jumps) get their own column and color.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool
}

// Component is a page of the TUI. Name labels its crumb; Hints fill the
// header menu while it is on top of the stack.
type Component interface {
	tview.Primitive
	Name() string
	Hints() []MenuHint
}
