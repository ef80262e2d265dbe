package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// DefaultMenuRows fits the menu inside the header.
const DefaultMenuRows = 6

// Menu lays out the current page's key hints in columns: numeric jumps
// first, then the remaining hints top to bottom.
type Menu struct {
	*tview.Table
	theme *Theme
	rows  int
}

// NewMenu creates a menu whose columns hold at most rows hints.
func NewMenu(theme *Theme, rows int) *Menu {
	if rows <= 0 {
		rows = DefaultMenuRows
	}
	t := tview.NewTable().SetBorders(false)
	t.SetBackgroundColor(theme.BgColor)
	t.SetBorderPadding(0, 0, 1, 0)
	return &Menu{Table: t, theme: theme, rows: rows}
}

// Update replaces the shown hints.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()

	var numeric, plain []MenuHint
	for _, h := range hints {
		if h.Numeric {
			numeric = append(numeric, h)
		} else {
			plain = append(plain, h)
		}
	}

	col := 0
	for _, group := range [][]MenuHint{numeric, plain} {
		for i, h := range group {
			if i > 0 && i%m.rows == 0 {
				col++
			}
			m.SetCell(i%m.rows, col, tview.NewTableCell(m.cellText(h)).SetExpansion(1))
		}
		if len(group) > 0 {
			col++
		}
	}
}

func (m *Menu) cellText(h MenuHint) string {
	color := m.theme.MenuKeyColor
	if h.Numeric {
		color = m.theme.NumericKeyColor
	}
	return fmt.Sprintf("[%s::b]<%s>[-:-:-] %s ", colorName(color), tview.Escape(h.Key), h.Description)
}
