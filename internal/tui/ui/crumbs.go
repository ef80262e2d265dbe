package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// maxCrumb bounds one crumb so a long contact name cannot push the rest
// of the trail off screen.
const maxCrumb = 24

// Crumbs is the trail of open pages shown under the main view.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates an empty crumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update shows names, oldest first; the last one is highlighted.
func (c *Crumbs) Update(names []string) {
	c.Clear()
	last := len(names) - 1
	for i, name := range names {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == last {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		_, _ = fmt.Fprintf(c, "[%s:%s:%s] %s [-:-:-] ", colorName(fg), colorName(bg), attr, tview.Escape(truncate(name, maxCrumb)))
	}
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
