package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

var logoLines = []string{
	"╻ ╻┏━┓┏━┓",
	"┃╻┃┣━┛┣━┛",
	"┗┻┛╹  ╹  crm",
}

// Logo is the small brand block at the right of the header.
type Logo struct {
	*tview.TextView
}

// NewLogo draws the logo with the theme's title color.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)
	for _, line := range logoLines {
		_, _ = fmt.Fprintf(tv, "[%s::b]%s[-:-:-]\n", colorName(theme.TitleColor), line)
	}
	_, _ = fmt.Fprintf(tv, "[%s]inbox for WhatsApp[-]", colorName(theme.FgColor))
	return &Logo{TextView: tv}
}
