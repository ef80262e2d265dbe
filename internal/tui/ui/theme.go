package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme is the palette every view draws with.
type Theme struct {
	BgColor, FgColor tcell.Color
	BorderColor      tcell.Color
	TitleColor       tcell.Color

	TableHeaderFg, TableHeaderBg tcell.Color
	TableCursorFg, TableCursorBg tcell.Color

	CrumbActiveFg, CrumbActiveBg     tcell.Color
	CrumbInactiveFg, CrumbInactiveBg tcell.Color

	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	CounterColor      tcell.Color
	PromptBorderColor tcell.Color

	FlashInfoColor, FlashWarnColor, FlashErrColor tcell.Color

	// Inbox rows.
	UnreadColor  tcell.Color
	LabelColor   tcell.Color
	PendingColor tcell.Color
}

var (
	waGreen     = tcell.NewHexColor(0x25d366)
	waTeal      = tcell.NewHexColor(0x128c7e)
	waDarkTeal  = tcell.NewHexColor(0x075e54)
	waPaleGreen = tcell.NewHexColor(0xdcf8c6)
)

// DefaultTheme returns the dark green palette.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:     tcell.ColorBlack,
		FgColor:     tcell.ColorSilver,
		BorderColor: waTeal,
		TitleColor:  waGreen,

		TableHeaderFg: waPaleGreen,
		TableHeaderBg: tcell.ColorBlack,
		TableCursorFg: tcell.ColorBlack,
		TableCursorBg: waGreen,

		CrumbActiveFg:   tcell.ColorBlack,
		CrumbActiveBg:   waGreen,
		CrumbInactiveFg: waPaleGreen,
		CrumbInactiveBg: waDarkTeal,

		MenuKeyColor:      waGreen,
		NumericKeyColor:   tcell.ColorYellow,
		CounterColor:      tcell.ColorYellow,
		PromptBorderColor: waGreen,

		FlashInfoColor: waPaleGreen,
		FlashWarnColor: tcell.ColorOrange,
		FlashErrColor:  tcell.ColorRed,

		UnreadColor:  waGreen,
		LabelColor:   tcell.ColorGold,
		PendingColor: tcell.ColorGray,
	}
}

// colorName returns c as a tview color tag, preferring its W3C name.
func colorName(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
