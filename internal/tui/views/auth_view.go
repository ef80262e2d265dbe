package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	authTitle = " Link This Inbox "
	authSteps = "WhatsApp > Settings > Linked devices > Link a device"
)

// AuthView walks the user through linking the daemon's session, by QR
// code or by phone pairing code.
type AuthView struct {
	*tview.TextView
	theme *ui.Theme
	codes int
}

// NewAuthView creates the pairing page.
func NewAuthView(theme *ui.Theme) *AuthView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(authTitle)
	tv.SetTitleColor(theme.TitleColor)
	return &AuthView{TextView: tv, theme: theme}
}

// Name implements Component.
func (av *AuthView) Name() string { return "Link" }

// Hints implements Component.
func (av *AuthView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "r", Description: "New QR code"},
		{Key: ":pair <phone>", Description: "Use a pairing code"},
		{Key: "Esc", Description: "Back"},
	}
}

// ShowQR replaces the shown code. WhatsApp rotates codes every few
// seconds, so the view counts how many were shown since the last message.
func (av *AuthView) ShowQR(content string) {
	av.codes++
	av.Clear()
	av.SetTitle(authTitle)
	_, _ = fmt.Fprintf(av, "\nScan with %s\n\n%s\n[::d]code %d, refreshes automatically[-:-:-]",
		authSteps, renderQR(content), av.codes)
}

// ShowPairCode shows the 8-character code to type on the phone.
func (av *AuthView) ShowPairCode(phone, code string) {
	av.Clear()
	av.SetTitle(" Link With Phone Number ")
	_, _ = fmt.Fprintf(av,
		"\n\nOn the phone for [::b]+%s[-:-:-] open\n%s > Link with phone number instead\n\nand enter\n\n[%s::b]%s[-:-:-]\n\n[::d]waiting for the phone...[-:-:-]",
		tview.Escape(strings.TrimPrefix(phone, "+")), authSteps, colorName(av.theme.TitleColor), tview.Escape(spaceCode(code)))
}

// ShowMessage shows a plain status line and resets the code counter.
func (av *AuthView) ShowMessage(msg string) {
	av.codes = 0
	av.Clear()
	_, _ = fmt.Fprintf(av, "\n\n%s", tview.Escape(msg))
}

// spaceCode splits an 8-character pairing code as the phone displays it.
func spaceCode(code string) string {
	if len(code) == 8 && !strings.Contains(code, "-") {
		return code[:4] + "-" + code[4:]
	}
	return code
}

// halfBlocks maps a (top, bottom) module pair to one terminal cell, so two
// QR rows fit in one text row.
var halfBlocks = [2][2]rune{
	{' ', '▄'},
	{'▀', '█'},
}

func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "(cannot draw QR code: " + err.Error() + ")"
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top, bottom := 0, 0
			if bitmap[y][x] {
				top = 1
			}
			if y+1 < len(bitmap) && bitmap[y+1][x] {
				bottom = 1
			}
			sb.WriteRune(halfBlocks[top][bottom])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
