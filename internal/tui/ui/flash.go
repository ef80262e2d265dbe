package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel is the severity of a flash notice.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// flashTTL is how long a notice of each level stays on the bar.
var flashTTL = map[FlashLevel]time.Duration{
	FlashInfo: 5 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  12 * time.Second,
}

// FlashMessage is one notice shown on the bottom bar.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	At      time.Time
	Expires time.Time
}

// FlashModel holds the latest notice. It is written from worker goroutines
// and read on the draw loop.
type FlashModel struct {
	mu      sync.Mutex
	current FlashMessage
	now     func() time.Time
	changed chan struct{}
}

// NewFlashModel returns an empty model.
func NewFlashModel() *FlashModel {
	return &FlashModel{now: time.Now, changed: make(chan struct{}, 1)}
}

// Info shows a neutral notice.
func (f *FlashModel) Info(msg string) { f.show(msg, FlashInfo, 0) }

// Warn shows a notice for something that did not fully work.
func (f *FlashModel) Warn(msg string) { f.show(msg, FlashWarn, 0) }

// Err shows err.
func (f *FlashModel) Err(err error) { f.show(err.Error(), FlashErr, 0) }

// InfoFor shows an info notice for d instead of the default time.
func (f *FlashModel) InfoFor(msg string, d time.Duration) { f.show(msg, FlashInfo, d) }

func (f *FlashModel) show(msg string, level FlashLevel, ttl time.Duration) {
	if ttl <= 0 {
		ttl = flashTTL[level]
	}
	now := f.now()
	f.mu.Lock()
	f.current = FlashMessage{Text: msg, Level: level, At: now, Expires: now.Add(ttl)}
	f.mu.Unlock()
	f.notify()
}

// Clear hides the current notice.
func (f *FlashModel) Clear() {
	f.mu.Lock()
	f.current = FlashMessage{}
	f.mu.Unlock()
	f.notify()
}

func (f *FlashModel) notify() {
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

// Current returns the notice to show, if one is still live.
func (f *FlashModel) Current() (FlashMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current.Text == "" || !f.now().Before(f.current.Expires) {
		return FlashMessage{}, false
	}
	return f.current, true
}

// Changed signals after every Info, Warn, Err or Clear. Signals coalesce.
func (f *FlashModel) Changed() <-chan struct{} {
	return f.changed
}

// FlashBar is the one-line notice bar at the bottom of the screen.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates an empty bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Show renders the model's live notice, or clears the bar.
func (fb *FlashBar) Show(f *FlashModel) {
	fb.Clear()
	msg, ok := f.Current()
	if !ok {
		return
	}
	color, mark := fb.theme.FlashInfoColor, "ℹ"
	switch msg.Level {
	case FlashWarn:
		color, mark = fb.theme.FlashWarnColor, "⚠"
	case FlashErr:
		color, mark = fb.theme.FlashErrColor, "✗"
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s %s [::d]%s[-:-:-]", colorName(color), mark, tview.Escape(msg.Text), msg.At.Format("15:04:05"))
}
