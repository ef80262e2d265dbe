package inbox

import "sync"

// Session identifies one activation of a conversation. Async work captures
// the Session it started under and checks it before touching shared state.
// The zero Session is never current.
type Session struct {
	token       uint64
	counterpart string
}

// Counterpart returns the conversation the session was opened for.
func (s Session) Counterpart() string { return s.counterpart }

// IsZero reports whether s was never issued by a Guard.
func (s Session) IsZero() bool { return s.token == 0 }

// Guard issues Sessions and tells stale ones apart.
type Guard struct {
	mu      sync.Mutex
	counter uint64
	current Session
}

// Begin makes counterpart the active conversation and invalidates every
// previously issued Session.
func (g *Guard) Begin(counterpart string) Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	g.current = Session{token: g.counter, counterpart: counterpart}
	return g.current
}

// IsCurrent reports whether s is the latest Session.
func (g *Guard) IsCurrent(s Session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isCurrentLocked(s)
}

func (g *Guard) isCurrentLocked(s Session) bool {
	return !s.IsZero() && s == g.current
}

// Current returns the active Session, or the zero Session before any Begin.
func (g *Guard) Current() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Apply runs fn only while s is current, holding off Begin until fn returns.
// fn must not call back into the Guard.
func (g *Guard) Apply(s Session, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isCurrentLocked(s) {
		return false
	}
	fn()
	return true
}
