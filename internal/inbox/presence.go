package inbox

import "sync"

// Presence tracks the last known presence per counterpart. A new event
// replaces the previous state; nothing expires on a timer.
type Presence struct {
	mu    sync.Mutex
	state map[string]string
}

func NewPresence() *Presence {
	return &Presence{state: make(map[string]string)}
}

func (p *Presence) Set(counterpart, state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state[counterpart] = state
}

// Get returns the last presence of counterpart, or "" when unknown.
func (p *Presence) Get(counterpart string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state[counterpart]
}
