package keys

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

// GlobalScope holds bindings active in every view.
const GlobalScope = ""

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Label       string
	Description string
	Handler     func() bool
	Visible     bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// KeyLabel returns the label shown for the binding in help and menus.
func (a *Action) KeyLabel() string {
	if a.Label != "" {
		return a.Label
	}
	if a.Key == tcell.KeyRune {
		return string(a.Rune)
	}
	return strings.TrimPrefix(tcell.KeyNames[a.Key], "Key")
}

// Registry holds keybindings per view in registration order.
type Registry struct {
	scopes []string
	byView map[string][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{byView: make(map[string][]*Action)}
}

// AddGlobal registers a binding active in every view.
func (r *Registry) AddGlobal(action *Action) {
	r.AddView(GlobalScope, action)
}

// AddView registers a view-specific keybinding.
func (r *Registry) AddView(view string, action *Action) {
	if _, ok := r.byView[view]; !ok {
		r.scopes = append(r.scopes, view)
	}
	r.byView[view] = append(r.byView[view], action)
}

// Scopes returns the registered view names, global first when present.
func (r *Registry) Scopes() []string {
	out := make([]string, 0, len(r.scopes))
	if _, ok := r.byView[GlobalScope]; ok {
		out = append(out, GlobalScope)
	}
	for _, s := range r.scopes {
		if s != GlobalScope {
			out = append(out, s)
		}
	}
	return out
}

// Bindings returns the visible bindings of one scope.
func (r *Registry) Bindings(view string) []*Action {
	var out []*Action
	for _, a := range r.byView[view] {
		if a.Visible {
			out = append(out, a)
		}
	}
	return out
}

// HandleEvent dispatches a key event, trying the view's bindings before the
// global ones. A handler returning false passes the event on. It reports
// whether a handler consumed the event.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	scopes := []string{view}
	if view != GlobalScope {
		scopes = append(scopes, GlobalScope)
	}
	for _, s := range scopes {
		for _, a := range r.byView[s] {
			if a.Matches(ev) && a.Handler() {
				return true
			}
		}
	}
	return false
}
