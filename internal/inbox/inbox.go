// Package inbox keeps the per-conversation message view consistent while
// history pages, optimistic sends and live gateway events interleave.
package inbox

import (
	"context"

	"github.com/matheus3301/wppcrm/internal/rpc"
	"go.uber.org/zap"
)

// Inbox bundles the cache, paginator, reconciler and router for one gateway
// instance.
type Inbox struct {
	cfg      Config
	cache    *Cache
	guard    *Guard
	pager    *Paginator
	recon    *Reconciler
	router   *Router
	convs    *Conversations
	presence *Presence
	logger   *zap.Logger
	onChange func(Event)
}

// New builds an Inbox for cfg. onChange runs after every live event and as
// soon as an outbound message is shown, before it is sent.
func New(cfg Config, store MessageStore, gw Gateway, logger *zap.Logger, onChange func(Event)) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	in := &Inbox{
		cfg:      cfg,
		cache:    NewCache(),
		guard:    &Guard{},
		convs:    NewConversations(),
		presence: NewPresence(),
		logger:   logger,
		onChange: onChange,
	}
	in.pager = NewPaginator(cfg, store, in.cache, in.guard)
	in.recon = NewReconciler(cfg, in.cache, gw)
	in.recon.onPending = in.pending
	in.router = NewRouter(cfg, in.recon, in.cache, in.convs, in.presence, in.guard, logger, onChange)
	return in
}

// Config returns the configuration the Inbox was built with.
func (in *Inbox) Config() Config { return in.cfg }

// Open makes counterpart the active conversation. It returns the new Session
// and whatever is already cached for it, so a revisit renders at once while
// Refresh fetches the latest page.
func (in *Inbox) Open(counterpart string) (Session, []Message) {
	cp := NormalizeCounterpart(counterpart)
	s := in.guard.Begin(cp)
	in.convs.MarkRead(cp)
	return s, in.cache.Messages(cp)
}

// Current returns the active Session.
func (in *Inbox) Current() Session { return in.guard.Current() }

// Refresh loads the newest history page for s.
func (in *Inbox) Refresh(ctx context.Context, s Session) (Page, error) {
	return in.pager.LoadInitial(ctx, s)
}

// LoadMore loads the next older history page for s.
func (in *Inbox) LoadMore(ctx context.Context, s Session) (Page, error) {
	return in.pager.LoadMore(ctx, s)
}

// HasMore reports whether s may have older history.
func (in *Inbox) HasMore(s Session) bool { return in.pager.HasMore(s) }

// Messages returns the visible sequence for s, or nil when s is stale.
func (in *Inbox) Messages(s Session) []Message {
	if !in.guard.IsCurrent(s) {
		return nil
	}
	return in.cache.Messages(s.Counterpart())
}

// SendText sends text to the conversation of s.
func (in *Inbox) SendText(ctx context.Context, s Session, text string) (Message, error) {
	if s.IsZero() {
		return Message{}, ErrNoConversation
	}
	return in.recon.SendText(ctx, s.Counterpart(), text)
}

// SendMedia sends a media file to the conversation of s.
func (in *Inbox) SendMedia(ctx context.Context, s Session, media Media) (Message, error) {
	if s.IsZero() {
		return Message{}, ErrNoConversation
	}
	return in.recon.SendMedia(ctx, s.Counterpart(), media)
}

// SendAudio sends a voice note to the conversation of s.
func (in *Inbox) SendAudio(ctx context.Context, s Session, data []byte) (Message, error) {
	if s.IsZero() {
		return Message{}, ErrNoConversation
	}
	return in.recon.SendAudio(ctx, s.Counterpart(), data)
}

// pending shows a provisional message in its conversation and signals the
// UI while the send is still in flight.
func (in *Inbox) pending(m Message) {
	in.convs.Touch(m, true)
	if in.onChange != nil {
		in.onChange(MessageUpsert{Message: m})
	}
}

// LoadConversations merges a chat listing into the conversation list.
func (in *Inbox) LoadConversations(chats []*rpc.Chat) { in.convs.Load(chats) }

// Conversations returns the conversation list.
func (in *Inbox) Conversations() []Summary { return in.convs.Sorted() }

// Conversation returns one conversation summary.
func (in *Inbox) Conversation(counterpart string) (Summary, bool) {
	return in.convs.Get(NormalizeCounterpart(counterpart))
}

// Presence returns the last known presence of counterpart.
func (in *Inbox) Presence(counterpart string) string {
	return in.presence.Get(NormalizeCounterpart(counterpart))
}

// Run consumes live events from src until it ends or ctx is done.
func (in *Inbox) Run(ctx context.Context, src EventSource) error {
	return in.router.Run(ctx, src)
}
