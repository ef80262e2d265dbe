package inbox

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/wppcrm/internal/rpc"
)

// Page is the visible sequence after a history load. Stale is set when the
// load finished after its session was superseded; nothing was applied then.
type Page struct {
	Messages []Message
	HasMore  bool
	Stale    bool
}

// Paginator loads history pages for the active conversation into the Cache.
// Its loading state belongs to one Session at a time.
type Paginator struct {
	cfg   Config
	store MessageStore
	cache *Cache
	guard *Guard

	mu          sync.Mutex
	session     Session
	hasMore     bool
	loading     bool
	loadingMore bool
}

// NewPaginator wires a Paginator over store, filling cache under guard.
func NewPaginator(cfg Config, store MessageStore, cache *Cache, guard *Guard) *Paginator {
	return &Paginator{cfg: cfg.withDefaults(), store: store, cache: cache, guard: guard}
}

// LoadInitial fetches the newest page for s and seeds the cache with it.
// On error the cached messages are kept and hasMore is cleared.
func (p *Paginator) LoadInitial(ctx context.Context, s Session) (Page, error) {
	if !p.guard.IsCurrent(s) {
		return Page{Stale: true}, nil
	}
	cp := s.Counterpart()

	p.mu.Lock()
	p.session = s
	p.hasMore = true
	p.loading = true
	p.loadingMore = false
	p.mu.Unlock()

	limit := p.cfg.InitialPageSize
	rows, err := p.store.ListMessages(ctx, Query{Counterpart: cp, Instance: p.cfg.Instance, Limit: limit})

	var page Page
	applied := p.guard.Apply(s, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.loading = false
		if err != nil {
			p.hasMore = false
			page = Page{Messages: p.cache.Messages(cp)}
			return
		}
		p.cache.Seed(cp, chronological(rows))
		p.hasMore = len(rows) == limit
		page = Page{Messages: p.cache.Messages(cp), HasMore: p.hasMore}
	})
	if !applied {
		return Page{Stale: true}, nil
	}
	if err != nil {
		return page, fmt.Errorf("load history: %w", err)
	}
	return page, nil
}

// LoadMore fetches the page older than the oldest cached message and merges
// it. It issues no request when no more history is expected, a load is in
// flight, nothing is cached yet, or LoadInitial never ran for s.
func (p *Paginator) LoadMore(ctx context.Context, s Session) (Page, error) {
	cp := s.Counterpart()
	if !p.guard.IsCurrent(s) {
		return Page{Stale: true}, nil
	}

	p.mu.Lock()
	before, beforeID, ok := p.cache.Cursor(cp)
	if p.session != s || !p.hasMore || p.loading || p.loadingMore || !ok {
		page := Page{Messages: p.cache.Messages(cp), HasMore: p.session == s && p.hasMore}
		p.mu.Unlock()
		return page, nil
	}
	p.loadingMore = true
	p.mu.Unlock()

	limit := p.cfg.MorePageSize
	rows, err := p.store.ListMessages(ctx, Query{Counterpart: cp, Instance: p.cfg.Instance, Before: before, BeforeID: beforeID, Limit: limit})

	var page Page
	applied := p.guard.Apply(s, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.loadingMore = false
		if err != nil {
			p.hasMore = false
			page = Page{Messages: p.cache.Messages(cp)}
			return
		}
		p.cache.MergeOlder(cp, chronological(rows))
		p.hasMore = len(rows) == limit
		page = Page{Messages: p.cache.Messages(cp), HasMore: p.hasMore}
	})
	if !applied {
		p.mu.Lock()
		if p.session == s {
			p.loadingMore = false
		}
		p.mu.Unlock()
		return Page{Stale: true}, nil
	}
	if err != nil {
		return page, fmt.Errorf("load older history: %w", err)
	}
	return page, nil
}

// HasMore reports whether s may have older history to load.
func (p *Paginator) HasMore(s Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session == s && p.hasMore
}

// Loading reports whether a load for s is in flight.
func (p *Paginator) Loading(s Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session == s && (p.loading || p.loadingMore)
}

// chronological normalizes a newest-first page and reverses it.
func chronological(rows []*rpc.Message) []Message {
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromRow(r))
	}
	slices.Reverse(out)
	return out
}
