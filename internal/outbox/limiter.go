package outbox

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ChatLimiter applies a token bucket per chat and evicts buckets that have
// been idle longer than idleTTL. A nil ChatLimiter allows everything.
type ChatLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu     sync.Mutex
	byChat map[string]*bucket
	hits   uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewChatLimiter returns nil when rps or burst is not positive.
func NewChatLimiter(rps float64, burst int, idleTTL time.Duration) *ChatLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &ChatLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byChat:  make(map[string]*bucket),
	}
}

// Allow reports whether one send to chat may proceed at now.
func (l *ChatLimiter) Allow(chat string, now time.Time) bool {
	if l == nil {
		return true
	}
	chat = strings.TrimSpace(chat)
	if chat == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byChat[chat]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byChat[chat] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%256 == 0 {
		l.evictLocked(now)
	}
	return allowed
}

func (l *ChatLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.byChat {
		if b.lastSeen.Before(cutoff) {
			delete(l.byChat, k)
		}
	}
}

// Len returns the number of tracked chats.
func (l *ChatLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byChat)
}
