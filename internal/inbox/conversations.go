package inbox

import (
	"cmp"
	"slices"
	"sync"

	"github.com/matheus3301/wppcrm/internal/rpc"
)

// Summary is one row of the conversation list.
type Summary struct {
	Counterpart   string
	JID           string
	Name          string
	AvatarURL     string
	IsGroup       bool
	LastMessage   string
	LastMessageAt int64
	UnreadCount   int
	Labels        []string
}

// Conversations is the conversation list. Summaries are created once per
// counterpart and then updated in place.
type Conversations struct {
	mu   sync.Mutex
	byCP map[string]*Summary
}

// NewConversations returns an empty list.
func NewConversations() *Conversations {
	return &Conversations{byCP: make(map[string]*Summary)}
}

func (c *Conversations) entry(counterpart string) *Summary {
	s, ok := c.byCP[counterpart]
	if !ok {
		s = &Summary{Counterpart: counterpart, JID: JIDFor(counterpart), IsGroup: IsGroup(counterpart)}
		c.byCP[counterpart] = s
	}
	return s
}

// Load merges a chat listing into the list.
func (c *Conversations) Load(chats []*rpc.Chat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range chats {
		c.applyLocked(ch)
	}
}

func (c *Conversations) applyLocked(ch *rpc.Chat) *Summary {
	if ch == nil {
		return nil
	}
	cp := NormalizeCounterpart(ch.JID)
	if cp == "" {
		return nil
	}
	s := c.entry(cp)
	s.JID = ch.JID
	s.IsGroup = ch.IsGroup || s.IsGroup
	if ch.Name != "" {
		s.Name = ch.Name
	}
	if ch.AvatarURL != "" {
		s.AvatarURL = ch.AvatarURL
	}
	s.UnreadCount = int(ch.UnreadCount)
	if ch.LastMessageAtUnixMs >= s.LastMessageAt && (ch.LastMessageAtUnixMs > 0 || s.LastMessageAt == 0) {
		s.LastMessageAt = ch.LastMessageAtUnixMs
		if ch.LastMessagePreview != "" {
			s.LastMessage = ch.LastMessagePreview
		}
	}
	if ch.Labels != nil {
		s.Labels = slices.Clone(ch.Labels)
	}
	return s
}

// Touch records m as activity in its conversation, creating the summary if
// needed. Unread is bumped for incoming messages when the conversation is
// not the one on screen.
func (c *Conversations) Touch(m Message, onScreen bool) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.entry(m.Counterpart)
	if s.Name == "" && !m.SentByMe && !s.IsGroup {
		s.Name = m.SenderName
	}
	if m.Timestamp >= s.LastMessageAt {
		s.LastMessageAt = m.Timestamp
		s.LastMessage = m.Preview()
	}
	if !m.SentByMe && !onScreen {
		s.UnreadCount++
	}
	return s.clone()
}

// MarkRead zeroes the unread counter of counterpart.
func (c *Conversations) MarkRead(counterpart string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.byCP[counterpart]; ok {
		s.UnreadCount = 0
	}
}

// Get returns a copy of counterpart's summary.
func (c *Conversations) Get(counterpart string) (Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byCP[counterpart]
	if !ok {
		return Summary{}, false
	}
	return s.clone(), true
}

// Sorted returns copies of all summaries, most recent activity first and
// conversations without activity last.
func (c *Conversations) Sorted() []Summary {
	c.mu.Lock()
	out := make([]Summary, 0, len(c.byCP))
	for _, s := range c.byCP {
		out = append(out, s.clone())
	}
	c.mu.Unlock()

	slices.SortFunc(out, func(a, b Summary) int {
		switch {
		case a.LastMessageAt == b.LastMessageAt:
			return cmp.Compare(a.Counterpart, b.Counterpart)
		case a.LastMessageAt == 0:
			return 1
		case b.LastMessageAt == 0:
			return -1
		case a.LastMessageAt > b.LastMessageAt:
			return -1
		}
		return 1
	})
	return out
}

func (s *Summary) clone() Summary {
	cp := *s
	cp.Labels = slices.Clone(s.Labels)
	return cp
}
