package inbox

import (
	"slices"
	"sync"

	"github.com/matheus3301/wppcrm/internal/rpc"
)

// Cache holds one chronologically ordered message sequence per counterpart.
// Each sequence is unique by ID and by non-empty KeyID, and sorted ascending
// by Timestamp with unknown (0) timestamps first. Every method is a single
// critical section.
type Cache struct {
	mu    sync.Mutex
	convs map[string][]Message
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{convs: make(map[string][]Message)}
}

// Seed replaces the counterpart's sequence with msgs, a freshly loaded page.
// Entries the page cannot contain survive the swap: local sends still in
// flight or failed before the daemon stored them, and anything newer than
// the page's newest message.
func (c *Cache) Seed(counterpart string, msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	seq := make([]Message, 0, len(msgs))
	idx := newIndex(nil)
	var newest int64
	for _, m := range msgs {
		if idx.contains(m) {
			continue
		}
		idx.add(m)
		seq = append(seq, m)
		newest = max(newest, m.Timestamp)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.convs[counterpart] {
		if idx.contains(m) || !outlivesSeed(m, newest) {
			continue
		}
		idx.add(m)
		seq = append(seq, m)
	}
	sortChronological(seq)
	c.convs[counterpart] = seq
}

// outlivesSeed reports whether a cached entry must be kept over a page whose
// newest message is at newest. A local send the daemon acknowledged is in
// the store under its confirmed id, so only unanswered or failed ones stay.
func outlivesSeed(m Message, newest int64) bool {
	if m.Local() {
		if !m.Provisional() {
			return false
		}
		return m.DeliveryStatus == rpc.StatusSent || m.DeliveryStatus == rpc.StatusError
	}
	return m.Timestamp > newest
}

// Append inserts m in timestamp order. It is a no-op when an entry with the
// same ID or the same non-empty KeyID already exists.
func (c *Cache) Append(counterpart string, m Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(counterpart, m)
}

func (c *Cache) appendLocked(counterpart string, m Message) bool {
	seq := c.convs[counterpart]
	if newIndex(seq).contains(m) {
		return false
	}
	c.convs[counterpart] = insertChronological(seq, m)
	return true
}

// MergeOlder folds an older page into the counterpart's sequence, skipping
// entries already present. It returns how many entries were added.
func (c *Cache) MergeOlder(counterpart string, older []Message) int {
	if len(older) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.convs[counterpart]
	idx := newIndex(seq)
	merged := make([]Message, 0, len(older)+len(seq))
	for _, m := range older {
		if idx.contains(m) {
			continue
		}
		idx.add(m)
		merged = append(merged, m)
	}
	added := len(merged)
	if added == 0 {
		return 0
	}
	merged = append(merged, seq...)
	sortChronological(merged)
	c.convs[counterpart] = merged
	return added
}

// UpdateStatus sets the delivery status of every entry, in any conversation,
// whose KeyID equals keyID. It returns the number of entries changed.
func (c *Cache) UpdateStatus(keyID, status string) int {
	if keyID == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, seq := range c.convs {
		for i := range seq {
			if seq[i].KeyID == keyID {
				seq[i].DeliveryStatus = status
				n++
			}
		}
	}
	return n
}

// SetStatus sets the delivery status of the entry with the given ID.
func (c *Cache) SetStatus(counterpart, id, status string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.convs[counterpart]
	for i := range seq {
		if seq[i].ID == id {
			seq[i].DeliveryStatus = status
			return true
		}
	}
	return false
}

// Reconcile replaces the first entry accepted by match with m. When m is
// already cached the matched entry is only removed. When nothing matches, m
// is appended as usual. It reports whether an entry was replaced.
func (c *Cache) Reconcile(counterpart string, match func(Message) bool, m Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.convs[counterpart]
	i := slices.IndexFunc(seq, match)
	if i < 0 {
		c.appendLocked(counterpart, m)
		return false
	}
	seq = slices.Delete(slices.Clone(seq), i, i+1)
	if !newIndex(seq).contains(m) {
		seq = insertChronological(seq, m)
	}
	c.convs[counterpart] = seq
	return true
}

// Messages returns a copy of the counterpart's sequence.
func (c *Cache) Messages(counterpart string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.convs[counterpart])
}

// Has reports whether the counterpart has a cached sequence.
func (c *Cache) Has(counterpart string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.convs[counterpart]
	return ok
}

// Oldest returns the smallest known timestamp in the counterpart's
// sequence. Entries with unknown timestamps are ignored.
func (c *Cache) Oldest(counterpart string) (int64, bool) {
	ts, _, ok := c.Cursor(counterpart)
	return ts, ok
}

// Cursor returns the history position just before the oldest stored message:
// its timestamp and the smallest id among stored entries at that timestamp.
// Local sends and entries with unknown timestamps are ignored.
func (c *Cache) Cursor(counterpart string) (ts int64, id string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.convs[counterpart] {
		if m.Timestamp <= 0 || m.Local() {
			continue
		}
		switch {
		case !ok:
			ts, id, ok = m.Timestamp, m.ID, true
		case m.Timestamp != ts:
			return ts, id, ok
		case m.ID < id:
			id = m.ID
		}
	}
	return ts, id, ok
}

type index struct {
	ids  map[string]struct{}
	keys map[string]struct{}
}

func newIndex(seq []Message) *index {
	idx := &index{
		ids:  make(map[string]struct{}, len(seq)),
		keys: make(map[string]struct{}, len(seq)),
	}
	for _, m := range seq {
		idx.add(m)
	}
	return idx
}

func (x *index) add(m Message) {
	x.ids[m.ID] = struct{}{}
	if m.KeyID != "" {
		x.keys[m.KeyID] = struct{}{}
	}
}

func (x *index) contains(m Message) bool {
	if _, ok := x.ids[m.ID]; ok {
		return true
	}
	if m.KeyID != "" {
		_, ok := x.keys[m.KeyID]
		return ok
	}
	return false
}

func sortChronological(seq []Message) {
	slices.SortStableFunc(seq, func(a, b Message) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
}

// insertChronological inserts m after every entry with a timestamp <= its
// own, so equal timestamps keep arrival order.
func insertChronological(seq []Message, m Message) []Message {
	i, _ := slices.BinarySearchFunc(seq, m.Timestamp+1, func(e Message, ts int64) int {
		switch {
		case e.Timestamp < ts:
			return -1
		case e.Timestamp > ts:
			return 1
		}
		return 0
	})
	out := make([]Message, 0, len(seq)+1)
	out = append(out, seq[:i]...)
	out = append(out, m)
	return append(out, seq[i:]...)
}
