package inbox

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/matheus3301/wppcrm/internal/rpc"
)

func msg(id string, ts int64) Message {
	return Message{ID: id, Text: id, Timestamp: ts, Counterpart: "5531", Kind: KindText}
}

func assertInvariants(t *testing.T, seq []Message) {
	t.Helper()
	ids := map[string]bool{}
	keys := map[string]bool{}
	for i, m := range seq {
		if ids[m.ID] {
			t.Fatalf("duplicate id %q", m.ID)
		}
		ids[m.ID] = true
		if m.KeyID != "" {
			if keys[m.KeyID] {
				t.Fatalf("duplicate keyId %q", m.KeyID)
			}
			keys[m.KeyID] = true
		}
		if i > 0 && seq[i-1].Timestamp > m.Timestamp {
			t.Fatalf("out of order at %d: %d > %d", i, seq[i-1].Timestamp, m.Timestamp)
		}
	}
}

func TestCacheInvariantsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := func() Message {
		m := msg(fmt.Sprintf("m%d", rng.Intn(40)), int64(rng.Intn(10))*1000)
		if rng.Intn(3) == 0 {
			m.KeyID = fmt.Sprintf("k%d", rng.Intn(15))
		}
		return m
	}
	batch := func() []Message {
		out := make([]Message, rng.Intn(8))
		for i := range out {
			out[i] = pool()
		}
		return out
	}

	for round := 0; round < 200; round++ {
		c := NewCache()
		for op := 0; op < 30; op++ {
			switch rng.Intn(3) {
			case 0:
				c.Seed("5531", batch())
			case 1:
				c.Append("5531", pool())
			case 2:
				c.MergeOlder("5531", batch())
			}
			assertInvariants(t, c.Messages("5531"))
		}
	}
}

func TestCacheAppendDedup(t *testing.T) {
	c := NewCache()

	if !c.Append("5531", msg("a", 2000)) {
		t.Fatal("first append should insert")
	}
	if c.Append("5531", msg("a", 3000)) {
		t.Error("same id must be a no-op")
	}

	withKey := msg("b", 1000)
	withKey.KeyID = "K"
	c.Append("5531", withKey)
	other := msg("c", 1500)
	other.KeyID = "K"
	if c.Append("5531", other) {
		t.Error("same keyId must be a no-op")
	}

	got := c.Messages("5531")
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("got %v", ids(got))
	}
}

func TestCacheNullTimestampsFirst(t *testing.T) {
	c := NewCache()
	c.Seed("5531", []Message{msg("late", 5000), msg("unknown", 0), msg("early", 1000)})
	c.Append("5531", msg("unknown2", 0))

	want := []string{"unknown", "unknown2", "early", "late"}
	if got := ids(c.Messages("5531")); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	ts, ok := c.Oldest("5531")
	if !ok || ts != 1000 {
		t.Errorf("Oldest = %d,%v, want 1000", ts, ok)
	}
}

func TestCacheEmptyOpsAreNoops(t *testing.T) {
	c := NewCache()
	c.Seed("5531", nil)
	if c.Has("5531") {
		t.Error("empty seed should not create a sequence")
	}
	if n := c.MergeOlder("5531", nil); n != 0 || c.Has("5531") {
		t.Error("empty merge should be a no-op")
	}

	c.Append("5531", msg("a", 1))
	if !c.Has("5531") {
		t.Error("append should create the sequence")
	}
	c.Seed("5531", []Message{})
	if len(c.Messages("5531")) != 1 {
		t.Error("empty seed must not clear an existing sequence")
	}
}

func TestCacheSeedKeepsUnsavedEntries(t *testing.T) {
	local := func(id, status string, ts int64) Message {
		m := msg(LocalIDPrefix+id, ts)
		m.SentByMe = true
		m.DeliveryStatus = status
		return m
	}
	page := []Message{msg("m1", 1000), msg("m2", 2000)}

	tests := []struct {
		name   string
		cached Message
		kept   bool
	}{
		{"failed send", local("failed", rpc.StatusError, 1500), true},
		{"send in flight", local("flight", rpc.StatusSent, 3000), true},
		{"acknowledged send", local("acked", rpc.StatusPending, 3000), false},
		{"queued send", local("queued", rpc.StatusQueued, 3000), false},
		{"live message newer than page", msg("live", 2500), true},
		{"old message missing from page", msg("gone", 500), false},
		{"message at page edge", msg("edge", 2000), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache()
			c.Append("5531", msg("m1", 1000))
			c.Append("5531", tt.cached)
			c.Seed("5531", page)

			got := c.Messages("5531")
			assertInvariants(t, got)
			if kept := slices.Contains(ids(got), tt.cached.ID); kept != tt.kept {
				t.Errorf("kept = %v, want %v (sequence %v)", kept, tt.kept, ids(got))
			}
		})
	}
}

func TestCacheMergeOlderIdempotent(t *testing.T) {
	c := NewCache()
	c.Seed("5531", []Message{msg("m5", 5000), msg("m6", 6000)})

	page := []Message{msg("m3", 3000), msg("m4", 4000)}
	if n := c.MergeOlder("5531", page); n != 2 {
		t.Errorf("first merge added %d, want 2", n)
	}
	if n := c.MergeOlder("5531", page); n != 0 {
		t.Errorf("second merge added %d, want 0", n)
	}

	want := []string{"m3", "m4", "m5", "m6"}
	if got := ids(c.Messages("5531")); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCacheUpdateStatusAcrossConversations(t *testing.T) {
	c := NewCache()
	a := msg("a1", 1000)
	a.KeyID = "abc"
	b := msg("b1", 1000)
	b.KeyID = "abd"
	plain := msg("b2", 2000)

	c.Append("A", a)
	c.Append("B", b)
	c.Append("B", plain)

	if n := c.UpdateStatus("abc", "READ"); n != 1 {
		t.Fatalf("updated %d entries, want 1", n)
	}
	if got := c.Messages("A")[0].DeliveryStatus; got != "READ" {
		t.Errorf("A status = %q, want READ", got)
	}
	for _, m := range c.Messages("B") {
		if m.DeliveryStatus != "" {
			t.Errorf("entry %s changed to %q", m.ID, m.DeliveryStatus)
		}
	}

	if n := c.UpdateStatus("", "READ"); n != 0 {
		t.Errorf("empty keyId updated %d entries", n)
	}
}

func TestCacheMessagesReturnsCopy(t *testing.T) {
	c := NewCache()
	c.Append("5531", msg("a", 1))
	got := c.Messages("5531")
	got[0].Text = "mutated"
	if c.Messages("5531")[0].Text != "a" {
		t.Error("Messages must not expose internal state")
	}
}

func ids(seq []Message) []string {
	out := make([]string, len(seq))
	for i, m := range seq {
		out[i] = m.ID
	}
	return out
}
