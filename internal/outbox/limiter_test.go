package outbox

import (
	"fmt"
	"testing"
	"time"
)

func TestChatLimiterBurst(t *testing.T) {
	l := NewChatLimiter(1, 3, time.Minute)
	now := time.Unix(1700000000, 0)

	for i := 0; i < 3; i++ {
		if !l.Allow("a", now) {
			t.Fatalf("send %d denied within burst", i)
		}
	}
	if l.Allow("a", now) {
		t.Error("send beyond burst allowed")
	}
	if !l.Allow("a", now.Add(time.Second)) {
		t.Error("token not refilled after 1s")
	}
}

func TestChatLimiterNilAndInvalid(t *testing.T) {
	tests := []struct {
		name  string
		rps   float64
		burst int
	}{
		{"zero rate", 0, 5},
		{"zero burst", 1, 0},
		{"negative", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewChatLimiter(tt.rps, tt.burst, 0)
			if l != nil {
				t.Fatal("expected nil limiter")
			}
			if !l.Allow("a", time.Now()) {
				t.Error("nil limiter denied")
			}
		})
	}
}

func TestChatLimiterBlankChatUnlimited(t *testing.T) {
	l := NewChatLimiter(0.001, 1, time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		if !l.Allow("  ", now) {
			t.Fatal("blank chat limited")
		}
	}
	if l.Len() != 0 {
		t.Errorf("tracked %d chats, want 0", l.Len())
	}
}

func TestChatLimiterEvictsIdle(t *testing.T) {
	l := NewChatLimiter(100, 100, time.Minute)
	start := time.Unix(1700000000, 0)
	for i := 0; i < 10; i++ {
		l.Allow(fmt.Sprintf("old-%d", i), start)
	}

	later := start.Add(2 * time.Minute)
	for i := 0; i < 256; i++ {
		l.Allow("busy", later)
	}
	if got := l.Len(); got != 1 {
		t.Errorf("tracked %d chats after eviction, want 1", got)
	}
}
