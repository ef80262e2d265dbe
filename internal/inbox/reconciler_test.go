package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppcrm/internal/rpc"
)

type fakeGateway struct {
	mu     sync.Mutex
	sent   []string // client ids
	result SendResult
	err    error
}

func (g *fakeGateway) record(clientID string) (SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, clientID)
	return g.result, g.err
}

func (g *fakeGateway) SendText(_ context.Context, _, clientID, _ string) (SendResult, error) {
	return g.record(clientID)
}

func (g *fakeGateway) SendMedia(_ context.Context, _, clientID string, _ Media) (SendResult, error) {
	return g.record(clientID)
}

func (g *fakeGateway) SendAudio(_ context.Context, _, clientID string, _ []byte) (SendResult, error) {
	return g.record(clientID)
}

var t0 = time.UnixMilli(1_700_000_000_000)

func newTestReconciler(gw Gateway) (*Reconciler, *Cache) {
	cache := NewCache()
	r := NewReconciler(Config{}, cache, gw)
	r.now = func() time.Time { return t0 }
	return r, cache
}

func echoOf(counterpart, text string, at time.Time) Message {
	return Message{
		ID:          "3EB0C0FFEE",
		KeyID:       "3EB0C0FFEE",
		Text:        text,
		SentByMe:    true,
		Timestamp:   at.UnixMilli(),
		Counterpart: counterpart,
		Kind:        KindText,
	}
}

func TestReconcilerEchoReplacesProvisional(t *testing.T) {
	gw := &fakeGateway{result: SendResult{ID: "3EB0C0FFEE"}}
	r, cache := newTestReconciler(gw)

	mock, err := r.SendText(context.Background(), "X", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if mock.DeliveryStatus != rpc.StatusPending {
		t.Errorf("status after send = %q, want PENDING", mock.DeliveryStatus)
	}
	if len(gw.sent) != 1 || gw.sent[0] != mock.ID {
		t.Errorf("gateway got client ids %v, want [%s]", gw.sent, mock.ID)
	}
	if got := cache.Messages("X"); len(got) != 1 || got[0].KeyID != "" {
		t.Fatalf("before echo: %+v", got)
	}

	if !r.Receive(echoOf("X", "hello", t0.Add(2*time.Second))) {
		t.Error("echo should replace the provisional entry")
	}

	got := cache.Messages("X")
	if len(got) != 1 {
		t.Fatalf("got %d entries, want exactly 1", len(got))
	}
	if got[0].KeyID != "3EB0C0FFEE" || got[0].ID != "3EB0C0FFEE" {
		t.Errorf("entry not authoritative: %+v", got[0])
	}

	// A redelivered echo stays deduplicated.
	r.Receive(echoOf("X", "hello", t0.Add(2*time.Second)))
	if n := len(cache.Messages("X")); n != 1 {
		t.Errorf("redelivered echo: got %d entries", n)
	}
}

func TestReconcilerEchoWithoutKeyIDUsesID(t *testing.T) {
	r, cache := newTestReconciler(&fakeGateway{})
	if _, err := r.SendText(context.Background(), "X", "hi"); err != nil {
		t.Fatal(err)
	}
	echo := echoOf("X", "hi", t0)
	echo.KeyID = ""
	r.Receive(echo)

	got := cache.Messages("X")
	if len(got) != 1 || got[0].KeyID != echo.ID {
		t.Errorf("got %+v, want one entry with keyId %q", got, echo.ID)
	}
}

func TestReconcilerNoMatch(t *testing.T) {
	tests := []struct {
		name string
		echo Message
	}{
		{"outside window", echoOf("X", "hello", t0.Add(61*time.Second))},
		{"different text", echoOf("X", "hello!", t0)},
		{"other counterpart", echoOf("Y", "hello", t0)},
		{"media vs text", func() Message {
			m := echoOf("X", "hello", t0)
			m.Kind, m.MediaURL = KindImage, "https://x"
			return m
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, cache := newTestReconciler(&fakeGateway{})
			if _, err := r.SendText(context.Background(), "X", "hello"); err != nil {
				t.Fatal(err)
			}
			if r.Receive(tt.echo) {
				t.Error("echo should not match")
			}
			if got := cache.Messages("X"); len(got) == 0 || !got[0].Provisional() {
				t.Error("provisional entry should remain")
			}
		})
	}
}

func TestReconcilerMatchesOnlyOneOfIdenticalSends(t *testing.T) {
	r, cache := newTestReconciler(&fakeGateway{})
	ctx := context.Background()
	if _, err := r.SendText(ctx, "X", "ok"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.SendText(ctx, "X", "ok"); err != nil {
		t.Fatal(err)
	}

	r.Receive(echoOf("X", "ok", t0))
	got := cache.Messages("X")
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	provisional := 0
	for _, m := range got {
		if m.Provisional() {
			provisional++
		}
	}
	if provisional != 1 {
		t.Errorf("%d provisional entries remain, want 1", provisional)
	}
}

func TestReconcilerSendFailureMarksError(t *testing.T) {
	gw := &fakeGateway{err: errors.New("gateway down")}
	r, cache := newTestReconciler(gw)

	mock, err := r.SendText(context.Background(), "X", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if mock.DeliveryStatus != rpc.StatusError {
		t.Errorf("returned status = %q, want ERROR", mock.DeliveryStatus)
	}
	got := cache.Messages("X")
	if len(got) != 1 || got[0].DeliveryStatus != rpc.StatusError {
		t.Errorf("failed message must stay visible with ERROR, got %+v", got)
	}
}

func TestReconcilerResponseStatus(t *testing.T) {
	gw := &fakeGateway{result: SendResult{ID: "S", Status: rpc.StatusQueued}}
	r, cache := newTestReconciler(gw)

	if _, err := r.SendText(context.Background(), "X", "later"); err != nil {
		t.Fatal(err)
	}
	if got := cache.Messages("X")[0].DeliveryStatus; got != rpc.StatusQueued {
		t.Errorf("status = %q, want QUEUED", got)
	}
}

func TestReconcilerMediaEcho(t *testing.T) {
	r, cache := newTestReconciler(&fakeGateway{})
	mock, err := r.SendMedia(context.Background(), "X", Media{Data: []byte{1}, MimeType: "image/jpeg"})
	if err != nil {
		t.Fatal(err)
	}
	if mock.Kind != KindImage {
		t.Errorf("kind = %q, want image", mock.Kind)
	}

	echo := echoOf("X", "", t0.Add(3*time.Second))
	echo.Kind, echo.MediaURL = KindImage, "https://mmg/x"
	if !r.Receive(echo) {
		t.Error("media echo should match media mock")
	}
	if got := cache.Messages("X"); len(got) != 1 || got[0].MediaURL != "https://mmg/x" {
		t.Errorf("got %+v", got)
	}
}

func TestReconcilerRejectsEmpty(t *testing.T) {
	r, cache := newTestReconciler(&fakeGateway{})
	ctx := context.Background()
	if _, err := r.SendText(ctx, "X", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
	if _, err := r.SendAudio(ctx, "X", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
	if cache.Has("X") {
		t.Error("rejected send created an entry")
	}
}

func TestReconcilerInboundAppends(t *testing.T) {
	r, cache := newTestReconciler(&fakeGateway{})
	in := Message{ID: "IN1", KeyID: "IN1", Text: "hello", Timestamp: t0.UnixMilli(), Counterpart: "X"}
	if _, err := r.SendText(context.Background(), "X", "hello"); err != nil {
		t.Fatal(err)
	}
	if r.Receive(in) {
		t.Error("inbound message must never replace a provisional entry")
	}
	if n := len(cache.Messages("X")); n != 2 {
		t.Errorf("got %d entries, want 2", n)
	}
}
