package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/matheus3301/wppcrm/internal/rpc"
)

func TestInboxEndToEnd(t *testing.T) {
	const cp = "5531999999999"
	store := newHistoryStore()
	store.add(cp, 900)
	gw := &fakeGateway{result: SendResult{ID: "3EB0OI"}}
	cfg := testConfig()

	in := New(cfg, store, gw, nil, nil)
	in.recon.now = func() time.Time { return time.UnixMilli(2_000_000) }
	in.router.now = in.recon.now
	ctx := context.Background()

	s, cached := in.Open("5531999999999@s.whatsapp.net")
	if s.Counterpart() != cp || len(cached) != 0 {
		t.Fatalf("open: counterpart=%q cached=%d", s.Counterpart(), len(cached))
	}

	page, err := in.Refresh(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 200 || !page.HasMore {
		t.Fatalf("initial page: %d hasMore=%v", len(page.Messages), page.HasMore)
	}

	page, err = in.LoadMore(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 700 || !page.HasMore {
		t.Fatalf("after load more: %d hasMore=%v, want 700 true", len(page.Messages), page.HasMore)
	}

	mock, err := in.SendText(ctx, s, "Oi")
	if err != nil {
		t.Fatal(err)
	}
	if mock.DeliveryStatus != rpc.StatusPending {
		t.Errorf("mock status = %q", mock.DeliveryStatus)
	}

	data, _ := json.Marshal(rpc.RawMessage{
		Key:              rpc.MessageKey{ID: "3EB0OI", RemoteJID: "5531999999999@s.whatsapp.net", FromMe: true},
		MessageID:        "3EB0OI",
		Message:          map[string]any{"conversation": "Oi"},
		MessageType:      "conversation",
		MessageTimestamp: 2_002, // 2s after the send
	})
	src := &sliceSource{envs: []*rpc.EventEnvelope{{
		Kind:       rpc.KindSendMessage,
		Instance:   cfg.Instance,
		Server:     cfg.ServerURL,
		InstanceID: cfg.InstanceID,
		Data:       data,
	}}, err: context.Canceled}
	_ = in.Run(ctx, src)

	msgs := in.Messages(s)
	oi := 0
	for _, m := range msgs {
		if m.Text == "Oi" {
			oi++
			if m.KeyID != "3EB0OI" {
				t.Errorf("Oi bubble keyId = %q, want 3EB0OI", m.KeyID)
			}
		}
	}
	if oi != 1 {
		t.Errorf("got %d Oi bubbles, want exactly 1", oi)
	}
	if len(msgs) != 701 {
		t.Errorf("got %d messages, want 701", len(msgs))
	}
	assertInvariants(t, msgs)

	sum, ok := in.Conversation(cp)
	if !ok || sum.LastMessage != "Oi" {
		t.Errorf("summary = %+v", sum)
	}
}

func TestInboxRevisitUsesCache(t *testing.T) {
	store := newHistoryStore()
	store.add("111", 5)
	store.add("222", 3)
	in := New(testConfig(), store, &fakeGateway{}, nil, nil)
	ctx := context.Background()

	sA, _ := in.Open("111")
	if _, err := in.Refresh(ctx, sA); err != nil {
		t.Fatal(err)
	}
	sB, _ := in.Open("222")
	if _, err := in.Refresh(ctx, sB); err != nil {
		t.Fatal(err)
	}
	if in.Messages(sA) != nil {
		t.Error("stale session must not see messages")
	}

	_, cached := in.Open("111")
	if len(cached) != 5 {
		t.Errorf("revisit returned %d cached messages, want 5", len(cached))
	}
}

// hookGateway runs onSend before answering a text send.
type hookGateway struct {
	*fakeGateway
	onSend func()
}

func (g *hookGateway) SendText(ctx context.Context, counterpart, clientID, text string) (SendResult, error) {
	g.onSend()
	return g.fakeGateway.SendText(ctx, counterpart, clientID, text)
}

func TestInboxShowsSendBeforeGatewayAnswers(t *testing.T) {
	var events []Event
	gw := &hookGateway{fakeGateway: &fakeGateway{result: SendResult{ID: "3EB0OI"}}}
	in := New(testConfig(), newHistoryStore(), gw, nil, func(ev Event) { events = append(events, ev) })
	s, _ := in.Open("5531")

	var signaled, cached int
	var preview string
	gw.onSend = func() {
		signaled = len(events)
		cached = len(in.Messages(s))
		sum, _ := in.Conversation("5531")
		preview = sum.LastMessage
	}
	if _, err := in.SendText(context.Background(), s, "Oi"); err != nil {
		t.Fatal(err)
	}

	if signaled != 1 || cached != 1 || preview != "Oi" {
		t.Fatalf("at send time: %d changes, %d cached, preview %q; want 1, 1, Oi", signaled, cached, preview)
	}
	up, ok := events[0].(MessageUpsert)
	if !ok || !up.Message.Provisional() || up.Message.Text != "Oi" {
		t.Errorf("change = %#v, want the provisional message", events[0])
	}
}

func TestInboxFailedSendSurvivesRevisit(t *testing.T) {
	store := newHistoryStore()
	store.add("5531", 3)
	in := New(testConfig(), store, &fakeGateway{err: errors.New("rate limited")}, nil, nil)
	ctx := context.Background()

	s, _ := in.Open("5531")
	if _, err := in.Refresh(ctx, s); err != nil {
		t.Fatal(err)
	}
	failed, err := in.SendText(ctx, s, "Oi")
	if err == nil {
		t.Fatal("expected send error")
	}

	in.Open("222")
	s, _ = in.Open("5531")
	page, err := in.Refresh(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 4 {
		t.Fatalf("got %d messages after revisit, want 4", len(page.Messages))
	}
	last := page.Messages[3]
	if last.ID != failed.ID || last.DeliveryStatus != rpc.StatusError {
		t.Errorf("last entry = %+v, want the failed send", last)
	}
}

func TestInboxKeepsLiveMessageDuringRefresh(t *testing.T) {
	store := &gateStore{started: make(chan Query, 1), release: make(chan []*rpc.Message, 1)}
	in := New(testConfig(), store, &fakeGateway{}, nil, nil)
	ctx := context.Background()
	s, _ := in.Open("5531")

	done := make(chan Page, 1)
	go func() {
		page, _ := in.Refresh(ctx, s)
		done <- page
	}()
	select {
	case <-store.started:
	case <-time.After(time.Second):
		t.Fatal("refresh never queried the store")
	}

	in.router.Dispatch(MessageUpsert{Message: Message{ID: "live", KeyID: "live", Text: "just now", Timestamp: 9000, Counterpart: "5531"}})
	store.release <- []*rpc.Message{{ID: "old", ChatJID: "5531@s.whatsapp.net", Body: "earlier", TimestampUnixMs: 1000}}

	select {
	case page := <-done:
		if got := ids(page.Messages); fmt.Sprint(got) != "[old live]" {
			t.Errorf("page = %v, want [old live]", got)
		}
	case <-time.After(time.Second):
		t.Fatal("refresh never returned")
	}
}

func TestInboxSendWithoutConversation(t *testing.T) {
	in := New(testConfig(), newHistoryStore(), &fakeGateway{}, nil, nil)
	if _, err := in.SendText(context.Background(), Session{}, "hi"); err != ErrNoConversation {
		t.Errorf("err = %v, want ErrNoConversation", err)
	}
}

func TestConversationsSorted(t *testing.T) {
	c := NewConversations()
	c.Load([]*rpc.Chat{
		{JID: "1@s.whatsapp.net", LastMessageAtUnixMs: 100},
		{JID: "2@s.whatsapp.net"},
		{JID: "3@s.whatsapp.net", LastMessageAtUnixMs: 300},
		{JID: "120363@g.us", LastMessageAtUnixMs: 200, IsGroup: true},
	})

	got := c.Sorted()
	want := []string{"3", "120363@g.us", "1", "2"}
	for i, s := range got {
		if s.Counterpart != want[i] {
			t.Fatalf("order = %v, want %v", counterparts(got), want)
		}
	}

	// Updates land on the same summary.
	c.Touch(Message{Counterpart: "1", Text: "new", Timestamp: 400}, false)
	got = c.Sorted()
	if got[0].Counterpart != "1" || got[0].LastMessage != "new" || got[0].UnreadCount != 1 {
		t.Errorf("after touch: %+v", got[0])
	}
	if len(got) != 4 {
		t.Errorf("touch created a duplicate summary: %d", len(got))
	}
}

func counterparts(list []Summary) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Counterpart
	}
	return out
}
