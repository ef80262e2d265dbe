package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/matheus3301/wppcrm/internal/rpc"
)

func testConfig() Config {
	return Config{Instance: "main", InstanceID: "iid-1", ServerURL: "unix:///tmp/wpp.sock"}
}

func envelope(t *testing.T, kind string, data any) *rpc.EventEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	return &rpc.EventEnvelope{
		EventID:    "e1",
		Kind:       kind,
		Instance:   "main",
		Server:     "unix:///tmp/wpp.sock",
		InstanceID: "iid-1",
		Data:       raw,
	}
}

func newTestRouter(t *testing.T) (*Router, *Cache, *Conversations, *Presence, *Guard, *[]Event) {
	t.Helper()
	cache := NewCache()
	convs := NewConversations()
	presence := NewPresence()
	guard := &Guard{}
	recon := NewReconciler(testConfig(), cache, &fakeGateway{})
	recon.now = func() time.Time { return t0 }
	var seen []Event
	r := NewRouter(testConfig(), recon, cache, convs, presence, guard, nil, func(ev Event) { seen = append(seen, ev) })
	r.now = func() time.Time { return t0 }
	return r, cache, convs, presence, guard, &seen
}

func TestRouterFiltersForeignInstances(t *testing.T) {
	r, _, _, _, _, _ := newTestRouter(t)
	base := envelope(t, rpc.KindMessagesUpsert, rpc.RawMessage{Key: rpc.MessageKey{ID: "K", RemoteJID: "5531@s.whatsapp.net"}})

	tests := []struct {
		name   string
		mutate func(e *rpc.EventEnvelope)
		want   bool
	}{
		{"matching", func(e *rpc.EventEnvelope) {}, true},
		{"other instance", func(e *rpc.EventEnvelope) { e.Instance = "sales" }, false},
		{"other server", func(e *rpc.EventEnvelope) { e.Server = "unix:///tmp/other.sock" }, false},
		{"other instance id", func(e *rpc.EventEnvelope) { e.InstanceID = "iid-2" }, false},
		{"missing instance id", func(e *rpc.EventEnvelope) { e.InstanceID = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := *base
			tt.mutate(&env)
			if _, ok := r.Decode(&env); ok != tt.want {
				t.Errorf("Decode ok = %v, want %v", ok, tt.want)
			}
		})
	}
	if _, ok := r.Decode(nil); ok {
		t.Error("nil envelope accepted")
	}
}

func TestRouterDecodeVariants(t *testing.T) {
	r, _, _, _, _, _ := newTestRouter(t)

	ev, ok := r.Decode(envelope(t, rpc.KindSendMessage, rpc.RawMessage{
		Key:     rpc.MessageKey{ID: "K1", RemoteJID: "5531@s.whatsapp.net", FromMe: true},
		Message: map[string]any{"conversation": "Oi"},
	}))
	if up, isUp := ev.(MessageUpsert); !ok || !isUp || !up.Echo || up.Message.Text != "Oi" {
		t.Errorf("send.message decoded to %#v", ev)
	}

	ev, ok = r.Decode(envelope(t, rpc.KindMessagesUpdate, rpc.StatusPayload{KeyID: "K1", RemoteJID: "5531@s.whatsapp.net", Status: "READ"}))
	if su, isSU := ev.(StatusUpdate); !ok || !isSU || su.KeyID != "K1" || su.Status != "READ" || su.Counterpart != "5531" {
		t.Errorf("messages.update decoded to %#v", ev)
	}

	ev, ok = r.Decode(envelope(t, rpc.KindPresenceUpdate, rpc.PresencePayload{
		ID:        "5531@s.whatsapp.net",
		Presences: map[string]rpc.PresenceState{"5531@s.whatsapp.net": {LastKnownPresence: rpc.PresenceComposing}},
	}))
	if pu, isPU := ev.(PresenceUpdate); !ok || !isPU || pu.Presence != rpc.PresenceComposing || pu.Counterpart != "5531" {
		t.Errorf("presence.update decoded to %#v", ev)
	}

	ev, ok = r.Decode(envelope(t, rpc.KindChatsUpdate, []*rpc.Chat{{JID: "5531@s.whatsapp.net", UnreadCount: 3}}))
	if cu, isCU := ev.(ChatUpdate); !ok || !isCU || len(cu.Chats) != 1 {
		t.Errorf("chats.update decoded to %#v", ev)
	}

	drops := []*rpc.EventEnvelope{
		envelope(t, "connection.update", map[string]string{"state": "open"}),
		envelope(t, rpc.KindMessagesUpdate, rpc.StatusPayload{KeyID: "K1"}),
		envelope(t, rpc.KindMessagesUpsert, rpc.RawMessage{}),
		{Kind: rpc.KindMessagesUpsert, Instance: "main", Server: "unix:///tmp/wpp.sock", Data: json.RawMessage(`{"key":`)},
	}
	for i, env := range drops {
		if ev, ok := r.Decode(env); ok {
			t.Errorf("drop %d decoded to %#v", i, ev)
		}
	}
}

func TestRouterDispatch(t *testing.T) {
	r, cache, convs, presence, guard, seen := newTestRouter(t)
	guard.Begin("9999")

	r.Dispatch(MessageUpsert{Message: Message{ID: "IN1", KeyID: "IN1", Text: "hi", Timestamp: 5000, Counterpart: "5531", SenderName: "Ana"}})
	if got := cache.Messages("5531"); len(got) != 1 {
		t.Fatalf("cache = %+v", got)
	}
	s, ok := convs.Get("5531")
	if !ok || s.LastMessage != "hi" || s.LastMessageAt != 5000 || s.UnreadCount != 1 || s.Name != "Ana" {
		t.Errorf("summary = %+v", s)
	}

	r.Dispatch(StatusUpdate{KeyID: "IN1", Status: "READ"})
	if got := cache.Messages("5531")[0].DeliveryStatus; got != "READ" {
		t.Errorf("status = %q", got)
	}

	r.Dispatch(PresenceUpdate{Counterpart: "5531", Presence: rpc.PresenceRecording})
	if presence.Get("5531") != rpc.PresenceRecording {
		t.Error("presence not recorded")
	}

	r.Dispatch(ChatUpdate{Chats: []*rpc.Chat{{JID: "5531@s.whatsapp.net", UnreadCount: 0, Labels: []string{"Lead"}}}})
	s, _ = convs.Get("5531")
	if s.UnreadCount != 0 || len(s.Labels) != 1 || s.LastMessage != "hi" {
		t.Errorf("summary after chat update = %+v", s)
	}

	if len(*seen) != 4 {
		t.Errorf("onChange called %d times, want 4", len(*seen))
	}
}

func TestRouterDispatchOnScreenDoesNotCountUnread(t *testing.T) {
	r, _, convs, _, guard, _ := newTestRouter(t)
	guard.Begin("5531")
	r.Dispatch(MessageUpsert{Message: Message{ID: "IN1", Text: "hi", Timestamp: 1, Counterpart: "5531"}})
	if s, _ := convs.Get("5531"); s.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0 for the open conversation", s.UnreadCount)
	}
}

func TestRouterChatUpdateKeepsOpenConversationRead(t *testing.T) {
	r, _, convs, _, guard, _ := newTestRouter(t)
	guard.Begin("5531")
	r.Dispatch(MessageUpsert{Message: Message{ID: "IN1", Text: "hi", Timestamp: 1, Counterpart: "5531"}})

	r.Dispatch(ChatUpdate{Chats: []*rpc.Chat{
		{JID: "5531@s.whatsapp.net", UnreadCount: 1},
		{JID: "5532@s.whatsapp.net", UnreadCount: 3},
	}})
	if s, _ := convs.Get("5531"); s.UnreadCount != 0 {
		t.Errorf("open conversation unread = %d, want 0", s.UnreadCount)
	}
	if s, _ := convs.Get("5532"); s.UnreadCount != 3 {
		t.Errorf("background conversation unread = %d, want 3", s.UnreadCount)
	}
}

type sliceSource struct {
	envs []*rpc.EventEnvelope
	err  error
}

func (s *sliceSource) Recv() (*rpc.EventEnvelope, error) {
	if len(s.envs) == 0 {
		return nil, s.err
	}
	env := s.envs[0]
	s.envs = s.envs[1:]
	return env, nil
}

func TestRouterRun(t *testing.T) {
	r, cache, _, _, _, _ := newTestRouter(t)
	foreign := envelope(t, rpc.KindMessagesUpsert, rpc.RawMessage{Key: rpc.MessageKey{ID: "F", RemoteJID: "5531@s.whatsapp.net"}})
	foreign.Instance = "other"

	src := &sliceSource{
		envs: []*rpc.EventEnvelope{
			envelope(t, rpc.KindMessagesUpsert, rpc.RawMessage{Key: rpc.MessageKey{ID: "A", RemoteJID: "5531@s.whatsapp.net"}, MessageTimestamp: 1}),
			foreign,
			envelope(t, rpc.KindMessagesUpsert, rpc.RawMessage{Key: rpc.MessageKey{ID: "B", RemoteJID: "5531@s.whatsapp.net"}, MessageTimestamp: 2}),
		},
		err: io.EOF,
	}
	if err := r.Run(context.Background(), src); err != nil {
		t.Fatalf("Run = %v, want nil on EOF", err)
	}
	if got := ids(cache.Messages("5531")); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("got %v, want [A B]", got)
	}

	boom := errors.New("stream reset")
	if err := r.Run(context.Background(), &sliceSource{err: boom}); !errors.Is(err, boom) {
		t.Errorf("Run = %v, want %v", err, boom)
	}
}
