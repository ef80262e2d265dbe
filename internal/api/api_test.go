package api

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/outbox"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/status"
	"github.com/matheus3301/wppcrm/internal/store"
	"github.com/matheus3301/wppcrm/internal/wa"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type receipt struct {
	chat   string
	ids    []string
	sender string
}

type fakeGateway struct {
	mu         sync.Mutex
	connected  bool
	loggedIn   bool
	avatar     string
	authEvents []wa.AuthEvent
	receipts   []receipt
	subscribed []string
}

func (f *fakeGateway) IsConnected() bool   { return f.connected }
func (f *fakeGateway) IsLoggedIn() bool    { return f.loggedIn }
func (f *fakeGateway) PhoneNumber() string { return "5531999999999" }

func (f *fakeGateway) StartQRAuth(context.Context, time.Duration) (<-chan wa.AuthEvent, error) {
	if f.loggedIn {
		return nil, wa.ErrAlreadyLoggedIn
	}
	ch := make(chan wa.AuthEvent, len(f.authEvents))
	for _, e := range f.authEvents {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (f *fakeGateway) PairPhone(_ context.Context, phone string) (string, error) {
	if f.loggedIn {
		return "", wa.ErrAlreadyLoggedIn
	}
	return "ABCD-" + phone[len(phone)-4:], nil
}

func (f *fakeGateway) Logout(context.Context) error { return nil }

func (f *fakeGateway) MarkRead(_ context.Context, chat string, ids []string, sender string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts = append(f.receipts, receipt{chat, ids, sender})
	return nil
}

func (f *fakeGateway) SubscribePresence(_ context.Context, jid string) error {
	f.subscribed = append(f.subscribed, jid)
	return nil
}

func (f *fakeGateway) ProfilePictureURL(context.Context, string) (string, error) {
	return f.avatar, nil
}

type fakeSender struct {
	got outbox.Request
	res outbox.Result
	err error
}

func (f *fakeSender) Send(_ context.Context, req outbox.Request) (outbox.Result, error) {
	f.got = req
	return f.res, f.err
}

// fakeStream collects sent items until its context is cancelled.
type fakeStream[T any] struct {
	ctx  context.Context
	mu   sync.Mutex
	sent []*T
	out  chan *T
}

func newFakeStream[T any](ctx context.Context) *fakeStream[T] {
	return &fakeStream[T]{ctx: ctx, out: make(chan *T, 16)}
}

func (s *fakeStream[T]) Send(m *T) error {
	s.mu.Lock()
	s.sent = append(s.sent, m)
	s.mu.Unlock()
	s.out <- m
	return nil
}

func (s *fakeStream[T]) Context() context.Context { return s.ctx }

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedIncoming(t *testing.T, db *store.DB, chat, id, sender string, ts int64) {
	t.Helper()
	m := &store.Message{ChatJID: chat, MsgID: id, KeyID: id, SenderJID: sender, Body: id, MessageType: "text", Timestamp: ts}
	if _, err := db.TouchChat(m); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	if err := db.IncrementUnread(chat); err != nil {
		t.Fatal(err)
	}
}

func code(err error) codes.Code {
	return grpcstatus.Code(err)
}

func TestGetSessionStatus(t *testing.T) {
	db := testDB(t)
	seedIncoming(t, db, "a@s.whatsapp.net", "m1", "", 1000)
	m := status.NewMachine(bus.New())
	id := Identity{Session: "main", ServerURL: "unix:///tmp/x.sock", InstanceID: "inst-1"}
	svc := NewSessionService(id, m, &fakeGateway{connected: true}, db, time.Minute, nil)

	resp, err := svc.GetSessionStatus(context.Background(), &rpc.GetSessionStatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Session != "main" || resp.InstanceID != "inst-1" || resp.ServerURL != id.ServerURL {
		t.Errorf("identity = %+v", resp)
	}
	if resp.Status != string(status.Booting) || resp.StatusMessage == "" {
		t.Errorf("status = %q (%q)", resp.Status, resp.StatusMessage)
	}
	if !resp.Connected || resp.PhoneNumber != "5531999999999" {
		t.Errorf("gateway fields = %+v", resp)
	}
	if resp.ChatCount != 1 || resp.MessageCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", resp.ChatCount, resp.MessageCount)
	}
}

func TestStartAuthTimeoutReturnsToAuthRequired(t *testing.T) {
	m := status.NewMachine(bus.New())
	if err := m.Transition(status.AuthRequired); err != nil {
		t.Fatal(err)
	}
	gw := &fakeGateway{authEvents: []wa.AuthEvent{
		{Type: wa.AuthEventQRCode, QRCode: "qr-1"},
		{Type: wa.AuthEventTimeout, Message: "QR code timeout"},
	}}
	svc := NewSessionService(Identity{Session: "main"}, m, gw, nil, time.Minute, nil)

	stream := newFakeStream[rpc.AuthEvent](context.Background())
	if err := svc.StartAuth(&rpc.StartAuthRequest{}, stream); err != nil {
		t.Fatal(err)
	}
	if len(stream.sent) != 2 || stream.sent[0].QRCode != "qr-1" || stream.sent[1].EventType != "timeout" {
		t.Errorf("sent = %+v", stream.sent)
	}
	if got := m.Current(); got != status.AuthRequired {
		t.Errorf("state = %s, want AUTH_REQUIRED", got)
	}
}

func TestSessionErrors(t *testing.T) {
	m := status.NewMachine(bus.New())
	noGW := NewSessionService(Identity{}, m, nil, nil, time.Minute, nil)
	loggedIn := NewSessionService(Identity{}, m, &fakeGateway{loggedIn: true}, nil, time.Minute, nil)
	fresh := NewSessionService(Identity{}, m, &fakeGateway{}, nil, time.Minute, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"auth without adapter", func() error {
			return noGW.StartAuth(&rpc.StartAuthRequest{}, newFakeStream[rpc.AuthEvent](ctx))
		}, codes.Unavailable},
		{"auth when logged in", func() error {
			return loggedIn.StartAuth(&rpc.StartAuthRequest{}, newFakeStream[rpc.AuthEvent](ctx))
		}, codes.FailedPrecondition},
		{"pair without phone", func() error {
			_, err := fresh.PairPhone(ctx, &rpc.PairPhoneRequest{Phone: " + "})
			return err
		}, codes.InvalidArgument},
		{"pair when logged in", func() error {
			_, err := loggedIn.PairPhone(ctx, &rpc.PairPhoneRequest{Phone: "5531999999999"})
			return err
		}, codes.FailedPrecondition},
		{"logout without adapter", func() error {
			_, err := noGW.Logout(ctx, &rpc.LogoutRequest{})
			return err
		}, codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := code(tt.call()); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPairPhoneStripsPlus(t *testing.T) {
	svc := NewSessionService(Identity{}, status.NewMachine(bus.New()), &fakeGateway{}, nil, time.Minute, nil)
	resp, err := svc.PairPhone(context.Background(), &rpc.PairPhoneRequest{Phone: "+5531999999999"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Code != "ABCD-9999" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestGetChatFetchesAvatar(t *testing.T) {
	db := testDB(t)
	seedIncoming(t, db, "a@s.whatsapp.net", "m1", "", 1000)
	gw := &fakeGateway{connected: true, avatar: "https://pps.example/a.jpg"}
	svc := NewChatService(db, bus.New(), gw, nil)

	resp, err := svc.GetChat(context.Background(), &rpc.GetChatRequest{JID: "a@s.whatsapp.net"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Chat.AvatarURL != gw.avatar {
		t.Errorf("avatar = %q", resp.Chat.AvatarURL)
	}
	stored, _ := db.GetChat("a@s.whatsapp.net")
	if stored.AvatarURL != gw.avatar {
		t.Errorf("stored avatar = %q", stored.AvatarURL)
	}

	if _, err := svc.GetChat(context.Background(), &rpc.GetChatRequest{JID: "missing@s.whatsapp.net"}); code(err) != codes.NotFound {
		t.Errorf("missing chat code = %s", code(err))
	}
	if _, err := svc.GetChat(context.Background(), &rpc.GetChatRequest{}); code(err) != codes.InvalidArgument {
		t.Errorf("empty jid code = %s", code(err))
	}
}

func TestMarkReadResetsUnreadAndSendsReceipts(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	seedIncoming(t, db, "g@g.us", "m1", "a@s.whatsapp.net", 1000)
	seedIncoming(t, db, "g@g.us", "m2", "b@s.whatsapp.net", 2000)
	seedIncoming(t, db, "g@g.us", "m3", "a@s.whatsapp.net", 3000)
	gw := &fakeGateway{connected: true}
	svc := NewChatService(db, b, gw, nil)

	ch, unsub := b.Subscribe(bus.GatewayKind(rpc.KindChatsUpdate), 4)
	defer unsub()

	if _, err := svc.MarkRead(context.Background(), &rpc.MarkReadRequest{ChatJID: "g@g.us"}); err != nil {
		t.Fatal(err)
	}

	c, _ := db.GetChat("g@g.us")
	if c.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0", c.UnreadCount)
	}

	bySender := map[string]int{}
	for _, r := range gw.receipts {
		bySender[r.sender] += len(r.ids)
	}
	if bySender["a@s.whatsapp.net"] != 2 || bySender["b@s.whatsapp.net"] != 1 {
		t.Errorf("receipts = %+v", gw.receipts)
	}

	select {
	case evt := <-ch:
		if list := evt.Payload.([]*rpc.Chat); list[0].UnreadCount != 0 {
			t.Errorf("published unread = %d", list[0].UnreadCount)
		}
	case <-time.After(time.Second):
		t.Fatal("no chats.update published")
	}

	gw.receipts = nil
	if _, err := svc.MarkRead(context.Background(), &rpc.MarkReadRequest{ChatJID: "g@g.us"}); err != nil {
		t.Fatal(err)
	}
	if len(gw.receipts) != 0 {
		t.Errorf("second MarkRead sent receipts: %+v", gw.receipts)
	}
}

func TestListMessagesPagination(t *testing.T) {
	db := testDB(t)
	for i, ts := range []int64{1000, 2000, 3000} {
		seedIncoming(t, db, "a@s.whatsapp.net", string(rune('a'+i)), "", ts)
	}
	svc := NewMessageService(db, nil, nil)

	resp, err := svc.ListMessages(context.Background(), &rpc.ListMessagesRequest{
		ChatJID:    "a@s.whatsapp.net",
		Pagination: &rpc.Pagination{Limit: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Messages) != 2 || !resp.PageInfo.HasMore {
		t.Fatalf("page 1 = %d messages, hasMore=%v", len(resp.Messages), resp.PageInfo.HasMore)
	}
	if resp.Messages[0].TimestampUnixMs != 3000 {
		t.Errorf("first = %d, want newest first", resp.Messages[0].TimestampUnixMs)
	}

	resp, err = svc.ListMessages(context.Background(), &rpc.ListMessagesRequest{
		ChatJID:    "a@s.whatsapp.net",
		Pagination: &rpc.Pagination{Limit: 2, BeforeUnixMs: 2000},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Messages) != 1 || resp.PageInfo.HasMore {
		t.Errorf("page 2 = %d messages, hasMore=%v", len(resp.Messages), resp.PageInfo.HasMore)
	}

	if _, err := svc.ListMessages(context.Background(), &rpc.ListMessagesRequest{}); code(err) != codes.InvalidArgument {
		t.Errorf("missing chat code = %s", code(err))
	}
}

func TestSendErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"invalid", outbox.ErrInvalidRequest, codes.InvalidArgument},
		{"rate limited", outbox.ErrRateLimited, codes.ResourceExhausted},
		{"offline", wa.ErrNotConnected, codes.Unavailable},
		{"other", errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewMessageService(testDB(t), &fakeSender{err: tt.err}, nil)
			_, err := svc.SendText(context.Background(), &rpc.SendTextRequest{ChatJID: "a@s.whatsapp.net", Text: "x"})
			if got := code(err); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSendMediaPassesRequest(t *testing.T) {
	sender := &fakeSender{res: outbox.Result{ID: "srv", Status: rpc.StatusPending}}
	svc := NewMessageService(testDB(t), sender, nil)

	resp, err := svc.SendMedia(context.Background(), &rpc.SendMediaRequest{
		ClientMsgID: "c1", ChatJID: "a@s.whatsapp.net", MimeType: "image/png", Caption: "cap", Data: []byte{1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.ID != "srv" || resp.Status != rpc.StatusPending {
		t.Errorf("resp = %+v", resp)
	}
	if sender.got.Kind != outbox.KindMedia || sender.got.Caption != "cap" || sender.got.ClientMsgID != "c1" {
		t.Errorf("request = %+v", sender.got)
	}
}

func TestSubscribePresence(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewMessageService(testDB(t), nil, gw)
	ctx := context.Background()

	if _, err := svc.SubscribePresence(ctx, &rpc.SubscribePresenceRequest{ChatJID: "a@s.whatsapp.net"}); code(err) != codes.Unavailable {
		t.Errorf("offline code = %s", code(err))
	}
	gw.connected = true
	if _, err := svc.SubscribePresence(ctx, &rpc.SubscribePresenceRequest{ChatJID: "a@s.whatsapp.net"}); err != nil {
		t.Fatal(err)
	}
	if len(gw.subscribed) != 1 {
		t.Errorf("subscribed = %v", gw.subscribed)
	}
}

func TestWatchStampsIdentity(t *testing.T) {
	b := bus.New()
	id := Identity{Session: "main", ServerURL: "unix:///tmp/d.sock", InstanceID: "inst-1"}
	svc := NewEventService(id, b, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stream := newFakeStream[rpc.EventEnvelope](ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Watch(&rpc.WatchEventsRequest{}, stream) }()

	// Wait for the subscription to exist before publishing.
	deadline := time.Now().Add(time.Second)
	for b.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	b.Publish(bus.NewEvent("message.upserted", nil))
	b.Publish(bus.NewEvent(bus.GatewayKind(rpc.KindMessagesUpdate), &rpc.StatusPayload{KeyID: "k1", RemoteJID: "a@s.whatsapp.net", Status: rpc.StatusRead}))

	select {
	case env := <-stream.out:
		if env.Kind != rpc.KindMessagesUpdate {
			t.Errorf("kind = %q", env.Kind)
		}
		if env.Instance != "main" || env.Server != id.ServerURL || env.InstanceID != "inst-1" || env.EventID == "" {
			t.Errorf("envelope = %+v", env)
		}
		var p rpc.StatusPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			t.Fatal(err)
		}
		if p.KeyID != "k1" || p.Status != rpc.StatusRead {
			t.Errorf("data = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("no envelope streamed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
