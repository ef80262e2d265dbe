package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/config"
	"github.com/matheus3301/wppcrm/internal/lock"
	"github.com/matheus3301/wppcrm/internal/metrics"
	"github.com/matheus3301/wppcrm/internal/outbox"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/status"
	"github.com/matheus3301/wppcrm/internal/store"
	"github.com/matheus3301/wppcrm/internal/tui/client"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type echoGateway struct{}

func (echoGateway) SendText(context.Context, string, string) (string, error) {
	return "3EB0SERVER", nil
}

func (echoGateway) SendMedia(context.Context, string, []byte, string, string, string) (string, error) {
	return "3EB0MEDIA", nil
}

func (echoGateway) SendAudio(context.Context, string, []byte) (string, error) {
	return "3EB0AUDIO", nil
}

type harness struct {
	db      *store.DB
	bus     *bus.Bus
	machine *status.Machine
	client  *client.Client
}

// startDaemon wires the services the way the fx module does, minus the
// WhatsApp adapter, and serves them on a socket under /tmp.
func startDaemon(t *testing.T, withSender bool) *harness {
	t.Helper()

	// Use a short path to avoid macOS 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "wppcrm-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	lk, err := lock.Acquire(tmpDir, "daemon-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = lk.Release() })

	db, err := store.Open(filepath.Join(tmpDir, "wppcrm.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	socketPath := filepath.Join(tmpDir, "d.sock")
	logger := zap.NewNop()
	b := bus.New()
	machine := status.NewMachine(b)
	id := api.Identity{Session: "test", ServerURL: "unix://" + socketPath, InstanceID: "inst-test"}

	var sender api.Sender
	if withSender {
		sender = outbox.NewSender(db, echoGateway{}, b, nil, logger, outbox.WithState(machine))
	}

	srv, err := NewServer(Params{SessionName: "test", SocketPath: socketPath}, logger, metrics.New(), Services{
		Session: api.NewSessionService(id, machine, nil, db, time.Second, logger),
		Chat:    api.NewChatService(db, b, nil, logger),
		Message: api.NewMessageService(db, sender, nil),
		Events:  api.NewEventService(id, b, logger),
	})
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	t.Cleanup(func() { srv.Stop(context.Background()) })

	c, err := client.New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return &harness{db: db, bus: b, machine: machine, client: c}
}

func TestDaemonLifecycle(t *testing.T) {
	h := startDaemon(t, true)
	ctx := context.Background()

	resp, err := h.client.Session.GetSessionStatus(ctx, &rpc.GetSessionStatusRequest{})
	if err != nil {
		t.Fatalf("GetSessionStatus error = %v", err)
	}
	if resp.Session != "test" || resp.InstanceID != "inst-test" {
		t.Errorf("identity = %q/%q", resp.Session, resp.InstanceID)
	}
	if resp.Status != string(status.Booting) {
		t.Errorf("status = %v, want BOOTING", resp.Status)
	}

	chats, err := h.client.Chat.ListChats(ctx, &rpc.ListChatsRequest{})
	if err != nil {
		t.Fatalf("ListChats error = %v", err)
	}
	if len(chats.Chats) != 0 {
		t.Errorf("expected 0 chats, got %d", len(chats.Chats))
	}

	m := &store.Message{ChatJID: "5531@s.whatsapp.net", MsgID: "m1", KeyID: "m1", Body: "hello world", MessageType: "text", Timestamp: 1000}
	if _, err := h.db.TouchChat(m); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	chats, err = h.client.Chat.ListChats(ctx, &rpc.ListChatsRequest{})
	if err != nil {
		t.Fatalf("ListChats error = %v", err)
	}
	if len(chats.Chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(chats.Chats))
	}

	msgs, err := h.client.Message.ListMessages(ctx, &rpc.ListMessagesRequest{ChatJID: m.ChatJID})
	if err != nil {
		t.Fatalf("ListMessages error = %v", err)
	}
	if len(msgs.Messages) != 1 || msgs.Messages[0].Body != "hello world" {
		t.Errorf("messages = %+v", msgs.Messages)
	}

	found, err := h.client.Message.SearchMessages(ctx, &rpc.SearchMessagesRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("SearchMessages error = %v", err)
	}
	if len(found.Results) != 1 {
		t.Errorf("expected 1 search result, got %d", len(found.Results))
	}

	_ = h.machine.Transition(status.AuthRequired)
	_ = h.machine.Transition(status.Connecting)
	_ = h.machine.Transition(status.Syncing)
	_ = h.machine.Transition(status.Ready)

	sent, err := h.client.Message.SendText(ctx, &rpc.SendTextRequest{ClientMsgID: "c1", ChatJID: m.ChatJID, Text: "test"})
	if err != nil {
		t.Fatalf("SendText error = %v", err)
	}
	if sent.ID != "3EB0SERVER" || sent.Status != rpc.StatusPending {
		t.Errorf("SendText = %+v", sent)
	}
}

func TestSendQueuedBeforeReady(t *testing.T) {
	h := startDaemon(t, true)
	_ = h.machine.Transition(status.AuthRequired)

	sent, err := h.client.Message.SendText(context.Background(), &rpc.SendTextRequest{ClientMsgID: "c1", ChatJID: "5531@s.whatsapp.net", Text: "later"})
	if err != nil {
		t.Fatalf("SendText error = %v", err)
	}
	if sent.ID != "c1" || sent.Status != rpc.StatusQueued {
		t.Errorf("SendText = %+v, want queued under client id", sent)
	}
}

func TestSendUnavailableWithoutSender(t *testing.T) {
	h := startDaemon(t, false)

	_, err := h.client.Message.SendText(context.Background(), &rpc.SendTextRequest{ChatJID: "5531@s.whatsapp.net", Text: "x"})
	if grpcstatus.Code(err) != codes.Unavailable {
		t.Errorf("SendText error = %v, want Unavailable", err)
	}
}

// TestStatusReflectsPostAuthTransition verifies that the status endpoint
// follows the machine through the pairing path.
// Regression: the daemon stayed stuck on AUTH_REQUIRED after QR auth because
// the Connected event tried an invalid AUTH_REQUIRED→SYNCING transition.
func TestStatusReflectsPostAuthTransition(t *testing.T) {
	h := startDaemon(t, false)
	ctx := context.Background()

	steps := []status.State{status.AuthRequired, status.Connecting, status.Syncing, status.Ready}
	for _, st := range steps {
		if err := h.machine.Transition(st); err != nil {
			t.Fatalf("Transition(%s) error = %v", st, err)
		}
		resp, err := h.client.Session.GetSessionStatus(ctx, &rpc.GetSessionStatusRequest{})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Status != string(st) {
			t.Errorf("status = %v, want %v", resp.Status, st)
		}
		if resp.StatusMessage == "" {
			t.Errorf("no status message for %v", st)
		}
	}
}

func TestWatchOverSocket(t *testing.T) {
	h := startDaemon(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := h.client.Events.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.bus.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.bus.Publish(bus.NewEvent(bus.GatewayKind(rpc.KindPresenceUpdate), map[string]any{"id": "5531@s.whatsapp.net"}))

	got := make(chan *rpc.EventEnvelope, 1)
	go func() {
		env, err := stream.Recv()
		if err == nil {
			got <- env
		}
	}()

	select {
	case env := <-got:
		if env.Kind != rpc.KindPresenceUpdate || env.Instance != "test" || env.InstanceID != "inst-test" {
			t.Errorf("envelope = %+v", env)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received over the socket")
	}
}

// Regression: a bare `string` param on NewServer made fx fail with
// "missing type: string".
func TestNewServerUsesParamsSocket(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "wppcrm-fx-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")
	machine := status.NewMachine(nil)
	srv, err := NewServer(Params{SessionName: "fxtest", SocketPath: socketPath}, zap.NewNop(), nil, Services{
		Session: api.NewSessionService(api.Identity{Session: "fxtest"}, machine, nil, nil, time.Second, nil),
		Chat:    api.NewChatService(nil, nil, nil, nil),
		Message: api.NewMessageService(nil, nil, nil),
		Events:  api.NewEventService(api.Identity{Session: "fxtest"}, bus.New(), nil),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer srv.Stop(context.Background())

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("socket mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestModuleGraphResolves(t *testing.T) {
	err := fx.ValidateApp(Module(Params{SessionName: "fxtest", Config: config.Default()}))
	if err != nil {
		t.Fatalf("fx graph invalid: %v", err)
	}
}
