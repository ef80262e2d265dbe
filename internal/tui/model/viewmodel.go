package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wppcrm/internal/inbox"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"go.uber.org/zap"
)

const (
	chatPageSize   = 500
	searchPageSize = 50
	watchRetry     = 2 * time.Second
)

// ViewModel holds the inbox for the connected daemon and signals the UI
// when live events change what is on screen.
type ViewModel struct {
	mu sync.RWMutex

	daemon Daemon
	tuning inbox.Config
	logger *zap.Logger

	inbox  *inbox.Inbox
	status *rpc.GetSessionStatusResponse
	labels []*rpc.Label

	Flash *ui.FlashModel

	ctx     context.Context
	changed chan struct{}
}

// NewViewModel creates a view model. tuning supplies the page sizes and
// match window; the instance identity is filled in by Start.
func NewViewModel(d Daemon, tuning inbox.Config, logger *zap.Logger) *ViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewModel{
		daemon:  d,
		tuning:  tuning,
		logger:  logger,
		Flash:   ui.NewFlashModel(),
		ctx:     context.Background(),
		changed: make(chan struct{}, 1),
	}
}

// Changes signals that live events or a send changed what is on screen.
// Signals coalesce: one pending receive covers every change since the last.
func (vm *ViewModel) Changes() <-chan struct{} {
	return vm.changed
}

func (vm *ViewModel) onEvent(ev inbox.Event) {
	if up, ok := ev.(inbox.MessageUpsert); ok && !up.Message.SentByMe {
		vm.markOpenRead(up.Message.Counterpart)
	}
	select {
	case vm.changed <- struct{}{}:
	default:
	}
}

// markOpenRead acknowledges a message arriving in the conversation on
// screen, so the daemon's unread count and receipts follow what was seen.
func (vm *ViewModel) markOpenRead(counterpart string) {
	in := vm.Inbox()
	if in == nil || in.Current().Counterpart() != counterpart {
		return
	}
	vm.mu.RLock()
	ctx := vm.ctx
	vm.mu.RUnlock()

	jid := inbox.JIDFor(counterpart)
	go func() {
		if _, err := vm.daemon.Chat.MarkRead(ctx, &rpc.MarkReadRequest{ChatJID: jid}); err != nil {
			vm.logger.Debug("mark read failed", zap.String("chat_jid", jid), zap.Error(err))
		}
	}()
}

// Start loads the session status, builds the inbox for that instance, loads
// the conversation list and starts consuming live events until ctx ends.
func (vm *ViewModel) Start(ctx context.Context) error {
	st, err := vm.LoadStatus(ctx)
	if err != nil {
		return err
	}

	cfg := vm.tuning
	cfg.Instance = st.Session
	cfg.InstanceID = st.InstanceID
	cfg.ServerURL = st.ServerURL
	in := inbox.New(cfg, inbox.RPCStore{Client: vm.daemon.Message}, inbox.RPCGateway{Client: vm.daemon.Message}, vm.logger, vm.onEvent)

	vm.mu.Lock()
	vm.inbox = in
	vm.ctx = ctx
	vm.mu.Unlock()

	if err := vm.LoadChats(ctx); err != nil {
		vm.logger.Warn("initial chat load failed", zap.Error(err))
		vm.Flash.Warn("Could not load conversations: " + err.Error())
	}
	if err := vm.LoadLabels(ctx); err != nil {
		vm.logger.Debug("label load failed", zap.Error(err))
	}

	go vm.watch(ctx, in)
	return nil
}

// watch keeps a Watch stream open, reconnecting after failures.
func (vm *ViewModel) watch(ctx context.Context, in *inbox.Inbox) {
	for ctx.Err() == nil {
		stream, err := vm.daemon.Events.Watch(ctx)
		if err == nil {
			err = in.Run(ctx, stream)
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			vm.logger.Warn("event stream ended", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(watchRetry):
		}
	}
}

// Inbox returns the inbox built by Start, or nil before it.
func (vm *ViewModel) Inbox() *inbox.Inbox {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.inbox
}

// LoadStatus fetches the session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) (*rpc.GetSessionStatusResponse, error) {
	resp, err := vm.daemon.Session.GetSessionStatus(ctx, &rpc.GetSessionStatusRequest{})
	if err != nil {
		return nil, err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	return resp, nil
}

// Status returns the last fetched session status.
func (vm *ViewModel) Status() *rpc.GetSessionStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// LoadChats merges the daemon's chat list into the conversation list.
func (vm *ViewModel) LoadChats(ctx context.Context) error {
	in := vm.Inbox()
	if in == nil {
		return errNotStarted
	}
	resp, err := vm.daemon.Chat.ListChats(ctx, &rpc.ListChatsRequest{
		Pagination: &rpc.Pagination{Limit: chatPageSize},
	})
	if err != nil {
		return err
	}
	in.LoadConversations(resp.Chats)
	return nil
}

// LoadLabels fetches the label catalog.
func (vm *ViewModel) LoadLabels(ctx context.Context) error {
	resp, err := vm.daemon.Chat.ListLabels(ctx, &rpc.ListLabelsRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.labels = resp.Labels
	vm.mu.Unlock()
	return nil
}

// Labels returns the label catalog.
func (vm *ViewModel) Labels() []*rpc.Label {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.labels
}

// Conversations returns the sorted conversation list.
func (vm *ViewModel) Conversations() []inbox.Summary {
	in := vm.Inbox()
	if in == nil {
		return nil
	}
	return in.Conversations()
}

// Open switches to counterpart and returns its session with whatever is
// cached. Marking read and presence subscription run in the background.
func (vm *ViewModel) Open(ctx context.Context, counterpart string) (inbox.Session, []inbox.Message, error) {
	in := vm.Inbox()
	if in == nil {
		return inbox.Session{}, nil, errNotStarted
	}
	s, cached := in.Open(counterpart)
	jid := inbox.JIDFor(s.Counterpart())

	go func() {
		if _, err := vm.daemon.Chat.MarkRead(ctx, &rpc.MarkReadRequest{ChatJID: jid}); err != nil {
			vm.logger.Debug("mark read failed", zap.String("chat_jid", jid), zap.Error(err))
		}
		if _, err := vm.daemon.Message.SubscribePresence(ctx, &rpc.SubscribePresenceRequest{ChatJID: jid}); err != nil {
			vm.logger.Debug("presence subscribe failed", zap.String("chat_jid", jid), zap.Error(err))
		}
	}()
	return s, cached, nil
}

// Refresh loads the newest page for s.
func (vm *ViewModel) Refresh(ctx context.Context, s inbox.Session) (inbox.Page, error) {
	in := vm.Inbox()
	if in == nil {
		return inbox.Page{}, errNotStarted
	}
	return in.Refresh(ctx, s)
}

// LoadMore loads the next older page for s.
func (vm *ViewModel) LoadMore(ctx context.Context, s inbox.Session) (inbox.Page, error) {
	in := vm.Inbox()
	if in == nil {
		return inbox.Page{}, errNotStarted
	}
	return in.LoadMore(ctx, s)
}

// Chat fetches one chat, which also resolves its avatar on the daemon.
func (vm *ViewModel) Chat(ctx context.Context, counterpart string) (*rpc.Chat, error) {
	resp, err := vm.daemon.Chat.GetChat(ctx, &rpc.GetChatRequest{JID: inbox.JIDFor(counterpart)})
	if err != nil {
		return nil, err
	}
	if in := vm.Inbox(); in != nil && resp.Chat != nil {
		in.LoadConversations([]*rpc.Chat{resp.Chat})
	}
	return resp.Chat, nil
}

// Compose sends one composer line to the conversation of s.
func (vm *ViewModel) Compose(ctx context.Context, s inbox.Session, line string) (inbox.Message, error) {
	in := vm.Inbox()
	if in == nil {
		return inbox.Message{}, errNotStarted
	}
	c, err := ParseCompose(line)
	if err != nil {
		return inbox.Message{}, err
	}

	switch c.Kind {
	case ComposeFile:
		media, err := readAttachment(c.Path)
		if err != nil {
			return inbox.Message{}, fmt.Errorf("attach %s: %w", c.Path, err)
		}
		media.Caption = c.Caption
		return in.SendMedia(ctx, s, media)
	case ComposeAudio:
		media, err := readAttachment(c.Path)
		if err != nil {
			return inbox.Message{}, fmt.Errorf("attach %s: %w", c.Path, err)
		}
		return in.SendAudio(ctx, s, media.Data)
	}
	return in.SendText(ctx, s, c.Text)
}

// Search runs a full-text search over stored messages.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]*rpc.SearchResult, error) {
	resp, err := vm.daemon.Message.SearchMessages(ctx, &rpc.SearchMessagesRequest{
		Query:      query,
		Pagination: &rpc.Pagination{Limit: searchPageSize},
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// StartAuth opens the pairing stream.
func (vm *ViewModel) StartAuth(ctx context.Context) (rpc.ClientStream[rpc.AuthEvent], error) {
	return vm.daemon.Session.StartAuth(ctx, &rpc.StartAuthRequest{})
}

// PairPhone requests a phone pairing code.
func (vm *ViewModel) PairPhone(ctx context.Context, phone string) (string, error) {
	resp, err := vm.daemon.Session.PairPhone(ctx, &rpc.PairPhoneRequest{Phone: phone})
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

// Logout unlinks the session.
func (vm *ViewModel) Logout(ctx context.Context) error {
	_, err := vm.daemon.Session.Logout(ctx, &rpc.LogoutRequest{})
	return err
}

var errNotStarted = errors.New("inbox not started")
