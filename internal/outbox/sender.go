package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/metrics"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/status"
	"github.com/matheus3301/wppcrm/internal/store"
	"go.uber.org/zap"
)

// Send kinds.
const (
	KindText  = "text"
	KindMedia = "media"
	KindAudio = "audio"
)

var (
	// ErrRateLimited is returned when a chat exceeded its send budget.
	ErrRateLimited = errors.New("send rate limit exceeded")
	// ErrInvalidRequest is returned for requests missing a chat or content.
	ErrInvalidRequest = errors.New("invalid send request")
)

// Gateway is the WhatsApp send API the outbox drives.
type Gateway interface {
	SendText(ctx context.Context, jid, text string) (serverMsgID string, err error)
	SendMedia(ctx context.Context, jid string, data []byte, mimeType, caption, fileName string) (string, error)
	SendAudio(ctx context.Context, jid string, data []byte) (string, error)
}

// StateSource reports the current session state.
type StateSource interface {
	Current() status.State
}

// Request is one outgoing message. ClientMsgID identifies the optimistic
// row until the gateway assigns its own id; one is generated when empty.
type Request struct {
	ClientMsgID string
	ChatJID     string
	Kind        string
	Text        string
	Data        []byte
	MimeType    string
	Caption     string
	FileName    string
}

// Result is the id and status reported back to the caller. ID is the
// gateway id, or the client id while the message is queued.
type Result struct {
	ID     string
	Status string
}

// Option configures a Sender.
type Option func(*Sender)

// WithLimiter applies a per-chat rate limit to Send.
func WithLimiter(l *ChatLimiter) Option {
	return func(s *Sender) { s.limiter = l }
}

// WithState makes Send queue instead of sending while the session cannot send.
func WithState(src StateSource) Option {
	return func(s *Sender) { s.state = src }
}

// WithPollInterval sets how often queued entries are retried.
func WithPollInterval(d time.Duration) Option {
	return func(s *Sender) { s.interval = d }
}

// Sender sends messages through the gateway, queueing them in the outbox
// while the session is not ready.
type Sender struct {
	db       *store.DB
	gateway  Gateway
	bus      *bus.Bus
	metrics  *metrics.Metrics
	logger   *zap.Logger
	limiter  *ChatLimiter
	state    StateSource
	interval time.Duration

	// claim serializes moving entries out of 'queued'.
	claim  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSender creates a new outbox sender. m may be nil.
func NewSender(db *store.DB, gw Gateway, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger, opts ...Option) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sender{
		db:       db,
		gateway:  gw,
		bus:      b,
		metrics:  m,
		logger:   logger,
		interval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins draining queued entries in the background.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the drain loop and waits for it to exit.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sender) canSend() bool {
	return s.state == nil || status.CanSend(s.state.Current())
}

// Send validates req, applies the chat's rate limit and either delivers it
// now or, when the session cannot send, queues it and reports QUEUED.
func (s *Sender) Send(ctx context.Context, req Request) (Result, error) {
	if err := validate(&req); err != nil {
		return Result{}, err
	}
	if !s.limiter.Allow(req.ChatJID, time.Now()) {
		s.metrics.Limited()
		return Result{}, ErrRateLimited
	}

	entry := &store.OutboxEntry{
		ClientMsgID: req.ClientMsgID,
		ChatJID:     req.ChatJID,
		Kind:        req.Kind,
		Body:        req.Text,
		MimeType:    req.MimeType,
		FileName:    req.FileName,
		Payload:     req.Data,
	}
	if req.Kind == KindMedia {
		entry.Body = req.Caption
	}

	s.claim.Lock()
	if err := s.db.QueueOutbox(entry); err != nil {
		s.claim.Unlock()
		return Result{}, fmt.Errorf("queue outbox: %w", err)
	}
	ready := s.canSend()
	if ready {
		if _, err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.claim.Unlock()
			return Result{}, fmt.Errorf("mark sending: %w", err)
		}
	}
	s.claim.Unlock()

	if !ready {
		if err := s.showOptimistic(entry, rpc.StatusQueued); err != nil {
			return Result{}, err
		}
		s.logger.Info("message queued", zap.String("client_msg_id", entry.ClientMsgID), zap.String("chat_jid", entry.ChatJID))
		return Result{ID: entry.ClientMsgID, Status: rpc.StatusQueued}, nil
	}
	return s.deliver(ctx, entry)
}

func validate(req *Request) error {
	req.ChatJID = strings.TrimSpace(req.ChatJID)
	if req.ChatJID == "" {
		return fmt.Errorf("%w: chat is required", ErrInvalidRequest)
	}
	if req.Kind == "" {
		req.Kind = KindText
	}
	switch req.Kind {
	case KindText:
		if strings.TrimSpace(req.Text) == "" {
			return fmt.Errorf("%w: text is required", ErrInvalidRequest)
		}
	case KindMedia, KindAudio:
		if len(req.Data) == 0 {
			return fmt.Errorf("%w: %s data is required", ErrInvalidRequest, req.Kind)
		}
		if req.Kind == KindMedia && req.MimeType == "" {
			return fmt.Errorf("%w: mime type is required", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	}
	if req.ClientMsgID == "" {
		req.ClientMsgID = uuid.NewString()
	}
	return nil
}

// showOptimistic writes the local copy of an outgoing message so it shows in
// history before the gateway confirms it.
func (s *Sender) showOptimistic(e *store.OutboxEntry, st string) error {
	msg := &store.Message{
		ChatJID:     e.ChatJID,
		MsgID:       e.ClientMsgID,
		Body:        e.Body,
		MessageType: messageType(e),
		FromMe:      true,
		Status:      st,
		Timestamp:   time.Now().UnixMilli(),
	}
	if e.Kind == KindMedia {
		msg.Body = ""
		msg.Caption = e.Body
	}
	if _, err := s.db.TouchChat(msg); err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if err := s.db.UpsertMessage(msg); err != nil {
		return fmt.Errorf("insert optimistic row: %w", err)
	}
	s.bus.Publish(bus.NewEvent(bus.KindMessageUpserted, map[string]string{
		"chat_jid": e.ChatJID,
		"msg_id":   e.ClientMsgID,
	}))
	return nil
}

func (s *Sender) deliver(ctx context.Context, e *store.OutboxEntry) (Result, error) {
	if err := s.showOptimistic(e, "sending"); err != nil {
		return Result{}, err
	}

	start := time.Now()
	serverMsgID, err := s.call(ctx, e)
	if err != nil {
		s.metrics.Sent(e.Kind, "error", time.Since(start))
		s.logger.Error("failed to send message", zap.Error(err),
			zap.String("client_msg_id", e.ClientMsgID), zap.String("kind", e.Kind))
		_ = s.db.MarkOutboxFailed(e.ClientMsgID, err.Error())
		_ = s.db.SetMessageStatus(e.ChatJID, e.ClientMsgID, rpc.StatusError)
		s.bus.Publish(bus.NewEvent(bus.KindMessageSendFailed, map[string]string{
			"client_msg_id": e.ClientMsgID,
			"chat_jid":      e.ChatJID,
			"error":         err.Error(),
		}))
		return Result{}, fmt.Errorf("send %s: %w", e.Kind, err)
	}
	s.metrics.Sent(e.Kind, "ok", time.Since(start))

	if err := s.db.ConfirmOutgoing(e.ChatJID, e.ClientMsgID, serverMsgID, rpc.StatusPending); err != nil {
		s.logger.Error("failed to confirm optimistic row", zap.Error(err), zap.String("client_msg_id", e.ClientMsgID))
	}
	if err := s.db.MarkOutboxSent(e.ClientMsgID, serverMsgID); err != nil {
		s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", e.ClientMsgID))
	}

	s.logger.Info("message sent", zap.String("client_msg_id", e.ClientMsgID), zap.String("server_msg_id", serverMsgID))
	s.bus.Publish(bus.NewEvent(bus.KindMessageSendAck, map[string]string{
		"client_msg_id": e.ClientMsgID,
		"server_msg_id": serverMsgID,
		"chat_jid":      e.ChatJID,
	}))
	return Result{ID: serverMsgID, Status: rpc.StatusPending}, nil
}

func (s *Sender) call(ctx context.Context, e *store.OutboxEntry) (string, error) {
	switch e.Kind {
	case KindMedia:
		return s.gateway.SendMedia(ctx, e.ChatJID, e.Payload, e.MimeType, e.Body, e.FileName)
	case KindAudio:
		return s.gateway.SendAudio(ctx, e.ChatJID, e.Payload)
	default:
		return s.gateway.SendText(ctx, e.ChatJID, e.Body)
	}
}

func messageType(e *store.OutboxEntry) string {
	switch e.Kind {
	case KindAudio:
		return "audio"
	case KindMedia:
		m := strings.ToLower(e.MimeType)
		switch {
		case strings.HasPrefix(m, "image/"):
			return "image"
		case strings.HasPrefix(m, "video/"):
			return "video"
		default:
			return "document"
		}
	default:
		return "text"
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.canSend() {
				s.processPending(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

// processPending sends every queued entry once. Failed entries are not retried.
func (s *Sender) processPending(ctx context.Context) {
	s.claim.Lock()
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.claim.Unlock()
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}
	claimed := pending[:0]
	for _, entry := range pending {
		ok, err := s.db.MarkOutboxSending(entry.ClientMsgID)
		if err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}
		if ok {
			claimed = append(claimed, entry)
		}
	}
	s.claim.Unlock()

	for i := range claimed {
		if ctx.Err() != nil {
			return
		}
		// Errors are already logged and published by deliver.
		_, _ = s.deliver(ctx, &claimed[i])
	}
}
