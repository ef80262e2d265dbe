package inbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppcrm/internal/rpc"
)

// SendResult is the gateway's answer to an outbound command.
type SendResult struct {
	ID     string
	Status string
}

// Media is an outbound media payload.
type Media struct {
	Data     []byte
	MimeType string
	Caption  string
	FileName string
}

// Gateway is the outbound command sink. clientID is the provisional message
// id, forwarded so the daemon's stored row shares the UI entry's identity.
type Gateway interface {
	SendText(ctx context.Context, counterpart, clientID, text string) (SendResult, error)
	SendMedia(ctx context.Context, counterpart, clientID string, media Media) (SendResult, error)
	SendAudio(ctx context.Context, counterpart, clientID string, data []byte) (SendResult, error)
}

// Reconciler shows outbound messages immediately and folds the gateway's
// echo into the provisional entry instead of displaying it twice.
//
// Matching is heuristic: an echo claims the first unconfirmed entry to the
// same counterpart with equal text, compatible media and a timestamp within
// MatchWindow. Rapid resends of identical text may pair out of order.
type Reconciler struct {
	cfg   Config
	cache *Cache
	gw    Gateway

	// onPending runs once the provisional entry is cached, before the
	// gateway is called.
	onPending func(Message)

	now   func() time.Time
	newID func() string
}

// NewReconciler returns a Reconciler that sends through gw.
func NewReconciler(cfg Config, cache *Cache, gw Gateway) *Reconciler {
	return &Reconciler{
		cfg:   cfg.withDefaults(),
		cache: cache,
		gw:    gw,
		now:   time.Now,
		newID: func() string { return LocalIDPrefix + uuid.NewString() },
	}
}

// SendText appends a provisional text message and sends it. The returned
// message reflects its status after the command: the response status,
// PENDING when the response carries none, or ERROR on failure.
func (r *Reconciler) SendText(ctx context.Context, counterpart, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}
	mock := r.provisional(counterpart, KindText)
	mock.Text = text
	return r.send(mock, func(clientID string) (SendResult, error) {
		return r.gw.SendText(ctx, counterpart, clientID, text)
	})
}

// SendMedia appends a provisional media message and sends it.
func (r *Reconciler) SendMedia(ctx context.Context, counterpart string, media Media) (Message, error) {
	if len(media.Data) == 0 {
		return Message{}, ErrEmptyMessage
	}
	mock := r.provisional(counterpart, kindForMime(media.MimeType))
	mock.Caption = media.Caption
	return r.send(mock, func(clientID string) (SendResult, error) {
		return r.gw.SendMedia(ctx, counterpart, clientID, media)
	})
}

// SendAudio appends a provisional voice note and sends it.
func (r *Reconciler) SendAudio(ctx context.Context, counterpart string, data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, ErrEmptyMessage
	}
	mock := r.provisional(counterpart, KindAudio)
	return r.send(mock, func(clientID string) (SendResult, error) {
		return r.gw.SendAudio(ctx, counterpart, clientID, data)
	})
}

func (r *Reconciler) provisional(counterpart, kind string) Message {
	return Message{
		ID:             r.newID(),
		SentByMe:       true,
		Timestamp:      r.now().UnixMilli(),
		Counterpart:    counterpart,
		Kind:           kind,
		DeliveryStatus: rpc.StatusSent,
	}
}

func (r *Reconciler) send(mock Message, call func(clientID string) (SendResult, error)) (Message, error) {
	r.cache.Append(mock.Counterpart, mock)
	if r.onPending != nil {
		r.onPending(mock)
	}

	res, err := call(mock.ID)
	if err != nil {
		mock.DeliveryStatus = rpc.StatusError
		r.cache.SetStatus(mock.Counterpart, mock.ID, mock.DeliveryStatus)
		return mock, fmt.Errorf("send %s: %w", mock.Kind, err)
	}

	mock.DeliveryStatus = res.Status
	if mock.DeliveryStatus == "" {
		mock.DeliveryStatus = rpc.StatusPending
	}
	r.cache.SetStatus(mock.Counterpart, mock.ID, mock.DeliveryStatus)
	return mock, nil
}

// Receive applies a live message. An outbound echo replaces the provisional
// entry it confirms; anything else is appended. It reports whether a
// provisional entry was replaced.
func (r *Reconciler) Receive(m Message) bool {
	if !m.SentByMe {
		r.cache.Append(m.Counterpart, m)
		return false
	}

	confirmed := m
	if confirmed.KeyID == "" {
		confirmed.KeyID = m.ID
	}
	return r.cache.Reconcile(m.Counterpart, r.matcher(m), confirmed)
}

func (r *Reconciler) matcher(echo Message) func(Message) bool {
	window := r.cfg.MatchWindow.Milliseconds()
	return func(c Message) bool {
		if !c.Provisional() || c.Text != echo.Text {
			return false
		}
		if c.MediaURL != "" && c.MediaURL != echo.MediaURL {
			return false
		}
		if c.HasMedia() != echo.HasMedia() {
			return false
		}
		d := c.Timestamp - echo.Timestamp
		if d < 0 {
			d = -d
		}
		return d < window
	}
}

func kindForMime(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	}
	return KindDocument
}
