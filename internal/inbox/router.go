package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/matheus3301/wppcrm/internal/rpc"
	"go.uber.org/zap"
)

// Event is a decoded push event. The set of variants is closed.
type Event interface {
	isEvent()
}

// MessageUpsert carries a new or echoed message.
type MessageUpsert struct {
	Echo    bool // send.message
	Message Message
}

// StatusUpdate carries a delivery receipt.
type StatusUpdate struct {
	KeyID       string
	Counterpart string
	Status      string
}

// PresenceUpdate carries a typing/recording/online change.
type PresenceUpdate struct {
	Counterpart string
	Presence    string
}

// ChatUpdate carries conversation metadata changes.
type ChatUpdate struct {
	Chats []*rpc.Chat
}

func (MessageUpsert) isEvent()  {}
func (StatusUpdate) isEvent()   {}
func (PresenceUpdate) isEvent() {}
func (ChatUpdate) isEvent()     {}

// EventSource yields push events until it fails or ends.
type EventSource interface {
	Recv() (*rpc.EventEnvelope, error)
}

// Router filters push events to the configured instance and dispatches them
// to the cache, reconciler and conversation list.
type Router struct {
	cfg      Config
	recon    *Reconciler
	cache    *Cache
	convs    *Conversations
	presence *Presence
	guard    *Guard
	logger   *zap.Logger
	onChange func(Event)
	now      func() time.Time
}

// NewRouter wires a Router. onChange, when set, runs after every dispatch.
func NewRouter(cfg Config, recon *Reconciler, cache *Cache, convs *Conversations, presence *Presence, guard *Guard, logger *zap.Logger, onChange func(Event)) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:      cfg.withDefaults(),
		recon:    recon,
		cache:    cache,
		convs:    convs,
		presence: presence,
		guard:    guard,
		logger:   logger,
		onChange: onChange,
		now:      time.Now,
	}
}

// Accepts reports whether env was produced by the configured instance.
func (r *Router) Accepts(env *rpc.EventEnvelope) bool {
	if env == nil {
		return false
	}
	if !strings.Contains(env.Server, r.cfg.ServerURL) || env.Instance != r.cfg.Instance {
		return false
	}
	if env.InstanceID != "" && r.cfg.InstanceID != "" && env.InstanceID != r.cfg.InstanceID {
		return false
	}
	return true
}

// Decode turns an accepted envelope into an Event. It returns false for
// foreign instances, unknown kinds and undecodable payloads.
func (r *Router) Decode(env *rpc.EventEnvelope) (Event, bool) {
	if !r.Accepts(env) {
		return nil, false
	}

	switch env.Kind {
	case rpc.KindMessagesUpsert, rpc.KindSendMessage:
		var raw rpc.RawMessage
		if !r.unmarshal(env, &raw) {
			return nil, false
		}
		m := FromRaw(&raw, r.now())
		if m.Counterpart == "" {
			return nil, false
		}
		return MessageUpsert{Echo: env.Kind == rpc.KindSendMessage, Message: m}, true

	case rpc.KindMessagesUpdate:
		var p rpc.StatusPayload
		if !r.unmarshal(env, &p) || p.KeyID == "" || p.Status == "" {
			return nil, false
		}
		return StatusUpdate{KeyID: p.KeyID, Counterpart: NormalizeCounterpart(p.RemoteJID), Status: p.Status}, true

	case rpc.KindPresenceUpdate:
		var p rpc.PresencePayload
		if !r.unmarshal(env, &p) || p.ID == "" {
			return nil, false
		}
		st, ok := p.Presences[p.ID]
		if !ok {
			return nil, false
		}
		return PresenceUpdate{Counterpart: NormalizeCounterpart(p.ID), Presence: st.LastKnownPresence}, true

	case rpc.KindChatsUpsert, rpc.KindChatsUpdate:
		var chats []*rpc.Chat
		if !r.unmarshal(env, &chats) || len(chats) == 0 {
			return nil, false
		}
		return ChatUpdate{Chats: chats}, true
	}

	r.logger.Debug("unhandled event kind", zap.String("event", env.Kind))
	return nil, false
}

func (r *Router) unmarshal(env *rpc.EventEnvelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		r.logger.Debug("dropping undecodable event", zap.String("event", env.Kind), zap.Error(err))
		return false
	}
	return true
}

// Dispatch applies one event.
func (r *Router) Dispatch(ev Event) {
	switch e := ev.(type) {
	case MessageUpsert:
		r.recon.Receive(e.Message)
		onScreen := r.guard.Current().Counterpart() == e.Message.Counterpart
		r.convs.Touch(e.Message, onScreen)
	case StatusUpdate:
		r.cache.UpdateStatus(e.KeyID, e.Status)
	case PresenceUpdate:
		r.presence.Set(e.Counterpart, e.Presence)
	case ChatUpdate:
		r.convs.Load(e.Chats)
		// The daemon counts every inbound message, including the ones read
		// on screen.
		if cp := r.guard.Current().Counterpart(); cp != "" {
			r.convs.MarkRead(cp)
		}
	default:
		return
	}
	if r.onChange != nil {
		r.onChange(ev)
	}
}

// Run dispatches events from src until the stream ends or fails. A clean
// end of stream returns nil.
func (r *Router) Run(ctx context.Context, src EventSource) error {
	for {
		env, err := src.Recv()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if ev, ok := r.Decode(env); ok {
			r.Dispatch(ev)
		}
	}
}
