package sync

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/metrics"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/store"
	"github.com/matheus3301/wppcrm/internal/wa"
	"go.uber.org/zap"
)

// Message sources, used as the metrics label.
const (
	SourceLive    = "live"
	SourceSent    = "sent"
	SourceHistory = "history"
)

// Engine handles idempotent ingestion of gateway events into the store.
// It subscribes to "wa.*" events on the bus and, after each write,
// re-publishes the change as a gateway push event under "gateway.<kind>".
type Engine struct {
	db       *store.DB
	bus      *bus.Bus
	instance string
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEngine creates a new sync engine. instance tags every stored message.
func NewEngine(db *store.DB, b *bus.Bus, instance string, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:       db,
		bus:      b,
		instance: instance,
		metrics:  m,
		logger:   logger,
	}
}

// Start subscribes to inbound WhatsApp events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe(bus.NamespaceWA, 1024)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the current event to finish.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	var err error
	switch p := evt.Payload.(type) {
	case *wa.ParsedMessage:
		source := SourceLive
		if evt.Kind == bus.KindWASent {
			source = SourceSent
		}
		err = e.ingest(p, source)
	case []*wa.ParsedMessage:
		err = e.IngestHistoryBatch(p)
		if err == nil {
			e.logger.Info("history batch ingested", zap.Int("messages", len(p)))
		}
	case []*store.Contact:
		err = e.IngestContacts(p)
	case wa.Receipt:
		err = e.ApplyReceipt(p)
	case wa.PresenceChange:
		e.ApplyPresence(p)
	case wa.ChatMeta:
		err = e.ApplyChatMeta(p)
	case wa.LabelChange:
		err = e.ApplyLabel(p)
	default:
		e.logger.Debug("unhandled bus event", zap.String("kind", evt.Kind))
	}
	if err != nil {
		e.logger.Error("failed to ingest event", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

// IngestMessage stores a live inbound message (idempotent) and publishes it.
func (e *Engine) IngestMessage(p *wa.ParsedMessage) error {
	return e.ingest(p, SourceLive)
}

// IngestSent stores the echo of one of our own sends and publishes it as
// send.message.
func (e *Engine) IngestSent(p *wa.ParsedMessage) error {
	return e.ingest(p, SourceSent)
}

func (e *Engine) ingest(p *wa.ParsedMessage, source string) error {
	msg := p.ToStoreMessage()
	msg.Instance = e.instance
	if msg.SenderName == "" && !msg.FromMe && msg.SenderJID != "" {
		c, err := e.db.GetContact(msg.SenderJID)
		if err != nil {
			return fmt.Errorf("lookup sender: %w", err)
		}
		if c != nil {
			msg.SenderName = c.DisplayName()
		}
	}

	existing, err := e.db.GetMessage(msg.ChatJID, msg.MsgID)
	if err != nil {
		return fmt.Errorf("lookup message: %w", err)
	}
	created, err := e.db.TouchChat(msg)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if err := e.db.UpsertMessage(msg); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	if existing == nil && !msg.FromMe && source == SourceLive {
		if err := e.db.IncrementUnread(msg.ChatJID); err != nil {
			return fmt.Errorf("increment unread: %w", err)
		}
	}
	e.metrics.Ingested(source, 1)

	e.bus.Publish(bus.NewEvent(bus.KindMessageUpserted, map[string]string{
		"chat_jid": msg.ChatJID,
		"msg_id":   msg.MsgID,
	}))

	kind := rpc.KindMessagesUpsert
	if source == SourceSent {
		kind = rpc.KindSendMessage
	}
	e.publish(kind, RawFromParsed(p))

	chatKind := rpc.KindChatsUpdate
	if created {
		chatKind = rpc.KindChatsUpsert
	}
	return e.publishChats(chatKind, msg.ChatJID)
}

// IngestHistoryBatch processes a batch of history messages in a transaction.
func (e *Engine) IngestHistoryBatch(msgs []*wa.ParsedMessage) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	chats := make(map[string]struct{})
	now := time.Now().UnixMilli()
	for _, p := range msgs {
		sm := p.ToStoreMessage()
		sm.Instance = e.instance
		if _, err := tx.Exec(`
			INSERT INTO chats (jid, is_group, last_message_at, last_message_preview, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(jid) DO UPDATE SET
				last_message_preview = CASE WHEN excluded.last_message_at > chats.last_message_at THEN excluded.last_message_preview ELSE chats.last_message_preview END,
				last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
				updated_at = excluded.updated_at`,
			sm.ChatJID, strings.HasSuffix(sm.ChatJID, "@g.us"), sm.Timestamp, truncate(store.Preview(sm), 100), now); err != nil {
			return fmt.Errorf("upsert chat in batch: %w", err)
		}
		chats[sm.ChatJID] = struct{}{}

		if _, err := tx.Exec(`
			INSERT INTO messages (chat_jid, msg_id, key_id, sender_jid, sender_name, body, media_url, thumbnail,
				caption, message_type, from_me, status, timestamp, instance, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chat_jid, msg_id) DO UPDATE SET
				sender_name = CASE WHEN excluded.sender_name != '' THEN excluded.sender_name ELSE messages.sender_name END,
				body = excluded.body,
				status = CASE WHEN messages.status = '' THEN excluded.status ELSE messages.status END`,
			sm.ChatJID, sm.MsgID, sm.KeyID, sm.SenderJID, sm.SenderName, sm.Body, sm.MediaURL, sm.Thumbnail,
			sm.Caption, sm.MessageType, sm.FromMe, sm.Status, sm.Timestamp, sm.Instance, now); err != nil {
			return fmt.Errorf("upsert message in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	e.metrics.Ingested(SourceHistory, len(msgs))

	e.bus.Publish(bus.NewEvent(bus.KindSyncHistoryBatch, map[string]int{
		"messages_count": len(msgs),
		"chats_count":    len(chats),
	}))

	jids := make([]string, 0, len(chats))
	for jid := range chats {
		jids = append(jids, jid)
	}
	return e.publishChats(rpc.KindChatsUpsert, jids...)
}

// IngestContacts stores contact names learned from history sync.
func (e *Engine) IngestContacts(contacts []*store.Contact) error {
	list := make([]store.Contact, 0, len(contacts))
	for _, c := range contacts {
		list = append(list, *c)
	}
	if err := e.db.BulkUpsertContacts(list); err != nil {
		return fmt.Errorf("upsert contacts: %w", err)
	}
	return nil
}

// ApplyReceipt moves the delivery status of each acknowledged message
// forward and publishes one messages.update per changed row.
func (e *Engine) ApplyReceipt(r wa.Receipt) error {
	for _, id := range r.MessageIDs {
		chatJID, changed, err := e.db.UpdateStatusByKey(id, r.Status)
		if err != nil {
			return fmt.Errorf("update status %s: %w", id, err)
		}
		if !changed {
			continue
		}
		if chatJID == "" {
			chatJID = r.ChatJID
		}
		e.publish(rpc.KindMessagesUpdate, &rpc.StatusPayload{KeyID: id, RemoteJID: chatJID, Status: r.Status})
	}
	return nil
}

// ApplyPresence forwards a presence change. Presence is not persisted.
func (e *Engine) ApplyPresence(p wa.PresenceChange) {
	state := rpc.PresenceState{LastKnownPresence: p.Presence}
	payload := &rpc.PresencePayload{
		ID:        p.JID,
		Presences: map[string]rpc.PresenceState{p.JID: state},
	}
	if p.Participant != "" {
		payload.Presences[p.Participant] = state
	}
	e.publish(rpc.KindPresenceUpdate, payload)
}

// ApplyChatMeta records a name or read-state change made elsewhere.
func (e *Engine) ApplyChatMeta(m wa.ChatMeta) error {
	if m.Name != "" {
		if err := e.db.UpsertContact(&store.Contact{JID: m.JID, PushName: m.Name}); err != nil {
			return fmt.Errorf("upsert contact: %w", err)
		}
		if err := e.db.SetChatName(m.JID, m.Name); err != nil {
			return fmt.Errorf("set chat name: %w", err)
		}
	}
	if m.Read != nil && *m.Read {
		if err := e.db.MarkChatRead(m.JID); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
	}
	return e.publishChats(rpc.KindChatsUpdate, m.JID)
}

// ApplyLabel stores a label edit or a label (un)assignment.
func (e *Engine) ApplyLabel(l wa.LabelChange) error {
	if l.ChatJID == "" {
		if l.Deleted {
			return e.db.DeleteLabel(l.LabelID)
		}
		return e.db.UpsertLabel(&store.Label{ID: l.LabelID, Name: l.Name, Color: l.Color})
	}
	if err := e.db.SetChatLabel(l.ChatJID, l.LabelID, l.Labeled); err != nil {
		return fmt.Errorf("set chat label: %w", err)
	}
	return e.publishChats(rpc.KindChatsUpdate, l.ChatJID)
}

// publishChats publishes the current rows of the given chats. Chats that do
// not exist are skipped.
func (e *Engine) publishChats(kind string, jids ...string) error {
	var out []*rpc.Chat
	for _, jid := range jids {
		c, err := e.db.GetChat(jid)
		if err != nil {
			return fmt.Errorf("load chat %s: %w", jid, err)
		}
		if c != nil {
			out = append(out, rpc.ChatFromStore(c))
		}
	}
	if len(out) > 0 {
		e.publish(kind, out)
	}
	return nil
}

func (e *Engine) publish(kind string, payload any) {
	e.metrics.Published(kind)
	e.bus.Publish(bus.NewEvent(bus.GatewayKind(kind), payload))
}

// RawFromParsed renders a parsed message in the gateway's raw payload shape.
func RawFromParsed(p *wa.ParsedMessage) *rpc.RawMessage {
	key := rpc.MessageKey{ID: p.MsgID, RemoteJID: p.ChatJID, FromMe: p.FromMe}
	if strings.HasSuffix(p.ChatJID, "@g.us") {
		key.Participant = p.SenderJID
	}
	content := p.Content
	if content == nil && p.Body != "" {
		content = map[string]any{"conversation": p.Body}
	}
	return &rpc.RawMessage{
		Key:              key,
		MessageID:        p.MsgID,
		KeyID:            p.MsgID,
		PushName:         p.SenderName,
		Message:          content,
		MessageType:      p.ContentType(),
		MessageTimestamp: p.Timestamp / 1000,
		Status:           p.Status,
		FromMe:           p.FromMe,
	}
}

// truncate keeps at most maxLen runes of s.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}
