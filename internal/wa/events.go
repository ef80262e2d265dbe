package wa

import (
	"context"
	"strings"

	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/status"
	"github.com/matheus3301/wppcrm/internal/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// Receipt is the payload of wa.receipt. Status is one of DELIVERY_ACK, READ
// or PLAYED.
type Receipt struct {
	ChatJID    string
	MessageIDs []string
	Status     string
}

// PresenceChange is the payload of wa.presence.
type PresenceChange struct {
	JID         string
	Participant string // group member the presence belongs to
	Presence    string // available, unavailable, composing, recording, paused
}

// ChatMeta is the payload of wa.chat_meta. Empty Name leaves the name alone;
// Read is set when the chat was marked read or unread on another device.
type ChatMeta struct {
	JID    string
	Name   string
	Read   *bool
	Unread bool
}

// LabelChange is the payload of wa.label. An empty ChatJID means the label
// itself was edited; otherwise the label was added to or removed from a chat.
type LabelChange struct {
	LabelID string
	Name    string
	Color   int
	Deleted bool
	ChatJID string
	Labeled bool
}

// EventHandler processes whatsmeow events, drives the state machine,
// and publishes parsed domain events on the bus. The sync engine
// subscribes to the bus independently.
type EventHandler struct {
	bus     *bus.Bus
	machine *status.Machine
	adapter *Adapter
	logger  *zap.Logger
}

// NewEventHandler creates a new event handler. adapter may be nil, in which
// case LID JIDs are not resolved to phone numbers.
func NewEventHandler(b *bus.Bus, machine *status.Machine, adapter *Adapter, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bus:     b,
		machine: machine,
		adapter: adapter,
		logger:  logger,
	}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		if err := h.machine.Advance(status.Syncing); err != nil {
			h.logger.Warn("unexpected state on connect", zap.Error(err))
		}
		h.bus.Publish(bus.NewEvent(bus.KindSyncConnected, nil))
	case *events.OfflineSyncCompleted:
		h.markReady()
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.Transition(status.Reconnecting)
		h.bus.Publish(bus.NewEvent(bus.KindSyncDisconnected, nil))
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
		h.bus.Publish(bus.NewEvent(bus.KindSessionLoggedOut, evt.Reason.String()))
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.ChatPresence:
		h.handleChatPresence(evt)
	case *events.Presence:
		p := "available"
		if evt.Unavailable {
			p = "unavailable"
		}
		h.bus.Publish(bus.NewEvent(bus.KindWAPresence, PresenceChange{JID: h.resolveJID(evt.From.String()), Presence: p}))
	case *events.PushName:
		if evt.NewPushName == "" {
			return
		}
		h.bus.Publish(bus.NewEvent(bus.KindWAChatMeta, ChatMeta{JID: h.resolveJID(evt.JID.String()), Name: evt.NewPushName}))
	case *events.MarkChatAsRead:
		read := evt.Action.GetRead()
		h.bus.Publish(bus.NewEvent(bus.KindWAChatMeta, ChatMeta{JID: h.resolveJID(evt.JID.String()), Read: &read, Unread: !read}))
	case *events.LabelEdit:
		h.bus.Publish(bus.NewEvent(bus.KindWALabel, LabelChange{
			LabelID: evt.LabelID,
			Name:    evt.Action.GetName(),
			Color:   int(evt.Action.GetColor()),
			Deleted: evt.Action.GetDeleted(),
		}))
	case *events.LabelAssociationChat:
		h.bus.Publish(bus.NewEvent(bus.KindWALabel, LabelChange{
			LabelID: evt.LabelID,
			ChatJID: h.resolveJID(evt.JID.String()),
			Labeled: evt.Action.GetLabeled(),
		}))
	}
}

func (h *EventHandler) markReady() {
	if h.machine.Current() == status.Syncing {
		_ = h.machine.Transition(status.Ready)
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	h.markReady()

	parsed := ParseLiveMessage(evt)
	parsed.ChatJID = h.resolveJID(parsed.ChatJID)
	parsed.SenderJID = h.resolveJID(parsed.SenderJID)
	h.bus.Publish(bus.NewEvent(bus.KindWAMessage, parsed))
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	var msgs []*ParsedMessage
	var contacts []*store.Contact
	for _, conv := range data.GetConversations() {
		chatJID := h.resolveJID(conv.GetID())
		if name := conv.GetName(); name != "" && !strings.HasSuffix(chatJID, "@g.us") {
			contacts = append(contacts, &store.Contact{JID: chatJID, Name: name})
		}
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			parsed := ParseWebMessage(chatJID, wmsg)
			parsed.SenderJID = h.resolveJID(parsed.SenderJID)
			msgs = append(msgs, parsed)
		}
	}

	for _, pn := range data.GetPushnames() {
		if pn.GetPushname() == "" {
			continue
		}
		contacts = append(contacts, &store.Contact{JID: h.resolveJID(pn.GetID()), PushName: pn.GetPushname()})
	}

	if len(msgs) > 0 {
		h.bus.Publish(bus.NewEvent(bus.KindWAHistoryBatch, msgs))
	}
	if len(contacts) > 0 {
		h.bus.Publish(bus.NewEvent(bus.KindWAContactBatch, contacts))
	}
}

func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	var st string
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		st = "DELIVERY_ACK"
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		st = "READ"
	case types.ReceiptTypePlayed, types.ReceiptTypePlayedSelf:
		st = "PLAYED"
	default:
		return
	}
	ids := make([]string, len(evt.MessageIDs))
	for i, id := range evt.MessageIDs {
		ids[i] = string(id)
	}
	h.bus.Publish(bus.NewEvent(bus.KindWAReceipt, Receipt{
		ChatJID:    h.resolveJID(evt.Chat.String()),
		MessageIDs: ids,
		Status:     st,
	}))
}

func (h *EventHandler) handleChatPresence(evt *events.ChatPresence) {
	p := string(evt.State)
	if evt.State == types.ChatPresenceComposing && evt.Media == types.ChatPresenceMediaAudio {
		p = "recording"
	}
	change := PresenceChange{JID: h.resolveJID(evt.Chat.String()), Presence: p}
	if evt.IsGroup {
		change.Participant = h.resolveJID(evt.Sender.String())
	}
	h.bus.Publish(bus.NewEvent(bus.KindWAPresence, change))
}

// resolveJID normalizes a JID string and, when an adapter is available,
// maps LID JIDs to their phone number JID.
func (h *EventHandler) resolveJID(s string) string {
	s = NormalizeJID(s)
	if h.adapter == nil || s == "" {
		return s
	}
	jid, err := types.ParseJID(s)
	if err != nil {
		return s
	}
	return h.adapter.ResolveLID(context.Background(), jid).String()
}
