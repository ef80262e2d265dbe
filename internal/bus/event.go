package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Namespaces used with Subscribe.
const (
	NamespaceWA      = "wa."
	NamespaceGateway = "gateway."
	NamespaceMessage = "message."
	NamespaceSession = "session."
	NamespaceSync    = "sync."
)

// Inbound gateway events, published by the WhatsApp adapter.
const (
	KindWAMessage      = "wa.message"
	KindWASent         = "wa.sent"
	KindWAHistoryBatch = "wa.history_batch"
	KindWAReceipt      = "wa.receipt"
	KindWAPresence     = "wa.presence"
	KindWAChatMeta     = "wa.chat_meta"
	KindWALabel        = "wa.label"
	KindWAContactBatch = "wa.contact_batch"
)

// Store and outbox events.
const (
	KindMessageUpserted   = "message.upserted"
	KindMessageSendAck    = "message.send_ack"
	KindMessageSendFailed = "message.send_failed"
)

// Session lifecycle events.
const (
	KindSessionStatusChanged = "session.status_changed"
	KindSessionQRGenerated   = "session.qr_generated"
	KindSessionAuthenticated = "session.authenticated"
	KindSessionAuthFailed    = "session.auth_failed"
	KindSessionLoggedOut     = "session.logged_out"
)

// Connection events.
const (
	KindSyncConnected    = "sync.connected"
	KindSyncDisconnected = "sync.disconnected"
	KindSyncHistoryBatch = "sync.history_batch"
)

// GatewayKind is the bus kind under which a push event of the given gateway
// kind (messages.upsert, presence.update, ...) is re-published.
func GatewayKind(kind string) string {
	return NamespaceGateway + kind
}

// NewEvent returns an event stamped with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
