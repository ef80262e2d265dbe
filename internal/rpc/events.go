package rpc

// Gateway push event kinds.
const (
	KindMessagesUpsert = "messages.upsert"
	KindSendMessage    = "send.message"
	KindMessagesUpdate = "messages.update"
	KindPresenceUpdate = "presence.update"
	KindChatsUpsert    = "chats.upsert"
	KindChatsUpdate    = "chats.update"
)

// Delivery statuses carried on rows and status updates.
const (
	StatusSent        = "SENT"
	StatusPending     = "PENDING"
	StatusQueued      = "QUEUED"
	StatusServerAck   = "SERVER_ACK"
	StatusDeliveryAck = "DELIVERY_ACK"
	StatusRead        = "READ"
	StatusPlayed      = "PLAYED"
	StatusError       = "ERROR"
)

// MessageKey identifies a message on the gateway.
type MessageKey struct {
	ID          string `json:"id,omitempty"`
	RemoteJID   string `json:"remoteJid,omitempty"`
	Participant string `json:"participant,omitempty"`
	FromMe      bool   `json:"fromMe,omitempty"`
}

// RawMessage is the payload of messages.upsert and send.message. Message
// holds the gateway content object keyed by content type (conversation,
// imageMessage, ...), as produced by protojson.
type RawMessage struct {
	Key              MessageKey     `json:"key"`
	MessageID        string         `json:"messageId,omitempty"`
	KeyID            string         `json:"keyId,omitempty"`
	PushName         string         `json:"pushName,omitempty"`
	Message          map[string]any `json:"message,omitempty"`
	MessageType      string         `json:"messageType,omitempty"`
	MessageTimestamp int64          `json:"messageTimestamp,omitempty"`
	Status           string         `json:"status,omitempty"`
	SpeechToText     string         `json:"speechToText,omitempty"`
	FromMe           bool           `json:"fromMe,omitempty"`
}

// StatusPayload is the payload of messages.update.
type StatusPayload struct {
	KeyID     string `json:"keyId"`
	RemoteJID string `json:"remoteJid"`
	Status    string `json:"status"`
}

// PresencePayload is the payload of presence.update.
type PresencePayload struct {
	ID        string                   `json:"id"`
	Presences map[string]PresenceState `json:"presences"`
}

type PresenceState struct {
	LastKnownPresence string `json:"lastKnownPresence"`
}

// Presence values.
const (
	PresenceAvailable   = "available"
	PresenceUnavailable = "unavailable"
	PresenceComposing   = "composing"
	PresenceRecording   = "recording"
	PresencePaused      = "paused"
)
