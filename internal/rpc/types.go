package rpc

import "encoding/json"

// Pagination bounds a list request. BeforeUnixMs is an exclusive upper bound
// on message timestamps; zero means unbounded. BeforeID narrows the bound to
// rows at BeforeUnixMs with a smaller message id.
type Pagination struct {
	Limit        int32  `json:"limit,omitempty"`
	BeforeUnixMs int64  `json:"beforeUnixMs,omitempty"`
	BeforeID     string `json:"beforeId,omitempty"`
}

// PageInfo reports whether another page may exist.
type PageInfo struct {
	HasMore bool `json:"hasMore"`
}

// Session service.

type GetSessionStatusRequest struct{}

type GetSessionStatusResponse struct {
	Session       string `json:"session"`
	Status        string `json:"status"`
	StatusMessage string `json:"statusMessage"`
	Connected     bool   `json:"connected"`
	PhoneNumber   string `json:"phoneNumber"`
	InstanceID    string `json:"instanceId"`
	ServerURL     string `json:"serverUrl"`
	UptimeMs      int64  `json:"uptimeMs"`
	ChatCount     int64  `json:"chatCount"`
	MessageCount  int64  `json:"messageCount"`
	OutboxQueued  int64  `json:"outboxQueued,omitempty"`
}

type StartAuthRequest struct {
	TimeoutMs int64 `json:"timeoutMs,omitempty"`
}

// AuthEvent is streamed while pairing. EventType is one of qr_code,
// authenticated, auth_failed or timeout.
type AuthEvent struct {
	EventType string `json:"eventType"`
	QRCode    string `json:"qrCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

type PairPhoneRequest struct {
	Phone string `json:"phone"`
}

type PairPhoneResponse struct {
	Code string `json:"code"`
}

type LogoutRequest struct{}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Chat service.

// Chat is a conversation summary row.
type Chat struct {
	JID                 string   `json:"remoteJid"`
	Name                string   `json:"name"`
	AvatarURL           string   `json:"avatarUrl,omitempty"`
	IsGroup             bool     `json:"isGroup"`
	UnreadCount         int32    `json:"unreadCount"`
	LastMessageAtUnixMs int64    `json:"lastMessageAt"`
	LastMessagePreview  string   `json:"lastMessage"`
	Labels              []string `json:"labels,omitempty"`
}

type ListChatsRequest struct {
	Pagination *Pagination `json:"pagination,omitempty"`
}

type ListChatsResponse struct {
	Chats    []*Chat   `json:"chats"`
	PageInfo *PageInfo `json:"pageInfo"`
}

type GetChatRequest struct {
	JID string `json:"jid"`
}

type GetChatResponse struct {
	Chat *Chat `json:"chat"`
}

type MarkReadRequest struct {
	ChatJID string `json:"chatJid"`
}

type MarkReadResponse struct{}

type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color int32  `json:"color"`
}

type ListLabelsRequest struct{}

type ListLabelsResponse struct {
	Labels []*Label `json:"labels"`
}

// Message service.

// Message is the flat stored-row shape returned by the Message Store.
type Message struct {
	ID              string `json:"id"`
	KeyID           string `json:"keyId,omitempty"`
	ChatJID         string `json:"chatJid"`
	SenderJID       string `json:"senderJid,omitempty"`
	SenderName      string `json:"senderName,omitempty"`
	Body            string `json:"body"`
	MediaURL        string `json:"mediaUrl,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	Caption         string `json:"caption,omitempty"`
	Transcription   string `json:"transcription,omitempty"`
	MessageType     string `json:"messageType"`
	FromMe          bool   `json:"fromMe"`
	Status          string `json:"status,omitempty"`
	TimestampUnixMs int64  `json:"timestamp"`
}

type ListMessagesRequest struct {
	ChatJID    string      `json:"chatJid"`
	Instance   string      `json:"instance,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type ListMessagesResponse struct {
	Messages []*Message `json:"messages"`
	PageInfo *PageInfo  `json:"pageInfo"`
}

type SearchMessagesRequest struct {
	Query      string      `json:"query"`
	ChatJID    string      `json:"chatJid,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type SearchResult struct {
	Message *Message `json:"message"`
	Snippet string   `json:"snippet"`
}

type SearchMessagesResponse struct {
	Results  []*SearchResult `json:"results"`
	PageInfo *PageInfo       `json:"pageInfo"`
}

type SendTextRequest struct {
	ClientMsgID string `json:"clientMsgId"`
	ChatJID     string `json:"chatJid"`
	Text        string `json:"text"`
}

type SendMediaRequest struct {
	ClientMsgID string `json:"clientMsgId"`
	ChatJID     string `json:"chatJid"`
	MimeType    string `json:"mimeType"`
	Caption     string `json:"caption,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	Data        []byte `json:"data"`
}

type SendAudioRequest struct {
	ClientMsgID string `json:"clientMsgId"`
	ChatJID     string `json:"chatJid"`
	Data        []byte `json:"data"`
}

// SendResponse carries the gateway message id and its initial status.
type SendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type SubscribePresenceRequest struct {
	ChatJID string `json:"chatJid"`
}

type SubscribePresenceResponse struct{}

// Event service.

type WatchEventsRequest struct{}

// EventEnvelope wraps one gateway push event with the identity of the
// instance that produced it.
type EventEnvelope struct {
	EventID          string          `json:"eventId"`
	Kind             string          `json:"event"`
	Instance         string          `json:"instance"`
	Server           string          `json:"server_url"`
	InstanceID       string          `json:"instanceId,omitempty"`
	OccurredAtUnixMs int64           `json:"date_time"`
	Data             json.RawMessage `json:"data"`
}
