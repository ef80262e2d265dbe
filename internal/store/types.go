package store

// Chat represents a synced chat.
type Chat struct {
	JID                string
	Name               string
	AvatarURL          string
	IsGroup            bool
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
	Labels             []string
}

// Contact represents a synced contact.
type Contact struct {
	JID      string
	Name     string
	PushName string
}

// Message represents a synced message. MsgID is the gateway message id, or
// the client message id while an outgoing send is unconfirmed.
type Message struct {
	ID            int64
	ChatJID       string
	MsgID         string
	KeyID         string
	SenderJID     string
	SenderName    string
	Body          string
	MediaURL      string
	Thumbnail     string
	Caption       string
	Transcription string
	MessageType   string
	FromMe        bool
	Status        string
	Timestamp     int64
	Instance      string
}

// MessageQuery selects a page of messages for one chat. BeforeTs and
// BeforeID are the (timestamp, msg_id) of the oldest row already seen and
// bound the page exclusively; both zero means unbounded. Without BeforeID
// every row at BeforeTs is excluded.
type MessageQuery struct {
	ChatJID  string
	Instance string
	BeforeTs int64
	BeforeID string
	Limit    int
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatJID      string
	Kind         string // text, media, audio
	Body         string
	MimeType     string
	FileName     string
	Payload      []byte
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	ServerMsgID  string
}

// Label is a WhatsApp business label.
type Label struct {
	ID    string
	Name  string
	Color int
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
