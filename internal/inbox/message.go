package inbox

import "strings"

// Message kinds.
const (
	KindText     = "text"
	KindImage    = "image"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindSticker  = "sticker"
	KindDocument = "document"
	KindContact  = "contact"
	KindLocation = "location"
	KindUnknown  = "unknown"
)

// LocalIDPrefix marks provisional ids generated before the gateway confirms
// a send.
const LocalIDPrefix = "local-"

// Message is the canonical message every gateway and store shape is
// normalized into. Timestamp is unix milliseconds with 0 meaning unknown;
// an empty DeliveryStatus means none.
type Message struct {
	ID             string
	KeyID          string
	Text           string
	MediaURL       string
	Thumbnail      string
	Caption        string
	Transcription  string
	SentByMe       bool
	Timestamp      int64
	Counterpart    string
	SenderName     string
	Kind           string
	DeliveryStatus string
}

// HasMedia reports whether m carries a non-text payload. Stickers count as
// media even without caption or URL.
func (m Message) HasMedia() bool {
	if m.MediaURL != "" || m.Thumbnail != "" {
		return true
	}
	switch m.Kind {
	case KindImage, KindVideo, KindAudio, KindSticker, KindDocument:
		return true
	}
	return false
}

// Provisional reports whether m is an unconfirmed optimistic send.
func (m Message) Provisional() bool {
	return m.SentByMe && m.KeyID == ""
}

// Local reports whether m carries an id generated on this side.
func (m Message) Local() bool {
	return strings.HasPrefix(m.ID, LocalIDPrefix)
}

// Preview is the one-line text shown for m in conversation lists.
func (m Message) Preview() string {
	switch {
	case m.Text != "":
		return m.Text
	case m.Caption != "":
		return m.Caption
	case m.Transcription != "":
		return m.Transcription
	case m.Kind != "" && m.Kind != KindText:
		return "[" + m.Kind + "]"
	}
	return ""
}
