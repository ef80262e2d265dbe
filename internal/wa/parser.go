package wa

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/matheus3301/wppcrm/internal/store"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/encoding/protojson"
)

// ParsedMessage is a normalized message ready for ingestion. Content is the
// protojson rendering of the gateway message, keyed by content type.
type ParsedMessage struct {
	ChatJID     string
	MsgID       string
	SenderJID   string
	SenderName  string
	Body        string
	MediaURL    string
	Thumbnail   string
	Caption     string
	MessageType string
	FromMe      bool
	Status      string
	Timestamp   int64
	Content     map[string]any
}

// ParseLiveMessage normalizes a live whatsmeow message event.
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	return ParseHistoryMessage(evt.Message, evt.Info)
}

// ParseHistoryMessage normalizes a message together with its envelope info.
func ParseHistoryMessage(msg *waE2E.Message, info types.MessageInfo) *ParsedMessage {
	p := &ParsedMessage{
		ChatJID:    NormalizeJID(info.Chat.String()),
		MsgID:      info.ID,
		SenderJID:  NormalizeJID(info.Sender.String()),
		SenderName: info.PushName,
		FromMe:     info.IsFromMe,
		Timestamp:  info.Timestamp.UnixMilli(),
	}
	p.fill(msg)
	return p
}

// ParseWebMessage normalizes a history sync entry.
func ParseWebMessage(chatJID string, wmsg *waWeb.WebMessageInfo) *ParsedMessage {
	key := wmsg.GetKey()
	p := &ParsedMessage{
		ChatJID:    NormalizeJID(chatJID),
		MsgID:      key.GetID(),
		SenderJID:  NormalizeJID(key.GetParticipant()),
		SenderName: wmsg.GetPushName(),
		FromMe:     key.GetFromMe(),
		Status:     webStatus(wmsg),
		Timestamp:  int64(wmsg.GetMessageTimestamp()) * 1000,
	}
	p.fill(wmsg.GetMessage())
	return p
}

func (p *ParsedMessage) fill(msg *waE2E.Message) {
	msg = unwrap(msg)
	c := describe(msg)
	p.Body = c.text
	p.MessageType = c.kind
	p.MediaURL = c.url
	p.Caption = c.caption
	if len(c.thumb) > 0 {
		p.Thumbnail = base64.StdEncoding.EncodeToString(c.thumb)
	}
	p.Content = contentMap(msg)
}

// ToStoreMessage converts a ParsedMessage to a store.Message.
func (p *ParsedMessage) ToStoreMessage() *store.Message {
	status := p.Status
	if status == "" && !p.FromMe {
		status = "received"
	}
	return &store.Message{
		ChatJID:     p.ChatJID,
		MsgID:       p.MsgID,
		KeyID:       p.MsgID,
		SenderJID:   p.SenderJID,
		SenderName:  p.SenderName,
		Body:        p.Body,
		MediaURL:    p.MediaURL,
		Thumbnail:   p.Thumbnail,
		Caption:     p.Caption,
		MessageType: p.MessageType,
		FromMe:      p.FromMe,
		Status:      status,
		Timestamp:   p.Timestamp,
	}
}

// unwrap returns the message inside the ephemeral, view-once, edit and
// captioned-document envelopes.
func unwrap(msg *waE2E.Message) *waE2E.Message {
	for range 3 {
		var env *waE2E.FutureProofMessage
		switch {
		case msg.GetEphemeralMessage() != nil:
			env = msg.GetEphemeralMessage()
		case msg.GetViewOnceMessage() != nil:
			env = msg.GetViewOnceMessage()
		case msg.GetViewOnceMessageV2() != nil:
			env = msg.GetViewOnceMessageV2()
		case msg.GetDocumentWithCaptionMessage() != nil:
			env = msg.GetDocumentWithCaptionMessage()
		case msg.GetEditedMessage() != nil:
			env = msg.GetEditedMessage()
		}
		if env.GetMessage() == nil {
			return msg
		}
		msg = env.GetMessage()
	}
	return msg
}

// content is what the inbox keeps of a message body.
type content struct {
	kind    string
	text    string
	url     string
	thumb   []byte
	caption string
}

func describe(msg *waE2E.Message) content {
	if msg == nil {
		return content{kind: "unknown"}
	}
	if t := msg.GetConversation(); t != "" {
		return content{kind: "text", text: t}
	}
	if m := msg.GetExtendedTextMessage(); m != nil {
		return content{kind: "text", text: m.GetText()}
	}
	if m := msg.GetImageMessage(); m != nil {
		return content{kind: "image", url: m.GetURL(), thumb: m.GetJPEGThumbnail(), caption: m.GetCaption()}
	}
	if m := msg.GetVideoMessage(); m != nil {
		return content{kind: "video", url: m.GetURL(), thumb: m.GetJPEGThumbnail(), caption: m.GetCaption()}
	}
	if m := msg.GetAudioMessage(); m != nil {
		return content{kind: "audio", url: m.GetURL()}
	}
	if m := msg.GetDocumentMessage(); m != nil {
		return content{kind: "document", url: m.GetURL(), thumb: m.GetJPEGThumbnail(), caption: m.GetCaption()}
	}
	if m := msg.GetStickerMessage(); m != nil {
		return content{kind: "sticker", url: m.GetURL()}
	}
	if m := msg.GetContactMessage(); m != nil {
		return content{kind: "contact", text: m.GetDisplayName()}
	}
	if m := msg.GetLocationMessage(); m != nil {
		return content{kind: "location", text: m.GetName()}
	}
	return content{kind: "unknown"}
}

// contentMap renders msg the way the gateway's JSON payloads carry it:
// one key per content type, with protojson field names.
func contentMap(msg *waE2E.Message) map[string]any {
	if msg == nil {
		return nil
	}
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// ContentType is the gateway messageType for a parsed message
// (conversation, imageMessage, ...).
func (p *ParsedMessage) ContentType() string {
	switch p.MessageType {
	case "text":
		if _, ok := p.Content["extendedTextMessage"]; ok {
			return "extendedTextMessage"
		}
		return "conversation"
	case "unknown", "":
		for k := range p.Content {
			if strings.HasSuffix(k, "Message") {
				return k
			}
		}
		return "unknown"
	default:
		return p.MessageType + "Message"
	}
}

// webStatus names a history entry's status the way live receipts do. An
// unset status is "", not ERROR.
func webStatus(wmsg *waWeb.WebMessageInfo) string {
	if wmsg.Status == nil || wmsg.GetStatus() > waWeb.WebMessageInfo_PLAYED {
		return ""
	}
	return wmsg.GetStatus().String()
}

// NormalizeJID strips device and agent suffixes from a JID string so history
// sync and live messages key the same chat. Unparseable input is returned
// unchanged.
func NormalizeJID(s string) string {
	if s == "" {
		return ""
	}
	jid, err := types.ParseJID(s)
	if err != nil || jid.User == "" {
		return s
	}
	return jid.ToNonAD().String()
}
