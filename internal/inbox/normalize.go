package inbox

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/wppcrm/internal/rpc"
)

// FromRaw normalizes a live gateway payload. Missing fields degrade to
// defaults; a missing timestamp becomes now.
func FromRaw(raw *rpc.RawMessage, now time.Time) Message {
	if raw == nil {
		return Message{ID: strconv.FormatInt(now.UnixMilli(), 10), Kind: KindText, Timestamp: now.UnixMilli()}
	}

	m := Message{
		ID:             firstNonEmpty(raw.MessageID, raw.KeyID, raw.Key.ID),
		KeyID:          firstNonEmpty(raw.Key.ID, raw.KeyID, raw.MessageID),
		Text:           stringAt(raw.Message, "conversation"),
		Transcription:  raw.SpeechToText,
		SentByMe:       raw.Key.FromMe || raw.FromMe,
		Counterpart:    NormalizeCounterpart(raw.Key.RemoteJID),
		SenderName:     raw.PushName,
		Kind:           KindFromType(raw.MessageType),
		DeliveryStatus: raw.Status,
	}
	if m.ID == "" {
		m.ID = strconv.FormatInt(now.UnixMilli(), 10)
	}
	if m.Text == "" {
		m.Text = stringAt(subObject(raw.Message, "extendedTextMessage"), "text")
	}
	if raw.MessageTimestamp > 0 {
		m.Timestamp = raw.MessageTimestamp * 1000
	} else {
		m.Timestamp = now.UnixMilli()
	}
	for _, k := range []string{"imageMessage", "videoMessage", "documentMessage"} {
		if c := stringAt(subObject(raw.Message, k), "caption"); c != "" {
			m.Caption = c
			break
		}
	}
	m.Thumbnail, m.MediaURL = scanMedia(raw.Message)
	return m
}

// FromRow normalizes a stored message row. A missing timestamp stays 0.
func FromRow(row *rpc.Message) Message {
	if row == nil {
		return Message{Kind: KindText}
	}
	return Message{
		ID:             row.ID,
		KeyID:          row.KeyID,
		Text:           row.Body,
		MediaURL:       row.MediaURL,
		Thumbnail:      row.Thumbnail,
		Caption:        row.Caption,
		Transcription:  row.Transcription,
		SentByMe:       row.FromMe,
		Timestamp:      max(row.TimestampUnixMs, 0),
		Counterpart:    NormalizeCounterpart(row.ChatJID),
		SenderName:     row.SenderName,
		Kind:           KindFromType(row.MessageType),
		DeliveryStatus: row.Status,
	}
}

// KindFromType maps gateway content types (imageMessage, conversation, ...)
// and stored short types (image, text, ...) to a Kind.
func KindFromType(t string) string {
	t = strings.TrimSuffix(t, "Message")
	switch strings.ToLower(t) {
	case "", "text", "conversation", "extendedtext":
		return KindText
	case "image":
		return KindImage
	case "video", "ptv":
		return KindVideo
	case "audio", "ptt":
		return KindAudio
	case "sticker":
		return KindSticker
	case "document", "documentwithcaption":
		return KindDocument
	case "contact", "contactsarray":
		return KindContact
	case "location", "livelocation":
		return KindLocation
	}
	return KindUnknown
}

// scanMedia walks the content sub-objects in key order and returns the first
// thumbnail and the first url it finds, stopping once it has both.
func scanMedia(content map[string]any) (thumb, url string) {
	url = stringAt(content, "mediaUrl")

	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		item, ok := content[k].(map[string]any)
		if !ok {
			continue
		}
		if thumb == "" {
			thumb = foldString(item, "jpegThumbnail", "thumbnail")
		}
		if url == "" {
			url = foldString(item, "url")
		}
		if thumb != "" && url != "" {
			break
		}
	}
	return thumb, url
}

// foldString returns the first non-empty string field of m whose key
// case-insensitively equals one of names, in names order.
func foldString(m map[string]any, names ...string) string {
	for _, name := range names {
		for k, v := range m {
			if !strings.EqualFold(k, name) {
				continue
			}
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func subObject(m map[string]any, key string) map[string]any {
	sub, _ := m[key].(map[string]any)
	return sub
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
