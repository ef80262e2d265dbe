package rpc

import "github.com/matheus3301/wppcrm/internal/store"

// ChatFromStore converts a stored chat row.
func ChatFromStore(c *store.Chat) *Chat {
	return &Chat{
		JID:                 c.JID,
		Name:                c.Name,
		AvatarURL:           c.AvatarURL,
		IsGroup:             c.IsGroup,
		UnreadCount:         int32(c.UnreadCount),
		LastMessageAtUnixMs: c.LastMessageAt,
		LastMessagePreview:  c.LastMessagePreview,
		Labels:              c.Labels,
	}
}

// MessageFromStore converts a stored message row.
func MessageFromStore(m *store.Message) *Message {
	return &Message{
		ID:              m.MsgID,
		KeyID:           m.KeyID,
		ChatJID:         m.ChatJID,
		SenderJID:       m.SenderJID,
		SenderName:      m.SenderName,
		Body:            m.Body,
		MediaURL:        m.MediaURL,
		Thumbnail:       m.Thumbnail,
		Caption:         m.Caption,
		Transcription:   m.Transcription,
		MessageType:     m.MessageType,
		FromMe:          m.FromMe,
		Status:          m.Status,
		TimestampUnixMs: m.Timestamp,
	}
}

// LabelFromStore converts a stored label.
func LabelFromStore(l *store.Label) *Label {
	return &Label{ID: l.ID, Name: l.Name, Color: int32(l.Color)}
}
