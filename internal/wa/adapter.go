package wa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/session"
	"github.com/matheus3301/wppcrm/internal/store"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// VoiceNoteMime is the mime type WhatsApp expects for push-to-talk audio.
const VoiceNoteMime = "audio/ogg; codecs=opus"

// ErrNotConnected is returned by commands issued while the client is offline.
var ErrNotConnected = errors.New("whatsapp client not connected")

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
	session   string
}

// NewAdapter creates a new WhatsApp adapter for the given session.
func NewAdapter(ctx context.Context, sessionName string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("wppcrm", [3]uint32{0, 1, 0})

	dbPath := session.SessionDBPath(sessionName)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	return &Adapter{
		client:    client,
		container: container,
		bus:       b,
		logger:    logger,
		session:   sessionName,
	}, nil
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client != nil && a.client.Store.ID != nil
}

// IsConnected reports whether the websocket to WhatsApp is up.
func (a *Adapter) IsConnected() bool {
	return a.client != nil && a.client.IsConnected()
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// SendText sends a text message to the given JID. Returns the server message ID.
func (a *Adapter) SendText(ctx context.Context, jid string, text string) (string, error) {
	return a.send(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
}

// SendMedia uploads data and sends it as an image, video or document
// depending on mimeType.
func (a *Adapter) SendMedia(ctx context.Context, jid string, data []byte, mimeType, caption, fileName string) (string, error) {
	mt, kind := mediaTypeFor(mimeType)
	up, err := a.client.Upload(ctx, data, mt)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	var msg *waE2E.Message
	switch kind {
	case "image":
		msg = &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			Mimetype:      proto.String(mimeType),
			Caption:       optional(caption),
			FileSHA256:    up.FileSHA256,
			FileEncSHA256: up.FileEncSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			MediaKey:      up.MediaKey,
		}}
	case "video":
		msg = &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			Mimetype:      proto.String(mimeType),
			Caption:       optional(caption),
			FileSHA256:    up.FileSHA256,
			FileEncSHA256: up.FileEncSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			MediaKey:      up.MediaKey,
		}}
	default:
		if fileName == "" {
			fileName = "file"
		}
		msg = &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			Mimetype:      proto.String(mimeType),
			Caption:       optional(caption),
			FileName:      proto.String(fileName),
			Title:         proto.String(fileName),
			FileSHA256:    up.FileSHA256,
			FileEncSHA256: up.FileEncSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			MediaKey:      up.MediaKey,
		}}
	}
	return a.send(ctx, jid, msg)
}

// SendAudio uploads data and sends it as a voice note.
func (a *Adapter) SendAudio(ctx context.Context, jid string, data []byte) (string, error) {
	up, err := a.client.Upload(ctx, data, whatsmeow.MediaAudio)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	return a.send(ctx, jid, &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		Mimetype:      proto.String(VoiceNoteMime),
		PTT:           proto.Bool(true),
		FileSHA256:    up.FileSHA256,
		FileEncSHA256: up.FileEncSHA256,
		FileLength:    proto.Uint64(up.FileLength),
		MediaKey:      up.MediaKey,
	}})
}

// send delivers msg and publishes the wa.sent echo the gateway would have
// produced for it. whatsmeow does not emit message events for our own sends.
func (a *Adapter) send(ctx context.Context, jid string, msg *waE2E.Message) (string, error) {
	if !a.IsConnected() {
		return "", ErrNotConnected
	}
	to, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, msg)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	ts := resp.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	echo := ParseHistoryMessage(msg, types.MessageInfo{
		MessageSource: types.MessageSource{Chat: to, Sender: a.ownJID(), IsFromMe: true},
		ID:            resp.ID,
		Timestamp:     ts,
	})
	echo.Status = "SERVER_ACK"
	a.bus.Publish(bus.NewEvent(bus.KindWASent, echo))
	return resp.ID, nil
}

func (a *Adapter) ownJID() types.JID {
	if a.client == nil || a.client.Store.ID == nil {
		return types.EmptyJID
	}
	return a.client.Store.ID.ToNonAD()
}

func mediaTypeFor(mimeType string) (whatsmeow.MediaType, string) {
	m := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(m, "image/"):
		return whatsmeow.MediaImage, "image"
	case strings.HasPrefix(m, "video/"):
		return whatsmeow.MediaVideo, "video"
	default:
		return whatsmeow.MediaDocument, "document"
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return proto.String(s)
}

// MarkRead sends read receipts for the given messages of a chat.
func (a *Adapter) MarkRead(ctx context.Context, chatJID string, ids []string, sender string) error {
	if len(ids) == 0 {
		return nil
	}
	chat, err := types.ParseJID(chatJID)
	if err != nil {
		return fmt.Errorf("parse JID: %w", err)
	}
	from := chat
	if sender != "" {
		if from, err = types.ParseJID(sender); err != nil {
			return fmt.Errorf("parse sender JID: %w", err)
		}
	}
	msgIDs := make([]types.MessageID, len(ids))
	for i, id := range ids {
		msgIDs[i] = types.MessageID(id)
	}
	return a.client.MarkRead(ctx, msgIDs, time.Now(), chat, from, types.ReceiptTypeRead)
}

// SubscribePresence asks WhatsApp to push presence updates for jid.
func (a *Adapter) SubscribePresence(ctx context.Context, jid string) error {
	to, err := types.ParseJID(jid)
	if err != nil {
		return fmt.Errorf("parse JID: %w", err)
	}
	return a.client.SubscribePresence(ctx, to)
}

// ProfilePictureURL returns the profile picture URL of jid, or "" when the
// contact has none or hides it.
func (a *Adapter) ProfilePictureURL(ctx context.Context, jid string) (string, error) {
	to, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	info, err := a.client.GetProfilePictureInfo(ctx, to, &whatsmeow.GetProfilePictureParams{})
	if errors.Is(err, whatsmeow.ErrProfilePictureNotSet) || errors.Is(err, whatsmeow.ErrProfilePictureUnauthorized) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get profile picture: %w", err)
	}
	if info == nil {
		return "", nil
	}
	return info.URL, nil
}

// GetContacts returns all contacts from the whatsmeow device store.
func (a *Adapter) GetContacts(ctx context.Context) []store.Contact {
	allContacts, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return nil
	}
	var contacts []store.Contact
	for jid, info := range allContacts {
		contacts = append(contacts, store.Contact{
			JID:      jid.ToNonAD().String(),
			Name:     info.FullName,
			PushName: info.PushName,
		})
	}
	return contacts
}

// PhoneNumber returns the phone number from the device store, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a.client == nil || a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// GetLIDMappings returns all LID-to-PN mappings known for the device's contacts.
func (a *Adapter) GetLIDMappings(ctx context.Context) []store.LIDMapping {
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return nil
	}

	// There is no bulk listing API, so resolve per contact.
	allContacts, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil
	}

	var mappings []store.LIDMapping
	for jid := range allContacts {
		normalized := jid.ToNonAD()
		if normalized.Server == types.DefaultUserServer {
			lid, err := a.client.Store.LIDs.GetLIDForPN(ctx, normalized)
			if err == nil && !lid.IsEmpty() {
				mappings = append(mappings, store.LIDMapping{
					LID: lid.User,
					PN:  normalized.User,
				})
			}
		}
	}
	return mappings
}

// ResolveLID resolves a LID JID to its phone number JID using the device store mapping.
// Returns the original JID if it's not a LID or if resolution fails.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}
