package api

import (
	"context"
	"strings"

	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

const maxReceipts = 100

// ChatService implements rpc.ChatServer.
type ChatService struct {
	db     *store.DB
	bus    *bus.Bus
	gw     Gateway
	logger *zap.Logger
}

// NewChatService creates a new chat service backed by the store. gw may be
// nil, in which case avatars are not fetched and no receipts are sent.
func NewChatService(db *store.DB, b *bus.Bus, gw Gateway, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{db: db, bus: b, gw: gw, logger: logger}
}

func (s *ChatService) ListChats(_ context.Context, req *rpc.ListChatsRequest) (*rpc.ListChatsResponse, error) {
	limit := pageLimit(req.Pagination, 200, 1000)

	chats, err := s.db.ListChats(limit, 0)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list chats: %v", err)
	}

	out := make([]*rpc.Chat, 0, len(chats))
	for i := range chats {
		out = append(out, rpc.ChatFromStore(&chats[i]))
	}

	return &rpc.ListChatsResponse{
		Chats:    out,
		PageInfo: &rpc.PageInfo{HasMore: len(chats) == limit},
	}, nil
}

// GetChat returns one chat, looking up its avatar on first access.
func (s *ChatService) GetChat(ctx context.Context, req *rpc.GetChatRequest) (*rpc.GetChatResponse, error) {
	jid := strings.TrimSpace(req.JID)
	if jid == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "jid is required")
	}
	c, err := s.db.GetChat(jid)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "get chat: %v", err)
	}
	if c == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "chat %q not found", jid)
	}

	if c.AvatarURL == "" && s.gw != nil && s.gw.IsConnected() {
		url, err := s.gw.ProfilePictureURL(ctx, jid)
		if err != nil {
			s.logger.Debug("avatar lookup failed", zap.String("chat_jid", jid), zap.Error(err))
		} else if url != "" {
			if err := s.db.SetChatAvatar(jid, url); err != nil {
				s.logger.Warn("failed to store avatar", zap.String("chat_jid", jid), zap.Error(err))
			}
			c.AvatarURL = url
		}
	}
	return &rpc.GetChatResponse{Chat: rpc.ChatFromStore(c)}, nil
}

// MarkRead clears the chat's unread count and sends read receipts for the
// unread incoming messages. Receipt failures are logged, not returned.
func (s *ChatService) MarkRead(ctx context.Context, req *rpc.MarkReadRequest) (*rpc.MarkReadResponse, error) {
	jid := strings.TrimSpace(req.ChatJID)
	if jid == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "chat_jid is required")
	}
	c, err := s.db.GetChat(jid)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "get chat: %v", err)
	}
	if c == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "chat %q not found", jid)
	}
	if c.UnreadCount == 0 {
		return &rpc.MarkReadResponse{}, nil
	}

	bySender, err := s.unreadIDs(jid, min(c.UnreadCount, maxReceipts))
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list unread: %v", err)
	}
	if err := s.db.MarkChatRead(jid); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "mark read: %v", err)
	}
	c.UnreadCount = 0
	s.bus.Publish(bus.NewEvent(bus.GatewayKind(rpc.KindChatsUpdate), []*rpc.Chat{rpc.ChatFromStore(c)}))

	if s.gw != nil && s.gw.IsConnected() {
		for sender, ids := range bySender {
			if err := s.gw.MarkRead(ctx, jid, ids, sender); err != nil {
				s.logger.Warn("failed to send read receipts", zap.String("chat_jid", jid), zap.Error(err))
			}
		}
	}
	return &rpc.MarkReadResponse{}, nil
}

// unreadIDs returns the newest n incoming message ids of a chat, grouped by
// sender. Direct chats use an empty sender.
func (s *ChatService) unreadIDs(jid string, n int) (map[string][]string, error) {
	msgs, err := s.db.ListMessages(store.MessageQuery{ChatJID: jid, Limit: n})
	if err != nil {
		return nil, err
	}
	group := strings.HasSuffix(jid, "@g.us")
	out := make(map[string][]string)
	for _, m := range msgs {
		if m.FromMe {
			continue
		}
		sender := ""
		if group {
			sender = m.SenderJID
		}
		id := m.KeyID
		if id == "" {
			id = m.MsgID
		}
		out[sender] = append(out[sender], id)
	}
	return out, nil
}

func (s *ChatService) ListLabels(_ context.Context, _ *rpc.ListLabelsRequest) (*rpc.ListLabelsResponse, error) {
	labels, err := s.db.ListLabels()
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list labels: %v", err)
	}
	out := make([]*rpc.Label, 0, len(labels))
	for i := range labels {
		out = append(out, rpc.LabelFromStore(&labels[i]))
	}
	return &rpc.ListLabelsResponse{Labels: out}, nil
}
