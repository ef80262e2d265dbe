package api

import (
	"context"
	"strings"

	"github.com/matheus3301/wppcrm/internal/outbox"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/store"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// MessageService implements rpc.MessageServer.
type MessageService struct {
	db     *store.DB
	sender Sender
	gw     Gateway
}

// NewMessageService creates a new message service backed by the store and
// the outbox.
func NewMessageService(db *store.DB, sender Sender, gw Gateway) *MessageService {
	return &MessageService{db: db, sender: sender, gw: gw}
}

func (s *MessageService) ListMessages(_ context.Context, req *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error) {
	chat := strings.TrimSpace(req.ChatJID)
	if chat == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "chat_jid is required")
	}
	limit := pageLimit(req.Pagination, 50, 1000)
	q := store.MessageQuery{ChatJID: chat, Instance: req.Instance, Limit: limit}
	if p := req.Pagination; p != nil {
		q.BeforeTs, q.BeforeID = p.BeforeUnixMs, p.BeforeID
	}

	msgs, err := s.db.ListMessages(q)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list messages: %v", err)
	}

	out := make([]*rpc.Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, rpc.MessageFromStore(&msgs[i]))
	}

	return &rpc.ListMessagesResponse{
		Messages: out,
		PageInfo: &rpc.PageInfo{HasMore: len(msgs) == limit},
	}, nil
}

func (s *MessageService) SearchMessages(_ context.Context, req *rpc.SearchMessagesRequest) (*rpc.SearchMessagesResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "query is required")
	}
	limit := pageLimit(req.Pagination, 50, 500)

	results, err := s.db.SearchMessages(req.Query, req.ChatJID, limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search messages: %v", err)
	}

	out := make([]*rpc.SearchResult, 0, len(results))
	for i := range results {
		out = append(out, &rpc.SearchResult{
			Message: rpc.MessageFromStore(&results[i].Message),
			Snippet: results[i].Snippet,
		})
	}

	return &rpc.SearchMessagesResponse{
		Results:  out,
		PageInfo: &rpc.PageInfo{HasMore: len(results) == limit},
	}, nil
}

func (s *MessageService) send(ctx context.Context, req outbox.Request) (*rpc.SendResponse, error) {
	if s.sender == nil {
		return nil, errNoAdapter
	}
	res, err := s.sender.Send(ctx, req)
	if err != nil {
		return nil, sendError(err)
	}
	return &rpc.SendResponse{ID: res.ID, Status: res.Status}, nil
}

func (s *MessageService) SendText(ctx context.Context, req *rpc.SendTextRequest) (*rpc.SendResponse, error) {
	return s.send(ctx, outbox.Request{
		ClientMsgID: req.ClientMsgID,
		ChatJID:     req.ChatJID,
		Kind:        outbox.KindText,
		Text:        req.Text,
	})
}

func (s *MessageService) SendMedia(ctx context.Context, req *rpc.SendMediaRequest) (*rpc.SendResponse, error) {
	return s.send(ctx, outbox.Request{
		ClientMsgID: req.ClientMsgID,
		ChatJID:     req.ChatJID,
		Kind:        outbox.KindMedia,
		Data:        req.Data,
		MimeType:    req.MimeType,
		Caption:     req.Caption,
		FileName:    req.FileName,
	})
}

func (s *MessageService) SendAudio(ctx context.Context, req *rpc.SendAudioRequest) (*rpc.SendResponse, error) {
	return s.send(ctx, outbox.Request{
		ClientMsgID: req.ClientMsgID,
		ChatJID:     req.ChatJID,
		Kind:        outbox.KindAudio,
		Data:        req.Data,
	})
}

func (s *MessageService) SubscribePresence(ctx context.Context, req *rpc.SubscribePresenceRequest) (*rpc.SubscribePresenceResponse, error) {
	chat := strings.TrimSpace(req.ChatJID)
	if chat == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "chat_jid is required")
	}
	if s.gw == nil || !s.gw.IsConnected() {
		return nil, grpcstatus.Error(codes.Unavailable, "whatsapp not connected")
	}
	if err := s.gw.SubscribePresence(ctx, chat); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "subscribe presence: %v", err)
	}
	return &rpc.SubscribePresenceResponse{}, nil
}
