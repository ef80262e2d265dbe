package client

import (
	"context"
	"fmt"

	"github.com/matheus3301/wppcrm/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn    *grpc.ClientConn
	Session *SessionClient
	Chat    *ChatClient
	Message *MessageClient
	Events  *EventClient
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpc.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:    conn,
		Session: &SessionClient{conn},
		Chat:    &ChatClient{conn},
		Message: &MessageClient{conn},
		Events:  &EventClient{conn},
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Req any, Resp any](ctx context.Context, conn grpc.ClientConnInterface, method string, in *Req) (*Resp, error) {
	out := new(Resp)
	if err := conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

type clientStream[T any] struct {
	grpc.ClientStream
}

func (s *clientStream[T]) Recv() (*T, error) {
	m := new(T)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func openStream[Req any, T any](ctx context.Context, conn grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req) (rpc.ClientStream[T], error) {
	st, err := conn.NewStream(ctx, desc, method)
	if err != nil {
		return nil, err
	}
	if err := st.SendMsg(in); err != nil {
		return nil, err
	}
	if err := st.CloseSend(); err != nil {
		return nil, err
	}
	return &clientStream[T]{st}, nil
}

type SessionClient struct{ conn grpc.ClientConnInterface }

func (c *SessionClient) GetSessionStatus(ctx context.Context, in *rpc.GetSessionStatusRequest) (*rpc.GetSessionStatusResponse, error) {
	return invoke[rpc.GetSessionStatusRequest, rpc.GetSessionStatusResponse](ctx, c.conn, rpc.MethodGetSessionStatus, in)
}

func (c *SessionClient) StartAuth(ctx context.Context, in *rpc.StartAuthRequest) (rpc.ClientStream[rpc.AuthEvent], error) {
	return openStream[rpc.StartAuthRequest, rpc.AuthEvent](ctx, c.conn, &rpc.SessionServiceDesc.Streams[0], rpc.MethodStartAuth, in)
}

func (c *SessionClient) PairPhone(ctx context.Context, in *rpc.PairPhoneRequest) (*rpc.PairPhoneResponse, error) {
	return invoke[rpc.PairPhoneRequest, rpc.PairPhoneResponse](ctx, c.conn, rpc.MethodPairPhone, in)
}

func (c *SessionClient) Logout(ctx context.Context, in *rpc.LogoutRequest) (*rpc.LogoutResponse, error) {
	return invoke[rpc.LogoutRequest, rpc.LogoutResponse](ctx, c.conn, rpc.MethodLogout, in)
}

type ChatClient struct{ conn grpc.ClientConnInterface }

func (c *ChatClient) ListChats(ctx context.Context, in *rpc.ListChatsRequest) (*rpc.ListChatsResponse, error) {
	return invoke[rpc.ListChatsRequest, rpc.ListChatsResponse](ctx, c.conn, rpc.MethodListChats, in)
}

func (c *ChatClient) GetChat(ctx context.Context, in *rpc.GetChatRequest) (*rpc.GetChatResponse, error) {
	return invoke[rpc.GetChatRequest, rpc.GetChatResponse](ctx, c.conn, rpc.MethodGetChat, in)
}

func (c *ChatClient) MarkRead(ctx context.Context, in *rpc.MarkReadRequest) (*rpc.MarkReadResponse, error) {
	return invoke[rpc.MarkReadRequest, rpc.MarkReadResponse](ctx, c.conn, rpc.MethodMarkRead, in)
}

func (c *ChatClient) ListLabels(ctx context.Context, in *rpc.ListLabelsRequest) (*rpc.ListLabelsResponse, error) {
	return invoke[rpc.ListLabelsRequest, rpc.ListLabelsResponse](ctx, c.conn, rpc.MethodListLabels, in)
}

type MessageClient struct{ conn grpc.ClientConnInterface }

func (c *MessageClient) ListMessages(ctx context.Context, in *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error) {
	return invoke[rpc.ListMessagesRequest, rpc.ListMessagesResponse](ctx, c.conn, rpc.MethodListMessages, in)
}

func (c *MessageClient) SearchMessages(ctx context.Context, in *rpc.SearchMessagesRequest) (*rpc.SearchMessagesResponse, error) {
	return invoke[rpc.SearchMessagesRequest, rpc.SearchMessagesResponse](ctx, c.conn, rpc.MethodSearchMessages, in)
}

func (c *MessageClient) SendText(ctx context.Context, in *rpc.SendTextRequest) (*rpc.SendResponse, error) {
	return invoke[rpc.SendTextRequest, rpc.SendResponse](ctx, c.conn, rpc.MethodSendText, in)
}

func (c *MessageClient) SendMedia(ctx context.Context, in *rpc.SendMediaRequest) (*rpc.SendResponse, error) {
	return invoke[rpc.SendMediaRequest, rpc.SendResponse](ctx, c.conn, rpc.MethodSendMedia, in)
}

func (c *MessageClient) SendAudio(ctx context.Context, in *rpc.SendAudioRequest) (*rpc.SendResponse, error) {
	return invoke[rpc.SendAudioRequest, rpc.SendResponse](ctx, c.conn, rpc.MethodSendAudio, in)
}

func (c *MessageClient) SubscribePresence(ctx context.Context, in *rpc.SubscribePresenceRequest) (*rpc.SubscribePresenceResponse, error) {
	return invoke[rpc.SubscribePresenceRequest, rpc.SubscribePresenceResponse](ctx, c.conn, rpc.MethodSubscribePresence, in)
}

type EventClient struct{ conn grpc.ClientConnInterface }

// Watch opens the daemon's push event stream.
func (c *EventClient) Watch(ctx context.Context) (rpc.ClientStream[rpc.EventEnvelope], error) {
	return openStream[rpc.WatchEventsRequest, rpc.EventEnvelope](ctx, c.conn, &rpc.EventServiceDesc.Streams[0], rpc.MethodWatch, &rpc.WatchEventsRequest{})
}
