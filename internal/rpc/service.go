package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Full method names.
const (
	MethodGetSessionStatus = "/wppcrm.v1.SessionService/GetSessionStatus"
	MethodStartAuth        = "/wppcrm.v1.SessionService/StartAuth"
	MethodPairPhone        = "/wppcrm.v1.SessionService/PairPhone"
	MethodLogout           = "/wppcrm.v1.SessionService/Logout"

	MethodListChats  = "/wppcrm.v1.ChatService/ListChats"
	MethodGetChat    = "/wppcrm.v1.ChatService/GetChat"
	MethodMarkRead   = "/wppcrm.v1.ChatService/MarkRead"
	MethodListLabels = "/wppcrm.v1.ChatService/ListLabels"

	MethodListMessages      = "/wppcrm.v1.MessageService/ListMessages"
	MethodSearchMessages    = "/wppcrm.v1.MessageService/SearchMessages"
	MethodSendText          = "/wppcrm.v1.MessageService/SendText"
	MethodSendMedia         = "/wppcrm.v1.MessageService/SendMedia"
	MethodSendAudio         = "/wppcrm.v1.MessageService/SendAudio"
	MethodSubscribePresence = "/wppcrm.v1.MessageService/SubscribePresence"

	MethodWatch = "/wppcrm.v1.EventService/Watch"
)

// ServerStream is the send side of a server-streaming RPC.
type ServerStream[T any] interface {
	Send(*T) error
	Context() context.Context
}

// ClientStream is the receive side of a server-streaming RPC.
type ClientStream[T any] interface {
	Recv() (*T, error)
}

type SessionServer interface {
	GetSessionStatus(context.Context, *GetSessionStatusRequest) (*GetSessionStatusResponse, error)
	StartAuth(*StartAuthRequest, ServerStream[AuthEvent]) error
	PairPhone(context.Context, *PairPhoneRequest) (*PairPhoneResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
}

type ChatServer interface {
	ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error)
	GetChat(context.Context, *GetChatRequest) (*GetChatResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	ListLabels(context.Context, *ListLabelsRequest) (*ListLabelsResponse, error)
}

type MessageServer interface {
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	SearchMessages(context.Context, *SearchMessagesRequest) (*SearchMessagesResponse, error)
	SendText(context.Context, *SendTextRequest) (*SendResponse, error)
	SendMedia(context.Context, *SendMediaRequest) (*SendResponse, error)
	SendAudio(context.Context, *SendAudioRequest) (*SendResponse, error)
	SubscribePresence(context.Context, *SubscribePresenceRequest) (*SubscribePresenceResponse, error)
}

type EventServer interface {
	Watch(*WatchEventsRequest, ServerStream[EventEnvelope]) error
}

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// unary adapts a typed handler to grpc.MethodDesc.
func unary[S any, Req any, Resp any](fullMethod string, call func(S, context.Context, *Req) (*Resp, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type serverStream[T any] struct {
	grpc.ServerStream
}

func (s *serverStream[T]) Send(m *T) error {
	return s.ServerStream.SendMsg(m)
}

// streaming adapts a typed server-streaming handler to grpc.StreamDesc.
func streaming[S any, Req any, T any](call func(S, *Req, ServerStream[T]) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(Req)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(S), in, &serverStream[T]{stream})
	}
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: "wppcrm.v1.SessionService",
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSessionStatus", Handler: unary(MethodGetSessionStatus, SessionServer.GetSessionStatus)},
		{MethodName: "PairPhone", Handler: unary(MethodPairPhone, SessionServer.PairPhone)},
		{MethodName: "Logout", Handler: unary(MethodLogout, SessionServer.Logout)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StartAuth", Handler: streaming(SessionServer.StartAuth), ServerStreams: true},
	},
	Metadata: "wppcrm/v1/session.go",
}

var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: "wppcrm.v1.ChatService",
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListChats", Handler: unary(MethodListChats, ChatServer.ListChats)},
		{MethodName: "GetChat", Handler: unary(MethodGetChat, ChatServer.GetChat)},
		{MethodName: "MarkRead", Handler: unary(MethodMarkRead, ChatServer.MarkRead)},
		{MethodName: "ListLabels", Handler: unary(MethodListLabels, ChatServer.ListLabels)},
	},
	Metadata: "wppcrm/v1/chat.go",
}

var MessageServiceDesc = grpc.ServiceDesc{
	ServiceName: "wppcrm.v1.MessageService",
	HandlerType: (*MessageServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListMessages", Handler: unary(MethodListMessages, MessageServer.ListMessages)},
		{MethodName: "SearchMessages", Handler: unary(MethodSearchMessages, MessageServer.SearchMessages)},
		{MethodName: "SendText", Handler: unary(MethodSendText, MessageServer.SendText)},
		{MethodName: "SendMedia", Handler: unary(MethodSendMedia, MessageServer.SendMedia)},
		{MethodName: "SendAudio", Handler: unary(MethodSendAudio, MessageServer.SendAudio)},
		{MethodName: "SubscribePresence", Handler: unary(MethodSubscribePresence, MessageServer.SubscribePresence)},
	},
	Metadata: "wppcrm/v1/message.go",
}

var EventServiceDesc = grpc.ServiceDesc{
	ServiceName: "wppcrm.v1.EventService",
	HandlerType: (*EventServer)(nil),
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: streaming(EventServer.Watch), ServerStreams: true},
	},
	Metadata: "wppcrm/v1/event.go",
}

// Register attaches all daemon services to s.
func Register(s grpc.ServiceRegistrar, session SessionServer, chat ChatServer, message MessageServer, events EventServer) {
	s.RegisterService(&SessionServiceDesc, session)
	s.RegisterService(&ChatServiceDesc, chat)
	s.RegisterService(&MessageServiceDesc, message)
	s.RegisterService(&EventServiceDesc, events)
}
