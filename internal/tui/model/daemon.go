package model

import (
	"context"

	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/tui/client"
)

// SessionAPI is the daemon's session service.
type SessionAPI interface {
	GetSessionStatus(ctx context.Context, in *rpc.GetSessionStatusRequest) (*rpc.GetSessionStatusResponse, error)
	StartAuth(ctx context.Context, in *rpc.StartAuthRequest) (rpc.ClientStream[rpc.AuthEvent], error)
	PairPhone(ctx context.Context, in *rpc.PairPhoneRequest) (*rpc.PairPhoneResponse, error)
	Logout(ctx context.Context, in *rpc.LogoutRequest) (*rpc.LogoutResponse, error)
}

// ChatAPI is the daemon's chat service.
type ChatAPI interface {
	ListChats(ctx context.Context, in *rpc.ListChatsRequest) (*rpc.ListChatsResponse, error)
	GetChat(ctx context.Context, in *rpc.GetChatRequest) (*rpc.GetChatResponse, error)
	MarkRead(ctx context.Context, in *rpc.MarkReadRequest) (*rpc.MarkReadResponse, error)
	ListLabels(ctx context.Context, in *rpc.ListLabelsRequest) (*rpc.ListLabelsResponse, error)
}

// MessageAPI is the daemon's message service.
type MessageAPI interface {
	ListMessages(ctx context.Context, in *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error)
	SearchMessages(ctx context.Context, in *rpc.SearchMessagesRequest) (*rpc.SearchMessagesResponse, error)
	SendText(ctx context.Context, in *rpc.SendTextRequest) (*rpc.SendResponse, error)
	SendMedia(ctx context.Context, in *rpc.SendMediaRequest) (*rpc.SendResponse, error)
	SendAudio(ctx context.Context, in *rpc.SendAudioRequest) (*rpc.SendResponse, error)
	SubscribePresence(ctx context.Context, in *rpc.SubscribePresenceRequest) (*rpc.SubscribePresenceResponse, error)
}

// EventAPI is the daemon's push channel.
type EventAPI interface {
	Watch(ctx context.Context) (rpc.ClientStream[rpc.EventEnvelope], error)
}

// Daemon groups the services the UI talks to.
type Daemon struct {
	Session SessionAPI
	Chat    ChatAPI
	Message MessageAPI
	Events  EventAPI
}

// FromClient exposes a dialed client as a Daemon.
func FromClient(c *client.Client) Daemon {
	return Daemon{Session: c.Session, Chat: c.Chat, Message: c.Message, Events: c.Events}
}
