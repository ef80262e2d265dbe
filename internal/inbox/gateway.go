package inbox

import (
	"context"

	"github.com/matheus3301/wppcrm/internal/rpc"
)

// MessageSender is the daemon's send API as seen by the inbox.
type MessageSender interface {
	SendText(ctx context.Context, in *rpc.SendTextRequest) (*rpc.SendResponse, error)
	SendMedia(ctx context.Context, in *rpc.SendMediaRequest) (*rpc.SendResponse, error)
	SendAudio(ctx context.Context, in *rpc.SendAudioRequest) (*rpc.SendResponse, error)
}

// RPCGateway adapts the daemon's MessageService to Gateway.
type RPCGateway struct {
	Client MessageSender
}

func (g RPCGateway) SendText(ctx context.Context, counterpart, clientID, text string) (SendResult, error) {
	return result(g.Client.SendText(ctx, &rpc.SendTextRequest{
		ClientMsgID: clientID,
		ChatJID:     JIDFor(counterpart),
		Text:        text,
	}))
}

func (g RPCGateway) SendMedia(ctx context.Context, counterpart, clientID string, media Media) (SendResult, error) {
	return result(g.Client.SendMedia(ctx, &rpc.SendMediaRequest{
		ClientMsgID: clientID,
		ChatJID:     JIDFor(counterpart),
		MimeType:    media.MimeType,
		Caption:     media.Caption,
		FileName:    media.FileName,
		Data:        media.Data,
	}))
}

func (g RPCGateway) SendAudio(ctx context.Context, counterpart, clientID string, data []byte) (SendResult, error) {
	return result(g.Client.SendAudio(ctx, &rpc.SendAudioRequest{
		ClientMsgID: clientID,
		ChatJID:     JIDFor(counterpart),
		Data:        data,
	}))
}

func result(resp *rpc.SendResponse, err error) (SendResult, error) {
	if err != nil {
		return SendResult{}, err
	}
	return SendResult{ID: resp.ID, Status: resp.Status}, nil
}
