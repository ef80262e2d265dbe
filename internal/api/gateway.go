package api

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/wppcrm/internal/outbox"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/wa"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Gateway is the part of the WhatsApp adapter the services use.
// *wa.Adapter implements it.
type Gateway interface {
	IsConnected() bool
	IsLoggedIn() bool
	PhoneNumber() string
	StartQRAuth(ctx context.Context, timeout time.Duration) (<-chan wa.AuthEvent, error)
	PairPhone(ctx context.Context, phone string) (string, error)
	Logout(ctx context.Context) error
	MarkRead(ctx context.Context, chatJID string, ids []string, sender string) error
	SubscribePresence(ctx context.Context, jid string) error
	ProfilePictureURL(ctx context.Context, jid string) (string, error)
}

// Sender is the outbox as seen by MessageService.
type Sender interface {
	Send(ctx context.Context, req outbox.Request) (outbox.Result, error)
}

// Identity is stamped on status responses and push events so clients can
// tell instances apart.
type Identity struct {
	Session    string
	ServerURL  string
	InstanceID string
}

var errNoAdapter = grpcstatus.Error(codes.Unavailable, "whatsapp adapter not initialized")

// sendError maps an outbox or gateway error onto a gRPC status.
func sendError(err error) error {
	switch {
	case errors.Is(err, outbox.ErrInvalidRequest):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, outbox.ErrRateLimited):
		return grpcstatus.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, wa.ErrNotConnected):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	default:
		return grpcstatus.Errorf(codes.Internal, "send: %v", err)
	}
}

func pageLimit(p *rpc.Pagination, def, max int) int {
	limit := def
	if p != nil && p.Limit > 0 {
		limit = int(p.Limit)
	}
	if limit > max {
		limit = max
	}
	return limit
}
