package inbox

import (
	"context"

	"github.com/matheus3301/wppcrm/internal/rpc"
)

// Query selects one page of history, newest first. Before and BeforeID are
// the timestamp and id of the oldest message loaded so far and bound the
// page exclusively; a zero Before means unbounded.
type Query struct {
	Counterpart string
	Instance    string
	Before      int64
	BeforeID    string
	Limit       int
}

// MessageStore is the history source the Paginator reads from.
type MessageStore interface {
	ListMessages(ctx context.Context, q Query) ([]*rpc.Message, error)
}

// MessageLister is the daemon's message API as seen by the inbox.
type MessageLister interface {
	ListMessages(ctx context.Context, in *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error)
}

// RPCStore adapts the daemon's MessageService to MessageStore.
type RPCStore struct {
	Client MessageLister
}

func (s RPCStore) ListMessages(ctx context.Context, q Query) ([]*rpc.Message, error) {
	resp, err := s.Client.ListMessages(ctx, &rpc.ListMessagesRequest{
		ChatJID:  JIDFor(q.Counterpart),
		Instance: q.Instance,
		Pagination: &rpc.Pagination{
			Limit:        int32(q.Limit),
			BeforeUnixMs: q.Before,
			BeforeID:     q.BeforeID,
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}
