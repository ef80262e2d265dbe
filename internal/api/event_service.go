package api

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"go.uber.org/zap"
)

// EventService implements rpc.EventServer. It forwards every gateway push
// event published on the bus, wrapped in an envelope carrying the
// instance identity.
type EventService struct {
	id     Identity
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEventService creates a new event service.
func NewEventService(id Identity, b *bus.Bus, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{id: id, bus: b, logger: logger}
}

func (s *EventService) Watch(_ *rpc.WatchEventsRequest, stream rpc.ServerStream[rpc.EventEnvelope]) error {
	ch, unsub := s.bus.Subscribe(bus.NamespaceGateway, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			env, err := s.envelope(evt)
			if err != nil {
				s.logger.Warn("dropping unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(env); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *EventService) envelope(evt bus.Event) (*rpc.EventEnvelope, error) {
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, err
	}
	return &rpc.EventEnvelope{
		EventID:          uuid.NewString(),
		Kind:             strings.TrimPrefix(evt.Kind, bus.NamespaceGateway),
		Instance:         s.id.Session,
		Server:           s.id.ServerURL,
		InstanceID:       s.id.InstanceID,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
		Data:             data,
	}, nil
}
