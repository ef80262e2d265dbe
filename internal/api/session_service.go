package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/status"
	"github.com/matheus3301/wppcrm/internal/store"
	"github.com/matheus3301/wppcrm/internal/wa"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// SessionService implements rpc.SessionServer.
type SessionService struct {
	id        Identity
	startedAt time.Time
	machine   *status.Machine
	gw        Gateway
	db        *store.DB
	qrTimeout time.Duration
	logger    *zap.Logger
}

// NewSessionService creates a new session service. gw may be nil when the
// adapter failed to start.
func NewSessionService(id Identity, machine *status.Machine, gw Gateway, db *store.DB, qrTimeout time.Duration, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		id:        id,
		startedAt: time.Now(),
		machine:   machine,
		gw:        gw,
		db:        db,
		qrTimeout: qrTimeout,
		logger:    logger,
	}
}

func (s *SessionService) GetSessionStatus(_ context.Context, _ *rpc.GetSessionStatusRequest) (*rpc.GetSessionStatusResponse, error) {
	current := s.machine.Current()

	resp := &rpc.GetSessionStatusResponse{
		Session:       s.id.Session,
		Status:        string(current),
		StatusMessage: status.Describe(current),
		InstanceID:    s.id.InstanceID,
		ServerURL:     s.id.ServerURL,
		UptimeMs:      time.Since(s.startedAt).Milliseconds(),
	}

	if s.gw != nil {
		resp.PhoneNumber = s.gw.PhoneNumber()
		resp.Connected = s.gw.IsConnected()
	}

	if s.db != nil {
		if counts, err := s.db.Counts(); err == nil {
			resp.ChatCount = counts.Chats
			resp.MessageCount = counts.Messages
			resp.OutboxQueued = counts.OutboxQueued
		} else {
			s.logger.Warn("count rows", zap.Error(err))
		}
	}

	return resp, nil
}

// StartAuth streams QR codes until the phone pairs, pairing fails or the
// timeout elapses. A timeout returns the session to AUTH_REQUIRED.
func (s *SessionService) StartAuth(req *rpc.StartAuthRequest, stream rpc.ServerStream[rpc.AuthEvent]) error {
	if s.gw == nil {
		return errNoAdapter
	}

	timeout := s.qrTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	authCh, err := s.gw.StartQRAuth(stream.Context(), timeout)
	if errors.Is(err, wa.ErrAlreadyLoggedIn) {
		return grpcstatus.Error(codes.FailedPrecondition, err.Error())
	}
	if err != nil {
		return grpcstatus.Errorf(codes.Internal, "start auth: %v", err)
	}
	if err := s.machine.Advance(status.Connecting); err != nil {
		s.logger.Debug("auth started outside pairing states", zap.Error(err))
	}

	for evt := range authCh {
		switch evt.Type {
		case wa.AuthEventTimeout, wa.AuthEventAuthFailed:
			if err := s.machine.Advance(status.AuthRequired); err != nil {
				s.logger.Warn("could not return to auth required", zap.Error(err))
			}
		}
		if err := stream.Send(&rpc.AuthEvent{
			EventType: string(evt.Type),
			QRCode:    evt.QRCode,
			Message:   evt.Message,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (s *SessionService) PairPhone(ctx context.Context, req *rpc.PairPhoneRequest) (*rpc.PairPhoneResponse, error) {
	if s.gw == nil {
		return nil, errNoAdapter
	}
	phone := strings.TrimLeft(strings.TrimSpace(req.Phone), "+")
	if phone == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "phone is required")
	}
	code, err := s.gw.PairPhone(ctx, phone)
	if errors.Is(err, wa.ErrAlreadyLoggedIn) {
		return nil, grpcstatus.Error(codes.FailedPrecondition, err.Error())
	}
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "pair phone: %v", err)
	}
	return &rpc.PairPhoneResponse{Code: code}, nil
}

func (s *SessionService) Logout(ctx context.Context, _ *rpc.LogoutRequest) (*rpc.LogoutResponse, error) {
	if s.gw == nil {
		return nil, errNoAdapter
	}
	if err := s.gw.Logout(ctx); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "logout: %v", err)
	}
	return &rpc.LogoutResponse{Success: true, Message: "logged out"}, nil
}
