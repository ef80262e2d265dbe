package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/metrics"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Services are the API implementations served on the socket.
type Services struct {
	fx.In

	Session *api.SessionService
	Chat    *api.ChatService
	Message *api.MessageService
	Events  *api.EventService
}

// Server serves the daemon API to the TUI and wppctl over the session's
// Unix socket.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer binds the socket (replacing a stale one; the session lock is
// already held) and registers svc. m may be nil.
func NewServer(p Params, logger *zap.Logger, m *metrics.Metrics, svc Services) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("socket dir: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	obs := observer{metrics: m, logger: logger}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(obs.unary),
		grpc.ChainStreamInterceptor(obs.stream),
	)
	rpc.Register(srv, svc.Session, svc.Chat, svc.Message, svc.Events)

	return &Server{
		grpcServer: srv,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("api listening", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop drains in-flight calls until ctx is done, then closes whatever is
// left (Watch streams never finish on their own) and removes the socket.
func (s *Server) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("api drain timed out, closing streams")
		s.grpcServer.Stop()
		<-done
	}
	_ = os.Remove(s.socketPath)
	s.logger.Info("api stopped")
}

// observer records every call in the metrics and logs failures.
type observer struct {
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func (o observer) done(method string, start time.Time, err error) {
	code := status.Code(err)
	o.metrics.RPC(method, code.String(), time.Since(start))
	if err != nil {
		o.logger.Debug("api call failed", zap.String("method", method), zap.Stringer("code", code), zap.Error(err))
	}
}

func (o observer) unary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	o.done(info.FullMethod, start, err)
	return resp, err
}

func (o observer) stream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	o.done(info.FullMethod, start, err)
	return err
}
