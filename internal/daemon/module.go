package daemon

import (
	"context"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/config"
	"github.com/matheus3301/wppcrm/internal/lock"
	"github.com/matheus3301/wppcrm/internal/logging"
	"github.com/matheus3301/wppcrm/internal/metrics"
	"github.com/matheus3301/wppcrm/internal/outbox"
	"github.com/matheus3301/wppcrm/internal/session"
	"github.com/matheus3301/wppcrm/internal/status"
	"github.com/matheus3301/wppcrm/internal/store"
	intsync "github.com/matheus3301/wppcrm/internal/sync"
	"github.com/matheus3301/wppcrm/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // nil = load ~/.wppcrm/config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideMetrics,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAdapter,
			provideReconciler,
			provideIdentity,
			provideSyncEngine,
			provideSender,
			provideSessionService,
			provideChatService,
			provideMessageService,
			provideEventService,
			provideMetricsServer,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return session.LoadConfig()
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideBus(m *metrics.Metrics) *bus.Bus {
	b := bus.New()
	b.OnDrop(m.Dropped)
	return b
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), "wppd")
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired", zap.Stringer("holder", l.Holder()))
	return l, nil
}

// provideStore takes the lock so the store is never opened without it.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("schema migrated", zap.Uint("from", result.From), zap.Uint("to", result.Version))
	} else {
		logger.Debug("schema up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAdapter(p Params, _ *lock.Lock, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, b, logger)
}

func provideReconciler(db *store.DB, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(db, adapter, b, logger)
}

func provideIdentity(p Params, rec *intsync.Reconciler) (api.Identity, error) {
	id, err := rec.InstanceID()
	if err != nil {
		return api.Identity{}, err
	}
	socket := p.SocketPath
	if socket == "" {
		socket = session.SocketPath(p.SessionName)
	}
	return api.Identity{
		Session:    p.SessionName,
		ServerURL:  "unix://" + socket,
		InstanceID: id,
	}, nil
}

func provideSyncEngine(p Params, db *store.DB, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, p.SessionName, m, logger)
}

func provideSender(cfg *config.Config, db *store.DB, adapter *wa.Adapter, b *bus.Bus, m *metrics.Metrics, machine *status.Machine, logger *zap.Logger) *outbox.Sender {
	limiter := outbox.NewChatLimiter(cfg.Outbox.Rate, cfg.Outbox.Burst, cfg.Outbox.Idle.Duration)
	return outbox.NewSender(db, adapter, b, m, logger,
		outbox.WithLimiter(limiter),
		outbox.WithState(machine),
	)
}

func provideSessionService(cfg *config.Config, id api.Identity, m *status.Machine, adapter *wa.Adapter, db *store.DB, logger *zap.Logger) *api.SessionService {
	return api.NewSessionService(id, m, adapter, db, cfg.Gateway.QRTimeout.Duration, logger)
}

func provideChatService(db *store.DB, b *bus.Bus, adapter *wa.Adapter, logger *zap.Logger) *api.ChatService {
	return api.NewChatService(db, b, adapter, logger)
}

func provideMessageService(db *store.DB, sender *outbox.Sender, adapter *wa.Adapter) *api.MessageService {
	return api.NewMessageService(db, sender, adapter)
}

func provideEventService(id api.Identity, b *bus.Bus, logger *zap.Logger) *api.EventService {
	return api.NewEventService(id, b, logger)
}

func provideMetricsServer(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *metrics.Server {
	return metrics.NewServer(cfg.Metrics.Listen, m, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *Server,
	metricsSrv *metrics.Server,
	lk *lock.Lock,
	db *store.DB,
	adapter *wa.Adapter,
	engine *intsync.Engine,
	reconciler *intsync.Reconciler,
	sender *outbox.Sender,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The engine must be subscribed before the adapter produces events.
			engine.Start(context.Background())
			reconciler.Start(context.Background())

			handler := wa.NewEventHandler(b, machine, adapter, logger)
			adapter.RegisterEventHandler(handler.Handle)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			if err := metricsSrv.Start(); err != nil {
				logger.Warn("metrics listener disabled", zap.Error(err))
			}

			sender.Start(context.Background())

			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = machine.Transition(status.Error)
					}
				}()
			} else {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			sender.Stop()
			adapter.Disconnect()
			reconciler.Stop()
			engine.Stop()
			srv.Stop(ctx)
			metricsSrv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
