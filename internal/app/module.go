// Package app composes the client's services with fx.
package app

import (
	"context"

	"github.com/matheus3301/chatflow/internal/api"
	"github.com/matheus3301/chatflow/internal/auth"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/config"
	"github.com/matheus3301/chatflow/internal/directory"
	"github.com/matheus3301/chatflow/internal/lock"
	"github.com/matheus3301/chatflow/internal/logging"
	"github.com/matheus3301/chatflow/internal/outbox"
	"github.com/matheus3301/chatflow/internal/profile"
	"github.com/matheus3301/chatflow/internal/realtime"
	"github.com/matheus3301/chatflow/internal/session"
	"github.com/matheus3301/chatflow/internal/status"
	"github.com/matheus3301/chatflow/internal/store"
	intsync "github.com/matheus3301/chatflow/internal/sync"
	"github.com/matheus3301/chatflow/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Params holds the resolved profile and configuration passed to the fx module.
type Params struct {
	Profile   string
	Config    *config.Config
	LogStderr bool
	LogLevel  zapcore.Level
}

// Module returns the fx module for the client, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("chatflow",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideSessions,
			provideAPIClient,
			provideChannel,
			provideAdapter,
			provideSender,
			provideEngine,
			provideDirectory,
			provideAuthService,
		),
		fx.Invoke(registerLifecycle),
	)
}

// WithZapLogger routes fx's own lifecycle logging through the client logger.
func WithZapLogger() fx.Option {
	return fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	})
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, logging.Options{
		Stderr: p.LogStderr,
		Level:  p.LogLevel,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("path", l.Path()))
	return l, nil
}

// provideStore depends on the lock so the database is never opened by a
// second process on the same profile.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
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
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideSessions(db *store.DB, logger *zap.Logger) *session.Store {
	s := session.New(db)
	if _, err := s.Load(); err != nil {
		logger.Warn("could not restore session", zap.Error(err))
	}
	return s
}

func provideAPIClient(p Params, sessions *session.Store, logger *zap.Logger) *api.Client {
	srv := p.Config.Server
	return api.New(srv.BaseURL, srv.RequestTimeout.Std(), sessions, logger.Named("api"))
}

func provideChannel(p Params, logger *zap.Logger) *realtime.Channel {
	rt := p.Config.Realtime
	return realtime.New(realtime.Options{
		URL:      p.Config.Server.SocketURL,
		Attempts: rt.ReconnectAttempts,
		Delay:    rt.ReconnectDelay.Std(),
		DelayMax: rt.ReconnectDelayMax.Std(),
	}, logger.Named("realtime"))
}

func provideAdapter(client *api.Client, ch *realtime.Channel, b *bus.Bus, logger *zap.Logger) *transport.Adapter {
	return transport.NewAdapter(client, ch, status.NewChannelMachine(b), b, logger.Named("transport"))
}

func provideSender(adapter *transport.Adapter, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(adapter, b, logger.Named("outbox"))
}

func provideEngine(p Params, adapter *transport.Adapter, sessions *session.Store, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(adapter, sessions, sender, b, logger.Named("sync"), intsync.Options{
		PollInterval: p.Config.Sync.PollInterval.Std(),
	})
}

func provideDirectory(client *api.Client, db *store.DB, sessions *session.Store, b *bus.Bus, logger *zap.Logger) *directory.Directory {
	return directory.New(client, db, sessions, b, logger.Named("directory"))
}

func provideAuthService(client *api.Client, sessions *session.Store, adapter *transport.Adapter, engine *intsync.Engine, dir *directory.Directory, b *bus.Bus, logger *zap.Logger) *auth.Service {
	return auth.NewService(client, sessions, adapter, b, logger.Named("auth"), engine, dir)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, adapter *transport.Adapter, engine *intsync.Engine, authSvc *auth.Service, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Both loops outlive the start context.
			engine.Start(context.Background())
			authSvc.Start(context.Background())

			if authSvc.Resume() {
				logger.Info("session restored")
			} else {
				logger.Info("no stored session, login required")
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			authSvc.Stop()
			engine.Stop()
			adapter.Disconnect()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
