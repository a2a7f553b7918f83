package daemon

import (
	"context"
	"errors"
	"net/http"

	"github.com/mojilabs/mojibridge/internal/api"
	"github.com/mojilabs/mojibridge/internal/bus"
	"github.com/mojilabs/mojibridge/internal/classify"
	"github.com/mojilabs/mojibridge/internal/config"
	"github.com/mojilabs/mojibridge/internal/dispatch"
	"github.com/mojilabs/mojibridge/internal/fallback"
	"github.com/mojilabs/mojibridge/internal/imsg"
	"github.com/mojilabs/mojibridge/internal/lock"
	"github.com/mojilabs/mojibridge/internal/logging"
	"github.com/mojilabs/mojibridge/internal/session"
	"github.com/mojilabs/mojibridge/internal/status"
	"github.com/mojilabs/mojibridge/internal/store"
	"github.com/mojilabs/mojibridge/internal/watch"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideChat,
			provideClassifier,
			provideDispatcher,
			provideFinder,
			provideMessenger,
			provideWatcher,
			provideStats,
			provideHandler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	db, err := store.OpenReadOnly(p.Config.StorePath)
	if err != nil {
		return nil, err
	}
	logger.Info("message store opened", zap.String("path", p.Config.StorePath))
	return db, nil
}

// provideChat resolves the configured conversation before anything starts
// watching. Resolution failure aborts startup; the log lists known chats so
// the operator can fix the config.
func provideChat(p Params, db *store.DB, machine *status.Machine, logger *zap.Logger) (store.Chat, error) {
	_ = machine.Transition(status.Resolving)

	chat, err := db.ResolveChat(p.Config.Chat)
	if err != nil {
		if errors.Is(err, store.ErrChatNotFound) {
			if chats, listErr := db.ListChats(20); listErr == nil {
				for _, c := range chats {
					logger.Info("known chat",
						zap.String("guid", c.GUID),
						zap.String("name", c.DisplayName),
						zap.String("identifier", c.Identifier))
				}
			}
		}
		_ = machine.Transition(status.Error)
		return store.Chat{}, err
	}

	logger.Info("chat resolved",
		zap.String("query", p.Config.Chat),
		zap.String("guid", chat.GUID),
		zap.String("name", chat.DisplayName))
	return *chat, nil
}

func provideClassifier() *classify.Classifier {
	return classify.New()
}

func provideDispatcher(p Params, logger *zap.Logger) *dispatch.Client {
	return dispatch.New(p.Config.BrainURL, logger)
}

func provideFinder(logger *zap.Logger) *fallback.Finder {
	return fallback.New(logger)
}

func provideMessenger(logger *zap.Logger) imsg.Messenger {
	return imsg.New(logger)
}

func provideWatcher(p Params, chat store.Chat, db *store.DB, d *dispatch.Client, f *fallback.Finder, cls *classify.Classifier, machine *status.Machine, b *bus.Bus, logger *zap.Logger) (*watch.Watcher, error) {
	return watch.New(chat, db, d, f, cls, machine, b, logger, watch.Options{
		PollInterval: p.Config.PollInterval(),
		RewindRows:   p.Config.RewindRows,
		MaxAttempts:  p.Config.RetryMaxAttempts,
		RetryWindow:  p.Config.RetryWindow(),
		ProcessedCap: p.Config.ProcessedCap,
	})
}

func provideStats(b *bus.Bus) *api.Stats {
	return api.NewStats(b)
}

func provideHandler(m imsg.Messenger, machine *status.Machine, w *watch.Watcher, stats *api.Stats, logger *zap.Logger) http.Handler {
	return api.NewHandler(m, machine, w, stats, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, watcher *watch.Watcher, stats *api.Stats, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			stats.Start()

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("control server error", zap.Error(err))
				}
			}()

			watcher.Start(context.Background())
			logger.Info("bridge started", zap.Int64("cursor", watcher.Cursor()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			watcher.Stop()
			stats.Stop()
			srv.Stop(ctx)
			_ = db.Close()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("bridge stopped")
			return nil
		},
	})
}
