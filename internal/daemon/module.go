package daemon

import (
	"context"
	"io"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/api"
	"github.com/matheus3301/shiftsync/internal/app"
	"github.com/matheus3301/shiftsync/internal/bus"
	"github.com/matheus3301/shiftsync/internal/config"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/geo"
	"github.com/matheus3301/shiftsync/internal/lock"
	"github.com/matheus3301/shiftsync/internal/logging"
	"github.com/matheus3301/shiftsync/internal/outbox"
	"github.com/matheus3301/shiftsync/internal/profile"
	"github.com/matheus3301/shiftsync/internal/remote/fileremote"
	"github.com/matheus3301/shiftsync/internal/store"
)

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	Config *config.Config
	Root   string // profile root; empty = profile.Root()

	SocketPath string    // optional override for testing; empty = use default
	Stderr     io.Writer // optional console log sink; nil = os.Stderr
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLayout,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideRemote,
			provideSession,
			provideService,
			provideReconciler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLayout(p Params) (profile.Layout, error) {
	root := p.Root
	if root == "" {
		root = profile.Root()
	}
	l := profile.New(root, p.Config.Profile)
	return l, l.EnsureDirs()
}

func provideLogger(p Params, l profile.Layout) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Path:    l.LogPath(),
		Level:   p.Config.LogLevel,
		Profile: l.Name,
		Stderr:  p.Stderr,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(l profile.Layout, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("path", l.LockPath()))
	lk, err := lock.Acquire(l.LockPath())
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return lk, nil
}

// provideStore depends on the lock so no second daemon opens the database.
func provideStore(l profile.Layout, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(l.DBPath())
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
	logger.Info("store initialized", zap.String("path", l.DBPath()))
	return db, nil
}

func provideRemote(p Params, l profile.Layout, logger *zap.Logger) (*fileremote.Service, error) {
	dir := p.Config.RemoteDir
	if dir == "" {
		dir = l.RemoteDir()
	}
	logger.Info("opening remote", zap.String("dir", dir))
	return fileremote.New(dir, logger.Named("remote"))
}

func provideSession(p Params, svc *fileremote.Service, db *store.DB, b *bus.Bus, logger *zap.Logger) (*app.Session, error) {
	cfg := p.Config
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}
	opts := app.Options{
		Role:     feed.Role(cfg.Role),
		ViewerID: cfg.ViewerID,
		Location: loc,
		OfferTTL: cfg.OfferTTL.Duration,
	}
	if origin := cfg.Origin(); origin != nil {
		opts.Locator = &geo.StaticLocator{Position: *origin}
	}
	return app.New(svc, db, db, b, logger, opts)
}

func provideService(l profile.Layout, sess *app.Session, db *store.DB, logger *zap.Logger) *api.Service {
	return api.NewService(sess, db, l.Name, logger.Named("api"))
}

// provideReconciler settles calls left pending by a previous run. It is
// built before the gRPC server can accept intents.
func provideReconciler(db *store.DB, b *bus.Bus, logger *zap.Logger) *outbox.Reconciler {
	return outbox.NewReconciler(db, b, logger.Named("outbox"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, svc *fileremote.Service, sess *app.Session, rec *outbox.Reconciler, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// A query that fails to open is kept in its store's state and
			// shown to clients; the daemon still serves.
			_ = sess.Start(ctx)
			if _, err := rec.Reconcile(); err != nil {
				logger.Warn("failed to reconcile call journal", zap.Error(err))
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			sess.Stop()
			if err := svc.Close(); err != nil {
				logger.Warn("error closing remote", zap.Error(err))
			}
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
