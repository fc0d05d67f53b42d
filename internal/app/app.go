package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/ibeckermayer/deepfeed/internal/config"
	"github.com/ibeckermayer/deepfeed/internal/export"
	"github.com/ibeckermayer/deepfeed/internal/feed"
	"github.com/ibeckermayer/deepfeed/internal/generator"
	"github.com/ibeckermayer/deepfeed/internal/metrics"
	"github.com/ibeckermayer/deepfeed/internal/notifier"
	"github.com/ibeckermayer/deepfeed/internal/scheduler"
	"github.com/ibeckermayer/deepfeed/internal/store"
)

// Provider is what the app needs from a content back end.
type Provider interface {
	feed.ContentProvider
	Name() string
	Close()
}

// App holds the application state.
type App struct {
	mu sync.RWMutex

	// Mutable fields - use getSnapshot() for concurrent access.
	config   *config.Config
	provider Provider

	// immutable after creation
	store    *store.Store
	cache    *store.Cache
	metrics  *metrics.Metrics
	exporter *export.Builder
	sched    *scheduler.Scheduler
	log      *zap.Logger

	// newProvider builds a provider from config; replaced in tests
	newProvider func(*config.Config) (Provider, error)
}

// snapshot holds fields that may be replaced by ReloadConfig.
// Use getSnapshot() to obtain a consistent, point-in-time copy.
type snapshot struct {
	config   *config.Config
	provider Provider
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:   a.config,
		provider: a.provider,
	}
}

// Deps are the collaborators New would otherwise build itself.
type Deps struct {
	Store    *store.Store
	Cache    *store.Cache
	Provider Provider
}

// New creates a new App instance. Missing collaborators in deps are built
// from cfg. A provider that cannot be configured is fatal and wraps
// config.ErrConfigurationMissing.
func New(cfg *config.Config, deps Deps, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	exporter, err := export.New()
	if err != nil {
		return nil, err
	}
	sched, err := scheduler.New(cfg.Schedule.Timezone, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:   cfg,
		store:    deps.Store,
		cache:    deps.Cache,
		metrics:  metrics.New(),
		exporter: exporter,
		sched:    sched,
		log:      log,
	}
	a.newProvider = func(c *config.Config) (Provider, error) {
		g, err := generator.New(c, a.cache, a.log)
		if err != nil {
			return nil, err
		}
		return g, nil
	}

	if a.cache == nil {
		if a.cache, err = store.DefaultCache(); err != nil {
			log.Warn("llm exchange cache disabled", zap.Error(err))
			a.cache = nil
		}
	}
	if a.store == nil {
		a.store = a.openStore()
	}

	a.provider = deps.Provider
	if a.provider == nil {
		if a.provider, err = a.newProvider(cfg); err != nil {
			return nil, fmt.Errorf("failed to create content provider: %w", err)
		}
	}
	log.Info("app ready", zap.String("provider", a.provider.Name()))
	return a, nil
}

// openStore opens the interest database. Failure leaves interests in memory
// only.
func (a *App) openStore() *store.Store {
	dir, err := config.CacheDir()
	if err != nil {
		a.log.Warn("interest store disabled", zap.Error(err))
		return nil
	}
	s, err := store.New(store.DefaultPath(dir))
	if err != nil {
		a.log.Warn("interest store disabled", zap.Error(err))
		return nil
	}
	return s
}

func (a *App) Config() *config.Config { return a.getSnapshot().config }
func (a *App) Metrics() *metrics.Metrics { return a.metrics }
func (a *App) Store() *store.Store { return a.store }
func (a *App) Logger() *zap.Logger { return a.log }

// NewSession creates a feed session wired to the interest store and metrics.
func (a *App) NewSession() (*feed.Session, error) {
	cfg := a.getSnapshot().config
	opts := feed.Options{
		PageSize:         cfg.Feed.PageSize,
		PlaceholderCount: cfg.Feed.PlaceholderCount,
		BiasTopics:       cfg.Feed.BiasTopics,
		DefaultTopics:    cfg.Feed.DefaultTopics,
		Logger:           a.log.Named("feed"),
		Observer:         a.metrics,
	}
	// a nil *store.Store must not become a non-nil interface
	if a.store != nil {
		opts.Store = a.store
	}
	return feed.NewSession(opts)
}

// RunTask runs a fetch against the current provider. It is safe on any
// goroutine; the completion goes back to the session owner.
func (a *App) RunTask(ctx context.Context, t feed.Task) feed.Completion {
	p := a.getSnapshot().provider
	start := time.Now()
	c := t.Run(ctx, p)
	a.metrics.FetchTook(t.Key().Kind, time.Since(start))
	return c
}

// FlushInterests persists the session's interests. Call it on the owner.
func (a *App) FlushInterests(s *feed.Session) error {
	if !s.Interests().Dirty() {
		return nil
	}
	if err := s.FlushInterests(); err != nil {
		return fmt.Errorf("failed to flush interests: %w", err)
	}
	a.metrics.InterestsFlushed()
	return nil
}

// Start schedules the periodic interest flush. requestFlush is called from
// the scheduler goroutine and must hand the flush to the session owner.
func (a *App) Start(requestFlush func()) error {
	cfg := a.getSnapshot().config
	err := a.sched.AddPersistJob(cfg.Schedule.PersistInterval, func(ctx context.Context) error {
		requestFlush()
		return nil
	})
	if err != nil {
		return err
	}
	a.sched.Start()
	return nil
}

// ServeMetrics exposes /metrics on the configured address until ctx is done.
// It returns immediately when no address is configured.
func (a *App) ServeMetrics(ctx context.Context) error {
	addr := a.getSnapshot().config.Metrics.Listen
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve metrics: %w", err)
	}
	return nil
}

// Export writes an HTML snapshot of the session to the cache and records it.
// Call it on the owner.
func (a *App) Export(s *feed.Session) (string, error) {
	if a.cache == nil {
		return "", fmt.Errorf("no cache directory for exports")
	}
	snap, err := a.exporter.Build(s)
	if err != nil {
		return "", err
	}
	path, err := a.cache.SaveBytes(store.KindExports, []byte(snap.HTML), ".html")
	if err != nil {
		return "", err
	}
	if a.store != nil {
		if _, err := a.store.RecordExport(store.Export{
			Path:      path,
			Roots:     snap.Roots,
			Nodes:     snap.Nodes,
			Focus:     snap.Focus,
			CreatedAt: snap.CreatedAt,
		}); err != nil {
			a.log.Warn("failed to record export", zap.Error(err))
		}
	}
	a.log.Info("exported snapshot", zap.String("path", path), zap.Int("nodes", snap.Nodes))
	return path, nil
}

// MailSnapshot renders the session and mails it with the [email] settings.
// An empty to uses the configured recipient. Call it on the owner.
func (a *App) MailSnapshot(s *feed.Session, to string) error {
	n, err := notifier.NewFromConfig(a.getSnapshot().config.Email)
	if err != nil {
		return err
	}
	snap, err := a.exporter.Build(s)
	if err != nil {
		return err
	}
	if err := n.SendSnapshot(snap, to); err != nil {
		return err
	}
	a.log.Info("mailed snapshot", zap.Int("nodes", snap.Nodes))
	return nil
}

// ViewLastExport opens the most recent snapshot in the browser.
func (a *App) ViewLastExport() error {
	if a.cache == nil {
		return fmt.Errorf("no cache directory for exports")
	}
	path, err := a.cache.LatestFile(store.KindExports)
	if err != nil {
		return err
	}
	a.log.Info("opening export", zap.String("path", path))
	return browser.OpenFile(path)
}

// OpenLink opens a post link in the browser.
func (a *App) OpenLink(url string) error {
	a.log.Debug("opening link", zap.String("url", url))
	return browser.OpenURL(url)
}

// ReloadConfig reloads the configuration from path. Provider settings take
// effect for the next fetch; feed settings apply to new sessions.
func (a *App) ReloadConfig(path string) error {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return err
	}

	// Recreate provider with new config
	newProvider, err := a.newProvider(cfg)
	if err != nil {
		return err
	}

	a.mu.Lock()
	old := a.provider
	a.config = cfg
	a.provider = newProvider
	a.mu.Unlock()

	if old != nil {
		old.Close()
	}
	a.log.Info("configuration reloaded", zap.String("provider", newProvider.Name()))
	return nil
}

// Close stops background work and releases resources.
func (a *App) Close() error {
	<-a.sched.Stop().Done()
	if p := a.getSnapshot().provider; p != nil {
		p.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
