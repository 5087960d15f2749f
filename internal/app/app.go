// Package app wires all SignLink subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithTemplateStore, WithPoseClient, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/junghee-19/SignLink/internal/config"
	"github.com/junghee-19/SignLink/internal/gateway"
	"github.com/junghee-19/SignLink/internal/health"
	"github.com/junghee-19/SignLink/internal/landmarks"
	"github.com/junghee-19/SignLink/internal/observe"
	"github.com/junghee-19/SignLink/internal/session"
	"github.com/junghee-19/SignLink/internal/transcript"
	"github.com/junghee-19/SignLink/pkg/provider/landmark"
	"github.com/junghee-19/SignLink/pkg/provider/pose"
	"github.com/junghee-19/SignLink/pkg/provider/translate"
)

// shutdownGrace bounds the HTTP server drain during shutdown.
const shutdownGrace = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg        *config.Config
	log        *slog.Logger
	metrics    *observe.Metrics
	translator translate.Translator

	poseClient     session.PoseClient
	landmarkClient session.LandmarkClient
	templates      landmarks.Store
	transcripts    transcript.Store

	gateway *gateway.Server
	httpSrv *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger injects a logger instead of slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithPoseClient injects a pose adapter instead of creating one from config.
func WithPoseClient(p session.PoseClient) Option {
	return func(a *App) { a.poseClient = p }
}

// WithLandmarkClient injects a landmark adapter instead of creating one from
// config.
func WithLandmarkClient(l session.LandmarkClient) Option {
	return func(a *App) { a.landmarkClient = l }
}

// WithTemplateStore injects a template store instead of creating one from
// config.
func WithTemplateStore(s landmarks.Store) Option {
	return func(a *App) { a.templates = s }
}

// WithTranscriptStore injects a transcript store instead of creating one from
// config.
func WithTranscriptStore(s transcript.Store) Option {
	return func(a *App) { a.transcripts = s }
}

// New creates an App by wiring all subsystems together. The translator comes
// from main (instantiated via the config registry). Use Option functions to
// inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, translator translate.Translator, opts ...Option) (*App, error) {
	if translator == nil {
		return nil, fmt.Errorf("app: translator is required")
	}
	a := &App{
		cfg:        cfg,
		translator: translator,
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Adapters ──────────────────────────────────────────────────────
	if err := a.initAdapters(); err != nil {
		return nil, fmt.Errorf("app: init adapters: %w", err)
	}

	// ── 2. Template store ────────────────────────────────────────────────
	checkers, err := a.initTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: init templates: %w", err)
	}

	// ── 3. Transcript store ──────────────────────────────────────────────
	ch, err := a.initTranscripts(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: init transcripts: %w", err)
	}
	checkers = append(checkers, ch...)

	// ── 4. Gateway ───────────────────────────────────────────────────────
	if err := a.initGateway(checkers); err != nil {
		return nil, fmt.Errorf("app: init gateway: %w", err)
	}

	return a, nil
}

// initAdapters creates the pose and landmark HTTP clients.
func (a *App) initAdapters() error {
	if a.poseClient == nil {
		var opts []pose.Option
		if t := a.cfg.Adapters.Pose.Timeout; t > 0 {
			opts = append(opts, pose.WithTimeout(t))
		}
		client, err := pose.New(a.cfg.Adapters.Pose.URL, opts...)
		if err != nil {
			return err
		}
		a.poseClient = client
	}

	if a.landmarkClient == nil {
		var opts []landmark.Option
		if t := a.cfg.Adapters.Landmark.Timeout; t > 0 {
			opts = append(opts, landmark.WithTimeout(t))
		}
		client, err := landmark.New(a.cfg.Adapters.Landmark.BaseURL, opts...)
		if err != nil {
			return err
		}
		a.landmarkClient = client
	}
	return nil
}

// initTemplates sets up the landmark template store and returns its readiness
// checkers.
func (a *App) initTemplates(ctx context.Context) ([]health.Checker, error) {
	if a.templates != nil {
		return nil, nil
	}

	if dsn := a.cfg.Landmarks.PostgresDSN; dsn != "" {
		store, err := landmarks.NewPostgresStore(ctx, dsn, a.cfg.Landmarks.PointCount)
		if err != nil {
			return nil, err
		}
		a.templates = store
		a.closers = append(a.closers, store.Close)
		return []health.Checker{health.PingChecker("template_store", store)}, nil
	}

	store := landmarks.NewMemStore()
	if dir := a.cfg.Landmarks.DataDir; dir != "" {
		n, err := store.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		a.log.Info("loaded landmark templates", "dir", dir, "count", n)
	}
	a.templates = store
	a.closers = append(a.closers, store.Close)
	return nil, nil
}

// initTranscripts sets up the transcript store and returns its readiness
// checkers.
func (a *App) initTranscripts(ctx context.Context) ([]health.Checker, error) {
	if a.transcripts != nil {
		return nil, nil
	}

	if dsn := a.cfg.Transcript.PostgresDSN; dsn != "" {
		store, err := transcript.NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		a.transcripts = store
		a.closers = append(a.closers, store.Close)
		return []health.Checker{health.PingChecker("transcript_store", store)}, nil
	}

	a.transcripts = transcript.NewMemStore()
	a.closers = append(a.closers, a.transcripts.Close)
	return nil, nil
}

// initGateway builds the session template, health handler, gateway, and HTTP
// server.
func (a *App) initGateway(checkers []health.Checker) error {
	table, err := a.cfg.VocabTable()
	if err != nil {
		return err
	}

	checkers = append(checkers, health.EndpointChecker("pose_backend", a.cfg.Adapters.Pose.URL, nil))

	a.gateway = gateway.New(gateway.Config{
		Session: session.Config{
			Pose:         a.poseClient,
			Translator:   a.translator,
			Landmarks:    a.landmarkClient,
			Vocabulary:   table,
			CaptureDelay: a.cfg.Session.CaptureDelay,
			ErrorPrefix:  a.cfg.Translator.ErrorPrefix,
			IgnorePrefix: a.cfg.Translator.IgnorePrefix,
		},
		Templates:   a.templates,
		Transcripts: a.transcripts,
		Health:      health.New(checkers...),
		Metrics:     a.metrics,
		Logger:      a.log,
		StaticDir:   a.cfg.Server.StaticDir,
	})

	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Handler returns the HTTP handler. Exposed for tests.
func (a *App) Handler() http.Handler {
	return a.gateway.Handler()
}

// Reload applies the hot-reloadable parts of a new config: the vocabulary
// table and the capture delay. New sessions pick them up; running sessions
// keep what they started with.
func (a *App) Reload(cfg *config.Config) error {
	table, err := cfg.VocabTable()
	if err != nil {
		return fmt.Errorf("app: reload vocabulary: %w", err)
	}
	a.gateway.UpdateSession(table, cfg.Session.CaptureDelay)
	a.log.Info("session config reloaded",
		"signs", len(table.Signs()),
		"capture_delay", cfg.Session.CaptureDelay,
	)
	return nil
}

// Run serves HTTP until ctx is cancelled, then drains connections and returns.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server listening", "addr", a.httpSrv.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.httpSrv.Shutdown(drainCtx)
	})

	return g.Wait()
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
