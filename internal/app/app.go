package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/cache"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/cache/redisstore"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/config"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/fetch"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/lifecycle"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/precache"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/server"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/transport"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/upstream"
)

// App wires configuration, storage, the worker lifecycle and the inspection server together.
type App struct {
	cfg         config.Config
	logger      *slog.Logger
	storage     cache.Storage
	stopStorage func() error
	worker      *lifecycle.Worker
	precache    *precache.Handler
	httpSrv     *http.Server
}

// New creates a fully initialised application logging JSON to stdout.
func New(cfg config.Config) (*App, error) {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput is New with an explicit log destination.
func NewWithOutput(cfg config.Config, out io.Writer) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	origin, err := upstream.ParseOrigin(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}

	storage, stopStorage, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	worker := lifecycle.NewWorker(logger)
	fetcher := &fetch.Fetcher{
		Client: transport.NewHTTPClient(cfg),
		Origin: origin,
		Logger: logger,
	}

	handler, err := precache.New(precache.Options{CacheName: cfg.CacheName, Assets: cfg.Assets}, storage, fetcher, worker, logger)
	if err != nil {
		_ = stopStorage()
		return nil, fmt.Errorf("build precache handler: %w", err)
	}
	handler.Register(worker)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           instrumentHandler(server.NewHandler(logger, storage, worker, handler), logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       cfg.IdleConnTimeout,
	}

	return &App{
		cfg:         cfg,
		logger:      logger,
		storage:     storage,
		stopStorage: stopStorage,
		worker:      worker,
		precache:    handler,
		httpSrv:     httpSrv,
	}, nil
}

func openStorage(cfg config.Config, logger *slog.Logger) (cache.Storage, func() error, error) {
	if cfg.RedisURL == "" {
		logger.Info("no redis url configured, using in-process cache storage")
		return cache.NewMemory(), func() error { return nil }, nil
	}

	store, err := redisstore.New(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("setup redis: %w", err)
	}
	return store, store.Close, nil
}

// Install runs the worker install lifecycle and returns the settled report.
func (a *App) Install(ctx context.Context) (precache.Report, error) {
	a.logger.Info("install starting",
		slog.String("cache", a.cfg.CacheName),
		slog.Int("assets", len(a.cfg.Assets)),
		slog.String("origin", a.cfg.Origin))

	if err := a.worker.Install(ctx); err != nil {
		return precache.Report{}, err
	}

	report, _ := a.precache.LastReport()
	return report, nil
}

// Storage returns the cache storage the app fills.
func (a *App) Storage() cache.Storage {
	return a.storage
}

// Close releases the storage backend.
func (a *App) Close() error {
	if a.stopStorage == nil {
		return nil
	}
	return a.stopStorage()
}

// Run installs the worker, then serves the inspection API until the context
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("cache close failed", slog.String("error", err.Error()))
		}
	}()

	if _, err := a.Install(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("inspection server starting", slog.String("addr", a.cfg.ListenAddr))
		err := a.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func instrumentHandler(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("handled request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("duration", time.Since(start)))
	})
}
