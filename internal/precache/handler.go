package precache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/cache"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/lifecycle"
)

// Fetcher retrieves one asset as a cacheable response.
type Fetcher interface {
	Fetch(ctx context.Context, asset string) (cache.Response, error)
}

// SkipWaiter requests immediate activation of the installing worker.
type SkipWaiter interface {
	SkipWaiting()
}

// Registrar accepts lifecycle handlers.
type Registrar interface {
	On(sig lifecycle.Signal, h lifecycle.Handler)
}

// Options carries the fixed inputs of the install handler.
type Options struct {
	CacheName string
	Assets    []string
}

// Failure records one asset that could not be cached.
type Failure struct {
	URL string
	Err error
}

// Report summarises a settled install.
type Report struct {
	CacheName string
	Cached    []string
	Failed    []Failure
}

// Handler pre-populates a cache region with a fixed asset list on install.
type Handler struct {
	cacheName string
	assets    []string
	storage   cache.Storage
	fetcher   Fetcher
	worker    SkipWaiter
	logger    *slog.Logger

	mu   sync.Mutex
	last *Report
}

// New validates opts and builds the install handler.
func New(opts Options, storage cache.Storage, fetcher Fetcher, worker SkipWaiter, logger *slog.Logger) (*Handler, error) {
	if opts.CacheName == "" {
		return nil, errors.New("cache name must not be empty")
	}
	if storage == nil || fetcher == nil || worker == nil {
		return nil, errors.New("storage, fetcher and worker are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		cacheName: opts.CacheName,
		assets:    append([]string(nil), opts.Assets...),
		storage:   storage,
		fetcher:   fetcher,
		worker:    worker,
		logger:    logger.With(slog.String("component", "precache"), slog.String("cache", opts.CacheName)),
	}, nil
}

// CacheName returns the region the handler fills.
func (h *Handler) CacheName() string {
	return h.cacheName
}

// Assets returns a copy of the asset list.
func (h *Handler) Assets() []string {
	return append([]string(nil), h.assets...)
}

// Register attaches the handler to the install signal.
func (h *Handler) Register(r Registrar) {
	r.On(lifecycle.SignalInstall, h.HandleInstall)
}

// HandleInstall requests skip-waiting, then holds the event open until every
// asset has been attempted.
func (h *Handler) HandleInstall(ev *lifecycle.Event) {
	h.worker.SkipWaiting()

	if err := ev.WaitUntil(func(ctx context.Context) error {
		_, err := h.Fill(ctx)
		return err
	}); err != nil {
		h.logger.Error("install event rejected extension", slog.String("error", err.Error()))
	}
}

// Fill opens the region and concurrently fetches and stores every asset.
// Per-asset failures are logged and recorded in the report; only a failure
// to open the region is returned.
func (h *Handler) Fill(ctx context.Context) (Report, error) {
	region, err := h.storage.Open(ctx, h.cacheName)
	if err != nil {
		return Report{}, fmt.Errorf("open cache %q: %w", h.cacheName, err)
	}

	errs := make([]error, len(h.assets))
	var g errgroup.Group
	for i, asset := range h.assets {
		g.Go(func() error {
			if err := h.add(ctx, region, asset); err != nil {
				h.logger.Warn("failed to cache", slog.String("url", asset), slog.String("error", err.Error()))
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{CacheName: h.cacheName}
	for i, asset := range h.assets {
		if errs[i] != nil {
			report.Failed = append(report.Failed, Failure{URL: asset, Err: errs[i]})
			continue
		}
		report.Cached = append(report.Cached, asset)
	}

	h.mu.Lock()
	h.last = &report
	h.mu.Unlock()

	h.logger.Info("precache settled", slog.Int("cached", len(report.Cached)), slog.Int("failed", len(report.Failed)))
	return report, nil
}

// LastReport returns the report of the most recent fill, if any.
func (h *Handler) LastReport() (Report, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return Report{}, false
	}
	return *h.last, true
}

func (h *Handler) add(ctx context.Context, region cache.Region, asset string) error {
	resp, err := h.fetcher.Fetch(ctx, asset)
	if err != nil {
		return err
	}
	return region.Put(ctx, asset, resp)
}
