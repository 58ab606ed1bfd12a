package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/cache"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/lifecycle"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/precache"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

// StateReporter exposes the worker lifecycle state.
type StateReporter interface {
	State() lifecycle.State
}

// ReportSource exposes the most recent install report.
type ReportSource interface {
	LastReport() (precache.Report, bool)
}

type handler struct {
	logger  *slog.Logger
	storage cache.Storage
	worker  StateReporter
	reports ReportSource
}

// NewHandler constructs the read-only inspection API.
func NewHandler(logger *slog.Logger, storage cache.Storage, worker StateReporter, reports ReportSource) http.Handler {
	h := &handler{
		logger:  logger.With(slog.String("component", "inspect")),
		storage: storage,
		worker:  worker,
		reports: reports,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /regions", h.regions)
	mux.HandleFunc("GET /regions/{name}", h.regionKeys)
	mux.HandleFunc("GET /install", h.install)
	return mux
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"state": h.worker.State().String()})
}

func (h *handler) regions(w http.ResponseWriter, r *http.Request) {
	names, err := h.storage.Names(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err)
		return
	}
	h.respondJSON(w, http.StatusOK, names)
}

func (h *handler) regionKeys(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	region, err := h.storage.Lookup(r.Context(), name)
	if errors.Is(err, cache.ErrRegionNotFound) {
		h.respondError(w, http.StatusNotFound, fmt.Errorf("region %q not found", name))
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err)
		return
	}

	keys, err := region.Keys(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"name": name, "keys": keys})
}

type failureView struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

type reportView struct {
	Cache  string        `json:"cache"`
	Cached []string      `json:"cached"`
	Failed []failureView `json:"failed"`
}

func (h *handler) install(w http.ResponseWriter, _ *http.Request) {
	report, ok := h.reports.LastReport()
	if !ok {
		h.respondError(w, http.StatusNotFound, errors.New("no install has settled yet"))
		return
	}

	view := reportView{
		Cache:  report.CacheName,
		Cached: append([]string{}, report.Cached...),
		Failed: make([]failureView, 0, len(report.Failed)),
	}
	for _, f := range report.Failed {
		view.Failed = append(view.Failed, failureView{URL: f.URL, Error: f.Err.Error()})
	}
	h.respondJSON(w, http.StatusOK, view)
}

func (h *handler) respondJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode response failed", slog.String("error", err.Error()))
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"encode response"}`)
	}

	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func (h *handler) respondError(w http.ResponseWriter, status int, err error) {
	h.respondJSON(w, status, map[string]string{"error": err.Error()})
}
