package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// State is the position of a worker in its lifecycle.
type State int

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Worker owns the handler registry and lifecycle state of one worker instance.
type Worker struct {
	logger *slog.Logger

	mu          sync.Mutex
	handlers    map[Signal][]Handler
	state       State
	skipWaiting bool
}

// NewWorker returns a worker in the parsed state.
func NewWorker(logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		logger:   logger.With(slog.String("component", "worker")),
		handlers: make(map[Signal][]Handler),
	}
}

// On registers h for sig. Handlers run in registration order.
func (w *Worker) On(sig Signal, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[sig] = append(w.handlers[sig], h)
}

// SkipWaiting requests activation as soon as installation completes instead
// of waiting for older instances to release control.
func (w *Worker) SkipWaiting() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.skipWaiting = true
}

// SkipWaitingRequested reports whether SkipWaiting was called.
func (w *Worker) SkipWaitingRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.skipWaiting
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Install dispatches the install signal and blocks until every extension has
// settled. A failed install leaves the worker redundant. When skip-waiting
// was requested the worker activates straight away.
func (w *Worker) Install(ctx context.Context) error {
	if err := w.transition(StateParsed, StateInstalling); err != nil {
		return err
	}

	if err := w.Dispatch(ctx, SignalInstall); err != nil {
		w.setState(StateRedundant)
		w.logger.Error("install failed", slog.String("error", err.Error()))
		return fmt.Errorf("install: %w", err)
	}
	w.setState(StateInstalled)

	if !w.SkipWaitingRequested() {
		w.logger.Info("installed, waiting for activation")
		return nil
	}
	return w.Activate(ctx)
}

// Activate dispatches the activate signal for an installed worker.
func (w *Worker) Activate(ctx context.Context) error {
	if err := w.transition(StateInstalled, StateActivating); err != nil {
		return err
	}

	if err := w.Dispatch(ctx, SignalActivate); err != nil {
		w.logger.Warn("activate handlers failed", slog.String("error", err.Error()))
	}
	w.setState(StateActivated)
	w.logger.Info("worker activated")
	return nil
}

// Dispatch runs the handlers registered for sig and waits for the event to settle.
func (w *Worker) Dispatch(ctx context.Context, sig Signal) error {
	w.mu.Lock()
	handlers := append([]Handler(nil), w.handlers[sig]...)
	w.mu.Unlock()

	ev := newEvent(ctx, sig)
	for _, h := range handlers {
		h(ev)
	}
	ev.endDispatch()

	return ev.wait()
}

func (w *Worker) transition(from, to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != from {
		return fmt.Errorf("cannot move worker to %s from %s", to, w.state)
	}
	w.state = to
	return nil
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}
