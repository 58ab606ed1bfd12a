package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// ErrInactiveEvent is returned by WaitUntil once an event has settled.
var ErrInactiveEvent = errors.New("event is no longer active")

// Signal names a lifecycle event.
type Signal string

const (
	SignalInstall  Signal = "install"
	SignalActivate Signal = "activate"
)

// Handler reacts to a dispatched event. It runs synchronously; long-running
// work belongs in Event.WaitUntil.
type Handler func(ev *Event)

// Event is the handle passed to handlers for a single dispatch.
type Event struct {
	Signal Signal

	ctx context.Context

	mu          sync.Mutex
	dispatching bool
	pending     int
	settled     bool
	err         error
	done        chan struct{}
}

func newEvent(ctx context.Context, sig Signal) *Event {
	return &Event{
		Signal:      sig,
		ctx:         ctx,
		dispatching: true,
		done:        make(chan struct{}),
	}
}

// Context returns the context the event was dispatched with.
func (e *Event) Context() context.Context {
	return e.ctx
}

// WaitUntil extends the event until task returns. The task starts right away
// on its own goroutine. Extensions are accepted while handlers are running or
// while earlier extensions are still pending.
func (e *Event) WaitUntil(task func(ctx context.Context) error) error {
	e.mu.Lock()
	if e.settled || (!e.dispatching && e.pending == 0) {
		e.mu.Unlock()
		return ErrInactiveEvent
	}
	e.pending++
	e.mu.Unlock()

	go func() {
		err := task(e.ctx)

		e.mu.Lock()
		defer e.mu.Unlock()
		if err != nil && e.err == nil {
			e.err = err
		}
		e.pending--
		e.maybeSettleLocked()
	}()
	return nil
}

// endDispatch marks the synchronous handler phase as finished.
func (e *Event) endDispatch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatching = false
	e.maybeSettleLocked()
}

func (e *Event) maybeSettleLocked() {
	if e.settled || e.dispatching || e.pending > 0 {
		return
	}
	e.settled = true
	close(e.done)
}

// wait blocks until every extension has settled and returns the first failure.
func (e *Event) wait() error {
	<-e.done

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}
