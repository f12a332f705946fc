// Package txflow drives a single chain write through
// idle → building → signing → executing → success | error.
package txflow

import (
	"context"
	"errors"
	"sync"

	"stabletrade/internal/sui"
	"stabletrade/internal/txerr"
)

type State string

const (
	StateIdle      State = "idle"
	StateBuilding  State = "building"
	StateSigning   State = "signing"
	StateExecuting State = "executing"
	StateSuccess   State = "success"
	StateError     State = "error"
)

// InFlight reports whether s is one of the non-terminal working states.
func (s State) InFlight() bool {
	return s == StateBuilding || s == StateSigning || s == StateExecuting
}

const unknownError = "Unknown error"

var (
	// ErrInProgress is returned when Execute is called while a run is in flight.
	ErrInProgress = txerr.New(txerr.KindInProgress, "a transaction is already in progress")
	// ErrSuperseded is returned when Reset happened while the builder ran.
	ErrSuperseded = errors.New("transaction superseded by reset")
)

// BuildFunc produces the unsigned transaction for one attempt.
type BuildFunc func(ctx context.Context) (sui.UnsignedTx, error)

// Result is the outcome of the last terminal run.
type Result struct {
	Digest    string     `json:"digest,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorKind txerr.Kind `json:"errorKind,omitempty"`
}

// Snapshot is the caller-visible executor state.
type Snapshot struct {
	State      State  `json:"state"`
	Result     Result `json:"result"`
	Generation uint64 `json:"generation"`
}

// IsLoading mirrors the busy indicator shown while a run is in flight.
func (s Snapshot) IsLoading() bool {
	return s.State.InFlight()
}

// Observer is told about every state change. Observers run under the
// executor lock and must not call back into it.
type Observer interface {
	Transition(from, to State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(from, to State)

func (f ObserverFunc) Transition(from, to State) { f(from, to) }

// Executor runs at most one transaction at a time. Reset bumps a
// generation counter; results from older generations never reach state.
type Executor struct {
	submitter sui.Submitter
	observers []Observer

	mu         sync.Mutex
	state      State
	result     Result
	generation uint64
}

func NewExecutor(submitter sui.Submitter, observers ...Observer) *Executor {
	return &Executor{
		submitter: submitter,
		observers: observers,
		state:     StateIdle,
	}
}

// Execute builds, signs and submits one transaction and returns its digest.
// Every failure leaves the executor in StateError with the message captured.
// ErrInProgress and ErrSuperseded do not change state.
func (e *Executor) Execute(ctx context.Context, build BuildFunc) (string, error) {
	gen, ok := e.begin()
	if !ok {
		return "", ErrInProgress
	}

	tx, err := build(ctx)
	if err != nil {
		e.fail(gen, err)
		return "", err
	}

	if !e.advance(gen, StateSigning) {
		return "", ErrSuperseded
	}

	digest, err := e.submitter.SignAndExecute(ctx, tx)
	if err != nil {
		e.fail(gen, err)
		return "", err
	}

	e.succeed(gen, digest)
	return digest, nil
}

// Reset returns to idle and clears the result. It does not cancel a run in
// flight; that run's outcome is discarded.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.result = Result{}
	e.setLocked(StateIdle)
}

func (e *Executor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{State: e.state, Result: e.result, Generation: e.generation}
}

func (e *Executor) begin() (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.InFlight() {
		return 0, false
	}
	e.generation++
	e.result = Result{}
	e.setLocked(StateBuilding)
	return e.generation, true
}

func (e *Executor) advance(gen uint64, to State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return false
	}
	e.setLocked(to)
	return true
}

func (e *Executor) succeed(gen uint64, digest string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}
	e.setLocked(StateExecuting)
	e.result = Result{Digest: digest}
	e.setLocked(StateSuccess)
}

func (e *Executor) fail(gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}
	msg := err.Error()
	if msg == "" {
		msg = unknownError
	}
	e.result = Result{Error: msg, ErrorKind: txerr.KindOf(err)}
	e.setLocked(StateError)
}

// setLocked must be called with e.mu held.
func (e *Executor) setLocked(to State) {
	from := e.state
	e.state = to
	for _, o := range e.observers {
		o.Transition(from, to)
	}
}
