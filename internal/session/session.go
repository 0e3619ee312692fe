package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/formpilot/formpilot/internal/engine"
	"github.com/formpilot/formpilot/pkg/models"
)

// Session is one in-progress automation run. It exclusively owns one
// engine handle and carries the workflow state machine's state.
type Session struct {
	ID        string
	Engine    engine.Engine
	CreatedAt time.Time

	// run admits exactly one workflow-advancing operation at a time.
	run *semaphore.Weighted

	mu         sync.Mutex
	state      models.SessionState
	busy       bool
	lastActive time.Time
	pageURL    string
	pending    *Verification
}

func newSession(id string, eng engine.Engine) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Engine:     eng,
		CreatedAt:  now,
		run:        semaphore.NewWeighted(1),
		state:      models.StateInitializing,
		lastActive: now,
	}
}

// TryBegin claims the session's single operation slot. A second caller
// gets ErrAlreadyRunning immediately rather than queueing; two logical
// steps must never interleave against one browser handle.
func (s *Session) TryBegin() error {
	if !s.run.TryAcquire(1) {
		return models.ErrAlreadyRunning
	}
	s.setBusy(true)
	return nil
}

// Begin claims the operation slot, waiting if needed. Used only by the
// resume path, which is the one operation allowed to follow a suspend.
func (s *Session) Begin(ctx context.Context) error {
	if err := s.run.Acquire(ctx, 1); err != nil {
		return err
	}
	s.setBusy(true)
	return nil
}

// End releases the operation slot and records activity.
func (s *Session) End() {
	s.mu.Lock()
	s.busy = false
	s.lastActive = time.Now()
	s.mu.Unlock()
	s.run.Release(1)
}

// Busy reports whether an operation currently holds the slot. A plain
// flag, not a semaphore probe: probing would hold the slot for an
// instant and make a concurrent TryBegin fail spuriously.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) setBusy(v bool) {
	s.mu.Lock()
	s.busy = v
	s.mu.Unlock()
}

// Touch updates the last-activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// IdleSince returns the last-activity timestamp.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// State returns the current lifecycle state.
func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState transitions the lifecycle state. Terminal states are sticky:
// once a session has succeeded, failed or closed, the only transition
// still permitted is into closed, so a belated goroutine can never drag
// a finished session back to life.
func (s *Session) SetState(state models.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() && state != models.StateClosed {
		return
	}
	s.state = state
}

// SetPageURL records the page the session last landed on.
func (s *Session) SetPageURL(url string) {
	s.mu.Lock()
	s.pageURL = url
	s.mu.Unlock()
}

// PageURL returns the recorded page URL.
func (s *Session) PageURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageURL
}

// Info snapshots the session for the wire.
func (s *Session) Info() models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionInfo{
		ID:           s.ID,
		State:        s.state,
		PageURL:      s.pageURL,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.lastActive,
	}
}

// NewVerification registers the session's pending verification request
// and transitions into awaiting_input in one step. At most one may exist
// at a time; a second is a protocol error. A session already in a
// terminal state refuses: registering against it would leave a
// verification nothing will ever cancel.
func (s *Session) NewVerification(kind string) (*Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return nil, &models.InvalidStateError{Op: "request-input", State: s.state}
	}
	if s.pending != nil {
		return nil, models.ErrVerificationPending
	}
	v := &Verification{
		Kind:      kind,
		value:     make(chan string, 1),
		done:      make(chan VerificationOutcome, 1),
		cancelled: make(chan struct{}),
	}
	s.pending = v
	s.state = models.StateAwaitingInput
	return v, nil
}

// Pending returns the current pending verification, if any.
func (s *Session) Pending() *Verification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// ClearVerification detaches a resolved or abandoned verification.
func (s *Session) ClearVerification() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// MarkClosed transitions into closed and abandons any pending
// verification in a single critical section. Atomicity matters: a
// concurrent suspend either registered its verification first, in which
// case it is cancelled here and the parked goroutine unwinds, or it
// runs after and observes the closed state and refuses.
func (s *Session) MarkClosed() {
	s.mu.Lock()
	s.state = models.StateClosed
	v := s.pending
	s.pending = nil
	s.mu.Unlock()
	if v != nil {
		v.cancel()
	}
}

// VerificationOutcome reports what happened after the awaited value was
// fed back into the workflow.
type VerificationOutcome struct {
	Screenshot string
	Err        error
}

// Verification is a single-resolution future for one human-provided
// value: created at suspend, resolved by a later inbound submission, or
// abandoned with a cancellation signal when the session closes.
type Verification struct {
	Kind string

	value     chan string
	done      chan VerificationOutcome
	cancelled chan struct{}

	resolveOnce sync.Once
	cancelOnce  sync.Once
}

// Resolve feeds the human-provided value to the suspended workflow.
// Only the first call wins.
func (v *Verification) Resolve(value string) error {
	resolved := false
	v.resolveOnce.Do(func() {
		v.value <- value
		resolved = true
	})
	if !resolved {
		return models.ErrNoPendingVerification
	}
	return nil
}

func (v *Verification) cancel() {
	v.cancelOnce.Do(func() { close(v.cancelled) })
}

// Await suspends until the value arrives or the verification is
// abandoned. This is the system's one true asynchronous suspension point.
func (v *Verification) Await(ctx context.Context) (string, error) {
	select {
	case value := <-v.value:
		return value, nil
	case <-v.cancelled:
		return "", models.ErrVerificationCancelled
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Finish reports the outcome of entering the value to the resolver.
func (v *Verification) Finish(outcome VerificationOutcome) {
	select {
	case v.done <- outcome:
	default:
	}
}

// WaitFinished blocks until the workflow consumed the resolved value.
func (v *Verification) WaitFinished(ctx context.Context) (VerificationOutcome, error) {
	select {
	case outcome := <-v.done:
		return outcome, nil
	case <-v.cancelled:
		return VerificationOutcome{}, models.ErrVerificationCancelled
	case <-ctx.Done():
		return VerificationOutcome{}, ctx.Err()
	}
}
