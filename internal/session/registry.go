// Package session owns the map from session id to live automation
// handle: creation, lookup, teardown and the background idle sweep.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formpilot/formpilot/internal/engine"
	"github.com/formpilot/formpilot/pkg/models"
)

// Config carries the registry's timing knobs.
type Config struct {
	// IdleTimeout is how long a session may sit without activity before
	// the sweep closes it.
	IdleTimeout time.Duration
	// SweepInterval is how often the sweep runs.
	SweepInterval time.Duration
	// CloseTimeout bounds engine release so a hung automation call
	// cannot make the registry un-closable.
	CloseTimeout time.Duration
}

func (c *Config) withDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 30 * time.Second
	}
}

// Registry tracks all live sessions. The session map is mutated only
// through its methods.
type Registry struct {
	launcher engine.Launcher
	cfg      Config

	sessions sync.Map // id -> *Session

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRegistry(launcher engine.Launcher, cfg Config) *Registry {
	cfg.withDefaults()
	return &Registry{
		launcher: launcher,
		cfg:      cfg,
		stop:     make(chan struct{}),
	}
}

// Create allocates a fresh session under id, tearing down any prior
// session with the same id first so a handle is never leaked. An empty
// id gets a generated one.
func (r *Registry) Create(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = uuid.New().String()
	}

	if _, exists := r.sessions.Load(id); exists {
		log.Printf("session %s exists, tearing down before re-create", id)
		r.Close(ctx, id)
	}

	eng, err := r.launcher.Launch(ctx, id)
	if err != nil {
		return nil, &models.InitializationError{Cause: err}
	}

	s := newSession(id, eng)
	r.sessions.Store(id, s)
	log.Printf("session %s created", id)
	return s, nil
}

// Get returns the session if present, updating its activity timestamp.
// Absent is a normal outcome, not an error.
func (r *Registry) Get(id string) (*Session, bool) {
	value, ok := r.sessions.Load(id)
	if !ok {
		return nil, false
	}
	s := value.(*Session)
	s.Touch()
	return s, true
}

// Close tears down a session. Idempotent: an unknown or already-closed
// id is a no-op. The engine release is best-effort and bounded; the
// session always leaves the map.
func (r *Registry) Close(ctx context.Context, id string) {
	value, loaded := r.sessions.LoadAndDelete(id)
	if !loaded {
		return
	}
	s := value.(*Session)

	// Close the state machine and unblock anything suspended on a
	// verification before touching the engine; the suspended task must
	// unwind, not hang, and a racing suspend must see the closed state.
	s.MarkClosed()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.CloseTimeout)
	defer cancel()
	if err := s.Engine.Close(closeCtx); err != nil {
		log.Printf("warning: releasing session %s failed: %v", id, err)
	}
	log.Printf("session %s closed", id)
}

// CloseAll tears down every tracked session, tolerating individual
// failures. Used at process shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	r.sessions.Range(func(key, _ interface{}) bool {
		r.Close(ctx, key.(string))
		return true
	})
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	n := 0
	r.sessions.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// StartSweeper runs the idle sweep until Stop is called.
func (r *Registry) StartSweeper() {
	go func() {
		ticker := time.NewTicker(r.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop halts the sweeper. Sessions are left to CloseAll.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// sweep closes sessions idle past the threshold. A session with an
// operation strictly in flight is never force-closed; it is rechecked on
// the next interval after the operation completes or errors.
func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.cfg.IdleTimeout)
	r.sessions.Range(func(key, value interface{}) bool {
		s := value.(*Session)
		if s.Busy() {
			return true
		}
		if s.IdleSince().Before(cutoff) {
			log.Printf("session %s idle for over %s, expiring", s.ID, r.cfg.IdleTimeout)
			r.Close(context.Background(), key.(string))
		}
		return true
	})
}
