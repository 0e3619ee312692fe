// Package enginetest provides a scripted in-memory engine so the
// orchestration core can be tested without a browser or vision model.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/formpilot/formpilot/internal/engine"
)

// Fake is a scripted Engine. Zero value succeeds at everything and
// returns empty results; script failures with FailOn or PerformErr.
type Fake struct {
	mu sync.Mutex

	// PerformErr, when set, decides the outcome of every Perform call.
	PerformErr func(instruction string) error
	// QueryResult is returned by Query when QueryErr is nil.
	QueryResult map[string]interface{}
	QueryErr    error
	// ScreenshotData is the base64 payload returned by Screenshot.
	ScreenshotData string
	ScreenshotErr  error
	URL            string

	// OpDelay makes every call take this long, to widen race windows in
	// concurrency tests.
	OpDelay time.Duration

	// Recorded activity
	Performed []string
	Queried   []string
	Closed    bool

	active    int
	maxActive int
}

func (f *Fake) Perform(ctx context.Context, instruction string) error {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	f.Performed = append(f.Performed, instruction)
	failer := f.PerformErr
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if failer != nil {
		return failer(instruction)
	}
	return nil
}

func (f *Fake) Query(ctx context.Context, instruction string) (map[string]interface{}, error) {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	f.Queried = append(f.Queried, instruction)
	result, err := f.QueryResult, f.QueryErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if result == nil {
		result = map[string]interface{}{"pageType": "form"}
	}
	return result, nil
}

func (f *Fake) Screenshot(ctx context.Context) (string, error) {
	if f.ScreenshotErr != nil {
		return "", f.ScreenshotErr
	}
	if f.ScreenshotData == "" {
		return "iVBORw0KGgo=", nil
	}
	return f.ScreenshotData, nil
}

func (f *Fake) PageURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.URL, nil
}

func (f *Fake) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return fmt.Errorf("engine closed twice")
	}
	f.Closed = true
	return nil
}

// SetQueryResult swaps the scripted analysis mid-test.
func (f *Fake) SetQueryResult(result map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QueryResult = result
}

// MaxActive reports the highest number of overlapping Perform/Query
// calls observed, for mutual-exclusion assertions.
func (f *Fake) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func (f *Fake) enter() {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	delay := f.OpDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
}

func (f *Fake) leave() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

// Launcher hands out Fakes and records what it launched.
type Launcher struct {
	mu sync.Mutex

	// LaunchErr, when set, makes every Launch fail.
	LaunchErr error
	// Configure customizes each new Fake before it is returned.
	Configure func(sessionID string, f *Fake)

	Launched []string
	Engines  map[string]*Fake
}

func NewLauncher() *Launcher {
	return &Launcher{Engines: make(map[string]*Fake)}
}

func (l *Launcher) Launch(ctx context.Context, sessionID string) (engine.Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	f := &Fake{}
	if l.Configure != nil {
		l.Configure(sessionID, f)
	}
	l.Launched = append(l.Launched, sessionID)
	l.Engines[sessionID] = f
	return f, nil
}

func (l *Launcher) Close() error { return nil }

// Engine returns the fake handed out for a session id.
func (l *Launcher) Engine(sessionID string) *Fake {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Engines[sessionID]
}
