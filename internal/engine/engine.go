// Package engine wraps the AI-vision browser automation capability behind
// a narrow interface so the orchestration core never depends on a real
// browser or vision model.
package engine

import "context"

// Engine drives one browser for one session. Instructions are plain
// natural language; the worker interprets them best-effort and may fail.
type Engine interface {
	// Perform executes an action-style instruction against the current page.
	Perform(ctx context.Context, instruction string) error

	// Query runs a read-only structured query against the current page.
	Query(ctx context.Context, instruction string) (map[string]interface{}, error)

	// Screenshot captures the current page as base64 PNG.
	Screenshot(ctx context.Context) (string, error)

	// PageURL returns the current page URL.
	PageURL(ctx context.Context) (string, error)

	// Close releases the underlying browser. Safe to call once only;
	// the session registry guarantees that.
	Close(ctx context.Context) error
}

// Launcher allocates a fresh Engine for a new session.
type Launcher interface {
	Launch(ctx context.Context, sessionID string) (Engine, error)
	Close() error
}
