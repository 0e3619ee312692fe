package models

import "time"

// SessionState represents the lifecycle state of an automation session
type SessionState string

const (
	StateInitializing  SessionState = "initializing"
	StateRunning       SessionState = "running"
	StateAwaitingInput SessionState = "awaiting_input"
	StateSucceeded     SessionState = "succeeded"
	StateFailed        SessionState = "failed"
	StateClosed        SessionState = "closed"
)

// Terminal reports whether no further workflow operation may be issued
// for a session in this state.
func (s SessionState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateClosed
}

// SessionInfo is the wire representation of a session
type SessionInfo struct {
	ID           string       `json:"id"`
	State        SessionState `json:"state"`
	PageURL      string       `json:"pageUrl,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastActiveAt time.Time    `json:"lastActiveAt"`
}
