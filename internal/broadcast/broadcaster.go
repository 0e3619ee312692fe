// Package broadcast fans session events out to live observers. Delivery
// is fire-and-forget: no buffering, no replay, no retries.
package broadcast

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/formpilot/formpilot/pkg/models"
)

// Sink receives events for one observer. The WebSocket layer implements
// it over a connection; tests implement it over a channel.
type Sink interface {
	Send(models.Event) error
}

type subscriber struct {
	sink      Sink
	sessionID string // empty until bound
}

// Broadcaster owns the observer registry and the session bindings.
// It is the only component that mutates either.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

func New() *Broadcaster {
	return &Broadcaster{subs: make(map[string]*subscriber)}
}

// Subscribe registers an observer with no session binding and returns its
// subscriber id.
func (b *Broadcaster) Subscribe(sink Sink) string {
	id := uuid.New().String()
	b.mu.Lock()
	b.subs[id] = &subscriber{sink: sink}
	b.mu.Unlock()
	return id
}

// Bind associates a subscriber with a session. Rebinding overwrites the
// prior binding; one subscriber observes at most one session.
func (b *Broadcaster) Bind(subscriberID, sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[subscriberID]
	if !ok {
		return false
	}
	sub.sessionID = sessionID
	return true
}

// Unsubscribe removes an observer unconditionally. Safe to call twice.
func (b *Broadcaster) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	delete(b.subs, subscriberID)
	b.mu.Unlock()
}

// SubscriberCount reports the number of live observers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers the event synchronously to every observer currently
// bound to the session. Observers bound elsewhere are skipped. A failed
// send is logged and dropped; the observer is cleaned up on disconnect.
func (b *Broadcaster) Publish(sessionID string, event models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		if sub.sessionID != sessionID {
			continue
		}
		if err := sub.sink.Send(event); err != nil {
			log.Printf("broadcast: dropping event for subscriber %s: %v", id, err)
		}
	}
}

// Log publishes a log event at the given level.
func (b *Broadcaster) Log(sessionID, level, message string) {
	b.Publish(sessionID, models.NewEvent(models.EventLog, sessionID, map[string]interface{}{
		"level":   level,
		"message": message,
	}))
}

// Status publishes a step/status narration event.
func (b *Broadcaster) Status(sessionID, step, message string) {
	b.Publish(sessionID, models.NewEvent(models.EventStatus, sessionID, map[string]interface{}{
		"step":    step,
		"message": message,
	}))
}

// Screenshot publishes a captured page image.
func (b *Broadcaster) Screenshot(sessionID, imageBase64, step string) {
	b.Publish(sessionID, models.NewEvent(models.EventScreenshot, sessionID, map[string]interface{}{
		"imageBase64": imageBase64,
		"step":        step,
	}))
}

// RequestInput asks observers to prompt the human for a verification value.
func (b *Broadcaster) RequestInput(sessionID, inputType string, fields map[string]interface{}) {
	all := map[string]interface{}{"inputType": inputType}
	for k, v := range fields {
		all[k] = v
	}
	b.Publish(sessionID, models.NewEvent(models.EventRequestInput, sessionID, all))
}

// Result publishes the terminal outcome of a workflow.
func (b *Broadcaster) Result(sessionID string, success bool, message string) {
	b.Publish(sessionID, models.NewEvent(models.EventResult, sessionID, map[string]interface{}{
		"success": success,
		"message": message,
	}))
}
