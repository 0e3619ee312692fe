package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerKeyNames(t *testing.T) {
	assert.Equal(t, "FORMPILOT:worker:s1:tasks", taskQueue("s1"))
	assert.Equal(t, "FORMPILOT:worker:s1:ready", ReadyKey("s1"))
}

func TestWorkerError(t *testing.T) {
	assert.NoError(t, workerError(map[string]interface{}{"status": "ok"}))
	assert.NoError(t, workerError(map[string]interface{}{}))

	err := workerError(map[string]interface{}{"status": "error", "error": "element not found"})
	assert.EqualError(t, err, "element not found")

	err = workerError(map[string]interface{}{"status": "error", "message": "browser crashed"})
	assert.EqualError(t, err, "browser crashed")

	err = workerError(map[string]interface{}{"status": "error"})
	assert.EqualError(t, err, "unspecified worker error")
}

func TestNewRemoteDefaultsWait(t *testing.T) {
	r := NewRemote(nil, "s1", 0)
	assert.Equal(t, DefaultRPCWait, r.rpcWait)
}

func TestWithRetryAttemptBudget(t *testing.T) {
	r := NewRemote(nil, "s1", 0)

	attempts := 0
	err := r.withRetry(func() error {
		attempts++
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsEarly(t *testing.T) {
	r := NewRemote(nil, "s1", 0)

	attempts := 0
	require.NoError(t, r.withRetry(func() error {
		attempts++
		return nil
	}))
	assert.Equal(t, 1, attempts)

	attempts = 0
	err := r.withRetry(func() error {
		attempts++
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "cancellation is not a transient failure")
}
