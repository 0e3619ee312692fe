package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Protocol constants shared with the automation worker
const (
	RedisPrefix = "FORMPILOT:"

	// DefaultRPCWait bounds a single worker round-trip. Vision-driven
	// actions against slow document sites can take a while.
	DefaultRPCWait = 90 * time.Second

	releaseWait = 15 * time.Second
)

func taskQueue(sessionID string) string {
	return fmt.Sprintf("%sworker:%s:tasks", RedisPrefix, sessionID)
}

// ReadyKey is set by the worker once its browser is up.
func ReadyKey(sessionID string) string {
	return fmt.Sprintf("%sworker:%s:ready", RedisPrefix, sessionID)
}

type taskPayload struct {
	TaskID      string                 `json:"task_id"`
	SessionID   string                 `json:"session_id"`
	Action      string                 `json:"action"`
	Args        map[string]interface{} `json:"args,omitempty"`
	ResultKey   string                 `json:"result_key"`
	Instruction string                 `json:"instruction,omitempty"`
}

// Remote talks to one automation worker over Redis: tasks are RPUSHed to
// the worker's queue, the reply is BLPOPed from a per-task result key.
type Remote struct {
	rdb       *redis.Client
	sessionID string
	rpcWait   time.Duration
}

// NewRemote binds a Redis-backed engine to a session's worker queue.
func NewRemote(rdb *redis.Client, sessionID string, rpcWait time.Duration) *Remote {
	if rpcWait <= 0 {
		rpcWait = DefaultRPCWait
	}
	return &Remote{rdb: rdb, sessionID: sessionID, rpcWait: rpcWait}
}

func (r *Remote) Perform(ctx context.Context, instruction string) error {
	res, err := r.send(ctx, "act", map[string]interface{}{"instruction": instruction}, r.rpcWait)
	if err != nil {
		return err
	}
	return workerError(res)
}

func (r *Remote) Query(ctx context.Context, instruction string) (map[string]interface{}, error) {
	res, err := r.send(ctx, "observe", map[string]interface{}{"instruction": instruction}, r.rpcWait)
	if err != nil {
		return nil, err
	}
	if err := workerError(res); err != nil {
		return nil, err
	}
	if result, ok := res["result"].(map[string]interface{}); ok {
		return result, nil
	}
	return res, nil
}

func (r *Remote) Screenshot(ctx context.Context) (string, error) {
	res, err := r.send(ctx, "screenshot", nil, r.rpcWait)
	if err != nil {
		return "", err
	}
	if err := workerError(res); err != nil {
		return "", err
	}
	img, ok := res["image_base64"].(string)
	if !ok {
		return "", errors.New("worker returned no screenshot data")
	}
	return img, nil
}

func (r *Remote) PageURL(ctx context.Context) (string, error) {
	res, err := r.send(ctx, "get_current_url", nil, r.rpcWait)
	if err != nil {
		return "", err
	}
	if err := workerError(res); err != nil {
		return "", err
	}
	url, _ := res["url"].(string)
	return url, nil
}

func (r *Remote) Close(ctx context.Context) error {
	_, err := r.send(ctx, "release_browser", nil, releaseWait)
	return err
}

// send performs one Redis RPC round-trip with retry on transient errors.
func (r *Remote) send(ctx context.Context, action string, args map[string]interface{}, wait time.Duration) (map[string]interface{}, error) {
	taskID := uuid.New().String()
	resultKey := fmt.Sprintf("%sresult:%s", RedisPrefix, taskID)

	payload := taskPayload{
		TaskID:    taskID,
		SessionID: r.sessionID,
		Action:    action,
		Args:      args,
		ResultKey: resultKey,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize task: %w", err)
	}

	if err := r.withRetry(func() error {
		return r.rdb.RPush(ctx, taskQueue(r.sessionID), data).Err()
	}); err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var raw []string
	err = r.withRetry(func() error {
		var popErr error
		raw, popErr = r.rdb.BLPop(waitCtx, wait, resultKey).Result()
		return popErr
	})
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout waiting for worker response to %q", action)
		}
		return nil, fmt.Errorf("worker rpc: %w", err)
	}
	if len(raw) < 2 {
		return nil, errors.New("invalid response from worker")
	}

	var resp map[string]interface{}
	if err := json.Unmarshal([]byte(raw[1]), &resp); err != nil {
		return nil, fmt.Errorf("parse worker response: %w", err)
	}
	return resp, nil
}

// withRetry retries transient Redis failures with exponential backoff.
func (r *Remote) withRetry(op func() error) error {
	const maxAttempts = 3
	backoff := 200 * time.Millisecond

	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		if attempt >= maxAttempts-1 {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

func workerError(res map[string]interface{}) error {
	if status, ok := res["status"].(string); ok && status == "error" {
		msg, _ := res["error"].(string)
		if msg == "" {
			msg, _ = res["message"].(string)
		}
		if msg == "" {
			msg = "unspecified worker error"
		}
		return errors.New(msg)
	}
	return nil
}
