// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every runtime knob. All durations default to values that
// suit slow document-class registration sites.
type Config struct {
	// HTTPAddr is the listen address, e.g. ":8080".
	HTTPAddr string

	// RedisAddr is the address of the Redis instance shared with the
	// automation workers.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// WorkerImage is the automation-worker container image launched per
	// session.
	WorkerImage string
	// Headless controls whether workers run their browser headless.
	Headless bool
	// WorkerStartupTimeout bounds worker launch.
	WorkerStartupTimeout time.Duration

	// NavigationTimeout bounds one navigation (60-120s range is normal).
	NavigationTimeout time.Duration
	// SettleDelay is the fixed pause after navigation.
	SettleDelay time.Duration
	// SubmitSettle is the pause after the primary call-to-action.
	SubmitSettle time.Duration

	// IdleTimeout expires sessions with no activity.
	IdleTimeout time.Duration
	// SweepInterval is how often the expiry sweep runs.
	SweepInterval time.Duration
	// CloseTimeout bounds session teardown.
	CloseTimeout time.Duration

	// RequestsPerMinute and Burst configure the per-session rate limit.
	RequestsPerMinute int
	Burst             int
}

// Load reads configuration from environment variables, falling back to
// sensible defaults.
func Load() Config {
	return Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getInt("REDIS_DB", 0),
		WorkerImage:          getEnv("WORKER_IMAGE", "formpilot/agent-worker:latest"),
		Headless:             getBool("HEADLESS", true),
		WorkerStartupTimeout: getDuration("WORKER_STARTUP_TIMEOUT", 60*time.Second),
		NavigationTimeout:    getDuration("NAVIGATION_TIMEOUT", 90*time.Second),
		SettleDelay:          getDuration("SETTLE_DELAY", 2*time.Second),
		SubmitSettle:         getDuration("SUBMIT_SETTLE", 5*time.Second),
		IdleTimeout:          getDuration("IDLE_TIMEOUT", 30*time.Minute),
		SweepInterval:        getDuration("SWEEP_INTERVAL", time.Minute),
		CloseTimeout:         getDuration("CLOSE_TIMEOUT", 30*time.Second),
		RequestsPerMinute:    getInt("RATE_LIMIT_PER_MINUTE", 60),
		Burst:                getInt("RATE_LIMIT_BURST", 10),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
