package health

import (
	"context"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeHTTP CheckType = "http"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// Config contains retry configuration for post-restart verification
type Config struct {
	// Interval is the time between attempts
	Interval time.Duration

	// Timeout is the maximum time for a single attempt
	Timeout time.Duration

	// Retries is how many attempts to make before giving up
	Retries int
}

// DefaultConfig returns the verification defaults used after restarts:
// GoldSrc instances take a few seconds to bind their ports.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  5 * time.Second,
		Retries:  3,
	}
}

// CheckWithRetries runs the checker until it reports healthy or the
// attempts are exhausted, returning the last result.
func CheckWithRetries(ctx context.Context, checker Checker, cfg Config) Result {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}

	var result Result
	for attempt := 0; attempt < cfg.Retries; attempt++ {
		attemptCtx := ctx
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			result = checker.Check(attemptCtx)
			cancel()
		} else {
			result = checker.Check(attemptCtx)
		}

		if result.Healthy {
			return result
		}

		if attempt < cfg.Retries-1 {
			select {
			case <-time.After(cfg.Interval):
			case <-ctx.Done():
				return result
			}
		}
	}
	return result
}
