package health

import (
	"context"
	"net"
	"testing"
	"time"
)

// TestTCPCheckerHealthy tests a successful TCP check against a live listener
func TestTCPCheckerHealthy(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	checker := NewTCPChecker(listener.Addr().String())
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Check() healthy = false, want true: %s", result.Message)
	}
	if result.CheckedAt.IsZero() {
		t.Error("Check() CheckedAt is zero")
	}
}

// TestTCPCheckerUnhealthy tests a failed TCP check against a closed port
func TestTCPCheckerUnhealthy(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	checker := NewTCPChecker(addr).WithTimeout(time.Second)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Error("Check() healthy = true, want false")
	}
}

// TestCheckWithRetries tests that retries stop at the first healthy result
func TestCheckWithRetries(t *testing.T) {
	checker := &flakyChecker{failUntil: 2}

	cfg := Config{Interval: 10 * time.Millisecond, Timeout: time.Second, Retries: 5}
	result := CheckWithRetries(context.Background(), checker, cfg)

	if !result.Healthy {
		t.Errorf("CheckWithRetries() healthy = false, want true")
	}
	if checker.calls != 3 {
		t.Errorf("CheckWithRetries() made %d calls, want 3", checker.calls)
	}
}

// TestCheckWithRetriesExhausted tests the last result after exhausting retries
func TestCheckWithRetriesExhausted(t *testing.T) {
	checker := &flakyChecker{failUntil: 100}

	cfg := Config{Interval: time.Millisecond, Timeout: time.Second, Retries: 3}
	result := CheckWithRetries(context.Background(), checker, cfg)

	if result.Healthy {
		t.Error("CheckWithRetries() healthy = true, want false")
	}
	if checker.calls != 3 {
		t.Errorf("CheckWithRetries() made %d calls, want 3", checker.calls)
	}
}

type flakyChecker struct {
	calls     int
	failUntil int
}

func (f *flakyChecker) Check(ctx context.Context) Result {
	f.calls++
	return Result{Healthy: f.calls > f.failUntil, CheckedAt: time.Now()}
}

func (f *flakyChecker) Type() CheckType {
	return CheckTypeTCP
}
