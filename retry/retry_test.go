package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// statusErr is a minimal error carrying an HTTP status, standing in for the
// api package's APIError.
type statusErr struct {
	status int
}

func (e *statusErr) Error() string {
	return fmt.Sprintf("remote returned status %d", e.status)
}

func (e *statusErr) HTTPStatus() int {
	return e.status
}

func fastPolicy() Policy {
	p := DefaultPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	return p
}

func TestDoExhaustsAttemptsOn503(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		calls++
		return "", &statusErr{status: 503}
	})

	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}

	var term *TerminalError
	if !errors.As(err, &term) {
		t.Fatalf("expected *TerminalError, got %v", err)
	}
	if term.Attempts != 3 {
		t.Errorf("TerminalError.Attempts = %d, want 3", term.Attempts)
	}
	if term.Status != 503 {
		t.Errorf("TerminalError.Status = %d, want 503", term.Status)
	}
	if len(term.Trace) != 3 {
		t.Errorf("expected 3 trace entries, got %d", len(term.Trace))
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	responses := []int{503, 503, 200}
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		status := responses[calls]
		calls++
		if status != 200 {
			return "", &statusErr{status: status}
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
	if got != "ok" {
		t.Errorf("result = %q, want %q", got, "ok")
	}
}

func TestDoNeverRetriesPermanentStatuses(t *testing.T) {
	t.Parallel()

	for _, status := range []int{400, 401, 403, 404, 422} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			t.Parallel()

			calls := 0
			_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
				calls++
				return "", &statusErr{status: status}
			})

			if calls != 1 {
				t.Errorf("expected exactly 1 attempt for status %d, got %d", status, calls)
			}

			var term *TerminalError
			if !errors.As(err, &term) {
				t.Fatalf("expected *TerminalError, got %v", err)
			}
			if term.Status != status {
				t.Errorf("TerminalError.Status = %d, want %d", term.Status, status)
			}
		})
	}
}

func TestDoRetriesWhitelisted429(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		calls++
		return "", &statusErr{status: 429}
	})

	if calls != 3 {
		t.Errorf("expected 429 to be retried to the attempt budget, got %d attempts", calls)
	}
	if err == nil {
		t.Error("expected terminal error")
	}
}

func TestDoRetriesNetworkFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", fmt.Errorf("dialing upstream: %w", errors.New("connection reset by peer"))
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestDoTreatsTimeoutAsTransient(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("fetching page: %w", context.DeadlineExceeded)
	})

	if calls != 3 {
		t.Errorf("expected timeouts to use the full budget, got %d attempts", calls)
	}
	if err == nil {
		t.Error("expected terminal error")
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastPolicy(), func(ctx context.Context) (string, error) {
		calls++
		return "", ctx.Err()
	})

	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestDoRespectsUnwrap(t *testing.T) {
	t.Parallel()

	inner := &statusErr{status: 503}
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		return "", inner
	})

	var se *statusErr
	if !errors.As(err, &se) {
		t.Fatalf("expected terminal error to unwrap to the last failure, got %v", err)
	}
}
