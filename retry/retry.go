// Package retry executes request functions under an exponential backoff
// policy, classifying failures as transient or permanent. It holds no state
// across invocations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// Policy configures retry behaviour. The zero value is not usable; start
// from DefaultPolicy.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first attempt.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt. The delay before
	// attempt n (n >= 2) is min(MaxDelay, BaseDelay*BackoffFactor^(n-2)),
	// jittered by ±JitterRatio.
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterRatio   float64

	// RetryableStatus reports whether an HTTP status may be retried. It is
	// only consulted for statuses outside the fixed rules: 5xx is always
	// retryable, 400 and 401 never are.
	RetryableStatus func(status int) bool
}

// DefaultPolicy returns the standard policy: three attempts, 250ms base
// delay doubling to a 5s cap, 20% jitter, with 429 the only whitelisted 4xx.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		BaseDelay:       250 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffFactor:   2.0,
		JitterRatio:     0.2,
		RetryableStatus: DefaultRetryableStatus,
	}
}

// DefaultRetryableStatus whitelists 429 on top of the fixed 5xx rule.
func DefaultRetryableStatus(status int) bool {
	return status == 429
}

// Attempt records the outcome of one attempt. The trace exists for the
// executor's own decisions and logging; it is never persisted.
type Attempt struct {
	Number int
	Status int
	Err    error
}

// TerminalError is returned once the attempt budget is exhausted or a
// permanent failure is observed. It carries enough context for a caller to
// decide whether to retry at a higher level.
type TerminalError struct {
	Status   int
	Message  string
	Attempts int
	Trace    []Attempt
	last     error
}

func (e *TerminalError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("request failed after %d attempt(s): status %d: %s", e.Attempts, e.Status, e.Message)
	}
	return fmt.Sprintf("request failed after %d attempt(s): %s", e.Attempts, e.Message)
}

func (e *TerminalError) Unwrap() error {
	return e.last
}

// StatusError is implemented by errors that carry an HTTP status, such as
// the api package's APIError.
type StatusError interface {
	HTTPStatus() int
}

// Do runs op under the policy, returning its first successful result or a
// *TerminalError. Timeouts and network failures are treated as transient;
// context cancellation is permanent.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseDelay
	b.MaxInterval = policy.MaxDelay
	b.Multiplier = policy.BackoffFactor
	b.RandomizationFactor = policy.JitterRatio
	b.MaxElapsedTime = 0

	var result T
	var trace []Attempt
	attempts := 0

	operation := func() error {
		attempts++
		var err error
		result, err = op(ctx)
		if err == nil {
			return nil
		}

		status, transient := classify(policy, err)
		trace = append(trace, Attempt{Number: attempts, Status: status, Err: err})

		if !transient || attempts >= policy.MaxAttempts {
			return backoff.Permanent(err)
		}

		log.WithContext(ctx).WithFields(log.Fields{
			"attempt": attempts,
			"status":  status,
		}).WithError(err).Debug("retrying request after transient failure")
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if err != nil {
		term := &TerminalError{
			Message:  err.Error(),
			Attempts: attempts,
			Trace:    trace,
			last:     err,
		}
		var se StatusError
		if errors.As(err, &se) {
			term.Status = se.HTTPStatus()
		}
		var zero T
		return zero, term
	}
	return result, nil
}

// classify returns the HTTP status (0 for network-level failures) and
// whether the failure is transient.
func classify(policy Policy, err error) (status int, transient bool) {
	var se StatusError
	if errors.As(err, &se) {
		status = se.HTTPStatus()
		switch {
		case status == 400 || status == 401:
			return status, false
		case status >= 500:
			return status, true
		default:
			if policy.RetryableStatus != nil {
				return status, policy.RetryableStatus(status)
			}
			return status, false
		}
	}

	// Cancellation means the caller gave up, not that the service hiccuped.
	if errors.Is(err, context.Canceled) {
		return 0, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return 0, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return 0, true
	}

	// Anything else from the transport (connection reset, EOF) is assumed
	// transient.
	return 0, true
}
