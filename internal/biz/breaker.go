package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"AvailGate/internal/conf"
	"AvailGate/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// BreakerState is the circuit breaker admission state.
type BreakerState int32

const (
	// StateClosed passes operations through normally.
	StateClosed BreakerState = iota
	// StateOpen rejects operations immediately without attempting the
	// downstream call.
	StateOpen
	// StateHalfOpen is a probationary mode: calls that naturally arrive
	// are used as recovery probes.
	StateHalfOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitOpenError is the fast, synchronous rejection returned while
// the breaker is open. It is distinct from a downstream failure:
// callers should divert to a fallback (the event buffer) rather than
// apply retry/backoff against this path.
type CircuitOpenError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open: retry after %s", e.RetryAfter)
}

// IsCircuitOpen reports whether err is a breaker rejection.
func IsCircuitOpen(err error) bool {
	var coe *CircuitOpenError
	return errors.As(err, &coe)
}

// CircuitBreaker decides, for each call, whether to attempt a protected
// downstream operation, and updates health state from the outcome.
//
// State machine: CLOSED trips to OPEN after FailureThreshold
// consecutive failures. OPEN admits nothing until Cooldown has elapsed,
// then the next arriving call moves it to HALF_OPEN. In HALF_OPEN a
// single failure reopens immediately; SuccessesToClose consecutive
// successes close it.
//
// Only the bookkeeping is serialized; the protected operation itself
// runs outside the lock, so the breaker never limits downstream
// concurrency, only admission. The breaker imposes no timeout of its
// own: an operation without a caller timeout can stay pending
// indefinitely from that caller's perspective, but only completed
// outcomes mutate state.
type CircuitBreaker struct {
	mu sync.Mutex

	state                BreakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time

	failureThreshold int
	cooldown         time.Duration
	successesToClose int

	metrics *metrics.Metrics
	logger  *log.Helper
	now     func() time.Time
}

// NewCircuitBreaker creates a breaker for one protected resource. The
// thresholds are fixed for the breaker's lifetime.
func NewCircuitBreaker(c *conf.Breaker, m *metrics.Metrics, logger log.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: c.FailureThreshold,
		cooldown:         c.Cooldown,
		successesToClose: c.SuccessesToClose,
		metrics:          m,
		logger:           log.NewHelper(logger),
		now:              time.Now,
	}
}

// Execute runs op if the breaker admits the call. The operation's own
// error is always re-raised unchanged: the breaker is an admission
// gate, not a retry layer. While open and inside the cooldown window it
// returns *CircuitOpenError without invoking op.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := op(ctx)
	cb.record(err)
	return err
}

// admit applies the OPEN → HALF_OPEN transition and decides admission.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}

	remaining := cb.openedAt.Add(cb.cooldown).Sub(cb.now())
	if remaining > 0 {
		return &CircuitOpenError{RetryAfter: remaining}
	}

	cb.setState(StateHalfOpen)
	cb.consecutiveSuccesses = 0
	cb.consecutiveFailures = 0
	return nil
}

// record applies the outcome of an admitted call.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.consecutiveFailures = 0
		if cb.state == StateHalfOpen {
			cb.consecutiveSuccesses++
			if cb.consecutiveSuccesses >= cb.successesToClose {
				cb.setState(StateClosed)
				cb.consecutiveSuccesses = 0
			}
		}
		return
	}

	cb.consecutiveSuccesses = 0
	cb.consecutiveFailures++

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.setState(StateOpen)
			cb.openedAt = cb.now()
		}
	case StateHalfOpen:
		// One failed probe reopens immediately.
		cb.setState(StateOpen)
		cb.openedAt = cb.now()
	}
}

// setState transitions and publishes the state gauge. Callers hold the lock.
func (cb *CircuitBreaker) setState(next BreakerState) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	if cb.metrics != nil {
		cb.metrics.SetBreakerState(int32(next))
	}
	cb.logger.Infow("circuit breaker state changed",
		"from", prev.String(),
		"to", next.String(),
		"consecutive_failures", cb.consecutiveFailures)
}

// State returns the current admission state. Read-only: it does not
// trigger transitions.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// StateCode returns the numeric state encoding (0=CLOSED, 1=OPEN,
// 2=HALF_OPEN) for metrics export.
func (cb *CircuitBreaker) StateCode() int32 {
	return int32(cb.State())
}

// RetryAfter returns the remaining cooldown when open, zero otherwise.
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return 0
	}
	if remaining := cb.openedAt.Add(cb.cooldown).Sub(cb.now()); remaining > 0 {
		return remaining
	}
	return 0
}
