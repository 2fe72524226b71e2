package explain

import (
	"sync/atomic"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int32

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the state label for logs.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a process-wide circuit breaker guarding the AI provider.
// Failure counts are sampled with atomics so concurrent callers never
// serialize through a lock on the hot path. Open state fast-fails; after the
// cooldown one trial call probes the provider (Half-Open); a failed trial
// re-opens with exponential backoff up to maxCooldown.
type Breaker struct {
	failureThreshold int32
	cooldown         time.Duration
	maxCooldown      time.Duration

	state          atomic.Int32
	consecFailures atomic.Int32
	openedAt       atomic.Int64 // unix nanos
	reopenCount    atomic.Int32
	trialInFlight  atomic.Bool

	now func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(failureThreshold int, cooldown, maxCooldown time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if maxCooldown < cooldown {
		maxCooldown = cooldown
	}
	return &Breaker{
		failureThreshold: int32(failureThreshold),
		cooldown:         cooldown,
		maxCooldown:      maxCooldown,
		now:              time.Now,
	}
}

// Allow reports whether a provider call may proceed. At most one trial call
// is admitted while Half-Open.
func (b *Breaker) Allow() bool {
	switch BreakerState(b.state.Load()) {
	case StateClosed:
		return true
	case StateOpen:
		openedAt := time.Unix(0, b.openedAt.Load())
		if b.now().Sub(openedAt) < b.currentCooldown() {
			return false
		}
		if b.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
			b.trialInFlight.Store(true)
			return true
		}
		return false
	case StateHalfOpen:
		return b.trialInFlight.CompareAndSwap(false, true)
	}
	return false
}

// RecordSuccess resets the failure streak; a successful Half-Open trial
// closes the breaker and clears the backoff.
func (b *Breaker) RecordSuccess() {
	b.consecFailures.Store(0)
	if BreakerState(b.state.Load()) == StateHalfOpen {
		b.reopenCount.Store(0)
		b.state.Store(int32(StateClosed))
		b.trialInFlight.Store(false)
	}
}

// RecordFailure counts a provider failure. A failed Half-Open trial re-opens
// with backoff; reaching the threshold while Closed trips the breaker.
func (b *Breaker) RecordFailure() {
	if BreakerState(b.state.Load()) == StateHalfOpen {
		b.reopen()
		return
	}
	if b.consecFailures.Add(1) >= b.failureThreshold {
		if b.state.CompareAndSwap(int32(StateClosed), int32(StateOpen)) {
			b.openedAt.Store(b.now().UnixNano())
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	return BreakerState(b.state.Load())
}

func (b *Breaker) reopen() {
	b.reopenCount.Add(1)
	b.openedAt.Store(b.now().UnixNano())
	b.state.Store(int32(StateOpen))
	b.trialInFlight.Store(false)
}

func (b *Breaker) currentCooldown() time.Duration {
	d := b.cooldown << uint(b.reopenCount.Load())
	if d > b.maxCooldown || d <= 0 {
		return b.maxCooldown
	}
	return d
}
