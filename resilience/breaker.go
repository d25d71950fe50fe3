package resilience

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

type callOutcome struct {
	at      time.Time
	failure bool
}

// CircuitBreaker tracks the failure ratio over a rolling sampling window.
// Once the window holds at least MinimumThroughput calls and the ratio
// exceeds FailureThreshold, it opens for BreakDuration, then admits a single
// trial call: success closes it, failure reopens it.
type CircuitBreaker struct {
	mu     sync.Mutex
	policy Policy
	now    func() time.Time

	state         breakerState
	outcomes      []callOutcome
	openedAt      time.Time
	trialInFlight bool
}

func NewCircuitBreaker(policy Policy) *CircuitBreaker {
	return &CircuitBreaker{policy: policy, now: time.Now}
}

// Allow reports whether a call may proceed. ErrCircuitOpen means the call
// must fail immediately without attempting the network.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.policy.BreakDuration {
			b.state = stateHalfOpen
			b.trialInFlight = true
			return nil
		}
		return ErrCircuitOpen
	default: // half-open
		if b.trialInFlight {
			return ErrCircuitOpen
		}
		b.trialInFlight = true
		return nil
	}
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		// Trial call succeeded; close and start a fresh window.
		b.state = stateClosed
		b.outcomes = nil
		b.trialInFlight = false
		return
	}
	b.record(false)
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		// Trial call failed; reopen for another break period.
		b.state = stateOpen
		b.openedAt = b.now()
		b.trialInFlight = false
		return
	}

	b.record(true)
	if b.shouldTrip() {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}

func (b *CircuitBreaker) record(failure bool) {
	now := b.now()
	b.outcomes = append(b.outcomes, callOutcome{at: now, failure: failure})
	b.prune(now)
}

// prune drops outcomes that fell out of the sampling window.
func (b *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-b.policy.SamplingWindow)
	i := 0
	for ; i < len(b.outcomes); i++ {
		if !b.outcomes[i].at.Before(cutoff) {
			break
		}
	}
	if i > 0 {
		b.outcomes = b.outcomes[i:]
	}
}

func (b *CircuitBreaker) shouldTrip() bool {
	total := len(b.outcomes)
	if total < b.policy.MinimumThroughput {
		return false
	}
	failures := 0
	for _, o := range b.outcomes {
		if o.failure {
			failures++
		}
	}
	return float64(failures)/float64(total) >= b.policy.FailureThreshold
}
