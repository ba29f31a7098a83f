// Package breaker implements the per-node fault containment automaton
// described in spec §4.6, as a thin adapter over sony/gobreaker so the
// scheduler gets a battle-tested Closed/Open/HalfOpen implementation
// instead of a hand-rolled one.
package breaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// State mirrors gobreaker.State with the vocabulary used by spec §3/§4.6.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// ErrOpen is returned by Allow when the breaker denies the tick.
var ErrOpen = errors.New("breaker: open")

// Config parameterizes a per-node breaker per spec §4.6.
type Config struct {
	// MaxFailures is the number of consecutive failures in Closed state
	// that trips the breaker to Open.
	MaxFailures uint32
	// RecoveryThreshold is the number of consecutive successes in
	// HalfOpen needed to close the breaker again.
	RecoveryThreshold uint32
	// Timeout is how long the breaker stays Open before allowing a
	// single HalfOpen probe.
	Timeout time.Duration
}

// DefaultConfig returns conservative breaker defaults.
func DefaultConfig() Config {
	return Config{
		MaxFailures:       5,
		RecoveryThreshold: 2,
		Timeout:           30 * time.Second,
	}
}

// Breaker wraps a gobreaker.TwoStepCircuitBreaker so callers can separate
// the "may I tick" decision from the "report the outcome" step, matching
// the scheduler's record-tick-then-report-result tick loop.
type Breaker struct {
	node string
	cfg  Config
	cb   *gobreaker.TwoStepCircuitBreaker
}

// New constructs a Breaker for the named node.
func New(nodeName string, cfg Config) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg = DefaultConfig()
	}

	settings := gobreaker.Settings{
		Name:        nodeName,
		MaxRequests: cfg.RecoveryThreshold,
		Interval:    0,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}

	return &Breaker{
		node: nodeName,
		cfg:  cfg,
		cb:   gobreaker.NewTwoStepCircuitBreaker(settings),
	}
}

// Allow reports whether a tick may proceed and, if so, returns a done
// function the caller must invoke exactly once with the tick's outcome.
// Denied ticks return (false, nil); the caller must not invoke a nil done.
func (b *Breaker) Allow() (allowed bool, done func(success bool)) {
	doneFn, err := b.cb.Allow()
	if err != nil {
		return false, nil
	}

	return true, doneFn
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Node returns the node name this breaker guards.
func (b *Breaker) Node() string {
	return b.node
}
