// Package circuit implements a small circuit breaker guarding the
// recorder's reopen-after-IO-error policy: repeated backend failures
// stop retrying for a cooldown window instead of spinning on a
// filesystem that is clearly unavailable.
package circuit

import (
	"sync"
	"time"

	"github.com/skywing/fdrlog/internal/ferr"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config mirrors the shape of a threshold/cooldown circuit breaker.
type Config struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// Breaker is a minimal circuit breaker: Execute runs fn unless the
// breaker is open and the cooldown hasn't elapsed.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	failures int
	nextTry  time.Time
}

// New builds a Breaker, defaulting MaxFailures to 3 and ResetTimeout to
// 30s if unset.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Execute runs fn if the breaker permits it, tracking the outcome.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if time.Now().Before(b.nextTry) {
			b.mu.Unlock()
			return ferr.IO("circuit", "Execute", errCircuitOpen)
		}
		b.state = StateHalfOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.state = StateOpen
			b.nextTry = time.Now().Add(b.cfg.ResetTimeout)
		}
		return err
	}
	b.failures = 0
	b.state = StateClosed
	return nil
}

// State reports the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

type circuitOpenError struct{}

func (circuitOpenError) Error() string { return "circuit breaker is open" }

var errCircuitOpen = circuitOpenError{}
