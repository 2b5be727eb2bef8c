// Package breaker implements a per-backend circuit breaker. Each pipeline
// stage owns one breaker; state is shared by every in-flight query hitting
// that backend.
package breaker

import (
	"sync"
	"time"
)

// State is the breaker state.
type State int

// Breaker states.
const (
	// Closed passes calls through and counts failures.
	Closed State = iota
	// Open rejects all calls without invoking the backend.
	Open
	// HalfOpen admits exactly one probe call.
	HalfOpen
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds breaker thresholds.
type Config struct {
	// FailureThreshold opens the breaker once this many failures accumulate
	// within Window.
	FailureThreshold int
	// Window is the sliding interval over which failures are counted in the
	// closed state. The counter resets when the window elapses.
	Window time.Duration
	// Cooldown is how long the breaker stays open before admitting a probe.
	Cooldown time.Duration
	// BackoffFactor (>= 1) multiplies the cooldown after each failed probe,
	// capped at 10x the base cooldown.
	BackoffFactor float64
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
		BackoffFactor:    1,
	}
}

const maxBackoffMultiple = 10

// Breaker tracks failures for one backend and short-circuits calls while the
// backend is degraded. Safe for concurrent use; transitions are atomic and at
// most one probe is admitted while half-open.
type Breaker struct {
	cfg Config

	mu            sync.Mutex
	state         State
	failures      int
	windowStart   time.Time
	openedAt      time.Time
	cooldown      time.Duration
	probeInFlight bool

	now func() time.Time // stubbed in tests
}

// New creates a breaker in the closed state.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	return &Breaker{
		cfg:      cfg,
		state:    Closed,
		cooldown: cfg.Cooldown,
		now:      time.Now,
	}
}

// Allow reports whether a call may proceed. In the open state the cooldown is
// checked here: once it elapses the breaker moves to half-open and admits a
// single probe; concurrent callers are rejected until the probe resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true

	case Open:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = HalfOpen
			b.probeInFlight = true
			return true
		}
		return false

	case HalfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess records a completed call. A successful half-open probe closes
// the breaker and resets its counters and cooldown.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.state = Closed
		b.failures = 0
		b.probeInFlight = false
		b.cooldown = b.cfg.Cooldown
	}
}

// RecordFailure records a failed call. In the closed state failures outside
// the sliding window are discarded before counting; reaching the threshold
// opens the breaker. A failed half-open probe reopens it and grows the
// cooldown by the backoff factor.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case Closed:
		if b.failures == 0 || now.Sub(b.windowStart) >= b.cfg.Window {
			b.failures = 0
			b.windowStart = now
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = Open
			b.openedAt = now
		}

	case HalfOpen:
		b.state = Open
		b.openedAt = now
		b.probeInFlight = false
		b.cooldown = time.Duration(float64(b.cooldown) * b.cfg.BackoffFactor)
		if limit := b.cfg.Cooldown * maxBackoffMultiple; b.cooldown > limit {
			b.cooldown = limit
		}
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
