package breaker

import (
	"sync"
	"testing"
	"time"
)

// fakeClock drives the breaker's time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	b := New(cfg)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b.now = clock.Now
	return b, clock
}

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.RecordFailure()
	}
}

func TestClosed_AllowsCalls(t *testing.T) {
	b, _ := newTestBreaker(DefaultConfig())
	if !b.Allow() {
		t.Fatal("closed breaker must allow calls")
	}
	if b.State() != Closed {
		t.Errorf("expected closed, got %v", b.State())
	}
}

func TestOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Window: time.Minute, Cooldown: 30 * time.Second})

	failN(b, 2)
	if b.State() != Closed {
		t.Fatalf("expected closed below threshold, got %v", b.State())
	}

	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected open at threshold, got %v", b.State())
	}
	if b.Allow() {
		t.Error("open breaker must reject calls")
	}
}

func TestWindowElapsed_ResetsCounter(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 3, Window: time.Minute, Cooldown: 30 * time.Second})

	failN(b, 2)
	clock.Advance(2 * time.Minute)

	// Stale failures are discarded; this starts a fresh window.
	b.RecordFailure()
	if b.State() != Closed {
		t.Errorf("expected closed after window reset, got %v", b.State())
	}

	failN(b, 2)
	if b.State() != Open {
		t.Errorf("expected open after threshold within fresh window, got %v", b.State())
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Window: time.Minute, Cooldown: 30 * time.Second})

	failN(b, 2)
	b.RecordSuccess()
	failN(b, 2)

	if b.State() != Closed {
		t.Errorf("expected closed, got %v", b.State())
	}
}

func TestCooldown_AdmitsSingleProbe(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, Window: time.Minute, Cooldown: 30 * time.Second})

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected rejection during cooldown")
	}

	clock.Advance(31 * time.Second)
	if !b.Allow() {
		t.Fatal("expected probe admission after cooldown")
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected half_open, got %v", b.State())
	}
	if b.Allow() {
		t.Error("only one probe may be admitted while half-open")
	}
}

func TestProbeSuccess_Closes(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, Window: time.Minute, Cooldown: 30 * time.Second})

	b.RecordFailure()
	clock.Advance(31 * time.Second)
	if !b.Allow() {
		t.Fatal("expected probe admission")
	}

	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatalf("expected closed after probe success, got %v", b.State())
	}

	// Counters reset: a single failure must not reopen a threshold-2 breaker.
	b2, clock2 := newTestBreaker(Config{FailureThreshold: 2, Window: time.Minute, Cooldown: 30 * time.Second})
	failN(b2, 2)
	clock2.Advance(31 * time.Second)
	b2.Allow()
	b2.RecordSuccess()
	b2.RecordFailure()
	if b2.State() != Closed {
		t.Errorf("failure counter must reset on close, got %v", b2.State())
	}
}

func TestProbeFailure_Reopens(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, Window: time.Minute, Cooldown: 30 * time.Second})

	b.RecordFailure()
	clock.Advance(31 * time.Second)
	if !b.Allow() {
		t.Fatal("expected probe admission")
	}

	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected open after probe failure, got %v", b.State())
	}
	if b.Allow() {
		t.Error("expected rejection after reopen")
	}
}

func TestProbeFailure_BackoffGrowsCooldown(t *testing.T) {
	b, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		Window:           time.Minute,
		Cooldown:         10 * time.Second,
		BackoffFactor:    2,
	})

	b.RecordFailure()
	clock.Advance(11 * time.Second)
	b.Allow()
	b.RecordFailure() // cooldown now 20s

	clock.Advance(11 * time.Second)
	if b.Allow() {
		t.Fatal("base cooldown must not admit a probe after backoff")
	}
	clock.Advance(10 * time.Second)
	if !b.Allow() {
		t.Fatal("expected probe admission after grown cooldown")
	}

	// Successful probe restores the base cooldown.
	b.RecordSuccess()
	b.RecordFailure()
	clock.Advance(11 * time.Second)
	if !b.Allow() {
		t.Error("expected base cooldown after recovery")
	}
}

func TestHalfOpen_ConcurrentProbes(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, Window: time.Minute, Cooldown: time.Second})

	b.RecordFailure()
	clock.Advance(2 * time.Second)

	var admitted int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("expected exactly one admitted probe, got %d", admitted)
	}
}

func TestConcurrentFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 50, Window: time.Minute, Cooldown: time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()

	if b.State() != Open {
		t.Errorf("expected open after concurrent failures, got %v", b.State())
	}
}
