package sen0460

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a register transaction is attempted and how
// long the link waits between attempts.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, including the first try.
	MaxAttempts int
	// Delay is the constant wait between attempts.
	Delay time.Duration
}

// DefaultRetryPolicy matches the sensor's tolerance for transient bus
// flakiness: three attempts, 100ms apart.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 100 * time.Millisecond}

// LinkStats is a snapshot of the link's transaction counters.
type LinkStats struct {
	Reads    uint64
	Writes   uint64
	Failures uint64
	// LastAttempts is how many attempts the most recent transaction took.
	LastAttempts int
	LastError    string
}

// Link serializes register transactions to a Bus, masking transient failures
// with bounded retry. Transactions come from a single caller, but Stats may
// be read concurrently (metrics scrapes), so the counters sit behind a
// mutex.
type Link struct {
	bus    Bus
	policy RetryPolicy
	clk    clock.Clock
	logger *slog.Logger

	mu           sync.Mutex
	reads        uint64
	writes       uint64
	failures     uint64
	lastAttempts int
	lastErr      error
}

// LinkOption customizes a Link.
type LinkOption func(*Link)

// WithClock injects the clock used for retry delays. Tests supply a mock.
func WithClock(clk clock.Clock) LinkOption {
	return func(l *Link) { l.clk = clk }
}

// WithLinkLogger injects the logger used for retry warnings.
func WithLinkLogger(logger *slog.Logger) LinkOption {
	return func(l *Link) { l.logger = logger }
}

// NewLink wraps bus with the given retry policy. A MaxAttempts below one is
// clamped to one.
func NewLink(bus Bus, policy RetryPolicy, opts ...LinkOption) *Link {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	link := &Link{
		bus:    bus,
		policy: policy,
		clk:    clock.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(link)
	}
	return link
}

// ReadRegister reads length bytes from register, retrying transient bus
// failures up to the policy's attempt budget. Invalid registers and bus-open
// failures are raised immediately.
func (l *Link) ReadRegister(register byte, length int) ([]byte, error) {
	if !validRegisters[register] {
		return nil, &InvalidRegisterError{Register: register}
	}

	var data []byte
	err := l.transact("read", register, func() error {
		var err error
		data, err = l.bus.ReadRegister(register, length)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.reads++
	l.mu.Unlock()
	return data, nil
}

// WriteRegister writes payload to register under the same retry policy as
// ReadRegister.
func (l *Link) WriteRegister(register byte, payload []byte) error {
	if !validRegisters[register] {
		return &InvalidRegisterError{Register: register}
	}

	err := l.transact("write", register, func() error {
		return l.bus.WriteRegister(register, payload)
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.writes++
	l.mu.Unlock()
	return nil
}

// Stats reports the link's cumulative transaction counters.
func (l *Link) Stats() LinkStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := LinkStats{
		Reads:        l.reads,
		Writes:       l.writes,
		Failures:     l.failures,
		LastAttempts: l.lastAttempts,
	}
	if l.lastErr != nil {
		stats.LastError = l.lastErr.Error()
	}
	return stats
}

// Close releases the underlying bus.
func (l *Link) Close() error {
	return l.bus.Close()
}

func (l *Link) transact(op string, register byte, attempt func() error) error {
	attempts := 0
	started := l.clk.Now()

	operation := func() error {
		attempts++
		err := attempt()
		if err == nil {
			return nil
		}
		if isFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		l.logger.Warn("register transaction failed, retrying",
			"op", op,
			"register", register,
			"attempt", attempts,
			"wait", wait,
			"error", err,
		)
	}

	policy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(l.policy.Delay),
		uint64(l.policy.MaxAttempts-1),
	)

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, newClockTimer(l.clk))

	l.mu.Lock()
	l.lastAttempts = attempts
	if err != nil {
		l.failures++
		l.lastErr = err
	}
	l.mu.Unlock()

	if err == nil {
		return nil
	}

	if isFatal(err) {
		return err
	}
	return &CommunicationError{
		Op:       op,
		Register: register,
		Attempts: attempts,
		Elapsed:  l.clk.Now().Sub(started),
		Err:      err,
	}
}

// clockTimer adapts a clock.Clock to the backoff timer interface so retry
// delays can run against a mock clock in tests.
type clockTimer struct {
	clk   clock.Clock
	timer *clock.Timer
}

func newClockTimer(clk clock.Clock) *clockTimer {
	return &clockTimer{clk: clk}
}

func (t *clockTimer) Start(duration time.Duration) {
	if t.timer == nil {
		t.timer = t.clk.Timer(duration)
		return
	}
	t.timer.Reset(duration)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	if t.timer == nil {
		return nil
	}
	return t.timer.C
}
