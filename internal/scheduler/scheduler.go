// Package scheduler runs the periodic sampling loop: wake the sensor, take
// a reading, persist it, prune expired rows, repeat at the configured
// frequency until stopped. At most one scheduler runs per lock.
package scheduler

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tbojanin/airsampler/aqi"
	"github.com/tbojanin/airsampler/internal/lock"
	"github.com/tbojanin/airsampler/internal/metrics"
	"github.com/tbojanin/airsampler/internal/models"
	"github.com/tbojanin/airsampler/internal/store"
	"github.com/tbojanin/airsampler/sen0460"
)

// State is the scheduler's lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

const (
	// DefaultStartupTimeout bounds how long Start waits for the sensor
	// to warm up before giving up.
	DefaultStartupTimeout = 30 * time.Second
	// warmupPollInterval is how often the warmup state is re-checked.
	warmupPollInterval = 100 * time.Millisecond

	// failureWarnThreshold is the consecutive-failure count past which
	// the log level escalates.
	failureWarnThreshold = 5
)

// Sensor is the slice of the driver the scheduler needs.
type Sensor interface {
	Wake() error
	Sleep() error
	PollWarmup() bool
	State() sen0460.State
	ReadConcentrations(sample sen0460.SampleType) (sen0460.Concentrations, error)
	ReadParticleCounts() (sen0460.ParticleCounts, error)
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	State               State
	ConfigName          string
	Location            string
	SampleType          string
	Frequency           time.Duration
	PowerSave           bool
	StartedAt           time.Time
	Cycles              uint64
	ConsecutiveFailures int
	LastCycle           time.Time
	LastError           string
}

// Scheduler drives the sampling loop for one schedule config.
type Scheduler struct {
	store  store.Store
	sensor Sensor
	guard  lock.Lock
	clk    clock.Clock
	logger *slog.Logger

	startupTimeout time.Duration
	pollInterval   time.Duration

	mu                  sync.Mutex
	state               State
	config              *models.ScheduleConfig
	stop                chan struct{}
	done                chan struct{}
	kick                chan chan error
	startedAt           time.Time
	cycles              uint64
	consecutiveFailures int
	lastCycle           time.Time
	lastErr             error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) { s.clk = clk }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithStartupTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) { s.startupTimeout = timeout }
}

// WithWarmupPollInterval shortens the warmup poll for tests.
func WithWarmupPollInterval(interval time.Duration) Option {
	return func(s *Scheduler) { s.pollInterval = interval }
}

func New(st store.Store, sensor Sensor, guard lock.Lock, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:          st,
		sensor:         sensor,
		guard:          guard,
		clk:            clock.New(),
		logger:         slog.Default(),
		startupTimeout: DefaultStartupTimeout,
		pollInterval:   warmupPollInterval,
		state:          StateStopped,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins sampling under the given config. It returns once the lock
// is held and the loop goroutine is launched; sensor warmup happens in the
// background while the scheduler reports StateStarting. ErrAlreadyRunning
// is returned when this or any other instance already holds the lock.
func (s *Scheduler) Start(config *models.ScheduleConfig) error {
	if config == nil {
		return errors.New("nil schedule config")
	}
	if !config.Enabled {
		return ErrConfigDisabled
	}
	if config.Frequency() <= 0 {
		return errors.New("schedule config has no frequency")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return ErrAlreadyRunning
	}

	acquired, err := s.guard.TryAcquire()
	if err != nil {
		return err
	}
	if !acquired {
		return ErrAlreadyRunning
	}

	s.state = StateStarting
	s.config = config
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.kick = make(chan chan error)
	s.startedAt = s.clk.Now()
	s.cycles = 0
	s.consecutiveFailures = 0
	s.lastErr = nil

	s.logger.Info("starting scheduler",
		"config", config.Name,
		"location", config.Location,
		"frequency", config.FrequencyLabel,
		"powersave", config.PowerSave)

	go s.run(config, s.stop, s.done)
	return nil
}

// Stop asks the loop to finish and waits for the in-flight cycle, if any,
// to complete. The sensor is put to sleep and the lock released before
// Stop returns.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return ErrNotRunning
	case StateStopping:
		// Another caller is already stopping; just wait with them.
	default:
		s.state = StateStopping
		close(s.stop)
	}
	done := s.done
	s.mu.Unlock()

	<-done
	return nil
}

// Status reports the scheduler's current state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:               s.state,
		Cycles:              s.cycles,
		ConsecutiveFailures: s.consecutiveFailures,
		LastCycle:           s.lastCycle,
	}
	if s.config != nil && s.state != StateStopped {
		status.ConfigName = s.config.Name
		status.Location = s.config.Location
		status.SampleType = s.config.Type
		status.Frequency = s.config.Frequency()
		status.PowerSave = s.config.PowerSave
		status.StartedAt = s.startedAt
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

func (s *Scheduler) run(config *models.ScheduleConfig, stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		if err := s.sensor.Sleep(); err != nil {
			s.logger.Warn("failed to sleep sensor on shutdown", "error", err)
		}
		if err := s.guard.Release(); err != nil {
			s.logger.Warn("failed to release scheduler lock", "error", err)
		}
		metrics.Running.Set(0)

		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		close(done)
	}()

	if err := s.ensureReady(stop); err != nil {
		s.setError(err)
		s.logger.Error("scheduler failed to start", "error", err)
		return
	}

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()
	metrics.Running.Set(1)
	s.logger.Info("scheduler running", "config", config.Name)

	s.cycle(config, stop)

	ticker := s.clk.Ticker(config.Frequency())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			s.logger.Info("scheduler stopping", "config", config.Name)
			return
		case <-ticker.C:
			s.cycle(config, stop)
		case reply := <-s.kick:
			s.cycle(config, stop)
			s.mu.Lock()
			reply <- s.lastErr
			s.mu.Unlock()
		}
	}
}

// SampleNow runs one cycle out of band, on top of the regular interval. It
// returns the cycle's error, or ErrNotRunning when no loop is active.
func (s *Scheduler) SampleNow() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	kick := s.kick
	done := s.done
	s.mu.Unlock()

	reply := make(chan error, 1)
	select {
	case kick <- reply:
		return <-reply
	case <-done:
		return ErrNotRunning
	}
}

// ensureReady wakes the sensor and waits until its warmup settles, bounded
// by the startup timeout.
func (s *Scheduler) ensureReady(stop <-chan struct{}) error {
	if err := s.sensor.Wake(); err != nil {
		return err
	}

	deadline := s.clk.Now().Add(s.startupTimeout)
	for !s.sensor.PollWarmup() {
		select {
		case <-stop:
			return errors.New("stopped during warmup")
		default:
		}
		if s.clk.Now().After(deadline) {
			return &StartupTimeoutError{Timeout: s.startupTimeout}
		}
		s.clk.Sleep(s.pollInterval)
	}
	return nil
}

// cycle performs one sample: read, persist, prune.
func (s *Scheduler) cycle(config *models.ScheduleConfig, stop <-chan struct{}) {
	started := s.clk.Now()

	if config.PowerSave {
		if err := s.ensureReady(stop); err != nil {
			s.failCycle(config, err)
			return
		}
	}

	concentrations, err := s.sensor.ReadConcentrations(sen0460.SampleType(config.Type))
	if err != nil {
		s.failCycle(config, err)
		return
	}
	counts, err := s.sensor.ReadParticleCounts()
	if err != nil {
		s.failCycle(config, err)
		return
	}

	if config.PowerSave {
		if err := s.sensor.Sleep(); err != nil {
			s.logger.Warn("failed to sleep sensor after cycle", "error", err)
		}
	}

	reading := &models.Reading{
		Timestamp:     started.UTC(),
		Location:      config.Location,
		Type:          config.Type,
		PM1:           concentrations.PM1,
		PM25:          concentrations.PM25,
		PM10:          concentrations.PM10,
		Particles03um: counts.Count03um,
		Particles05um: counts.Count05um,
		Particles1um:  counts.Count1um,
		Particles25um: counts.Count25um,
		Particles5um:  counts.Count5um,
		Particles10um: counts.Count10um,
	}

	if _, err := s.store.AppendReading(reading); err != nil {
		s.failCycle(config, err)
		return
	}
	metrics.ReadingsTotal.Inc()

	if retention := config.Retention(); retention > 0 {
		cutoff := started.UTC().Add(-retention)
		pruned, err := s.store.PruneReadings(cutoff, config.Location)
		if err != nil {
			// The reading itself is safe; pruning retries next cycle.
			s.logger.Warn("retention pruning failed", "error", err)
		} else if pruned > 0 {
			metrics.PrunedReadingsTotal.Add(float64(pruned))
			s.logger.Debug("pruned expired readings", "count", pruned, "cutoff", cutoff)
		}
	}

	s.exportReading(config, concentrations)

	s.mu.Lock()
	s.cycles++
	s.consecutiveFailures = 0
	s.lastCycle = started
	s.lastErr = nil
	s.mu.Unlock()

	metrics.ConsecutiveFailures.Set(0)
	metrics.CyclesTotal.WithLabelValues(metrics.StatusOK).Inc()
	metrics.CycleDuration.Observe(s.clk.Since(started).Seconds())

	s.logger.Debug("sampling cycle complete",
		"pm1", concentrations.PM1,
		"pm2_5", concentrations.PM25,
		"pm10", concentrations.PM10)
}

func (s *Scheduler) failCycle(config *models.ScheduleConfig, err error) {
	s.mu.Lock()
	s.consecutiveFailures++
	failures := s.consecutiveFailures
	s.lastErr = err
	s.mu.Unlock()

	metrics.ConsecutiveFailures.Set(float64(failures))
	metrics.CyclesTotal.WithLabelValues(metrics.StatusFailed).Inc()

	if failures > failureWarnThreshold {
		s.logger.Error("sampling cycle failed repeatedly",
			"config", config.Name,
			"consecutive_failures", failures,
			"error", err)
		return
	}
	s.logger.Warn("sampling cycle failed", "config", config.Name, "error", err)
}

func (s *Scheduler) exportReading(config *models.ScheduleConfig, c sen0460.Concentrations) {
	pm10 := float64(c.PM10)
	result, err := aqi.Compute(float64(c.PM25), &pm10)
	if err == nil {
		metrics.CurrentAQI.WithLabelValues(config.Location).Set(float64(result.Value))
		s.logger.Debug("air quality index",
			"location", config.Location,
			"aqi", result.Value,
			"level", result.Level,
			"source", result.Source)
	}
	metrics.PMConcentration.WithLabelValues(config.Location, "pm1").Set(float64(c.PM1))
	metrics.PMConcentration.WithLabelValues(config.Location, "pm2_5").Set(float64(c.PM25))
	metrics.PMConcentration.WithLabelValues(config.Location, "pm10").Set(float64(c.PM10))
}

func (s *Scheduler) setError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// ResolveConfig looks a schedule config up by numeric id or by name.
func ResolveConfig(st store.Store, ref string) (*models.ScheduleConfig, error) {
	if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
		config, err := st.GetConfigByID(uint(id))
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	config, err := st.GetConfigByName(ref)
	if err == nil {
		return config, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, &ConfigNotFoundError{Ref: ref}
	}
	return nil, err
}
