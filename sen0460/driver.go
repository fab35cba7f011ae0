package sen0460

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// SampleType selects which calibration of the sensor's concentration
// registers to read.
type SampleType string

const (
	SampleStandard    SampleType = "standard"
	SampleAtmospheric SampleType = "atmospheric"
)

// State is the driver's power state.
type State string

const (
	StateAsleep    State = "asleep"
	StateWarmingUp State = "warming-up"
	StateReady     State = "ready"
)

const (
	// MaxMassConcentration is the sane ceiling for a PM mass reading in
	// µg/m³. An all-0xFF bus glitch decodes far above it.
	MaxMassConcentration = 999
	// glitchParticleCount is the all-0xFF decode of a count register.
	glitchParticleCount = 0xFFFF

	// DefaultWarmup is the delay after wake before readings are valid.
	DefaultWarmup = 5 * time.Second
	// MaxWarmup caps a configured warmup duration.
	MaxWarmup = 30 * time.Second
)

// Concentrations holds one set of PM mass readings in µg/m³.
type Concentrations struct {
	PM1  int
	PM25 int
	PM10 int
}

// ParticleCounts holds the six particle-size bins in counts per 0.1 L.
type ParticleCounts struct {
	Count03um int
	Count05um int
	Count1um  int
	Count25um int
	Count5um  int
	Count10um int
}

// Driver owns a Link and tracks the sensor's power state machine:
// asleep -> warming-up -> ready. The driver never sleeps on its own; the
// power-save policy belongs to the scheduler.
type Driver struct {
	link   *Link
	clk    clock.Clock
	logger *slog.Logger
	warmup time.Duration

	state          State
	warmupDeadline time.Time
	lastRead       time.Time

	cachedConcentrations map[SampleType]Concentrations
	cachedCounts         *ParticleCounts
}

// DriverOption customizes a Driver.
type DriverOption func(*Driver)

// WithWarmup sets the warmup duration, clamped to [0, MaxWarmup].
func WithWarmup(warmup time.Duration) DriverOption {
	return func(d *Driver) {
		if warmup < 0 {
			warmup = 0
		}
		if warmup > MaxWarmup {
			warmup = MaxWarmup
		}
		d.warmup = warmup
	}
}

// WithDriverClock injects the clock used for warmup deadlines.
func WithDriverClock(clk clock.Clock) DriverOption {
	return func(d *Driver) { d.clk = clk }
}

// WithDriverLogger injects the driver's logger.
func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = logger }
}

// NewDriver wraps link. The sensor is assumed asleep until woken.
func NewDriver(link *Link, opts ...DriverOption) *Driver {
	driver := &Driver{
		link:                 link,
		clk:                  clock.New(),
		logger:               slog.Default(),
		warmup:               DefaultWarmup,
		state:                StateAsleep,
		cachedConcentrations: make(map[SampleType]Concentrations),
	}
	for _, opt := range opts {
		opt(driver)
	}
	return driver
}

// Wake issues the wake command and starts the warmup window. A no-op when
// the sensor is not asleep.
func (d *Driver) Wake() error {
	if d.state != StateAsleep {
		return nil
	}

	if err := d.link.WriteRegister(RegPowerMode, []byte{PowerWake}); err != nil {
		return fmt.Errorf("failed to wake sensor: %w", err)
	}

	d.state = StateWarmingUp
	d.warmupDeadline = d.clk.Now().Add(d.warmup)
	d.logger.Debug("sensor waking up", "warmup", d.warmup)
	return nil
}

// Sleep issues the sleep command and clears cached readings.
func (d *Driver) Sleep() error {
	if d.state == StateAsleep {
		return nil
	}

	if err := d.link.WriteRegister(RegPowerMode, []byte{PowerSleep}); err != nil {
		return fmt.Errorf("failed to sleep sensor: %w", err)
	}

	d.state = StateAsleep
	d.cachedConcentrations = make(map[SampleType]Concentrations)
	d.cachedCounts = nil
	d.logger.Debug("sensor entered sleep mode")
	return nil
}

// PollWarmup promotes warming-up to ready once the warmup deadline has
// passed, and reports whether the sensor is ready.
func (d *Driver) PollWarmup() bool {
	if d.state == StateWarmingUp && !d.clk.Now().Before(d.warmupDeadline) {
		d.state = StateReady
		d.logger.Debug("sensor warmup complete")
	}
	return d.state == StateReady
}

// State reports the current power state without side effects.
func (d *Driver) State() State {
	return d.state
}

// LastRead reports when the last successful read completed.
func (d *Driver) LastRead() time.Time {
	return d.lastRead
}

// FirmwareVersion reads the sensor's firmware version register. Valid in any
// awake state; used as a startup probe.
func (d *Driver) FirmwareVersion() (byte, error) {
	data, err := d.link.ReadRegister(RegVersion, lengthOneByte)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// ReadConcentrations reads the PM1.0/PM2.5/PM10 mass concentrations for the
// given sample type. During warmup it serves the last ready-state value if
// one exists. A communication failure leaves the power state unchanged.
func (d *Driver) ReadConcentrations(sample SampleType) (Concentrations, error) {
	if err := d.checkReadable(); err != nil {
		if cached, ok := d.cachedConcentrations[sample]; ok {
			return cached, nil
		}
		return Concentrations{}, err
	}

	registers := concentrationRegisters(sample)

	pm1, err := d.readQuantity(registers[0], "PM1.0 concentration", MaxMassConcentration)
	if err != nil {
		return Concentrations{}, err
	}
	pm25, err := d.readQuantity(registers[1], "PM2.5 concentration", MaxMassConcentration)
	if err != nil {
		return Concentrations{}, err
	}
	pm10, err := d.readQuantity(registers[2], "PM10 concentration", MaxMassConcentration)
	if err != nil {
		return Concentrations{}, err
	}

	result := Concentrations{PM1: pm1, PM25: pm25, PM10: pm10}
	d.cachedConcentrations[sample] = result
	d.lastRead = d.clk.Now()
	return result, nil
}

// ReadParticleCounts reads the six particle-size bins. During warmup it
// serves the last ready-state value if one exists.
func (d *Driver) ReadParticleCounts() (ParticleCounts, error) {
	if err := d.checkReadable(); err != nil {
		if d.cachedCounts != nil {
			return *d.cachedCounts, nil
		}
		return ParticleCounts{}, err
	}

	registers := []byte{RegCount03um, RegCount05um, RegCount1um, RegCount25um, RegCount5um, RegCount10um}
	values := make([]int, len(registers))
	for i, register := range registers {
		value, err := d.readCount(register)
		if err != nil {
			return ParticleCounts{}, err
		}
		values[i] = value
	}

	result := ParticleCounts{
		Count03um: values[0],
		Count05um: values[1],
		Count1um:  values[2],
		Count25um: values[3],
		Count5um:  values[4],
		Count10um: values[5],
	}
	d.cachedCounts = &result
	d.lastRead = d.clk.Now()
	return result, nil
}

func (d *Driver) checkReadable() error {
	switch d.state {
	case StateAsleep:
		return ErrSensorAsleep
	case StateWarmingUp:
		if d.PollWarmup() {
			return nil
		}
		return &NotWarmedUpError{Remaining: d.warmupDeadline.Sub(d.clk.Now())}
	default:
		return nil
	}
}

func (d *Driver) readQuantity(register byte, quantity string, maximum int) (int, error) {
	data, err := d.link.ReadRegister(register, lengthTwoBytes)
	if err != nil {
		return 0, err
	}

	value := int(binary.BigEndian.Uint16(data))
	if value > maximum {
		return 0, &ValidationError{Quantity: quantity, Value: value, Max: maximum}
	}
	return value, nil
}

func (d *Driver) readCount(register byte) (int, error) {
	data, err := d.link.ReadRegister(register, lengthTwoBytes)
	if err != nil {
		return 0, err
	}

	value := int(binary.BigEndian.Uint16(data))
	if value == glitchParticleCount {
		return 0, &ValidationError{Quantity: "particle count", Value: value, Max: glitchParticleCount - 1}
	}
	return value, nil
}

func concentrationRegisters(sample SampleType) [3]byte {
	if sample == SampleStandard {
		return [3]byte{RegPM1Standard, RegPM25Standard, RegPM10Standard}
	}
	return [3]byte{RegPM1Atmospheric, RegPM25Atmospheric, RegPM10Atmospheric}
}
