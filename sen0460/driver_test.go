package sen0460

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func be16(value uint16) []byte {
	return []byte{byte(value >> 8), byte(value)}
}

func newTestDriver(t *testing.T, bus Bus, warmup time.Duration) (*Driver, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	link := NewLink(bus, RetryPolicy{MaxAttempts: 1, Delay: 0}, WithClock(mock))
	driver := NewDriver(link, WithWarmup(warmup), WithDriverClock(mock))
	return driver, mock
}

func populatedBus() *flakyBus {
	bus := newFlakyBus(0)
	bus.data[RegPM1Atmospheric] = be16(8)
	bus.data[RegPM25Atmospheric] = be16(25)
	bus.data[RegPM10Atmospheric] = be16(40)
	bus.data[RegPM1Standard] = be16(7)
	bus.data[RegPM25Standard] = be16(21)
	bus.data[RegPM10Standard] = be16(33)
	bus.data[RegCount03um] = be16(1200)
	bus.data[RegCount05um] = be16(800)
	bus.data[RegCount1um] = be16(240)
	bus.data[RegCount25um] = be16(60)
	bus.data[RegCount5um] = be16(12)
	bus.data[RegCount10um] = be16(3)
	bus.data[RegVersion] = []byte{0x13}
	return bus
}

func TestDriverStateMachine(t *testing.T) {
	bus := populatedBus()
	driver, mock := newTestDriver(t, bus, 5*time.Second)

	assert.Equal(t, StateAsleep, driver.State())

	require.NoError(t, driver.Wake())
	assert.Equal(t, StateWarmingUp, driver.State())
	assert.Equal(t, []byte{PowerWake}, bus.written[RegPowerMode])

	assert.False(t, driver.PollWarmup())
	mock.Add(5 * time.Second)
	assert.True(t, driver.PollWarmup())
	assert.Equal(t, StateReady, driver.State())

	require.NoError(t, driver.Sleep())
	assert.Equal(t, StateAsleep, driver.State())
	assert.Equal(t, []byte{PowerSleep}, bus.written[RegPowerMode])
}

func TestWakeIsIdempotentWhileAwake(t *testing.T) {
	bus := populatedBus()
	driver, mock := newTestDriver(t, bus, time.Second)

	require.NoError(t, driver.Wake())
	writes := bus.writeCalls
	require.NoError(t, driver.Wake())
	assert.Equal(t, writes, bus.writeCalls, "second wake must not touch the bus")

	mock.Add(time.Second)
	require.NoError(t, driver.Wake())
	assert.Equal(t, writes, bus.writeCalls)
}

func TestReadWhileAsleepFails(t *testing.T) {
	driver, _ := newTestDriver(t, populatedBus(), time.Second)

	_, err := driver.ReadConcentrations(SampleAtmospheric)
	assert.ErrorIs(t, err, ErrSensorAsleep)

	_, err = driver.ReadParticleCounts()
	assert.ErrorIs(t, err, ErrSensorAsleep)
}

func TestReadDuringWarmupWithoutCacheFails(t *testing.T) {
	driver, _ := newTestDriver(t, populatedBus(), 5*time.Second)
	require.NoError(t, driver.Wake())

	_, err := driver.ReadConcentrations(SampleAtmospheric)

	var notWarm *NotWarmedUpError
	require.ErrorAs(t, err, &notWarm)
	assert.Equal(t, 5*time.Second, notWarm.Remaining)
}

func TestReadDuringWarmupServesCachedReadyValue(t *testing.T) {
	bus := populatedBus()
	driver, mock := newTestDriver(t, bus, time.Second)

	require.NoError(t, driver.Wake())
	mock.Add(time.Second)

	fresh, err := driver.ReadConcentrations(SampleAtmospheric)
	require.NoError(t, err)

	// Force the state machine back into warmup with the cache intact.
	driver.state = StateWarmingUp
	driver.warmupDeadline = mock.Now().Add(time.Minute)

	readsBefore := bus.readCalls
	cached, err := driver.ReadConcentrations(SampleAtmospheric)
	require.NoError(t, err)
	assert.Equal(t, fresh, cached)
	assert.Equal(t, readsBefore, bus.readCalls, "cached value must not touch the bus")
}

func TestSleepClearsCachedReadings(t *testing.T) {
	bus := populatedBus()
	driver, mock := newTestDriver(t, bus, time.Second)

	require.NoError(t, driver.Wake())
	mock.Add(time.Second)
	_, err := driver.ReadConcentrations(SampleAtmospheric)
	require.NoError(t, err)

	require.NoError(t, driver.Sleep())
	require.NoError(t, driver.Wake())

	_, err = driver.ReadConcentrations(SampleAtmospheric)
	var notWarm *NotWarmedUpError
	require.ErrorAs(t, err, &notWarm, "sleep must clear the cache")
}

func TestReadConcentrationsBySampleType(t *testing.T) {
	bus := populatedBus()
	driver, mock := newTestDriver(t, bus, 0)
	require.NoError(t, driver.Wake())
	mock.Add(time.Millisecond)

	atmospheric, err := driver.ReadConcentrations(SampleAtmospheric)
	require.NoError(t, err)
	assert.Equal(t, Concentrations{PM1: 8, PM25: 25, PM10: 40}, atmospheric)

	standard, err := driver.ReadConcentrations(SampleStandard)
	require.NoError(t, err)
	assert.Equal(t, Concentrations{PM1: 7, PM25: 21, PM10: 33}, standard)
}

func TestReadParticleCounts(t *testing.T) {
	driver, mock := newTestDriver(t, populatedBus(), 0)
	require.NoError(t, driver.Wake())
	mock.Add(time.Millisecond)

	counts, err := driver.ReadParticleCounts()
	require.NoError(t, err)
	assert.Equal(t, ParticleCounts{
		Count03um: 1200,
		Count05um: 800,
		Count1um:  240,
		Count25um: 60,
		Count5um:  12,
		Count10um: 3,
	}, counts)
}

func TestConcentrationCeilingRejected(t *testing.T) {
	bus := populatedBus()
	bus.data[RegPM25Atmospheric] = be16(0xFFFF)
	driver, mock := newTestDriver(t, bus, 0)
	require.NoError(t, driver.Wake())
	mock.Add(time.Millisecond)

	_, err := driver.ReadConcentrations(SampleAtmospheric)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, 0xFFFF, validation.Value)
	assert.Equal(t, MaxMassConcentration, validation.Max)
}

func TestParticleCountGlitchRejected(t *testing.T) {
	bus := populatedBus()
	bus.data[RegCount05um] = be16(0xFFFF)
	driver, mock := newTestDriver(t, bus, 0)
	require.NoError(t, driver.Wake())
	mock.Add(time.Millisecond)

	_, err := driver.ReadParticleCounts()

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestCommunicationFailureKeepsPowerState(t *testing.T) {
	bus := populatedBus()
	driver, mock := newTestDriver(t, bus, 0)
	require.NoError(t, driver.Wake())
	mock.Add(time.Millisecond)
	require.True(t, driver.PollWarmup())

	bus.failuresLeft = 1
	bus.failWith = errors.New("bus timeout")
	_, err := driver.ReadConcentrations(SampleAtmospheric)

	require.Error(t, err)
	assert.Equal(t, StateReady, driver.State())
}

func TestWarmupClampedToMaximum(t *testing.T) {
	bus := populatedBus()
	mock := clock.NewMock()
	link := NewLink(bus, RetryPolicy{MaxAttempts: 1}, WithClock(mock))
	driver := NewDriver(link, WithWarmup(5*time.Minute), WithDriverClock(mock))

	require.NoError(t, driver.Wake())
	mock.Add(MaxWarmup)
	assert.True(t, driver.PollWarmup())
}

func TestFirmwareVersionProbe(t *testing.T) {
	driver, _ := newTestDriver(t, populatedBus(), 0)

	version, err := driver.FirmwareVersion()
	require.NoError(t, err)
	assert.Equal(t, byte(0x13), version)
}
