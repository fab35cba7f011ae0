package sen0460

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBus fails a configurable number of attempts per register before
// succeeding, and records every transaction it sees.
type flakyBus struct {
	failuresLeft int
	failWith     error
	data         map[byte][]byte
	readCalls    int
	writeCalls   int
	written      map[byte][]byte
}

func newFlakyBus(failures int) *flakyBus {
	return &flakyBus{
		failuresLeft: failures,
		failWith:     errors.New("i2c: no acknowledge"),
		data:         map[byte][]byte{},
		written:      map[byte][]byte{},
	}
}

func (b *flakyBus) ReadRegister(register byte, length int) ([]byte, error) {
	b.readCalls++
	if b.failuresLeft > 0 {
		b.failuresLeft--
		return nil, b.failWith
	}
	if data, ok := b.data[register]; ok {
		return data, nil
	}
	return make([]byte, length), nil
}

func (b *flakyBus) WriteRegister(register byte, payload []byte) error {
	b.writeCalls++
	if b.failuresLeft > 0 {
		b.failuresLeft--
		return b.failWith
	}
	b.written[register] = append([]byte(nil), payload...)
	return nil
}

func (b *flakyBus) Close() error { return nil }

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
}

func TestReadSucceedsOnThirdAttempt(t *testing.T) {
	bus := newFlakyBus(2)
	bus.data[RegPM25Atmospheric] = []byte{0x00, 0x2A}
	link := NewLink(bus, testPolicy())

	data, err := link.ReadRegister(RegPM25Atmospheric, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x2A}, data)
	assert.Equal(t, 3, bus.readCalls)

	stats := link.Stats()
	assert.Equal(t, 3, stats.LastAttempts)
	assert.Equal(t, uint64(1), stats.Reads)
	assert.Equal(t, uint64(0), stats.Failures)
}

func TestReadFailsAfterExhaustingAttempts(t *testing.T) {
	bus := newFlakyBus(3)
	link := NewLink(bus, testPolicy())

	_, err := link.ReadRegister(RegPM25Atmospheric, 2)

	var commErr *CommunicationError
	require.ErrorAs(t, err, &commErr)
	assert.Equal(t, 3, commErr.Attempts)
	assert.Equal(t, RegPM25Atmospheric, commErr.Register)
	assert.Equal(t, "read", commErr.Op)
	assert.ErrorContains(t, commErr.Err, "no acknowledge")
	assert.Equal(t, 3, bus.readCalls)

	stats := link.Stats()
	assert.Equal(t, uint64(1), stats.Failures)
	assert.Contains(t, stats.LastError, "no acknowledge")
}

func TestWriteRetriesLikeRead(t *testing.T) {
	bus := newFlakyBus(1)
	link := NewLink(bus, testPolicy())

	err := link.WriteRegister(RegPowerMode, []byte{PowerSleep})
	require.NoError(t, err)
	assert.Equal(t, 2, bus.writeCalls)
	assert.Equal(t, []byte{PowerSleep}, bus.written[RegPowerMode])
	assert.Equal(t, uint64(1), link.Stats().Writes)
}

func TestInvalidRegisterFailsWithoutTouchingBus(t *testing.T) {
	bus := newFlakyBus(0)
	link := NewLink(bus, testPolicy())

	_, err := link.ReadRegister(0x42, 2)

	var invalid *InvalidRegisterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, byte(0x42), invalid.Register)
	assert.Equal(t, 0, bus.readCalls)
}

func TestFatalBusErrorIsNotRetried(t *testing.T) {
	bus := newFlakyBus(3)
	bus.failWith = MarkFatal(errors.New("bus handle gone"))
	link := NewLink(bus, testPolicy())

	_, err := link.ReadRegister(RegPM25Atmospheric, 2)

	require.Error(t, err)
	var commErr *CommunicationError
	assert.False(t, errors.As(err, &commErr), "fatal errors must not be wrapped as retries-exhausted")
	assert.Equal(t, 1, bus.readCalls)
}

func TestSingleAttemptPolicyDoesNotRetry(t *testing.T) {
	bus := newFlakyBus(1)
	link := NewLink(bus, RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond})

	_, err := link.ReadRegister(RegPM25Atmospheric, 2)

	var commErr *CommunicationError
	require.ErrorAs(t, err, &commErr)
	assert.Equal(t, 1, commErr.Attempts)
	assert.Equal(t, 1, bus.readCalls)
}
