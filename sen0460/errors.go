package sen0460

import (
	"errors"
	"fmt"
	"time"
)

// ErrSensorAsleep is returned when a reading is requested while the sensor is
// in sleep mode.
var ErrSensorAsleep = errors.New("sensor is asleep")

// CommunicationError reports a register transaction that failed after
// exhausting its retry budget.
type CommunicationError struct {
	Op       string
	Register byte
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("%s register 0x%02X failed after %d attempt(s) in %s: %v",
		e.Op, e.Register, e.Attempts, e.Elapsed, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// InvalidRegisterError reports a transaction against a register the sensor
// does not expose. This is fatal and never retried.
type InvalidRegisterError struct {
	Register byte
}

func (e *InvalidRegisterError) Error() string {
	return fmt.Sprintf("invalid register 0x%02X", e.Register)
}

// ValidationError reports a decoded value outside the sane range for its
// quantity, typically caused by an all-0xFF bus glitch.
type ValidationError struct {
	Quantity string
	Value    int
	Max      int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s reading %d exceeds sane maximum %d", e.Quantity, e.Value, e.Max)
}

// NotWarmedUpError reports a reading requested during warmup before any
// cached value exists.
type NotWarmedUpError struct {
	Remaining time.Duration
}

func (e *NotWarmedUpError) Error() string {
	return fmt.Sprintf("sensor warming up, ready in %s", e.Remaining)
}

// fatalError tags a bus failure that retrying cannot fix, such as the bus
// device itself failing to open.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// MarkFatal wraps err so the link raises it immediately instead of retrying.
// Bus implementations use it for handle-open failures.
func MarkFatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func isFatal(err error) bool {
	var fatal *fatalError
	if errors.As(err, &fatal) {
		return true
	}
	var invalid *InvalidRegisterError
	return errors.As(err, &invalid)
}
