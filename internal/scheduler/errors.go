package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyRunning reports that a scheduler instance already holds the
// single-instance lock, either this one or another process.
var ErrAlreadyRunning = errors.New("a scheduler is already running")

// ErrNotRunning reports a stop request against a stopped scheduler.
var ErrNotRunning = errors.New("scheduler is not running")

// ErrConfigDisabled reports an attempt to start a disabled config.
var ErrConfigDisabled = errors.New("schedule config is disabled")

// StartupTimeoutError reports that the sensor never became ready within
// the startup window.
type StartupTimeoutError struct {
	Timeout time.Duration
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("sensor not ready after %s", e.Timeout)
}

// ConfigNotFoundError reports an unresolvable config reference.
type ConfigNotFoundError struct {
	Ref string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("no schedule config matches %q", e.Ref)
}
