package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// ErrNoScheduler reports that no sampler instance owns the control name.
var ErrNoScheduler = errors.New("no running scheduler found on the session bus")

// RemoteStatus is the status snapshot fetched from a running instance.
type RemoteStatus struct {
	State               string
	ConfigName          string
	Location            string
	SampleType          string
	PowerSave           bool
	StartedAt           time.Time
	Frequency           time.Duration
	Cycles              uint64
	ConsecutiveFailures int
	LastCycle           time.Time
	LastError           string
}

// Client talks to a running sampler over the session bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

func NewClient() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	var owner string
	err = conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, busName).Store(&owner)
	if err != nil {
		conn.Close()
		return nil, ErrNoScheduler
	}

	return &Client{
		conn: conn,
		obj:  conn.Object(busName, dbus.ObjectPath(objectPath)),
	}, nil
}

// Status fetches the remote scheduler's snapshot.
func (c *Client) Status() (RemoteStatus, error) {
	var raw map[string]dbus.Variant
	if err := c.obj.Call(interfaceName+".Status", 0).Store(&raw); err != nil {
		return RemoteStatus{}, fmt.Errorf("status call failed: %w", err)
	}

	status := RemoteStatus{}
	if v, ok := raw["state"]; ok {
		v.Store(&status.State)
	}
	if v, ok := raw["config"]; ok {
		v.Store(&status.ConfigName)
	}
	if v, ok := raw["location"]; ok {
		v.Store(&status.Location)
	}
	if v, ok := raw["type"]; ok {
		v.Store(&status.SampleType)
	}
	if v, ok := raw["powersave"]; ok {
		v.Store(&status.PowerSave)
	}
	if v, ok := raw["started_at"]; ok {
		var unix int64
		if v.Store(&unix) == nil && unix > 0 {
			status.StartedAt = time.Unix(unix, 0)
		}
	}
	if v, ok := raw["frequency_seconds"]; ok {
		var seconds int64
		if v.Store(&seconds) == nil {
			status.Frequency = time.Duration(seconds) * time.Second
		}
	}
	if v, ok := raw["cycles"]; ok {
		v.Store(&status.Cycles)
	}
	if v, ok := raw["consecutive_failures"]; ok {
		var failures int32
		if v.Store(&failures) == nil {
			status.ConsecutiveFailures = int(failures)
		}
	}
	if v, ok := raw["last_cycle"]; ok {
		var unix int64
		if v.Store(&unix) == nil && unix > 0 {
			status.LastCycle = time.Unix(unix, 0)
		}
	}
	if v, ok := raw["last_error"]; ok {
		v.Store(&status.LastError)
	}
	return status, nil
}

// TakeReading asks the remote scheduler for an immediate sample.
func (c *Client) TakeReading() error {
	if err := c.obj.Call(interfaceName+".TakeReading", 0).Err; err != nil {
		return fmt.Errorf("take-reading call failed: %w", err)
	}
	return nil
}

// Stop asks the remote scheduler to shut down.
func (c *Client) Stop() error {
	if err := c.obj.Call(interfaceName+".Stop", 0).Err; err != nil {
		return fmt.Errorf("stop call failed: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
