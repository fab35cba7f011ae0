// Package control exposes a running scheduler over the D-Bus session bus
// so the status and stop subcommands can talk to it from another process.
package control

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/tbojanin/airsampler/internal/scheduler"
)

const (
	busName       = "io.tbojanin.AirSampler"
	objectPath    = "/io/tbojanin/AirSampler"
	interfaceName = "io.tbojanin.AirSampler"
)

// Service publishes a scheduler's Status and Stop on the session bus.
type Service struct {
	sched *scheduler.Scheduler
	conn  *dbus.Conn
}

// NewService connects to the session bus, exports the control object and
// claims the well-known name. It fails when another sampler instance
// already owns the name.
func NewService(sched *scheduler.Scheduler) (*Service, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	service := &Service{
		sched: sched,
		conn:  conn,
	}

	err = conn.Export(service, dbus.ObjectPath(objectPath), interfaceName)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export control object: %w", err)
	}

	node := &introspect.Node{
		Name: objectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: interfaceName,
				Methods: []introspect.Method{
					{
						Name: "Status",
						Args: []introspect.Arg{
							{Name: "status", Direction: "out", Type: "a{sv}"},
						},
					},
					{
						Name: "Stop",
					},
					{
						Name: "TakeReading",
					},
				},
			},
		},
	}

	err = conn.Export(introspect.NewIntrospectable(node), dbus.ObjectPath(objectPath), "org.freedesktop.DBus.Introspectable")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", busName)
	}

	return service, nil
}

// Status returns the scheduler snapshot as a variant map.
func (s *Service) Status() (map[string]dbus.Variant, *dbus.Error) {
	status := s.sched.Status()

	return map[string]dbus.Variant{
		"state":                dbus.MakeVariant(string(status.State)),
		"config":               dbus.MakeVariant(status.ConfigName),
		"location":             dbus.MakeVariant(status.Location),
		"type":                 dbus.MakeVariant(status.SampleType),
		"powersave":            dbus.MakeVariant(status.PowerSave),
		"started_at":           dbus.MakeVariant(status.StartedAt.Unix()),
		"frequency_seconds":    dbus.MakeVariant(int64(status.Frequency.Seconds())),
		"cycles":               dbus.MakeVariant(status.Cycles),
		"consecutive_failures": dbus.MakeVariant(int32(status.ConsecutiveFailures)),
		"last_cycle":           dbus.MakeVariant(status.LastCycle.Unix()),
		"last_error":           dbus.MakeVariant(status.LastError),
	}, nil
}

// Stop shuts the scheduler down.
func (s *Service) Stop() *dbus.Error {
	if err := s.sched.Stop(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// TakeReading runs one sampling cycle immediately.
func (s *Service) TakeReading() *dbus.Error {
	if err := s.sched.SampleNow(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Close releases the bus name and closes the connection.
func (s *Service) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.ReleaseName(busName)
	return s.conn.Close()
}
