package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tbojanin/airsampler/internal/control"
	"github.com/tbojanin/airsampler/internal/database"
	"github.com/tbojanin/airsampler/internal/globals"
	"github.com/tbojanin/airsampler/internal/lock"
	"github.com/tbojanin/airsampler/internal/models"
	"github.com/tbojanin/airsampler/internal/scheduler"
	"github.com/tbojanin/airsampler/internal/store"
	"github.com/tbojanin/airsampler/sen0460"
)

var (
	runConfigRef   string
	runLocation    string
	runType        string
	runFrequency   string
	runRetention   string
	runPowerSave   bool
	runMetricsAddr string
	runBus         int
	runAddress     uint8
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the sampling scheduler",
	Long: `Start the sampling scheduler in the foreground.

The schedule comes either from a stored config (--config, by name or id) or
from ad-hoc flags. The scheduler runs until interrupted or until a stop
request arrives over D-Bus.

Examples:
  airsampler run --config bedroom
  airsampler run --location "living room" --frequency 30s --retention 7d`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigRef, "config", "c", "", "Stored schedule config to run (name or id)")
	runCmd.Flags().StringVarP(&runLocation, "location", "l", "", "Location label for ad-hoc sampling")
	runCmd.Flags().StringVarP(&runType, "type", "t", models.SampleTypeAtmospheric, "Sample type: standard or atmospheric")
	runCmd.Flags().StringVarP(&runFrequency, "frequency", "f", "1m", "Sampling interval, e.g. 30s, 5m, 1h")
	runCmd.Flags().StringVarP(&runRetention, "retention", "r", "none", "Retention window, e.g. 7d, or none")
	runCmd.Flags().BoolVar(&runPowerSave, "powersave", false, "Sleep the sensor between samples")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address, e.g. :9100")
	runCmd.Flags().IntVar(&runBus, "bus", 0, "I2C bus number (overrides settings)")
	runCmd.Flags().Uint8Var(&runAddress, "address", 0, "I2C device address (overrides settings)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := globals.Initialize(verbose); err != nil {
		return err
	}
	logger := globals.Logger
	settings := globals.Settings
	st := store.New(database.DB)

	config, err := resolveRunConfig(st)
	if err != nil {
		return err
	}

	bus := settings.I2CBus
	if runBus != 0 {
		bus = runBus
	}
	address := settings.I2CAddress
	if runAddress != 0 {
		address = runAddress
	}

	i2cBus, err := sen0460.OpenI2C(bus, address)
	if err != nil {
		return fmt.Errorf("failed to open sensor: %w", err)
	}

	link := sen0460.NewLink(i2cBus, sen0460.RetryPolicy{
		MaxAttempts: settings.MaxRetries,
		Delay:       settings.RetryDelay(),
	}, sen0460.WithLinkLogger(logger))
	defer link.Close()

	registerLinkMetrics(link)

	driver := sen0460.NewDriver(link,
		sen0460.WithWarmup(settings.Warmup()),
		sen0460.WithDriverLogger(logger))

	if firmware, err := driver.FirmwareVersion(); err == nil {
		logger.Info("sensor detected", "bus", bus, "address", fmt.Sprintf("0x%02x", address), "firmware", firmware)
	} else {
		logger.Warn("could not read sensor firmware version", "error", err)
	}

	guard := lock.NewFileLock(settings.LockPath)
	sched := scheduler.New(st, driver, guard,
		scheduler.WithLogger(logger),
		scheduler.WithStartupTimeout(settings.StartupTimeout()))

	if err := sched.Start(config); err != nil {
		if err == scheduler.ErrAlreadyRunning {
			if pid, ok := guard.HolderPID(); ok {
				return fmt.Errorf("%w (pid %d holds %s)", err, pid, settings.LockPath)
			}
		}
		return err
	}

	service, err := control.NewService(sched)
	if err != nil {
		logger.Warn("control interface unavailable", "error", err)
	} else {
		defer service.Close()
	}

	metricsAddr := runMetricsAddr
	if metricsAddr == "" {
		metricsAddr = settings.MetricsAddr
	}
	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
		logger.Info("metrics exposed", "addr", metricsAddr)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		// Coarse poll; a remote stop only needs to be noticed, not
		// reacted to instantly.
		for sched.Status().State != scheduler.StateStopped {
			time.Sleep(500 * time.Millisecond)
		}
		close(stopped)
	}()

	select {
	case sig := <-signals:
		logger.Info("received signal, shutting down", "signal", sig)
		if err := sched.Stop(); err != nil && err != scheduler.ErrNotRunning {
			return err
		}
	case <-stopped:
		// Stopped remotely or failed to start.
	}

	if status := sched.Status(); status.LastError != "" && status.Cycles == 0 {
		return fmt.Errorf("scheduler stopped: %s", status.LastError)
	}
	return nil
}

func resolveRunConfig(st store.Store) (*models.ScheduleConfig, error) {
	if runConfigRef != "" {
		return scheduler.ResolveConfig(st, runConfigRef)
	}

	if runLocation == "" {
		return nil, fmt.Errorf("either --config or --location is required")
	}

	config := &models.ScheduleConfig{
		Name:      "ad-hoc",
		Location:  runLocation,
		Enabled:   true,
		PowerSave: runPowerSave,
	}
	if err := config.SetType(runType); err != nil {
		return nil, err
	}
	if err := config.SetFrequency(runFrequency); err != nil {
		return nil, err
	}
	if err := config.SetRetention(runRetention); err != nil {
		return nil, err
	}
	return config, nil
}

// registerLinkMetrics exposes the link's transaction counters as gauges.
func registerLinkMetrics(link *sen0460.Link) {
	for _, gauge := range []struct {
		name  string
		help  string
		value func(sen0460.LinkStats) float64
	}{
		{"airsampler_link_reads_total", "Register reads completed by the device link.",
			func(s sen0460.LinkStats) float64 { return float64(s.Reads) }},
		{"airsampler_link_writes_total", "Register writes completed by the device link.",
			func(s sen0460.LinkStats) float64 { return float64(s.Writes) }},
		{"airsampler_link_failures_total", "Register transactions that exhausted their retries.",
			func(s sen0460.LinkStats) float64 { return float64(s.Failures) }},
		{"airsampler_link_last_attempts", "Attempts used by the most recent transaction.",
			func(s sen0460.LinkStats) float64 { return float64(s.LastAttempts) }},
	} {
		gauge := gauge
		prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: gauge.name,
			Help: gauge.help,
		}, func() float64 {
			return gauge.value(link.Stats())
		}))
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		globals.Logger.Error("metrics server failed", "error", err)
	}
}
