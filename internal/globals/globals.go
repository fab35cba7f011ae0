package globals

import (
	"log/slog"
	"os"
	"sync"

	"github.com/tbojanin/airsampler/internal/config"
	"github.com/tbojanin/airsampler/internal/database"
)

var (
	// Global instances
	Settings *config.Settings
	Logger   *slog.Logger

	// Ensure initialization happens only once
	initOnce sync.Once
	initErr  error
)

// Initialize sets up global instances exactly once
func Initialize(verbose bool) error {
	initOnce.Do(func() {
		setupLogger(verbose)

		Logger.Debug("Initializing global instances")

		created, settings := config.LoadOrInitializeSettingsFromDefaultLocation()
		Settings = settings
		if created {
			Logger.Debug("Created new settings file")
			if err := Settings.Save(); err != nil {
				Logger.Error("Failed to save new settings", "error", err)
			}
		} else {
			Logger.Debug("Loaded existing settings")
		}

		if err := database.Init(); err != nil {
			initErr = err
			return
		}
		Logger.Debug("Database initialized")
	})
	return initErr
}

// setupLogger configures the global logger
func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	// Set as default logger
	slog.SetDefault(Logger)
}

// MustBeInitialized panics if globals haven't been initialized
func MustBeInitialized() {
	if Settings == nil || Logger == nil {
		panic("globals not initialized - call globals.Initialize() first")
	}
}
