package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type Settings struct {
	I2CBus                int    `json:"i2c_bus"`
	I2CAddress            byte   `json:"i2c_address"`
	MaxRetries            int    `json:"max_retries"`
	RetryDelayMs          int    `json:"retry_delay_ms"`
	WarmupSeconds         int    `json:"warmup_seconds"`
	StartupTimeoutSeconds int    `json:"startup_timeout_seconds"`
	MetricsAddr           string `json:"metrics_addr"`
	LockPath              string `json:"lock_path"`
}

func DefaultSettingsPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func LoadOrInitializeSettingsFromDefaultLocation() (bool, *Settings) {
	return LoadOrInitializeSettings(DefaultSettingsPath())
}

func LoadOrInitializeSettings(path string) (bool, *Settings) {
	if settings, err := LoadSettings(path); err == nil {
		return false, settings
	}

	return true, DefaultSettings()
}

func DefaultSettings() *Settings {
	return &Settings{
		I2CBus:                1,
		I2CAddress:            0x19,
		MaxRetries:            3,
		RetryDelayMs:          100,
		WarmupSeconds:         5,
		StartupTimeoutSeconds: 30,
		MetricsAddr:           "",
		LockPath:              filepath.Join(DataDir(), "scheduler.lock"),
	}
}

func LoadSettings(path string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (s *Settings) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

func (s *Settings) Warmup() time.Duration {
	return time.Duration(s.WarmupSeconds) * time.Second
}

func (s *Settings) StartupTimeout() time.Duration {
	return time.Duration(s.StartupTimeoutSeconds) * time.Second
}
