package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Bounds of the schedule grammar. Frequencies and retention windows outside
// these ranges are rejected at parse time.
const (
	MinFrequency = 5 * time.Second
	MaxFrequency = 4 * time.Hour
	MinRetention = 10 * time.Second
	MaxRetention = 90 * 24 * time.Hour
)

// Sample type labels stored on configs and readings.
const (
	SampleTypeStandard    = "standard"
	SampleTypeAtmospheric = "atmospheric"
)

// ScheduleConfig is a stored sampling schedule. Configs are created and
// edited through the store's CRUD surface and consumed read-only by the
// scheduler at start time.
type ScheduleConfig struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	Location string `gorm:"not null" json:"location"`
	Type     string `gorm:"not null" json:"type"`

	FrequencyLabel   string  `gorm:"not null" json:"frequency"`
	FrequencySeconds int     `gorm:"not null" json:"frequency_seconds"`
	RetentionLabel   *string `json:"retention"`
	RetentionSeconds *int    `json:"retention_seconds"`

	Enabled   bool      `gorm:"not null;default:true" json:"enabled"`
	PowerSave bool      `gorm:"column:powersave;not null;default:false" json:"powersave"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ScheduleConfig) TableName() string {
	return "schedule_configs"
}

// Frequency returns the sampling interval.
func (c *ScheduleConfig) Frequency() time.Duration {
	return time.Duration(c.FrequencySeconds) * time.Second
}

// Retention returns the retention window, or zero when readings are kept
// forever.
func (c *ScheduleConfig) Retention() time.Duration {
	if c.RetentionSeconds == nil {
		return 0
	}
	return time.Duration(*c.RetentionSeconds) * time.Second
}

// SetFrequency parses and validates a frequency label onto the config.
func (c *ScheduleConfig) SetFrequency(label string) error {
	frequency, err := ParseFrequency(label)
	if err != nil {
		return err
	}
	c.FrequencyLabel = strings.ToLower(strings.TrimSpace(label))
	c.FrequencySeconds = int(frequency / time.Second)
	return nil
}

// SetRetention parses and validates a retention label onto the config. The
// "none" sentinel clears the window.
func (c *ScheduleConfig) SetRetention(label string) error {
	retention, err := ParseRetention(label)
	if err != nil {
		return err
	}
	if retention == 0 {
		c.RetentionLabel = nil
		c.RetentionSeconds = nil
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(label))
	seconds := int(retention / time.Second)
	c.RetentionLabel = &normalized
	c.RetentionSeconds = &seconds
	return nil
}

// SetType normalizes and validates a sample type onto the config.
func (c *ScheduleConfig) SetType(value string) error {
	sampleType, err := NormalizeSampleType(value)
	if err != nil {
		return err
	}
	c.Type = sampleType
	return nil
}

var durationPattern = regexp.MustCompile(`^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// retention sentinels meaning "keep forever".
var noRetentionValues = map[string]bool{
	"none":     true,
	"off":      true,
	"infinite": true,
}

// ParseFrequency parses a sampling interval like "30s", "5m" or "1h30m" and
// enforces the [5s, 4h] bounds.
func ParseFrequency(value string) (time.Duration, error) {
	frequency, err := parseDuration(value)
	if err != nil {
		return 0, err
	}
	if frequency < MinFrequency || frequency > MaxFrequency {
		return 0, fmt.Errorf("frequency %q out of range: must be between %s and %s",
			value, FormatDuration(MinFrequency), FormatDuration(MaxFrequency))
	}
	return frequency, nil
}

// ParseRetention parses a retention window like "6h", "7d" or the "none"
// sentinel (also "off" and "infinite"), enforcing the [10s, 90d] bounds.
// Zero means keep forever.
func ParseRetention(value string) (time.Duration, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" || noRetentionValues[key] {
		return 0, nil
	}

	retention, err := parseDuration(value)
	if err != nil {
		return 0, err
	}
	if retention < MinRetention || retention > MaxRetention {
		return 0, fmt.Errorf("retention %q out of range: must be between %s and %s, or \"none\"",
			value, FormatDuration(MinRetention), FormatDuration(MaxRetention))
	}
	return retention, nil
}

// NormalizeSampleType maps "standard"/"std"/"atmospheric"/"atm" onto the
// canonical labels.
func NormalizeSampleType(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "standard", "std":
		return SampleTypeStandard, nil
	case "atmospheric", "atm":
		return SampleTypeAtmospheric, nil
	default:
		return "", fmt.Errorf("sample type %q must be %q or %q", value, SampleTypeStandard, SampleTypeAtmospheric)
	}
}

// FormatDuration renders a duration in the schedule grammar, e.g. "1h2m1s"
// or "90d".
func FormatDuration(duration time.Duration) string {
	seconds := int(duration / time.Second)
	if seconds <= 0 {
		return "0s"
	}

	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	if secs > 0 {
		fmt.Fprintf(&b, "%ds", secs)
	}
	return b.String()
}

func parseDuration(value string) (time.Duration, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" {
		return 0, errors.New("duration cannot be empty")
	}

	match := durationPattern.FindStringSubmatch(key)
	if match == nil {
		return 0, fmt.Errorf("invalid duration %q: use a form like \"30s\", \"5m\", \"1h2m1s\" or \"7d\"", value)
	}

	var total time.Duration
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	matched := false
	for i, unit := range units {
		group := match[i+1]
		if group == "" {
			continue
		}
		matched = true
		count, err := strconv.Atoi(group)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", value, err)
		}
		total += time.Duration(count) * unit
	}

	if !matched || total == 0 {
		return 0, fmt.Errorf("invalid duration %q: must be non-zero", value)
	}
	return total, nil
}
