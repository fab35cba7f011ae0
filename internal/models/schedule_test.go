package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbojanin/airsampler/internal/models"
)

func TestParseFrequency(t *testing.T) {
	cases := map[string]time.Duration{
		"5s":     5 * time.Second,
		"30s":    30 * time.Second,
		"1m":     time.Minute,
		"1h2m1s": time.Hour + 2*time.Minute + time.Second,
		"4h":     4 * time.Hour,
		" 15M ":  15 * time.Minute,
	}

	for input, want := range cases {
		got, err := models.ParseFrequency(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}
}

func TestParseFrequencyRejectsOutOfBounds(t *testing.T) {
	for _, input := range []string{"4s", "5h", "0s", "", "soon", "10x", "90d"} {
		_, err := models.ParseFrequency(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestParseRetention(t *testing.T) {
	got, err := models.ParseRetention("90d")
	require.NoError(t, err)
	assert.Equal(t, 90*24*time.Hour, got)

	got, err = models.ParseRetention("6h")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, got)

	got, err = models.ParseRetention("10s")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, got)
}

func TestParseRetentionSentinels(t *testing.T) {
	for _, input := range []string{"none", "off", "infinite", "", "None"} {
		got, err := models.ParseRetention(input)
		require.NoError(t, err, "input %q", input)
		assert.Zero(t, got, "input %q", input)
	}
}

func TestParseRetentionRejectsOutOfBounds(t *testing.T) {
	for _, input := range []string{"9s", "91d", "forever", "1", "-1h"} {
		_, err := models.ParseRetention(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestNormalizeSampleType(t *testing.T) {
	cases := map[string]string{
		"standard":    models.SampleTypeStandard,
		"std":         models.SampleTypeStandard,
		"STD":         models.SampleTypeStandard,
		"atmospheric": models.SampleTypeAtmospheric,
		"atm":         models.SampleTypeAtmospheric,
	}
	for input, want := range cases {
		got, err := models.NormalizeSampleType(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := models.NormalizeSampleType("airborne")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1h2m1s", models.FormatDuration(time.Hour+2*time.Minute+time.Second))
	assert.Equal(t, "90d", models.FormatDuration(90*24*time.Hour))
	assert.Equal(t, "30s", models.FormatDuration(30*time.Second))
	assert.Equal(t, "0s", models.FormatDuration(0))
}

func TestScheduleConfigSetters(t *testing.T) {
	var config models.ScheduleConfig

	require.NoError(t, config.SetFrequency("30s"))
	assert.Equal(t, "30s", config.FrequencyLabel)
	assert.Equal(t, 30, config.FrequencySeconds)
	assert.Equal(t, 30*time.Second, config.Frequency())

	require.NoError(t, config.SetRetention("1d"))
	require.NotNil(t, config.RetentionSeconds)
	assert.Equal(t, 86400, *config.RetentionSeconds)
	assert.Equal(t, 24*time.Hour, config.Retention())

	require.NoError(t, config.SetRetention("none"))
	assert.Nil(t, config.RetentionLabel)
	assert.Zero(t, config.Retention())

	require.NoError(t, config.SetType("atm"))
	assert.Equal(t, models.SampleTypeAtmospheric, config.Type)
}
