package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbojanin/airsampler/internal/database"
	"github.com/tbojanin/airsampler/internal/models"
	"github.com/tbojanin/airsampler/internal/store"
)

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := database.SetupDatabase(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	return store.New(db)
}

func sampleReading(timestamp time.Time, location string) *models.Reading {
	return &models.Reading{
		Timestamp:     timestamp,
		Location:      location,
		Type:          models.SampleTypeAtmospheric,
		PM1:           8,
		PM25:          25,
		PM10:          40,
		Particles03um: 1200,
		Particles05um: 800,
		Particles1um:  240,
		Particles25um: 60,
		Particles5um:  12,
		Particles10um: 3,
	}
}

func TestAppendReadingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	timestamp := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	want := sampleReading(timestamp, "living room")

	id, err := s.AppendReading(want)
	require.NoError(t, err)
	assert.NotZero(t, id)

	readings, err := s.ListReadings(store.ReadingQuery{})
	require.NoError(t, err)
	require.Len(t, readings, 1)

	got := readings[0]
	assert.True(t, timestamp.Equal(got.Timestamp), "timestamp mismatch: %v", got.Timestamp)
	assert.Equal(t, want.Location, got.Location)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.PM1, got.PM1)
	assert.Equal(t, want.PM25, got.PM25)
	assert.Equal(t, want.PM10, got.PM10)
	assert.Equal(t, want.Particles03um, got.Particles03um)
	assert.Equal(t, want.Particles05um, got.Particles05um)
	assert.Equal(t, want.Particles1um, got.Particles1um)
	assert.Equal(t, want.Particles25um, got.Particles25um)
	assert.Equal(t, want.Particles5um, got.Particles5um)
	assert.Equal(t, want.Particles10um, got.Particles10um)
}

func TestPruneReadingsDeletesOnlyBeforeCutoff(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := s.AppendReading(sampleReading(base.Add(time.Duration(i)*time.Hour), "attic"))
		require.NoError(t, err)
	}

	cutoff := base.Add(2 * time.Hour)
	deleted, err := s.PruneReadings(cutoff, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := s.ListReadings(store.ReadingQuery{})
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	for _, reading := range remaining {
		assert.False(t, reading.Timestamp.Before(cutoff),
			"reading at %v should have survived", reading.Timestamp)
	}
}

func TestPruneReadingsScopedToLocation(t *testing.T) {
	s := newTestStore(t)
	old := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.AppendReading(sampleReading(old, "attic"))
	require.NoError(t, err)
	_, err = s.AppendReading(sampleReading(old, "garage"))
	require.NoError(t, err)

	deleted, err := s.PruneReadings(old.Add(time.Hour), "attic")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := s.ListReadings(store.ReadingQuery{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "garage", remaining[0].Location)
}

func TestListReadingsFilters(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	older := sampleReading(base, "attic")
	older.Type = models.SampleTypeStandard
	_, err := s.AppendReading(older)
	require.NoError(t, err)
	_, err = s.AppendReading(sampleReading(base.Add(time.Hour), "attic"))
	require.NoError(t, err)
	_, err = s.AppendReading(sampleReading(base.Add(2*time.Hour), "garage"))
	require.NoError(t, err)

	byLocation, err := s.ListReadings(store.ReadingQuery{Location: "attic"})
	require.NoError(t, err)
	assert.Len(t, byLocation, 2)

	byType, err := s.ListReadings(store.ReadingQuery{Type: models.SampleTypeStandard})
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	since := base.Add(30 * time.Minute)
	recent, err := s.ListReadings(store.ReadingQuery{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := s.ListReadings(store.ReadingQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "garage", limited[0].Location, "newest reading first")
}

func newConfig(name string) *models.ScheduleConfig {
	config := &models.ScheduleConfig{
		Name:     name,
		Location: "living room",
		Enabled:  true,
	}
	if err := config.SetFrequency("30s"); err != nil {
		panic(err)
	}
	if err := config.SetRetention("7d"); err != nil {
		panic(err)
	}
	if err := config.SetType("atmospheric"); err != nil {
		panic(err)
	}
	return config
}

func TestConfigCRUD(t *testing.T) {
	s := newTestStore(t)

	config := newConfig("bedroom-30s")
	require.NoError(t, s.CreateConfig(config))
	require.NotZero(t, config.ID)

	byName, err := s.GetConfigByName("bedroom-30s")
	require.NoError(t, err)
	assert.Equal(t, config.ID, byName.ID)
	assert.Equal(t, 30, byName.FrequencySeconds)
	require.NotNil(t, byName.RetentionSeconds)
	assert.Equal(t, 7*24*3600, *byName.RetentionSeconds)

	byID, err := s.GetConfigByID(config.ID)
	require.NoError(t, err)
	assert.Equal(t, "bedroom-30s", byID.Name)

	byID.Location = "bedroom"
	byID.PowerSave = true
	require.NoError(t, s.UpdateConfig(byID))

	updated, err := s.GetConfigByID(config.ID)
	require.NoError(t, err)
	assert.Equal(t, "bedroom", updated.Location)
	assert.True(t, updated.PowerSave)

	configs, err := s.ListConfigs()
	require.NoError(t, err)
	assert.Len(t, configs, 1)

	require.NoError(t, s.DeleteConfig(config.ID))
	_, err = s.GetConfigByID(config.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteConfig(config.ID), store.ErrNotFound)
}

func TestConfigNameMustBeUnique(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateConfig(newConfig("dupe")))
	err := s.CreateConfig(newConfig("dupe"))
	assert.ErrorIs(t, err, store.ErrNameTaken)
}

func TestGetConfigMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetConfigByName("ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetConfigByID(42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
