// Package store wraps the database with the persistence contract the
// scheduler depends on: durable reading appends, retention pruning, and the
// schedule configuration CRUD consumed by the CLI.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbojanin/airsampler/internal/models"
)

// ErrNotFound reports a missing config or reading.
var ErrNotFound = errors.New("not found")

// ErrNameTaken reports a schedule config name collision.
var ErrNameTaken = errors.New("config name must be unique")

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ReadingQuery filters ListReadings.
type ReadingQuery struct {
	Limit    int
	Location string
	Type     string
	Since    *time.Time
}

// Store is the persistence surface used by the scheduler and the CLI.
type Store interface {
	AppendReading(reading *models.Reading) (uint, error)
	PruneReadings(before time.Time, location string) (int64, error)
	ListReadings(query ReadingQuery) ([]models.Reading, error)

	ListConfigs() ([]models.ScheduleConfig, error)
	GetConfigByName(name string) (*models.ScheduleConfig, error)
	GetConfigByID(id uint) (*models.ScheduleConfig, error)
	CreateConfig(config *models.ScheduleConfig) error
	UpdateConfig(config *models.ScheduleConfig) error
	DeleteConfig(id uint) error
}

// DB implements Store on a gorm handle.
type DB struct {
	db *gorm.DB
}

func New(db *gorm.DB) *DB {
	return &DB{db: db}
}

// AppendReading persists one reading row. The write is synchronous: when
// this returns without error the row has been committed.
func (s *DB) AppendReading(reading *models.Reading) (uint, error) {
	if err := s.db.Create(reading).Error; err != nil {
		return 0, &PersistenceError{Op: "append", Err: err}
	}
	return reading.ID, nil
}

// PruneReadings deletes readings with a timestamp strictly before the cutoff.
// A non-empty location restricts the delete to that location. Partial
// completion on failure is acceptable; rows outside the requested range are
// never touched.
func (s *DB) PruneReadings(before time.Time, location string) (int64, error) {
	query := s.db.Where("timestamp < ?", before)
	if location != "" {
		query = query.Where("location = ?", location)
	}

	result := query.Delete(&models.Reading{})
	if result.Error != nil {
		return 0, &PersistenceError{Op: "prune", Err: result.Error}
	}
	return result.RowsAffected, nil
}

// ListReadings returns readings newest first, optionally filtered.
func (s *DB) ListReadings(query ReadingQuery) ([]models.Reading, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	q := s.db.Order("timestamp DESC").Limit(limit)
	if query.Location != "" {
		q = q.Where("location = ?", query.Location)
	}
	if query.Type != "" {
		q = q.Where("type = ?", query.Type)
	}
	if query.Since != nil {
		q = q.Where("timestamp >= ?", *query.Since)
	}

	var readings []models.Reading
	if err := q.Find(&readings).Error; err != nil {
		return nil, &PersistenceError{Op: "list readings", Err: err}
	}
	return readings, nil
}

func (s *DB) ListConfigs() ([]models.ScheduleConfig, error) {
	var configs []models.ScheduleConfig
	if err := s.db.Order("id").Find(&configs).Error; err != nil {
		return nil, &PersistenceError{Op: "list configs", Err: err}
	}
	return configs, nil
}

func (s *DB) GetConfigByName(name string) (*models.ScheduleConfig, error) {
	var config models.ScheduleConfig
	err := s.db.Where("name = ?", name).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "get config", Err: err}
	}
	return &config, nil
}

func (s *DB) GetConfigByID(id uint) (*models.ScheduleConfig, error) {
	var config models.ScheduleConfig
	err := s.db.First(&config, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "get config", Err: err}
	}
	return &config, nil
}

func (s *DB) CreateConfig(config *models.ScheduleConfig) error {
	if err := s.db.Create(config).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return &PersistenceError{Op: "create config", Err: err}
	}
	return nil
}

func (s *DB) UpdateConfig(config *models.ScheduleConfig) error {
	result := s.db.Model(config).Select("*").Omit("id", "created_at").Updates(config)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrNameTaken
		}
		return &PersistenceError{Op: "update config", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DB) DeleteConfig(id uint) error {
	result := s.db.Delete(&models.ScheduleConfig{}, id)
	if result.Error != nil {
		return &PersistenceError{Op: "delete config", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
