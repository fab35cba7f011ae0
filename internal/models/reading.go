package models

import (
	"time"
)

// Reading is one persisted sample row. The column layout is fixed: readings
// are written once per successful scheduler cycle and only ever removed by
// retention pruning or an explicit bulk delete.
type Reading struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	Location  string    `gorm:"not null" json:"location"`
	Type      string    `gorm:"not null" json:"type"`

	PM1  int `gorm:"column:pm1" json:"pm1"`
	PM25 int `gorm:"column:pm2_5" json:"pm2_5"`
	PM10 int `gorm:"column:pm10" json:"pm10"`

	Particles03um int `gorm:"column:particles_0_3um" json:"particles_0_3um"`
	Particles05um int `gorm:"column:particles_0_5um" json:"particles_0_5um"`
	Particles1um  int `gorm:"column:particles_1_0um" json:"particles_1_0um"`
	Particles25um int `gorm:"column:particles_2_5um" json:"particles_2_5um"`
	Particles5um  int `gorm:"column:particles_5_0um" json:"particles_5_0um"`
	Particles10um int `gorm:"column:particles_10um" json:"particles_10um"`
}

func (Reading) TableName() string {
	return "schedule_readings"
}
