// Package store implements the location record store on PostgreSQL: a flat
// collection of GPS fixes keyed by opaque record id, plus a denormalized
// per-device summary row maintained on rename.
package store

import (
	"time"
)

// LocationRecord is one GPS observation reported by a vendor device.
// Records are written once by the ingest path and never deleted; the only
// mutable field is DeviceName, which a rename rewrites in bulk.
type LocationRecord struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	DeviceID   string    `gorm:"index:idx_device_timestamp,priority:1;not null" json:"deviceId"`
	DeviceName string    `json:"deviceName,omitempty"`
	Latitude   float64   `gorm:"not null" json:"latitude"`
	Longitude  float64   `gorm:"not null" json:"longitude"`
	Timestamp  int64     `gorm:"index:idx_device_timestamp,priority:2;not null" json:"timestamp"`
	Date       string    `gorm:"size:10" json:"date,omitempty"`
	Time       string    `gorm:"size:8" json:"time,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"-"`
}

// TableName specifies the table name for LocationRecord.
func (LocationRecord) TableName() string {
	return "locations"
}

// Device is the denormalized per-device summary row written alongside a
// rename batch. It is never the source of truth for aggregation; the
// aggregator always recomputes from the locations collection.
type Device struct {
	ID        uint   `gorm:"primaryKey"`
	DeviceID  string `gorm:"uniqueIndex;not null"`
	Name      string `gorm:"not null"`
	LastSeen  int64
	CreatedMs int64 `gorm:"column:created_ms"`
}

// TableName specifies the table name for Device.
func (Device) TableName() string {
	return "devices"
}

// Batch is a single atomic multi-path update: a new display name for every
// listed record key plus the denormalized device summary. ApplyBatch
// applies the whole batch in one transaction or not at all.
type Batch struct {
	// RecordKeys lists every location record whose DeviceName is rewritten.
	RecordKeys []string
	// NewName is the trimmed display name applied to each record.
	NewName string
	// Summary is upserted under the device-level key.
	Summary Device
}
