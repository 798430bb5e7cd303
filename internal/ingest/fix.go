// Package ingest consumes mobile location fixes from RabbitMQ and
// persists them as location records.
package ingest

import (
	"errors"
	"time"
)

// Fix is the wire format a mobile device publishes for one GPS
// observation. Date and Time are optional pre-formatted local strings;
// when absent the consumer derives them from the timestamp in the store's
// configured zone.
type Fix struct {
	DeviceID   string   `json:"deviceId"`
	DeviceName string   `json:"deviceName,omitempty"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Timestamp  int64    `json:"timestamp"`
	Date       string   `json:"date,omitempty"`
	Time       string   `json:"time,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
}

// Validate reports whether the fix carries the required fields.
func (f *Fix) Validate() error {
	if f.DeviceID == "" {
		return errors.New("fix is missing deviceId")
	}
	if f.Timestamp <= 0 {
		return errors.New("fix is missing timestamp")
	}
	if f.Latitude < -90 || f.Latitude > 90 {
		return errors.New("latitude out of range")
	}
	if f.Longitude < -180 || f.Longitude > 180 {
		return errors.New("longitude out of range")
	}
	return nil
}

// FillLocalStrings derives the date and time strings from the timestamp
// when the device did not send them.
func (f *Fix) FillLocalStrings(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	t := time.UnixMilli(f.Timestamp).In(loc)
	if f.Date == "" {
		f.Date = t.Format("2006-01-02")
	}
	if f.Time == "" {
		f.Time = t.Format("15:04:05")
	}
}
