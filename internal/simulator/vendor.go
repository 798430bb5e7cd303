// Package simulator generates synthetic street-vendor movement and
// publishes location fixes to the ingest queue, for demos and load tests.
package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"rotaviz.dev/rotaviz/internal/ingest"
)

// Vendor is one simulated street vendor carrying a tracked phone.
// Note: Uses math/rand throughout which is acceptable for simulation data.
type Vendor struct {
	DeviceID string  `fake:"{uuid}"`
	Name     string  `fake:"{firstname}'s {noun}"`
	HomeLat  float64 `fake:"{latitude}"`
	HomeLon  float64 `fake:"{longitude}"`
}

// NewVendor creates a random vendor anchored to a random home position.
func NewVendor() *Vendor {
	var v Vendor
	if err := gofakeit.Struct(&v); err != nil {
		return nil
	}
	return &v
}

// walker produces a plausible GPS track for one vendor: a random walk
// around the home position with speed and heading that drift slowly, the
// way a pushcart moves through a neighborhood.
type walker struct {
	vendor  *Vendor
	lat     float64
	lon     float64
	heading float64 // radians
	speed   float64 // m/s
	zone    *time.Location
}

func newWalker(v *Vendor, zone *time.Location) *walker {
	if zone == nil {
		zone = time.UTC
	}
	return &walker{
		vendor:  v,
		lat:     v.HomeLat,
		lon:     v.HomeLon,
		heading: rand.Float64() * 2 * math.Pi, // #nosec G404 - weak random is acceptable for simulation
		speed:   0.5 + rand.Float64()*1.5,     // walking pace
		zone:    zone,
	}
}

// metersPerDegreeLat is close enough everywhere for simulation purposes.
const metersPerDegreeLat = 111_320.0

// Next advances the walk by elapsed and returns the resulting fix.
func (w *walker) Next(now time.Time, elapsed time.Duration) *ingest.Fix {
	// Drift heading and speed a little each step.
	w.heading += (rand.Float64() - 0.5) * math.Pi / 4
	w.speed += (rand.Float64() - 0.5) * 0.4
	w.speed = math.Max(0, math.Min(3.5, w.speed))

	// Occasionally stop at a corner (15% chance).
	if rand.Float64() < 0.15 {
		w.speed = 0
	}

	dist := w.speed * elapsed.Seconds()
	w.lat += dist * math.Cos(w.heading) / metersPerDegreeLat
	w.lon += dist * math.Sin(w.heading) / (metersPerDegreeLat * math.Cos(w.lat*math.Pi/180))

	// Keep coordinates legal after the walk.
	w.lat = math.Max(-90, math.Min(90, w.lat))
	w.lon = math.Mod(w.lon+540, 360) - 180

	speed := math.Round(w.speed*100) / 100
	accuracy := math.Round((5+rand.Float64()*25)*10) / 10

	local := now.In(w.zone)
	return &ingest.Fix{
		DeviceID:   w.vendor.DeviceID,
		DeviceName: w.vendor.Name,
		Latitude:   math.Round(w.lat*1e6) / 1e6,
		Longitude:  math.Round(w.lon*1e6) / 1e6,
		Timestamp:  now.UnixMilli(),
		Date:       local.Format("2006-01-02"),
		Time:       local.Format("15:04:05"),
		Speed:      &speed,
		Accuracy:   &accuracy,
	}
}
