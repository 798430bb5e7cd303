package tracking

import (
	"sort"
	"strings"

	"rotaviz.dev/rotaviz/internal/store"
)

// DeviceSummary is the derived per-device aggregate served to the device
// table: display name, last-seen snapshot and record count. Summaries are
// rebuilt from the full record set on every pass, never persisted.
type DeviceSummary struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	LastSeen       int64    `json:"lastSeen"`
	LocationsCount int      `json:"locationsCount"`
	LastLatitude   float64  `json:"lastLatitude"`
	LastLongitude  float64  `json:"lastLongitude"`
	LastDate       string   `json:"lastDate,omitempty"`
	LastTime       string   `json:"lastTime,omitempty"`
}

// Aggregate derives one DeviceSummary per distinct device id in a single
// pass over the record set. The first record seen seeds the summary; a
// strictly newer timestamp overwrites the last-seen snapshot fields. Ties
// keep the earlier record, matching original store order. The display name
// is the latest non-empty name override; a device with no override at all
// is shown by its id. The result order is unspecified; callers sort as
// needed.
func Aggregate(records []store.LocationRecord) []DeviceSummary {
	type accum struct {
		summary DeviceSummary
		namedAt int64
		named   bool
	}
	byDevice := make(map[string]*accum)
	order := make([]string, 0)

	for _, rec := range records {
		name := strings.TrimSpace(rec.DeviceName)

		a, ok := byDevice[rec.DeviceID]
		if !ok {
			a = &accum{summary: DeviceSummary{
				ID:             rec.DeviceID,
				Name:           rec.DeviceID,
				LastSeen:       rec.Timestamp,
				LocationsCount: 1,
				LastLatitude:   rec.Latitude,
				LastLongitude:  rec.Longitude,
				LastDate:       rec.Date,
				LastTime:       rec.Time,
			}}
			if name != "" {
				a.summary.Name = name
				a.namedAt = rec.Timestamp
				a.named = true
			}
			byDevice[rec.DeviceID] = a
			order = append(order, rec.DeviceID)
			continue
		}

		s := &a.summary
		s.LocationsCount++
		if name != "" && (!a.named || rec.Timestamp > a.namedAt) {
			s.Name = name
			a.namedAt = rec.Timestamp
			a.named = true
		}
		if rec.Timestamp > s.LastSeen {
			s.LastSeen = rec.Timestamp
			s.LastLatitude = rec.Latitude
			s.LastLongitude = rec.Longitude
			s.LastDate = rec.Date
			s.LastTime = rec.Time
		}
	}

	summaries := make([]DeviceSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, byDevice[id].summary)
	}
	return summaries
}

// SortByName orders summaries by display name for list views.
func SortByName(summaries []DeviceSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
}
