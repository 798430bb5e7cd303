package tracking

import (
	"sort"
	"time"

	"rotaviz.dev/rotaviz/internal/store"
)

// dayKeyLayout is the calendar-day key format shared with the mobile
// ingest path.
const dayKeyLayout = "2006-01-02"

// DayKey returns the calendar-day bucket for a record. A stored Date
// string wins; otherwise the day is derived from the millisecond timestamp
// rendered in loc, so fallback bucketing is deterministic across hosts.
// Records whose Date and timestamp-derived day disagree are not
// reconciled.
func DayKey(rec store.LocationRecord, loc *time.Location) string {
	if rec.Date != "" {
		return rec.Date
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(rec.Timestamp).In(loc).Format(dayKeyLayout)
}

// FilterRoute selects deviceID's records for one calendar day, ascending
// by timestamp. The sort is stable, so records with equal timestamps keep
// their original store order. Zero matches yields an empty route, not an
// error; an empty device id is rejected before any store work.
func FilterRoute(records []store.LocationRecord, deviceID, day string, loc *time.Location) ([]store.LocationRecord, error) {
	if deviceID == "" {
		return nil, &ValidationError{Msg: "select a vendor first"}
	}
	if day == "" {
		return nil, &ValidationError{Msg: "select a day first"}
	}

	route := make([]store.LocationRecord, 0)
	for _, rec := range records {
		if rec.DeviceID != deviceID {
			continue
		}
		if DayKey(rec, loc) != day {
			continue
		}
		route = append(route, rec)
	}

	sort.SliceStable(route, func(i, j int) bool {
		return route[i].Timestamp < route[j].Timestamp
	})
	return route, nil
}

// ParseDay validates a YYYY-MM-DD day key from the request surface.
func ParseDay(day string) (string, error) {
	if day == "" {
		return "", &ValidationError{Msg: "select a day first"}
	}
	if _, err := time.Parse(dayKeyLayout, day); err != nil {
		return "", &ValidationError{Msg: "day must be formatted as YYYY-MM-DD"}
	}
	return day, nil
}
