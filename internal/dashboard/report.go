package dashboard

import (
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rotaviz.dev/rotaviz/internal/store"
	"rotaviz.dev/rotaviz/internal/tracking"
)

// reportPoint is one table row of the printable report.
type reportPoint struct {
	Index     int
	Time      string
	Latitude  string
	Longitude string
	SpeedKmh  string
	Accuracy  string
}

// reportData feeds the printable report template.
type reportData struct {
	VendorName string
	DeviceID   string
	DayLong    string
	PointCount int
	Duration   string
	StartTime  string
	Points     []reportPoint
	// RouteJSON is the [lat, lon] pair list for the map polyline.
	RouteJSON template.JS
}

// handleReport renders the printable day-route report for one device.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var timer *prometheus.Timer
	if s.dashMetrics != nil {
		timer = prometheus.NewTimer(s.dashMetrics.ReportRenderTime)
		defer timer.ObserveDuration()
	}

	deviceID := r.URL.Query().Get("device")
	if deviceID == "" {
		s.writeError(w, "report", &tracking.ValidationError{Msg: "select a vendor first"})
		return
	}

	day, err := tracking.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		s.writeError(w, "report", err)
		return
	}

	records, err := s.store.FetchAll(r.Context())
	if err != nil {
		s.countReportError()
		s.writeError(w, "report", err)
		return
	}

	route, err := tracking.FilterRoute(records, deviceID, day, s.timezone)
	if err != nil {
		s.writeError(w, "report", err)
		return
	}

	data, err := s.buildReport(deviceID, day, route)
	if err != nil {
		s.countReportError()
		s.writeError(w, "report", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := reportTemplate.Execute(w, data); err != nil {
		s.countReportError()
		s.logger.Error("failed to render report", "device_id", deviceID, "error", err)
	}
}

// buildReport assembles the template data: header stats, the map
// coordinates, and one table row per point.
func (s *Server) buildReport(deviceID, day string, route []store.LocationRecord) (*reportData, error) {
	vendorName := deviceID
	summaries, _ := s.directory.Snapshot()
	for _, sum := range summaries {
		if sum.ID == deviceID {
			vendorName = sum.Name
			break
		}
	}

	dayLong := day
	if t, err := time.ParseInLocation("2006-01-02", day, s.timezone); err == nil {
		dayLong = t.Format("Monday, January 2, 2006")
	}

	duration := "0h"
	startTime := ""
	if len(route) > 0 {
		first, last := route[0], route[len(route)-1]
		tracked := time.Duration(last.Timestamp-first.Timestamp) * time.Millisecond
		duration = fmt.Sprintf("%dh", int(math.Round(tracked.Hours())))
		startTime = first.Time
		if startTime == "" {
			startTime = time.UnixMilli(first.Timestamp).In(s.timezone).Format("15:04:05")
		}
	}

	points := make([]reportPoint, 0, len(route))
	coords := make([][2]float64, 0, len(route))
	for i, rec := range route {
		pointTime := rec.Time
		if pointTime == "" {
			pointTime = time.UnixMilli(rec.Timestamp).In(s.timezone).Format("15:04:05")
		}

		speed := "N/A"
		if rec.Speed != nil {
			speed = fmt.Sprintf("%.1f km/h", *rec.Speed*3.6)
		}

		accuracy := "N/A"
		if rec.Accuracy != nil {
			accuracy = fmt.Sprintf("%.0f m", *rec.Accuracy)
		}

		points = append(points, reportPoint{
			Index:     i + 1,
			Time:      pointTime,
			Latitude:  fmt.Sprintf("%.6f", rec.Latitude),
			Longitude: fmt.Sprintf("%.6f", rec.Longitude),
			SpeedKmh:  speed,
			Accuracy:  accuracy,
		})
		coords = append(coords, [2]float64{rec.Latitude, rec.Longitude})
	}

	routeJSON, err := json.Marshal(coords)
	if err != nil {
		return nil, fmt.Errorf("failed to encode route coordinates: %w", err)
	}

	return &reportData{
		VendorName: vendorName,
		DeviceID:   deviceID,
		DayLong:    dayLong,
		PointCount: len(route),
		Duration:   duration,
		StartTime:  startTime,
		Points:     points,
		RouteJSON:  template.JS(routeJSON),
	}, nil
}

func (s *Server) countReportError() {
	if s.dashMetrics != nil {
		s.dashMetrics.ReportRenderErrors.Inc()
	}
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Route Report - {{.VendorName}} - {{.DayLong}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<style>
  body { font-family: Arial, sans-serif; margin: 24px; color: #222; }
  h1 { font-size: 20px; margin-bottom: 4px; }
  .meta { color: #555; margin-bottom: 16px; }
  .stats { display: flex; gap: 32px; margin-bottom: 16px; }
  .stats div { font-size: 14px; }
  .stats strong { display: block; font-size: 18px; }
  #map { height: 420px; margin-bottom: 16px; border: 1px solid #ccc; }
  table { border-collapse: collapse; width: 100%; font-size: 12px; }
  th, td { border: 1px solid #ddd; padding: 4px 8px; text-align: left; }
  th { background: #f2f2f2; }
  @media print { #map { break-inside: avoid; } }
</style>
</head>
<body>
<h1>{{.VendorName}}</h1>
<div class="meta">{{.DayLong}} &middot; device {{.DeviceID}}</div>
<div class="stats">
  <div><strong>{{.PointCount}}</strong> points</div>
  <div><strong>{{.Duration}}</strong> tracked</div>
  <div><strong>{{.StartTime}}</strong> first fix</div>
</div>
<div id="map"></div>
<table>
<thead>
<tr><th>#</th><th>Time</th><th>Latitude</th><th>Longitude</th><th>Speed</th><th>Accuracy</th></tr>
</thead>
<tbody>
{{range .Points}}<tr><td>{{.Index}}</td><td>{{.Time}}</td><td>{{.Latitude}}</td><td>{{.Longitude}}</td><td>{{.SpeedKmh}}</td><td>{{.Accuracy}}</td></tr>
{{end}}</tbody>
</table>
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script>
  var route = {{.RouteJSON}};
  if (route.length > 0) {
    var map = L.map('map', { zoomControl: false, attributionControl: false });
    L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png').addTo(map);
    var line = L.polyline(route, { color: '#1976d2', weight: 3 }).addTo(map);
    L.circleMarker(route[0], { radius: 6, color: '#2e7d32', fillOpacity: 1 }).addTo(map);
    L.circleMarker(route[route.length - 1], { radius: 6, color: '#c62828', fillOpacity: 1 }).addTo(map);
    map.fitBounds(line.getBounds(), { padding: [24, 24] });
  } else {
    document.getElementById('map').remove();
  }
  window.addEventListener('load', function () { setTimeout(function () { window.print(); }, 500); });
</script>
</body>
</html>
`))
