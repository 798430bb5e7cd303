package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rotaviz.dev/rotaviz/internal/store"
	"rotaviz.dev/rotaviz/internal/tracking"
)

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleDevices returns the per-device summaries, sorted by display name.
// A cold directory is refreshed synchronously so the first request after
// startup does not see an empty list.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	summaries, loaded := s.directory.Snapshot()
	if !loaded {
		if err := s.directory.Refresh(r.Context()); err != nil {
			s.writeError(w, "devices", err)
			return
		}
		summaries, _ = s.directory.Snapshot()
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices": summaries,
		"count":   len(summaries),
	})
}

// routeResponse is the day-route payload: the selected device and day plus
// the matching points ascending by timestamp.
type routeResponse struct {
	DeviceID string                 `json:"deviceId"`
	Day      string                 `json:"day"`
	Count    int                    `json:"count"`
	Points   []store.LocationRecord `json:"points"`
}

// handleRoute returns one device's route for one calendar day. Both
// selections are validated before the store is contacted.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device")
	if deviceID == "" {
		s.writeError(w, "route", &tracking.ValidationError{Msg: "select a vendor first"})
		return
	}

	day, err := tracking.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		s.writeError(w, "route", err)
		return
	}

	records, err := s.store.FetchAll(r.Context())
	if err != nil {
		s.writeError(w, "route", err)
		return
	}

	route, err := tracking.FilterRoute(records, deviceID, day, s.timezone)
	if err != nil {
		s.writeError(w, "route", err)
		return
	}

	s.writeJSON(w, http.StatusOK, routeResponse{
		DeviceID: deviceID,
		Day:      day,
		Count:    len(route),
		Points:   route,
	})
}

// handleRename applies a new display name to every record of the device
// named in the path.
func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.countRename("validation")
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid rename payload"})
		return
	}

	updated, err := s.coordinator.Rename(r.Context(), deviceID, req.Name)
	if err != nil {
		s.countRename(renameOutcome(err))
		s.writeError(w, "rename", err)
		return
	}

	s.countRename("success")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"deviceId":       deviceID,
		"name":           req.Name,
		"recordsUpdated": updated,
	})
}

func (s *Server) countRename(outcome string) {
	if s.dashMetrics != nil {
		s.dashMetrics.RenameOutcomes.WithLabelValues(outcome).Inc()
	}
}

func renameOutcome(err error) string {
	var validationErr *tracking.ValidationError
	var nothingErr *tracking.NothingToRenameError
	var permErr *store.PermissionError
	var quotaErr *store.QuotaError

	switch {
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &nothingErr):
		return "not_found"
	case errors.As(err, &permErr):
		return "permission"
	case errors.As(err, &quotaErr):
		return "quota"
	default:
		return "transient"
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Validation
// failures are the caller's fault, missing devices are 404, store access
// rules are 403, exhausted usage limits are 429, and everything else is a
// 502 with the underlying message preserved.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	var validationErr *tracking.ValidationError
	var nothingErr *tracking.NothingToRenameError
	var permErr *store.PermissionError
	var quotaErr *store.QuotaError

	status := http.StatusBadGateway
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &nothingErr):
		status = http.StatusNotFound
	case errors.As(err, &permErr):
		status = http.StatusForbidden
	case errors.As(err, &quotaErr):
		status = http.StatusTooManyRequests
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "op", op, "error", err)
	} else {
		s.logger.Warn("request rejected", "op", op, "status", status, "error", err)
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// decodeJSON decodes a request body, rejecting unknown fields and
// oversized payloads.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// instrument wraps a handler with request metrics when metrics are
// enabled.
func (s *Server) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.dashMetrics == nil {
			next(w, r)
			return
		}

		s.dashMetrics.HTTPRequestsInFlight.WithLabelValues(r.Method, path).Inc()
		defer s.dashMetrics.HTTPRequestsInFlight.WithLabelValues(r.Method, path).Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		s.dashMetrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		s.dashMetrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, fmt.Sprintf("%d", rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
