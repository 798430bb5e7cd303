package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rotaviz.dev/rotaviz/internal/store"
	"rotaviz.dev/rotaviz/internal/tracking"
)

// fakeStore is an in-memory RecordStore for handler tests.
type fakeStore struct {
	mu         sync.Mutex
	records    []store.LocationRecord
	fetchErr   error
	fetchCalls int
}

func (f *fakeStore) FetchAll(_ context.Context) ([]store.LocationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]store.LocationRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeStore) Insert(_ context.Context, rec *store.LocationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeStore) ApplyBatch(_ context.Context, b store.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make(map[string]bool, len(b.RecordKeys))
	for _, k := range b.RecordKeys {
		keys[k] = true
	}
	for i := range f.records {
		if keys[f.records[i].ID] {
			f.records[i].DeviceName = b.NewName
		}
	}
	return nil
}

var _ store.RecordStore = (*fakeStore)(nil)

func testRecord(id, deviceID, name string, ts int64, lat, lon float64) store.LocationRecord {
	return store.LocationRecord{
		ID:         id,
		DeviceID:   deviceID,
		DeviceName: name,
		Timestamp:  ts,
		Latitude:   lat,
		Longitude:  lon,
	}
}

var _ = Describe("Handlers", func() {
	var (
		srv  *Server
		fake *fakeStore
		day  = "2026-08-02"
	)

	ts := func(hour int) int64 {
		return time.Date(2026, 8, 2, hour, 0, 0, 0, time.UTC).UnixMilli()
	}

	BeforeEach(func() {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		fake = &fakeStore{records: []store.LocationRecord{
			testRecord("a", "D1", "Maria", ts(8), -23.55, -46.63),
			testRecord("b", "D1", "Maria", ts(10), -23.56, -46.64),
			testRecord("c", "D2", "", ts(9), -23.50, -46.60),
		}}

		directory, err := tracking.NewDirectory(logger, fake)
		Expect(err).NotTo(HaveOccurred())

		coordinator, err := tracking.NewRenameCoordinator(logger, fake, nil)
		Expect(err).NotTo(HaveOccurred())

		srv = &Server{
			logger:      logger,
			config:      &ServerConfig{},
			store:       fake,
			directory:   directory,
			coordinator: coordinator,
			timezone:    time.UTC,
		}
	})

	Describe("handleHealth", func() {
		It("should report healthy", func() {
			w := httptest.NewRecorder()
			srv.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring("healthy"))
		})
	})

	Describe("handleDevices", func() {
		It("should refresh a cold directory and return sorted summaries", func() {
			w := httptest.NewRecorder()
			srv.handleDevices(w, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp struct {
				Devices []tracking.DeviceSummary `json:"devices"`
				Count   int                      `json:"count"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(2))
			Expect(resp.Devices[0].Name).To(Equal("D2"))
			Expect(resp.Devices[1].Name).To(Equal("Maria"))
			Expect(resp.Devices[1].LocationsCount).To(Equal(2))
		})

		It("should surface a store failure as a gateway error", func() {
			fake.fetchErr = &store.TransientError{Op: "fetch locations", Err: context.DeadlineExceeded}

			w := httptest.NewRecorder()
			srv.handleDevices(w, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

			Expect(w.Code).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("handleRoute", func() {
		It("should return the day's points ascending by timestamp", func() {
			w := httptest.NewRecorder()
			srv.handleRoute(w, httptest.NewRequest(http.MethodGet, "/api/route?device=D1&day="+day, nil))

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp struct {
				DeviceID string                 `json:"deviceId"`
				Count    int                    `json:"count"`
				Points   []store.LocationRecord `json:"points"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.DeviceID).To(Equal("D1"))
			Expect(resp.Count).To(Equal(2))
			Expect(resp.Points[0].ID).To(Equal("a"))
			Expect(resp.Points[1].ID).To(Equal("b"))
		})

		It("should return an empty route for zero matches", func() {
			w := httptest.NewRecorder()
			srv.handleRoute(w, httptest.NewRequest(http.MethodGet, "/api/route?device=D9&day="+day, nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"count":0`))
		})

		It("should reject a missing device without touching the store", func() {
			w := httptest.NewRecorder()
			srv.handleRoute(w, httptest.NewRequest(http.MethodGet, "/api/route?day="+day, nil))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("vendor"))
			Expect(fake.fetchCalls).To(BeZero())
		})

		It("should reject a malformed day without touching the store", func() {
			w := httptest.NewRecorder()
			srv.handleRoute(w, httptest.NewRequest(http.MethodGet, "/api/route?device=D1&day=yesterday", nil))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("YYYY-MM-DD"))
			Expect(fake.fetchCalls).To(BeZero())
		})

		It("should report the missing device before a malformed day", func() {
			w := httptest.NewRecorder()
			srv.handleRoute(w, httptest.NewRequest(http.MethodGet, "/api/route?day=yesterday", nil))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("vendor"))
		})
	})

	Describe("handleRename", func() {
		renameRequest := func(deviceID, body string) *httptest.ResponseRecorder {
			mux := srv.setupRoutes()
			req := httptest.NewRequest(http.MethodPost, "/api/devices/"+deviceID+"/rename", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		BeforeEach(func() {
			// Routes are session-gated; give the mux a signer and a valid
			// operator so requireSession can be satisfied per request.
			signer, err := NewSessionSigner("", "rotaviz", time.Hour)
			Expect(err).NotTo(HaveOccurred())
			srv.signer = signer
		})

		authedRename := func(deviceID, body string) *httptest.ResponseRecorder {
			token, err := srv.signer.Sign("operator@example.com")
			Expect(err).NotTo(HaveOccurred())

			mux := srv.setupRoutes()
			req := httptest.NewRequest(http.MethodPost, "/api/devices/"+deviceID+"/rename", strings.NewReader(body))
			req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		It("should require a session", func() {
			w := renameRequest("D1", `{"name":"Rosa"}`)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should rename every record of the device", func() {
			w := authedRename("D1", `{"name":"Rosa"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"recordsUpdated":2`))

			records, err := fake.FetchAll(context.Background())
			Expect(err).NotTo(HaveOccurred())
			for _, r := range records {
				if r.DeviceID == "D1" {
					Expect(r.DeviceName).To(Equal("Rosa"))
				}
			}
		})

		It("should reject an empty name with 400", func() {
			w := authedRename("D1", `{"name":"   "}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should report an unknown device with 404", func() {
			w := authedRename("D9", `{"name":"Rosa"}`)
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(w.Body.String()).To(ContainSubstring("nothing to rename"))
		})

		It("should reject a malformed payload with 400", func() {
			w := authedRename("D1", `{`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})

var _ = Describe("writeError", func() {
	var srv *Server

	BeforeEach(func() {
		srv = &Server{
			logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelError,
			})),
		}
	})

	statusFor := func(err error) int {
		w := httptest.NewRecorder()
		srv.writeError(w, "test", err)
		return w.Code
	}

	It("should map validation errors to 400", func() {
		Expect(statusFor(&tracking.ValidationError{Msg: "bad"})).To(Equal(http.StatusBadRequest))
	})

	It("should map nothing-to-rename to 404", func() {
		Expect(statusFor(&tracking.NothingToRenameError{DeviceID: "D9"})).To(Equal(http.StatusNotFound))
	})

	It("should map permission errors to 403", func() {
		Expect(statusFor(&store.PermissionError{Op: "op"})).To(Equal(http.StatusForbidden))
	})

	It("should map quota errors to 429", func() {
		Expect(statusFor(&store.QuotaError{Op: "op"})).To(Equal(http.StatusTooManyRequests))
	})

	It("should map everything else to 502", func() {
		Expect(statusFor(&store.TransientError{Op: "op", Err: context.DeadlineExceeded})).To(Equal(http.StatusBadGateway))
	})
})
