package tracking_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rotaviz.dev/rotaviz/internal/store"
	"rotaviz.dev/rotaviz/internal/tracking"
)

var _ = Describe("DayKey", func() {
	It("should prefer the stored date string", func() {
		r := rec("a", "D1", "", time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC).UnixMilli(), 1, 1)
		r.Date = "2026-08-01"
		Expect(tracking.DayKey(r, time.UTC)).To(Equal("2026-08-01"))
	})

	It("should derive the day from the timestamp when no date is stored", func() {
		r := rec("a", "D1", "", time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC).UnixMilli(), 1, 1)
		Expect(tracking.DayKey(r, time.UTC)).To(Equal("2026-08-02"))
	})

	It("should render the fallback day in the given location", func() {
		// 01:00 UTC on the 2nd is still the 1st in UTC-3.
		saoPaulo := time.FixedZone("UTC-3", -3*3600)
		r := rec("a", "D1", "", time.Date(2026, 8, 2, 1, 0, 0, 0, time.UTC).UnixMilli(), 1, 1)

		Expect(tracking.DayKey(r, saoPaulo)).To(Equal("2026-08-01"))
		Expect(tracking.DayKey(r, time.UTC)).To(Equal("2026-08-02"))
	})

	It("should default to UTC when no location is given", func() {
		r := rec("a", "D1", "", time.Date(2026, 8, 2, 23, 30, 0, 0, time.UTC).UnixMilli(), 1, 1)
		Expect(tracking.DayKey(r, nil)).To(Equal("2026-08-02"))
	})
})

var _ = Describe("FilterRoute", func() {
	day := "2026-08-02"
	ts := func(hour int) int64 {
		return time.Date(2026, 8, 2, hour, 0, 0, 0, time.UTC).UnixMilli()
	}

	Context("input validation", func() {
		It("should reject an empty device id before any matching", func() {
			_, err := tracking.FilterRoute(nil, "", day, time.UTC)

			var validationErr *tracking.ValidationError
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(validationErr))
		})

		It("should reject an empty day", func() {
			_, err := tracking.FilterRoute(nil, "D1", "", time.UTC)

			var validationErr *tracking.ValidationError
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(validationErr))
		})

		It("should report the missing device before the missing day", func() {
			_, err := tracking.FilterRoute(nil, "", "", time.UTC)
			Expect(err.Error()).To(ContainSubstring("vendor"))
		})
	})

	Context("matching", func() {
		It("should keep only the selected device's records for the selected day", func() {
			records := []store.LocationRecord{
				rec("a", "D1", "", ts(8), 1, 1),
				rec("b", "D2", "", ts(9), 2, 2),
				rec("c", "D1", "", ts(10), 3, 3),
			}
			other := rec("d", "D1", "", time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC).UnixMilli(), 4, 4)
			records = append(records, other)

			route, err := tracking.FilterRoute(records, "D1", day, time.UTC)
			Expect(err).NotTo(HaveOccurred())
			Expect(route).To(HaveLen(2))
			Expect(route[0].ID).To(Equal("a"))
			Expect(route[1].ID).To(Equal("c"))
		})

		It("should sort ascending by timestamp", func() {
			records := []store.LocationRecord{
				rec("c", "D1", "", ts(12), 3, 3),
				rec("a", "D1", "", ts(8), 1, 1),
				rec("b", "D1", "", ts(10), 2, 2),
			}

			route, err := tracking.FilterRoute(records, "D1", day, time.UTC)
			Expect(err).NotTo(HaveOccurred())
			Expect(route[0].ID).To(Equal("a"))
			Expect(route[1].ID).To(Equal("b"))
			Expect(route[2].ID).To(Equal("c"))
		})

		It("should keep original store order on timestamp ties", func() {
			records := []store.LocationRecord{
				rec("x", "D1", "", ts(8), 1, 1),
				rec("y", "D1", "", ts(8), 2, 2),
			}

			route, err := tracking.FilterRoute(records, "D1", day, time.UTC)
			Expect(err).NotTo(HaveOccurred())
			Expect(route[0].ID).To(Equal("x"))
			Expect(route[1].ID).To(Equal("y"))
		})

		It("should honor a stored date string over the timestamp-derived day", func() {
			mismatched := rec("a", "D1", "", time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC).UnixMilli(), 1, 1)
			mismatched.Date = day

			route, err := tracking.FilterRoute([]store.LocationRecord{mismatched}, "D1", day, time.UTC)
			Expect(err).NotTo(HaveOccurred())
			Expect(route).To(HaveLen(1))
		})
	})

	Context("edge cases", func() {
		It("should yield an empty route for zero matches, not an error", func() {
			records := []store.LocationRecord{rec("a", "D2", "", ts(8), 1, 1)}

			route, err := tracking.FilterRoute(records, "D1", day, time.UTC)
			Expect(err).NotTo(HaveOccurred())
			Expect(route).To(BeEmpty())
		})

		It("should yield an empty route over an empty record set", func() {
			route, err := tracking.FilterRoute(nil, "D1", day, time.UTC)
			Expect(err).NotTo(HaveOccurred())
			Expect(route).To(BeEmpty())
		})

		It("should accept a single match as a degenerate route", func() {
			records := []store.LocationRecord{rec("a", "D1", "", ts(8), 1, 1)}

			route, err := tracking.FilterRoute(records, "D1", day, time.UTC)
			Expect(err).NotTo(HaveOccurred())
			Expect(route).To(HaveLen(1))
		})
	})
})

var _ = Describe("ParseDay", func() {
	It("should accept a well-formed day", func() {
		day, err := tracking.ParseDay("2026-08-02")
		Expect(err).NotTo(HaveOccurred())
		Expect(day).To(Equal("2026-08-02"))
	})

	It("should reject an empty day", func() {
		_, err := tracking.ParseDay("")
		Expect(err).To(HaveOccurred())
	})

	It("should reject malformed days", func() {
		for _, bad := range []string{"02-08-2026", "2026/08/02", "2026-13-40", "today"} {
			_, err := tracking.ParseDay(bad)
			Expect(err).To(HaveOccurred(), "expected %q to be rejected", bad)
		}
	})
})
