package ingest_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rotaviz.dev/rotaviz/internal/ingest"
)

func validFix() *ingest.Fix {
	return &ingest.Fix{
		DeviceID:  "D1",
		Latitude:  -23.55,
		Longitude: -46.63,
		Timestamp: time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC).UnixMilli(),
	}
}

var _ = Describe("Fix", func() {
	Describe("Validate", func() {
		It("should accept a well-formed fix", func() {
			Expect(validFix().Validate()).To(Succeed())
		})

		It("should reject a missing device id", func() {
			f := validFix()
			f.DeviceID = ""
			Expect(f.Validate()).NotTo(Succeed())
		})

		It("should reject a missing timestamp", func() {
			f := validFix()
			f.Timestamp = 0
			Expect(f.Validate()).NotTo(Succeed())

			f.Timestamp = -5
			Expect(f.Validate()).NotTo(Succeed())
		})

		It("should reject out-of-range coordinates", func() {
			f := validFix()
			f.Latitude = 91
			Expect(f.Validate()).NotTo(Succeed())

			f = validFix()
			f.Latitude = -90.5
			Expect(f.Validate()).NotTo(Succeed())

			f = validFix()
			f.Longitude = 180.1
			Expect(f.Validate()).NotTo(Succeed())

			f = validFix()
			f.Longitude = -181
			Expect(f.Validate()).NotTo(Succeed())
		})

		It("should accept boundary coordinates", func() {
			f := validFix()
			f.Latitude = 90
			f.Longitude = -180
			Expect(f.Validate()).To(Succeed())
		})
	})

	Describe("FillLocalStrings", func() {
		It("should derive date and time from the timestamp in the given zone", func() {
			f := validFix()
			f.FillLocalStrings(time.UTC)

			Expect(f.Date).To(Equal("2026-08-02"))
			Expect(f.Time).To(Equal("12:00:00"))
		})

		It("should keep device-sent strings untouched", func() {
			f := validFix()
			f.Date = "2026-01-01"
			f.Time = "00:00:01"
			f.FillLocalStrings(time.UTC)

			Expect(f.Date).To(Equal("2026-01-01"))
			Expect(f.Time).To(Equal("00:00:01"))
		})

		It("should render in the configured zone", func() {
			f := validFix()
			f.FillLocalStrings(time.FixedZone("UTC-3", -3*3600))

			Expect(f.Time).To(Equal("09:00:00"))
		})

		It("should default to UTC with a nil zone", func() {
			f := validFix()
			f.FillLocalStrings(nil)

			Expect(f.Date).To(Equal("2026-08-02"))
		})
	})
})
