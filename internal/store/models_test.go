package store_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rotaviz.dev/rotaviz/internal/store"
)

var _ = Describe("Models", func() {
	Describe("LocationRecord", func() {
		Context("table name", func() {
			It("should return locations", func() {
				rec := store.LocationRecord{}
				Expect(rec.TableName()).To(Equal("locations"))
			})
		})

		Context("struct initialization", func() {
			It("should initialize with zero values", func() {
				rec := store.LocationRecord{}
				Expect(rec.ID).To(BeEmpty())
				Expect(rec.DeviceID).To(BeEmpty())
				Expect(rec.DeviceName).To(BeEmpty())
				Expect(rec.Latitude).To(BeZero())
				Expect(rec.Longitude).To(BeZero())
				Expect(rec.Timestamp).To(BeZero())
				Expect(rec.Speed).To(BeNil())
				Expect(rec.Accuracy).To(BeNil())
			})

			It("should allow setting values", func() {
				speed := 1.5
				rec := store.LocationRecord{
					ID:        "rec-001",
					DeviceID:  "D1",
					Latitude:  -23.55,
					Longitude: -46.63,
					Timestamp: 1700000000000,
					Date:      "2026-08-02",
					Time:      "08:15:00",
					Speed:     &speed,
				}

				Expect(rec.ID).To(Equal("rec-001"))
				Expect(rec.DeviceID).To(Equal("D1"))
				Expect(rec.Latitude).To(Equal(-23.55))
				Expect(*rec.Speed).To(Equal(1.5))
			})
		})

		Context("JSON encoding", func() {
			It("should omit absent optional fields", func() {
				rec := store.LocationRecord{
					ID:        "rec-001",
					DeviceID:  "D1",
					Latitude:  1,
					Longitude: 2,
					Timestamp: 100,
				}

				body, err := json.Marshal(rec)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).NotTo(ContainSubstring("speed"))
				Expect(string(body)).NotTo(ContainSubstring("accuracy"))
				Expect(string(body)).NotTo(ContainSubstring("deviceName"))
			})

			It("should use camelCase field names", func() {
				rec := store.LocationRecord{ID: "rec-001", DeviceID: "D1"}

				body, err := json.Marshal(rec)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring(`"deviceId":"D1"`))
			})
		})
	})

	Describe("Device", func() {
		Context("table name", func() {
			It("should return devices", func() {
				dev := store.Device{}
				Expect(dev.TableName()).To(Equal("devices"))
			})
		})

		Context("struct initialization", func() {
			It("should allow setting values", func() {
				dev := store.Device{
					DeviceID:  "D1",
					Name:      "Maria",
					LastSeen:  1700000000000,
					CreatedMs: 1700000000001,
				}

				Expect(dev.DeviceID).To(Equal("D1"))
				Expect(dev.Name).To(Equal("Maria"))
				Expect(dev.LastSeen).To(Equal(int64(1700000000000)))
			})
		})
	})

	Describe("Batch", func() {
		It("should carry record keys, the new name and the summary", func() {
			b := store.Batch{
				RecordKeys: []string{"a", "b"},
				NewName:    "Maria",
				Summary:    store.Device{DeviceID: "D1", Name: "Maria"},
			}

			Expect(b.RecordKeys).To(HaveLen(2))
			Expect(b.NewName).To(Equal("Maria"))
			Expect(b.Summary.DeviceID).To(Equal("D1"))
		})
	})
})
