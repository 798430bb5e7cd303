package tracking_test

import (
	"context"
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rotaviz.dev/rotaviz/internal/store"
	"rotaviz.dev/rotaviz/internal/tracking"
)

var _ = Describe("Directory", func() {
	var (
		logger *slog.Logger
		fake   *fakeStore
		ctx    context.Context
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		fake = newFakeStore(
			rec("a", "D1", "Maria", 100, 1, 1),
			rec("b", "D2", "Ana", 200, 2, 2),
		)
		ctx = context.Background()
	})

	Describe("NewDirectory", func() {
		It("should require a logger", func() {
			_, err := tracking.NewDirectory(nil, fake)
			Expect(err).To(HaveOccurred())
		})

		It("should require a store", func() {
			_, err := tracking.NewDirectory(logger, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Snapshot", func() {
		It("should report not loaded before the first refresh", func() {
			d, err := tracking.NewDirectory(logger, fake)
			Expect(err).NotTo(HaveOccurred())

			summaries, loaded := d.Snapshot()
			Expect(loaded).To(BeFalse())
			Expect(summaries).To(BeEmpty())
		})

		It("should return name-sorted summaries after a refresh", func() {
			d, err := tracking.NewDirectory(logger, fake)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Refresh(ctx)).To(Succeed())

			summaries, loaded := d.Snapshot()
			Expect(loaded).To(BeTrue())
			Expect(summaries).To(HaveLen(2))
			Expect(summaries[0].Name).To(Equal("Ana"))
			Expect(summaries[1].Name).To(Equal("Maria"))
		})
	})

	Describe("Refresh", func() {
		It("should keep the previous snapshot when the read fails", func() {
			d, err := tracking.NewDirectory(logger, fake)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Refresh(ctx)).To(Succeed())

			fake.FetchErr = &store.TransientError{Op: "fetch locations", Err: errors.New("down")}
			Expect(d.Refresh(ctx)).NotTo(Succeed())

			summaries, loaded := d.Snapshot()
			Expect(loaded).To(BeTrue())
			Expect(summaries).To(HaveLen(2))
		})

		It("should pick up new records", func() {
			d, err := tracking.NewDirectory(logger, fake)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Refresh(ctx)).To(Succeed())

			newRec := rec("c", "D3", "Zelda", 300, 3, 3)
			Expect(fake.Insert(ctx, &newRec)).To(Succeed())
			Expect(d.Refresh(ctx)).To(Succeed())

			summaries, _ := d.Snapshot()
			Expect(summaries).To(HaveLen(3))
		})
	})

	Describe("Run", func() {
		It("should refresh on startup and again per notification", func() {
			d, err := tracking.NewDirectory(logger, fake)
			Expect(err).NotTo(HaveOccurred())

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			changes := make(chan struct{}, 1)
			done := make(chan struct{})
			go func() {
				defer close(done)
				d.Run(runCtx, changes)
			}()

			Eventually(func() bool {
				_, loaded := d.Snapshot()
				return loaded
			}).Should(BeTrue())

			newRec := rec("c", "D3", "Zelda", 300, 3, 3)
			Expect(fake.Insert(ctx, &newRec)).To(Succeed())
			changes <- struct{}{}

			Eventually(func() int {
				summaries, _ := d.Snapshot()
				return len(summaries)
			}).Should(Equal(3))

			cancel()
			Eventually(done).Should(BeClosed())
		})

		It("should stop when the change feed closes", func() {
			d, err := tracking.NewDirectory(logger, fake)
			Expect(err).NotTo(HaveOccurred())

			changes := make(chan struct{})
			done := make(chan struct{})
			go func() {
				defer close(done)
				d.Run(ctx, changes)
			}()

			close(changes)
			Eventually(done).Should(BeClosed())
		})
	})
})
