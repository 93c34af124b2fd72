package query_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/query"
	"basegraph.app/pulse/internal/store"
)

func event(id string, t model.EventType, at time.Time) model.NormalizedEvent {
	return model.NormalizedEvent{EventID: id, Type: t, Repo: "a/b", CreatedAt: at}
}

func validationField(err error) string {
	var ve *query.ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		events    *memoryEventStore
		summaries *mockPRSummaryStore
		svc       *query.Service
		now       time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		events = &memoryEventStore{}
		summaries = &mockPRSummaryStore{summaries: map[string]model.RepoPRSummary{}}
		now = time.Date(2024, 1, 1, 10, 16, 0, 0, time.UTC)
		svc = query.NewService(events, summaries, query.Config{PageSize: 2}).
			WithClock(func() time.Time { return now })
	})

	Describe("end to end scenario", func() {
		BeforeEach(func() {
			day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			events.add(
				event("1", model.EventTypeWatch, day.Add(10*time.Hour)),
				event("2", model.EventTypePullRequest, day.Add(10*time.Hour+5*time.Minute)),
				event("3", model.EventTypePullRequest, day.Add(10*time.Hour+15*time.Minute)),
			)
			s := model.NewRepoPRSummary("owner/a", day.Add(10*time.Hour+5*time.Minute))
			s, _ = s.Observe(day.Add(10*time.Hour + 15*time.Minute))
			summaries.summaries["owner/a"] = s
		})

		It("counts events per type in the last hour", func() {
			counts, err := svc.CountEvents(ctx, 60)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts.Counts).To(Equal(map[model.EventType]int64{
				model.EventTypeWatch:       1,
				model.EventTypePullRequest: 2,
				model.EventTypeIssues:      0,
			}))
			Expect(counts.Total).To(Equal(int64(3)))
			Expect(counts.Range.End).To(Equal(now))
			Expect(counts.Range.Start).To(Equal(now.Add(-time.Hour)))
		})

		It("reports a ten minute average between pull requests", func() {
			avg, err := svc.PRAverage(ctx, "owner/a")
			Expect(err).NotTo(HaveOccurred())
			Expect(avg.PRCount).To(Equal(int64(2)))
			Expect(avg.Sufficient()).To(BeTrue())
			Expect(*avg.Average).To(Equal(10 * time.Minute))
		})
	})

	Describe("CountEvents", func() {
		It("drains every page", func() {
			for i := range 7 {
				events.add(event(fmt.Sprint(i), model.EventTypeWatch, now.Add(-time.Minute)))
			}
			counts, err := svc.CountEvents(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts.Counts[model.EventTypeWatch]).To(Equal(int64(7)))
			Expect(events.queries).To(BeNumerically(">", 4))
		})

		It("includes both window edges", func() {
			events.add(
				event("start", model.EventTypeIssues, now.Add(-10*time.Minute)),
				event("end", model.EventTypeIssues, now),
				event("before", model.EventTypeIssues, now.Add(-10*time.Minute-time.Second)),
			)
			counts, err := svc.CountEvents(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts.Counts[model.EventTypeIssues]).To(Equal(int64(2)))
		})

		It("rejects offsets out of range", func() {
			_, err := svc.CountEvents(ctx, -1)
			Expect(validationField(err)).To(Equal("offset"))
			_, err = svc.CountEvents(ctx, query.MaxCountOffset+1)
			Expect(validationField(err)).To(Equal("offset"))
		})

		It("wraps storage errors", func() {
			events.err = errors.New("db down")
			_, err := svc.CountEvents(ctx, 10)
			Expect(err).To(MatchError(ContainSubstring("db down")))
			Expect(validationField(err)).To(BeEmpty())
		})
	})

	Describe("Timeline", func() {
		It("issues one query chain per type regardless of bucket count", func() {
			svc = query.NewService(events, summaries, query.Config{PageSize: 500}).
				WithClock(func() time.Time { return now })
			_, err := svc.Timeline(ctx, 24, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(events.queries).To(Equal(len(model.TrackedEventTypes)))
		})

		It("returns every bucket, including empty ones", func() {
			events.add(event("1", model.EventTypeWatch, now.Add(-30*time.Minute)))

			tl, err := svc.Timeline(ctx, 2, 60)
			Expect(err).NotTo(HaveOccurred())
			Expect(tl.Buckets).To(HaveLen(2))
			Expect(tl.Buckets[0].Start).To(Equal(now.Add(-2 * time.Hour)))
			Expect(tl.Buckets[0].Total).To(BeZero())
			Expect(tl.Buckets[0].Counts).To(HaveLen(len(model.TrackedEventTypes)))
			Expect(tl.Buckets[1].Counts[model.EventTypeWatch]).To(Equal(int64(1)))
			Expect(tl.Buckets[1].End).To(Equal(now))
		})

		It("truncates the last bucket at now", func() {
			tl, err := svc.Timeline(ctx, 1, 25)
			Expect(err).NotTo(HaveOccurred())
			Expect(tl.Buckets).To(HaveLen(3))
			Expect(tl.Buckets[2].Start).To(Equal(now.Add(-10 * time.Minute)))
			Expect(tl.Buckets[2].End).To(Equal(now))
		})

		It("places boundary events in exactly one bucket", func() {
			start := now.Add(-time.Hour)
			events.add(
				event("a", model.EventTypeWatch, start),
				event("b", model.EventTypeWatch, start.Add(30*time.Minute)),
				event("c", model.EventTypeWatch, now),
			)
			tl, err := svc.Timeline(ctx, 1, 30)
			Expect(err).NotTo(HaveOccurred())
			Expect(tl.Buckets[0].Total).To(Equal(int64(1)))
			Expect(tl.Buckets[1].Total).To(Equal(int64(2)))
			Expect(tl.Total).To(Equal(int64(3)))
		})

		It("partitions the same window CountEvents scans", func() {
			rng := rand.New(rand.NewSource(7))
			for i := range 300 {
				t := model.TrackedEventTypes[rng.Intn(len(model.TrackedEventTypes))]
				at := now.Add(-time.Duration(rng.Int63n(int64(5*time.Hour) + 1)))
				events.add(event(fmt.Sprint(i), t, at))
			}

			for _, interval := range []int{1, 7, 60, 61, 240, 1440} {
				tl, err := svc.Timeline(ctx, 4, interval)
				Expect(err).NotTo(HaveOccurred())
				counts, err := svc.CountEvents(ctx, 4*60)
				Expect(err).NotTo(HaveOccurred())

				Expect(tl.Totals).To(Equal(counts.Counts), "interval %d", interval)
				Expect(tl.Total).To(Equal(counts.Total), "interval %d", interval)

				var sum int64
				for _, b := range tl.Buckets {
					sum += b.Total
				}
				Expect(sum).To(Equal(counts.Total))
			}
		})

		DescribeTable("rejects parameters out of range",
			func(hours, interval int, field string) {
				_, err := svc.Timeline(ctx, hours, interval)
				Expect(validationField(err)).To(Equal(field))
			},
			Entry("zero hours", 0, 60, "hours"),
			Entry("too many hours", query.MaxTimelineHours+1, 60, "hours"),
			Entry("zero interval", 24, 0, "interval"),
			Entry("interval over a day", 24, query.MaxTimelineInterval+1, "interval"),
			Entry("too many buckets", 168, 1, "interval"),
		)

		It("accepts the largest bucket count", func() {
			tl, err := svc.Timeline(ctx, 168, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(tl.Buckets).To(HaveLen(query.MaxTimelineBuckets))
		})
	})

	Describe("PRAverage", func() {
		It("reports insufficient data for unknown repositories", func() {
			avg, err := svc.PRAverage(ctx, "nobody/nothing")
			Expect(err).NotTo(HaveOccurred())
			Expect(avg.PRCount).To(BeZero())
			Expect(avg.Sufficient()).To(BeFalse())
			Expect(avg.FirstPRAt).To(BeNil())
		})

		It("reports insufficient data with a single pull request", func() {
			summaries.summaries["a/b"] = model.NewRepoPRSummary("a/b", now)
			avg, err := svc.PRAverage(ctx, "a/b")
			Expect(err).NotTo(HaveOccurred())
			Expect(avg.PRCount).To(Equal(int64(1)))
			Expect(avg.Sufficient()).To(BeFalse())
			Expect(*avg.FirstPRAt).To(Equal(now))
		})

		It("rejects malformed repository names", func() {
			_, err := svc.PRAverage(ctx, "../etc")
			Expect(validationField(err)).To(Equal("repo"))
		})

		It("does not mask storage errors as missing data", func() {
			summaries.getErr = errors.New("db down")
			_, err := svc.PRAverage(ctx, "a/b")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, store.ErrNotFound)).To(BeFalse())
		})
	})

	Describe("ListRepos", func() {
		It("lists repositories with at least two pull requests", func() {
			one := model.NewRepoPRSummary("x/one", now)
			two, _ := model.NewRepoPRSummary("x/two", now).Observe(now.Add(time.Minute))
			summaries.summaries["x/one"] = one
			summaries.summaries["x/two"] = two

			repos, err := svc.ListRepos(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(repos).To(HaveLen(1))
			Expect(repos[0].Repo).To(Equal("x/two"))
		})
	})
})
