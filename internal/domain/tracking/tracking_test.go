package tracking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/funnel/internal/adapters/mq/queue"
	"github.com/okian/funnel/internal/domain/dedupe"
	"github.com/okian/funnel/internal/domain/model"
	"github.com/okian/funnel/internal/domain/tracking"
	"github.com/okian/funnel/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingQueue struct {
	mu     sync.Mutex
	events []model.PageView
	err    error
}

func (q *recordingQueue) Enqueue(_ context.Context, e model.PageView) error { //nolint:gocritic // hugeParam: matches Enqueuer
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, e)
	return nil
}

func TestTrackPageView(t *testing.T) {
	_ = logger.Init()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	Convey("Given a dispatcher over a recording queue", t, func() {
		q := &recordingQueue{}
		ids := 0
		d := tracking.New(dedupe.NewInMemoryDeduper(), q,
			tracking.WithClock(func() time.Time { return fixed }),
			tracking.WithEventIDs(func() string { ids++; return "evt-" + string(rune('0'+ids)) }),
		)
		ctx := context.Background()
		view := tracking.View{
			ID:    "view-1",
			Route: "/",
			URL:   "https://funnel.example/?utm_source=FB&utm_source=IG&ref=x&utm_term=feed",
		}

		Convey("When a view is tracked", func() {
			d.TrackPageView(ctx, view)

			Convey("Then one event carries the view, its campaign and a UTC timestamp", func() {
				So(q.events, ShouldHaveLength, 1)
				e := q.events[0]
				So(e.EventID, ShouldEqual, "evt-1")
				So(e.ViewID, ShouldEqual, "view-1")
				So(e.Route, ShouldEqual, "/")
				So(e.URL, ShouldEqual, view.URL)
				So(e.Params, ShouldResemble, map[string]string{"utm_source": "FB", "utm_term": "feed"})
				So(e.TS.Equal(fixed), ShouldBeTrue)
				So(e.TS.Location(), ShouldEqual, time.UTC)
			})
		})

		Convey("When the same view re-renders", func() {
			d.TrackPageView(ctx, view)
			d.TrackPageView(ctx, view)
			d.TrackPageView(ctx, view)

			Convey("Then only the first call fires", func() {
				So(q.events, ShouldHaveLength, 1)
			})
		})

		Convey("When views without an id are tracked", func() {
			d.TrackPageView(ctx, tracking.View{Route: "/", URL: view.URL})
			d.TrackPageView(ctx, tracking.View{Route: "/quiz", URL: "https://funnel.example/quiz"})

			Convey("Then each fires under its own generated view id", func() {
				So(q.events, ShouldHaveLength, 2)
				So(q.events[0].ViewID, ShouldNotBeEmpty)
				So(q.events[1].ViewID, ShouldNotBeEmpty)
				So(q.events[0].ViewID, ShouldNotEqual, q.events[1].ViewID)
				So(q.events[1].Route, ShouldEqual, "/quiz")
			})
		})

		Convey("When a different mount of the same route is tracked", func() {
			d.TrackPageView(ctx, view)
			view.ID = "view-2"
			d.TrackPageView(ctx, view)

			Convey("Then it fires again", func() {
				So(q.events, ShouldHaveLength, 2)
			})
		})

		Convey("When the location has no campaign", func() {
			d.TrackPageView(ctx, tracking.View{ID: "plain", Route: "/quiz", URL: "https://funnel.example/quiz"})

			Convey("Then the event has no params", func() {
				So(q.events[0].Params, ShouldBeNil)
			})
		})
	})

	Convey("Given a full queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		d := tracking.New(nil, q)
		ctx := context.Background()

		Convey("When more views arrive than fit", func() {
			done := make(chan struct{})
			go func() {
				d.TrackPageView(ctx, tracking.View{ID: "a", Route: "/"})
				d.TrackPageView(ctx, tracking.View{ID: "b", Route: "/"})
				close(done)
			}()

			Convey("Then the caller is never blocked and the overflow is dropped", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					So("TrackPageView blocked", ShouldBeEmpty)
				}
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When the queue is closed", func() {
			_ = q.Close()

			Convey("Then tracking still returns normally", func() {
				So(func() { d.TrackPageView(ctx, tracking.View{ID: "late"}) }, ShouldNotPanic)
			})
		})
	})

	Convey("Given a dispatcher without a queue", t, func() {
		d := tracking.New(nil, nil)

		Convey("Then tracking is a no-op", func() {
			So(func() { d.TrackPageView(context.Background(), tracking.View{ID: "x"}) }, ShouldNotPanic)
		})
	})

	Convey("NewViewID returns distinct ids", t, func() {
		So(tracking.NewViewID(), ShouldNotEqual, tracking.NewViewID())
		So(tracking.NewViewID(), ShouldHaveLength, 36)
	})
}
