package navigation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/funnel/internal/adapters/history"
	"github.com/okian/funnel/internal/adapters/storage"
	"github.com/okian/funnel/internal/domain/attribution"
	"github.com/okian/funnel/internal/domain/navigation"
	"github.com/okian/funnel/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type recordingRouter struct {
	pushed []string
	err    error
}

func (r *recordingRouter) Push(target string) error {
	if r.err != nil {
		return r.err
	}
	r.pushed = append(r.pushed, target)
	return nil
}

type staticParams []attribution.Param

func (s staticParams) Params() []attribution.Param { return s }

func TestNavigate(t *testing.T) {
	Convey("Given a visitor who arrived from a campaign", t, func() {
		ctx := context.Background()
		h, err := history.New("/?utm_source=TT&utm_campaign=spring&gclid=1", history.WithRoutes("/", "/quiz", "/inscricao"))
		So(err, ShouldBeNil)
		m := attribution.New(storage.NewSafe(storage.NewMemoryBackend()), h)
		m.EnsureInitialized(ctx)
		nav, err := navigation.New(h, m)
		So(err, ShouldBeNil)

		Convey("When navigating to the quiz", func() {
			So(nav.Navigate(ctx, "/quiz"), ShouldBeNil)

			Convey("Then only the campaign params travel along", func() {
				So(h.Entries()[1], ShouldEqual, "/quiz?utm_source=TT&utm_campaign=spring")
			})

			Convey("And navigating again several hops", func() {
				So(nav.Navigate(ctx, "/inscricao"), ShouldBeNil)
				So(nav.Navigate(ctx, "/"), ShouldBeNil)
				So(nav.Navigate(ctx, "/quiz"), ShouldBeNil)

				Convey("Then every hop carries the original params exactly once", func() {
					for _, e := range h.Entries()[1:] {
						So(strings.Count(e, "utm_source="), ShouldEqual, 1)
						So(strings.Count(e, "utm_campaign="), ShouldEqual, 1)
						So(e, ShouldEndWith, "?utm_source=TT&utm_campaign=spring")
					}
				})
			})
		})

		Convey("When the target already names a campaign param", func() {
			So(nav.Navigate(ctx, "/quiz?utm_source=IG"), ShouldBeNil)

			Convey("Then it is not duplicated", func() {
				So(h.Entries()[1], ShouldEqual, "/quiz?utm_source=IG&utm_campaign=spring")
			})
		})

		Convey("When navigating to a route that does not exist", func() {
			err := nav.Navigate(ctx, "/nowhere")

			Convey("Then the router error surfaces", func() {
				So(errors.Is(err, history.ErrUnknownRoute), ShouldBeTrue)
				So(h.Len(), ShouldEqual, 1)
			})
		})

		Convey("When computing an href", func() {
			So(nav.Href("/quiz#q1"), ShouldEqual, "/quiz?utm_source=TT&utm_campaign=spring#q1")
		})
	})

	Convey("Given a fake router", t, func() {
		ctx := context.Background()
		router := &recordingRouter{}
		nav := navigation.MustNew(router, staticParams{{Name: "utm_term", Value: "{{placement}}"}})

		Convey("Then the target is encoded like a form query", func() {
			So(nav.Navigate(ctx, "/inscricao"), ShouldBeNil)
			So(router.pushed, ShouldResemble, []string{"/inscricao?utm_term=%7B%7Bplacement%7D%7D"})
		})

		Convey("Then router failures are returned", func() {
			router.err = errors.New("router gone")
			So(nav.Navigate(ctx, "/"), ShouldEqual, router.err)
		})
	})

	Convey("Given no router", t, func() {
		_, err := navigation.New(nil, staticParams{})

		Convey("Then construction fails loudly", func() {
			So(errors.Is(err, navigation.ErrNoRouter), ShouldBeTrue)
			So(func() { navigation.MustNew(nil, staticParams{}) }, ShouldPanic)
		})
	})
}
