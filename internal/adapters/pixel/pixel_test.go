package pixel_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/okian/funnel/internal/adapters/pixel"
	"github.com/okian/funnel/internal/domain/model"
	"github.com/okian/funnel/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type capture struct {
	mu      sync.Mutex
	queries []url.Values
	status  int
}

func (c *capture) handler(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.queries = append(c.queries, r.URL.Query())
	status := c.status
	c.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (c *capture) received() []url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]url.Values(nil), c.queries...)
}

func TestSender(t *testing.T) {
	_ = logger.Init()

	Convey("Given a sender with two endpoints", t, func() {
		first, second := &capture{}, &capture{}
		srv1 := httptest.NewServer(http.HandlerFunc(first.handler))
		defer srv1.Close()
		srv2 := httptest.NewServer(http.HandlerFunc(second.handler))
		defer srv2.Close()

		s, err := pixel.New([]string{srv1.URL + "/tr?v=2", srv2.URL + "/collect"}, pixel.WithPixelID("1234"))
		So(err, ShouldBeNil)
		So(s.Endpoints(), ShouldHaveLength, 2)

		view := model.PageView{
			EventID: "evt-1",
			ViewID:  "view-1",
			Route:   "/quiz",
			URL:     "https://funnel.example/quiz?utm_source=FB",
			Params:  map[string]string{"utm_source": "FB"},
			TS:      time.UnixMilli(1700000000123),
		}

		Convey("When a page view is sent", func() {
			err := s.Send(context.Background(), view)

			Convey("Then every endpoint receives one request with the event fields", func() {
				So(err, ShouldBeNil)
				for _, c := range []*capture{first, second} {
					got := c.received()
					So(got, ShouldHaveLength, 1)
					So(got[0].Get("id"), ShouldEqual, "1234")
					So(got[0].Get("ev"), ShouldEqual, "PageView")
					So(got[0].Get("eid"), ShouldEqual, "evt-1")
					So(got[0].Get("rt"), ShouldEqual, "/quiz")
					So(got[0].Get("dl"), ShouldEqual, view.URL)
					So(got[0].Get("ts"), ShouldEqual, "1700000000123")
					So(got[0].Get("utm_source"), ShouldEqual, "FB")
				}
				So(first.received()[0].Get("v"), ShouldEqual, "2")
			})
		})

		Convey("When one endpoint answers with a server error", func() {
			first.status = http.StatusInternalServerError
			err := s.Send(context.Background(), view)

			Convey("Then the other endpoint is still attempted and the failure is reported", func() {
				So(errors.Is(err, pixel.ErrSendFailed), ShouldBeTrue)
				So(second.received(), ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given an endpoint that never answers in time", t, func() {
		block := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-block:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(block)

		s, err := pixel.New([]string{srv.URL}, pixel.WithTimeout(20*time.Millisecond))
		So(err, ShouldBeNil)

		Convey("Then the send fails instead of hanging", func() {
			err := s.Send(context.Background(), model.PageView{EventID: "slow"})
			So(errors.Is(err, pixel.ErrSendFailed), ShouldBeTrue)
		})
	})

	Convey("Given malformed endpoints", t, func() {
		for _, ep := range []string{"not a url", "ftp://example.com/tr", "/relative"} {
			_, err := pixel.New([]string{ep})
			So(errors.Is(err, pixel.ErrInvalidEndpoint), ShouldBeTrue)
		}
	})

	Convey("Given no endpoints", t, func() {
		s, err := pixel.New(nil)
		So(err, ShouldBeNil)
		So(s.Send(context.Background(), model.PageView{EventID: "none"}), ShouldBeNil)
	})
}
