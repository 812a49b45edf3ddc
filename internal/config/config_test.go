package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/funnel/internal/config"
	"github.com/okian/funnel/internal/domain/quiz"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Addr, convey.ShouldEqual, "")
			convey.So(cfg.StoragePath, convey.ShouldEqual, "")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.PixelTimeout(), convey.ShouldEqual, 3*time.Second)
			convey.So(cfg.Routes(), convey.ShouldResemble, []string{"/", "/quiz", "/inscricao"})
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the catalog is emptied", func() {
			cfg.Quiz = quiz.Catalog{}

			convey.Convey("Then validation reports it", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(errors.Is(err, quiz.ErrInvalidCatalog), convey.ShouldBeTrue)
			})
		})
	})
}
