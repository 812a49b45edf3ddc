package profile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/funnel/internal/adapters/storage"
	"github.com/okian/funnel/internal/domain/profile"
	"github.com/okian/funnel/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given empty storage", t, func() {
		backend := storage.NewMemoryBackend()
		s := profile.New(ctx, storage.NewSafe(backend))

		Convey("Then the profile starts from defaults", func() {
			So(s.UserName(), ShouldEqual, "")
			So(s.TransactionData(), ShouldResemble, profile.Transaction{})
		})

		Convey("When the name and transaction are written", func() {
			var seen []profile.Snapshot
			s.Subscribe(func(snap profile.Snapshot) { seen = append(seen, snap) })

			s.SetUserName(ctx, "Maria")
			s.SetTransactionData(ctx, profile.Transaction{QRCode: "000201", TransactionID: "tx-9"})

			Convey("Then memory, storage and subscribers all see them", func() {
				So(s.UserName(), ShouldEqual, "Maria")
				So(s.TransactionData().TransactionID, ShouldEqual, "tx-9")

				name, _, _ := backend.Get(ctx, storage.KeyUserName)
				So(name, ShouldEqual, "Maria")
				raw, _, _ := backend.Get(ctx, storage.KeyTransactionData)
				So(raw, ShouldEqual, `{"qrCode":"000201","transactionId":"tx-9"}`)

				So(seen, ShouldHaveLength, 2)
				So(seen[1].UserName, ShouldEqual, "Maria")
				So(seen[1].Transaction.QRCode, ShouldEqual, "000201")
			})

			Convey("And a new store over the same storage is seeded from it", func() {
				again := profile.New(ctx, storage.NewSafe(backend))
				So(again.UserName(), ShouldEqual, "Maria")
				So(again.TransactionData(), ShouldResemble, profile.Transaction{QRCode: "000201", TransactionID: "tx-9"})
			})
		})

		Convey("When the name is overwritten", func() {
			s.SetUserName(ctx, "Ana")
			s.SetUserName(ctx, "Joana")

			Convey("Then the latest value wins", func() {
				So(s.UserName(), ShouldEqual, "Joana")
			})
		})
	})

	Convey("Given storage holding invalid transaction JSON", t, func() {
		backend := storage.NewMemoryBackend()
		_ = backend.Set(ctx, storage.KeyTransactionData, "{not json")
		_ = backend.Set(ctx, storage.KeyUserName, "Lia")

		s := profile.New(ctx, storage.NewSafe(backend))

		Convey("Then the transaction falls back to defaults and the name survives", func() {
			So(s.TransactionData(), ShouldResemble, profile.Transaction{})
			So(s.UserName(), ShouldEqual, "Lia")
		})
	})

	Convey("Given storage that is unavailable", t, func() {
		s := profile.New(ctx, storage.NewSafe(storage.Unavailable(errors.New("private mode"))))

		Convey("When the name is set", func() {
			s.SetUserName(ctx, "Bia")

			Convey("Then memory still reflects the write", func() {
				So(s.UserName(), ShouldEqual, "Bia")
			})
		})
	})
}

func TestProvisioning(t *testing.T) {
	_ = logger.Init()

	Convey("Given a context with a provided store", t, func() {
		s := profile.New(context.Background(), nil)
		ctx := profile.NewContext(context.Background(), s)

		Convey("Then FromContext and Lookup return it", func() {
			So(profile.FromContext(ctx), ShouldEqual, s)
			got, ok := profile.Lookup(ctx)
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, s)
		})
	})

	Convey("Given a context without a store", t, func() {
		ctx := context.Background()

		Convey("Then FromContext fails loudly", func() {
			So(func() { profile.FromContext(ctx) }, ShouldPanicWith, "profile: store accessed outside its provider")
		})

		Convey("Then Lookup reports absence", func() {
			_, ok := profile.Lookup(ctx)
			So(ok, ShouldBeFalse)
		})
	})
}
