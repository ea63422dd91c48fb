package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/oarbit/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a session is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "session-1")

			Convey("Then it is reported as new and is now known", func() {
				So(seen, ShouldBeFalse)
				So(d.Seen(ctx, "session-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a second trigger is reported as seen", func() {
				So(d.SeenAndRecord(ctx, "session-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When Seen is asked about an unknown session", func() {
			So(d.Seen(ctx, "nope"), ShouldBeFalse)

			Convey("Then nothing is recorded", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When a recorded session is unrecorded", func() {
			d.SeenAndRecord(ctx, "session-1")
			d.Unrecord(ctx, "session-1")
			d.Unrecord(ctx, "never-recorded")

			Convey("Then it can be claimed again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "session-1"), ShouldBeFalse)
			})
		})

		Convey("When many sessions are recorded", func() {
			for i := 0; i < 1000; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("s-%d", i)), ShouldBeFalse)
			}

			Convey("Then none are evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.Seen(ctx, "s-0"), ShouldBeTrue)
			})
		})
	})

	Convey("Given a bounded deduper of size 3", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"a", "b", "c"} {
			d.SeenAndRecord(ctx, id)
		}

		Convey("When a fourth session is recorded", func() {
			d.SeenAndRecord(ctx, "d")

			Convey("Then the oldest is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Seen(ctx, "a"), ShouldBeFalse)
				So(d.Seen(ctx, "b"), ShouldBeTrue)
				So(d.Seen(ctx, "d"), ShouldBeTrue)
			})
		})

		Convey("When the middle entry is unrecorded first", func() {
			d.Unrecord(ctx, "b")
			d.SeenAndRecord(ctx, "d")

			Convey("Then there is room without eviction", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Seen(ctx, "a"), ShouldBeTrue)
				So(d.Seen(ctx, "c"), ShouldBeTrue)
			})
		})
	})
}

func TestDeduperConcurrency(t *testing.T) {
	Convey("Given many goroutines racing to process the same session", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var (
			wg      sync.WaitGroup
			claimed atomic.Int64
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(context.Background(), "session-1") {
					claimed.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins the claim", func() {
			So(claimed.Load(), ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}
