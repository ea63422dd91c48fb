package timefmt_test

import (
	"errors"
	"testing"

	"github.com/okian/oarbit/internal/domain/timefmt"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRoundTrip(t *testing.T) {
	Convey("Every one-decimal value survives a round trip", t, func() {
		for i := 0; i <= 12000; i++ {
			x := float64(i) / 10
			So(timefmt.ToSeconds(timefmt.FromSeconds(x)), ShouldEqual, x)
		}
	})

	Convey("Literal values survive a round trip", t, func() {
		for _, x := range []float64{0, 0.1, 59.9, 60, 120.0, 125.0, 382.1, 419.7, 1000.3} {
			So(timefmt.ToSeconds(timefmt.FromSeconds(x)), ShouldEqual, x)
		}
	})
}

func TestSegments(t *testing.T) {
	Convey("Given 382.1 seconds", t, func() {
		s := timefmt.FromSeconds(382.1)

		Convey("Then it splits into 6:22.1", func() {
			So(s, ShouldResemble, timefmt.Segments{Minutes: 6, Seconds: 22, Tenths: 1})
			So(timefmt.Format(382.1), ShouldEqual, "6:22.1")
		})
	})

	Convey("Values are rounded to the nearest tenth", t, func() {
		So(timefmt.FromSeconds(59.96), ShouldResemble, timefmt.Segments{Minutes: 1})
		So(timefmt.Format(7.04), ShouldEqual, "0:07.0")
	})

	Convey("Negative input is clamped to zero", t, func() {
		So(timefmt.FromSeconds(-3), ShouldResemble, timefmt.Segments{})
	})

	Convey("Input beyond a day is clamped to a day", t, func() {
		So(timefmt.FromSeconds(1e300), ShouldResemble, timefmt.Segments{Minutes: 1440})
		So(timefmt.Format(1e300), ShouldEqual, "1440:00.0")
	})
}

func TestParse(t *testing.T) {
	Convey("Given well formed finish times", t, func() {
		cases := map[string]float64{
			"6:22.1": 382.1,
			"6:22":   382,
			"0:59.9": 59.9,
			"382.1":  382.1,
			" 120 ":  120,
			"7:00.0": 420,
		}
		for in, want := range cases {
			got, err := timefmt.Parse(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}
	})

	Convey("Given finish times longer than a day", t, func() {
		day, err := timefmt.Parse("1440:00")
		So(err, ShouldBeNil)
		So(day, ShouldEqual, float64(timefmt.MaxSeconds))

		for _, in := range []string{"1e300", "86400.1", "+Inf", "NaN", "1441:00", "1440:00.1", "99999999999999999:00", "1:NaN"} {
			_, err := timefmt.Parse(in)
			So(errors.Is(err, timefmt.ErrInvalidTime), ShouldBeTrue)
		}
	})

	Convey("Given malformed finish times", t, func() {
		for _, in := range []string{"", "abc", "6:61.0", "-1", "x:22.1", "6:-2", "-1:20"} {
			_, err := timefmt.Parse(in)
			So(errors.Is(err, timefmt.ErrInvalidTime), ShouldBeTrue)
		}
	})
}
