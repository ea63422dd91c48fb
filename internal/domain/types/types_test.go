package types_test

import (
	"testing"

	"github.com/okian/oarbit/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRankEntries(t *testing.T) {
	Convey("Given unsorted entries with a tie", t, func() {
		entries := []types.Entry{
			{AthleteID: "c", Rating: 1484},
			{AthleteID: "b", Rating: 1516},
			{AthleteID: "a", Rating: 1516},
			{AthleteID: "d", Rating: 1500},
		}

		Convey("When ranking", func() {
			types.RankEntries(entries)

			Convey("Then they are ordered by rating desc then id asc", func() {
				ids := []string{entries[0].AthleteID, entries[1].AthleteID, entries[2].AthleteID, entries[3].AthleteID}
				So(ids, ShouldResemble, []string{"a", "b", "d", "c"})
			})

			Convey("And tied ratings share a rank with consecutive ranks after", func() {
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[1].Rank, ShouldEqual, 1)
				So(entries[2].Rank, ShouldEqual, 2)
				So(entries[3].Rank, ShouldEqual, 3)
			})

			Convey("And RankIndex exposes the ranks by id", func() {
				idx := types.RankIndex(entries)
				So(idx["d"], ShouldEqual, 2)
				So(idx["c"], ShouldEqual, 3)
			})
		})
	})

	Convey("Given no entries", t, func() {
		var entries []types.Entry
		So(func() { types.RankEntries(entries) }, ShouldNotPanic)
	})
}
