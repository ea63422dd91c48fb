package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/types"
)

func TestRatingIndex_BasicOperations(t *testing.T) {
	ctx := context.Background()
	idx := NewRatingIndex()

	if count := idx.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	idx.Apply(ctx, []model.Rating{{AthleteID: "a1", Rating: 1516, Races: 1, Wins: 1}})

	if count := idx.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	entry, err := idx.Rank(ctx, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 {
		t.Errorf("expected rank 1, got %d", entry.Rank)
	}
	if entry.Rating != 1516 {
		t.Errorf("expected rating 1516, got %f", entry.Rating)
	}
	if entry.Races != 1 || entry.Wins != 1 {
		t.Errorf("expected 1 race and 1 win, got %d/%d", entry.Races, entry.Wins)
	}

	if _, err := idx.Rank(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := idx.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestRatingIndex_UpdatesMoveAthletes(t *testing.T) {
	ctx := context.Background()
	idx := NewRatingIndex()
	idx.Apply(ctx, []model.Rating{
		{AthleteID: "x", Rating: 1500},
		{AthleteID: "y", Rating: 1500},
		{AthleteID: "lead", Rating: 1510},
	})

	top, _ := idx.TopN(ctx, 10)
	want := []types.Entry{
		{Rank: 1, AthleteID: "lead", Rating: 1510},
		{Rank: 2, AthleteID: "x", Rating: 1500},
		{Rank: 2, AthleteID: "y", Rating: 1500},
	}
	if fmt.Sprint(top) != fmt.Sprint(want) {
		t.Fatalf("unexpected leaderboard: %v", top)
	}

	// a rating can go down as well as up
	idx.Apply(ctx, []model.Rating{
		{AthleteID: "x", Rating: 1516, Races: 1, Wins: 1},
		{AthleteID: "y", Rating: 1484, Races: 1},
	})

	top, _ = idx.TopN(ctx, 2)
	if len(top) != 2 || top[0].AthleteID != "x" || top[1].AthleteID != "lead" {
		t.Fatalf("unexpected top 2 after update: %v", top)
	}
	y, _ := idx.Rank(ctx, "y")
	if y.Rank != 3 {
		t.Errorf("expected y at rank 3, got %d", y.Rank)
	}
	if idx.Count(ctx) != 3 {
		t.Errorf("update must not duplicate athletes, count %d", idx.Count(ctx))
	}
}

func TestRatingIndex_Reset(t *testing.T) {
	ctx := context.Background()
	idx := NewRatingIndex()
	idx.Apply(ctx, []model.Rating{{AthleteID: "old", Rating: 1600}})
	idx.Reset(ctx, []model.Rating{{AthleteID: "new", Rating: 1400}})

	if _, err := idx.Rank(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected old athlete to be gone, got %v", err)
	}
	snap := idx.Snapshot(ctx)
	if len(snap) != 1 || snap[0].AthleteID != "new" || snap[0].Rank != 1 {
		t.Errorf("unexpected snapshot after reset: %v", snap)
	}
}

func TestRatingIndex_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	idx := NewRatingIndex()
	idx.Apply(ctx, []model.Rating{{AthleteID: "a", Rating: 1500}})

	snap := idx.Snapshot(ctx)
	snap[0].Rating = 0

	entry, _ := idx.Rank(ctx, "a")
	if entry.Rating != 1500 {
		t.Errorf("snapshot mutation leaked into index: %f", entry.Rating)
	}
}

func TestRatingIndex_MatchesSortedOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewRatingIndex()
	rng := rand.New(rand.NewSource(7))

	var ratings []model.Rating
	for i := 0; i < 500; i++ {
		// coarse values force plenty of ties
		r := 1400 + float64(rng.Intn(40))*5
		ratings = append(ratings, model.Rating{AthleteID: fmt.Sprintf("athlete-%03d", i), Rating: r})
	}
	idx.Apply(ctx, ratings)
	// move a third of them again
	for i := 0; i < len(ratings); i += 3 {
		ratings[i].Rating += 12.5
	}
	idx.Apply(ctx, ratings)

	want := make([]types.Entry, 0, len(ratings))
	for _, r := range ratings {
		want = append(want, types.Entry{AthleteID: r.AthleteID, Rating: r.Rating})
	}
	types.RankEntries(want)

	got := idx.Snapshot(ctx)
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].AthleteID != want[i].AthleteID || got[i].Rank != want[i].Rank || got[i].Rating != want[i].Rating {
			t.Fatalf("position %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
	if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Rank < got[j].Rank }) {
		t.Error("ranks are not ascending")
	}
}

func TestRatingIndex_ConcurrentReadsDuringWrites(t *testing.T) {
	ctx := context.Background()
	idx := NewRatingIndex()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				idx.Apply(ctx, []model.Rating{{AthleteID: fmt.Sprintf("w%d-%d", w, i%10), Rating: float64(1500 + i)}})
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				top, err := idx.TopN(ctx, 5)
				if err != nil {
					t.Errorf("TopN: %v", err)
					return
				}
				for j := 1; j < len(top); j++ {
					if top[j].Rating > top[j-1].Rating {
						t.Errorf("leaderboard out of order: %v", top)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	if idx.Count(ctx) != 40 {
		t.Errorf("expected 40 athletes, got %d", idx.Count(ctx))
	}
}

func TestFixedPoint(t *testing.T) {
	for _, v := range []float64{0, 100, 1484, 1516.123456, -3.5} {
		if got := toFloat(toFixedPoint(v)); got != v {
			t.Errorf("fixed point round trip of %v gave %v", v, got)
		}
	}
}
