package repository

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/types"
	"github.com/okian/oarbit/pkg/metrics"
)

// RatingIndex is a treap-backed, in-memory Leaderboard.
//
// Ordering: rating DESC, then athleteID ASC. In-order traversal yields the
// leaderboard from best to worst. Writers publish a ranked snapshot before
// returning so reads never see a half-applied batch.

// ratingScale controls fixed-point scaling from float64.
const ratingScale = 1_000_000 // 6 decimal places

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := math.Round(x * ratingScale)
	if scaled >= math.MaxInt64 {
		return ratingFP(math.MaxInt64)
	}
	if scaled <= math.MinInt64 {
		return ratingFP(math.MinInt64)
	}
	return ratingFP(scaled)
}

func toFloat(x ratingFP) float64 {
	return float64(x) / ratingScale
}

// record is the indexed state of one athlete.
type record struct {
	rating ratingFP
	races  int
	wins   int
}

// snapshot is an immutable ranked view of the index.
type snapshot struct {
	entries []types.Entry
	byID    map[string]int // athlete id -> position in entries
}

// treap node
type node struct {
	id     string
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) ranks before (bRating, bID).
func less(aRating ratingFP, aID string, bRating ratingFP, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// priorityOf hashes the athlete id so the tree shape does not depend on
// rating order and is the same on every run.
func priorityOf(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, id string, rating ratingFP) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: priorityOf(id), size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating ratingFP) *node {
	if n == nil {
		return nil
	}
	if rating == n.rating && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	} else if less(rating, id, n.rating, n.id) {
		n.left = deleteNode(n.left, id, rating)
	} else {
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// collectAll appends every entry in rank order.
func collectAll(n *node, byID map[string]record, out *[]types.Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if rec, ok := byID[n.id]; ok {
		*out = append(*out, types.Entry{
			AthleteID: n.id,
			Rating:    toFloat(rec.rating),
			Races:     rec.races,
			Wins:      rec.wins,
		})
	}
	collectAll(n.right, byID, out)
}

// RatingIndex keeps ratings ordered for ranked reads.
type RatingIndex struct {
	mu   sync.Mutex
	root *node
	byID map[string]record

	snap atomic.Pointer[snapshot]
}

// NewRatingIndex constructs an empty index.
func NewRatingIndex() *RatingIndex {
	s := &RatingIndex{byID: make(map[string]record)}
	s.snap.Store(&snapshot{byID: map[string]int{}})
	return s
}

// Apply inserts or replaces the given ratings.
func (s *RatingIndex) Apply(ctx context.Context, ratings []model.Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range ratings {
		s.setLocked(r)
	}
	s.publishLocked()
}

// Reset replaces the whole index with ratings.
func (s *RatingIndex) Reset(ctx context.Context, ratings []model.Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = nil
	s.byID = make(map[string]record, len(ratings))
	for _, r := range ratings {
		s.setLocked(r)
	}
	s.publishLocked()
}

func (s *RatingIndex) setLocked(r model.Rating) {
	fp := toFixedPoint(r.Rating)
	if old, ok := s.byID[r.AthleteID]; ok {
		s.root = deleteNode(s.root, r.AthleteID, old.rating)
	}
	s.byID[r.AthleteID] = record{rating: fp, races: r.Races, wins: r.Wins}
	s.root = insert(s.root, r.AthleteID, fp)
}

// publishLocked rebuilds the ranked snapshot. Callers hold s.mu.
func (s *RatingIndex) publishLocked() {
	start := time.Now()
	entries := make([]types.Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &entries)
	types.AssignRanks(entries)

	byID := make(map[string]int, len(entries))
	for i, e := range entries {
		byID[e.AthleteID] = i
	}
	s.snap.Store(&snapshot{entries: entries, byID: byID})

	metrics.UpdateRatedAthletes(len(entries))
	metrics.RecordIndexPublishDuration(float64(time.Since(start).Microseconds()) / 1000)
}

// Rank returns the current rank and rating for an athlete.
func (s *RatingIndex) Rank(ctx context.Context, athleteID string) (types.Entry, error) {
	snap := s.snap.Load()
	i, ok := snap.byID[athleteID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, ErrNotFound
	}
	return snap.entries[i], nil
}

// TopN returns the top n entries ordered by rating desc.
func (s *RatingIndex) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	entries := s.snap.Load().entries
	n = min(n, len(entries))
	out := make([]types.Entry, n)
	copy(out, entries[:n])
	return out, nil
}

// Snapshot returns every ranked entry.
func (s *RatingIndex) Snapshot(ctx context.Context) []types.Entry {
	entries := s.snap.Load().entries
	out := make([]types.Entry, len(entries))
	copy(out, entries)
	return out
}

// Count returns the number of rated athletes.
func (s *RatingIndex) Count(ctx context.Context) int {
	return len(s.snap.Load().entries)
}
