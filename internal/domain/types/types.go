// Package types contains common types used across the application
package types

import "sort"

// Entry represents a leaderboard entry
type Entry struct {
	Rank      int     `json:"rank"`
	AthleteID string  `json:"athleteId"`
	Rating    float64 `json:"rating"`
	Races     int     `json:"races,omitempty"`
	Wins      int     `json:"wins,omitempty"`
}

// RankEntries sorts entries by rating (descending) and athlete id
// (ascending), then assigns ranks in place. Athletes with the same rating
// share a rank and the next distinct rating takes the following rank
// (1, 1, 2, ...).
func RankEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Rating != entries[j].Rating {
			return entries[i].Rating > entries[j].Rating
		}
		return entries[i].AthleteID < entries[j].AthleteID
	})
	AssignRanks(entries)
}

// AssignRanks assigns tie-aware ranks to entries that are already ordered.
func AssignRanks(entries []Entry) {
	currentRank := 0
	for i := range entries {
		if i == 0 || entries[i].Rating != entries[i-1].Rating {
			currentRank++
		}
		entries[i].Rank = currentRank
	}
}

// RankIndex maps athlete id to rank for ranked entries.
func RankIndex(entries []Entry) map[string]int {
	out := make(map[string]int, len(entries))
	for _, e := range entries {
		out[e.AthleteID] = e.Rank
	}
	return out
}
