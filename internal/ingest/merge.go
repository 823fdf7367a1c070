package ingest

import (
	"sort"
	"strings"

	"forma/pkg/models"
)

// Score rates how complete a record's nutrition data is. Higher wins when
// duplicates are merged.
func Score(rec models.CanonicalFoodRecord) int {
	score := 0
	if rec.Calories > 0 {
		score += 10
	}
	if rec.ProteinG > 0 {
		score += 3
	}
	if rec.CarbsG > 0 {
		score += 2
	}
	if rec.FatG > 0 {
		score += 2
	}
	if ar := strings.TrimSpace(rec.NameAr); ar != "" && ar != strings.TrimSpace(rec.NameEn) {
		score += 5
	}
	return score
}

// ResolveGroup picks the most complete candidate. Equal scores keep input
// order, so the first-seen candidate wins a tie.
func ResolveGroup(candidates []Candidate) (winner Candidate, losers []Candidate) {
	if len(candidates) == 0 {
		return Candidate{}, nil
	}

	type scored struct {
		Candidate
		score int
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{Candidate: c, score: Score(c.Record)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Order < ranked[j].Order
	})
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	winner = ranked[0].Candidate
	for _, r := range ranked[1:] {
		losers = append(losers, r.Candidate)
	}
	return winner, losers
}
