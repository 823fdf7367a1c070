package ingest

import (
	"context"
	"fmt"

	"forma/pkg/logger"
	"forma/pkg/models"
)

type CleanupOptions struct {
	// DryRun resolves groups and reports planned retirements without writing.
	DryRun bool
}

type Retirement struct {
	ExternalID       string
	WinnerExternalID string
	LoserID          int64
	WinnerID         int64
	MovedReferences  int
}

type RetireError struct {
	ExternalID string
	LoserID    int64
	WinnerID   int64
	Err        error
}

func (e RetireError) Error() string {
	return fmt.Sprintf("retire %s (%d -> %d): %v", e.ExternalID, e.LoserID, e.WinnerID, e.Err)
}

func (e RetireError) Unwrap() error { return e.Err }

type CleanupResult struct {
	Groups  int
	Retired []Retirement
	Errors  []RetireError
}

// CleanupCatalog merges rows already in the store whose external ids
// collide ignoring case. The most complete row of each group survives; a
// failed retirement is reported and leaves that loser untouched.
func CleanupCatalog(ctx context.Context, store Store, opts CleanupOptions, log *logger.Logger) (CleanupResult, error) {
	if log == nil {
		log = logger.Nop()
	}

	groups, err := store.Foods().ListExternalIDCollisions(ctx)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("list external id collisions: %w", err)
	}

	res := CleanupResult{Groups: len(groups)}
	for _, rows := range groups {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("cleanup interrupted: %w", err)
		}

		winner, losers := ResolveGroup(storedCandidates(rows))
		winnerID := storeID(rows, winner.Order)
		winnerExt := winner.Record.ExternalID

		for _, l := range losers {
			loserID := storeID(rows, l.Order)
			if opts.DryRun {
				log.Info("would retire duplicate",
					"external_id", l.Record.ExternalID,
					"loser_id", loserID,
					"winner_id", winnerID,
				)
				res.Retired = append(res.Retired, Retirement{
					ExternalID:       l.Record.ExternalID,
					WinnerExternalID: winnerExt,
					LoserID:          loserID,
					WinnerID:         winnerID,
				})
				continue
			}

			out, err := RetireDuplicate(ctx, store, loserID, winnerID)
			if err != nil {
				log.Error("retire duplicate failed",
					"external_id", l.Record.ExternalID,
					"loser_id", loserID,
					"winner_id", winnerID,
					"error", err,
				)
				res.Errors = append(res.Errors, RetireError{
					ExternalID: l.Record.ExternalID,
					LoserID:    loserID,
					WinnerID:   winnerID,
					Err:        err,
				})
				continue
			}
			if !out.Retired {
				continue
			}
			log.Info("retired duplicate",
				"external_id", l.Record.ExternalID,
				"loser_id", loserID,
				"winner_id", winnerID,
				"moved_references", out.MovedReferences,
			)
			res.Retired = append(res.Retired, Retirement{
				ExternalID:       l.Record.ExternalID,
				WinnerExternalID: winnerExt,
				LoserID:          loserID,
				WinnerID:         winnerID,
				MovedReferences:  out.MovedReferences,
			})
		}
	}
	return res, nil
}

// storedCandidates orders rows as the store returned them (ascending id),
// so the oldest row wins a tie.
func storedCandidates(rows []models.StoredFood) []Candidate {
	out := make([]Candidate, len(rows))
	for i, r := range rows {
		out[i] = Candidate{Record: r.CanonicalFoodRecord, Order: i, Source: "catalog"}
	}
	return out
}

func storeID(rows []models.StoredFood, order int) int64 {
	return rows[order].ID
}
