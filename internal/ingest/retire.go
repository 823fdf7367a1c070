package ingest

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSelfRetire    = errors.New("loser and winner are the same record")
	ErrWinnerMissing = errors.New("winner record not found")
)

type RetireResult struct {
	MovedReferences int
	// Retired is false when the loser was already gone.
	Retired bool
}

// RetireDuplicate moves every log reference from loserID to winnerID and
// then deletes loserID, all inside one transaction. Re-running it after the
// loser is gone is a no-op.
func RetireDuplicate(ctx context.Context, store Store, loserID, winnerID int64) (RetireResult, error) {
	if loserID == winnerID {
		return RetireResult{}, fmt.Errorf("retire %d: %w", loserID, ErrSelfRetire)
	}

	var res RetireResult
	err := store.InTx(ctx, func(tx Store) error {
		loser, err := tx.Foods().Get(ctx, loserID)
		if err != nil {
			return fmt.Errorf("load loser %d: %w", loserID, err)
		}
		if loser == nil {
			return nil
		}

		winner, err := tx.Foods().Get(ctx, winnerID)
		if err != nil {
			return fmt.Errorf("load winner %d: %w", winnerID, err)
		}
		if winner == nil {
			return fmt.Errorf("retire %d into %d: %w", loserID, winnerID, ErrWinnerMissing)
		}

		refs, err := tx.Logs().CountByFoodID(ctx, loserID)
		if err != nil {
			return fmt.Errorf("count references to %d: %w", loserID, err)
		}

		moved := 0
		if refs > 0 {
			moved, err = tx.Logs().RepointAll(ctx, loserID, winnerID)
			if err != nil {
				return fmt.Errorf("repoint references %d -> %d: %w", loserID, winnerID, err)
			}
			if moved != refs {
				return fmt.Errorf("repoint references %d -> %d: moved %d of %d", loserID, winnerID, moved, refs)
			}
		}

		if err := tx.Foods().Delete(ctx, loserID); err != nil {
			return fmt.Errorf("delete loser %d: %w", loserID, err)
		}

		res = RetireResult{MovedReferences: moved, Retired: true}
		return nil
	})
	if err != nil {
		return RetireResult{}, err
	}
	return res, nil
}
