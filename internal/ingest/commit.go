package ingest

import (
	"context"
	"fmt"

	"forma/pkg/logger"
	"forma/pkg/models"
)

const DefaultBatchSize = 50

type RecordError struct {
	Record models.CanonicalFoodRecord
	Err    error
}

type CommitResult struct {
	Committed int
	Errors    []RecordError
	Batches   int
	// Fallbacks counts batches whose transaction failed and were retried
	// record by record.
	Fallbacks int
}

// Committer upserts records in fixed-size transactional batches.
type Committer struct {
	Store     Store
	BatchSize int
	Log       *logger.Logger
}

func NewCommitter(store Store, batchSize int, log *logger.Logger) *Committer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Committer{Store: store, BatchSize: batchSize, Log: log}
}

// Commit writes records batch by batch. A failed batch is retried one
// record at a time and only those individual failures are reported.
// Cancelling ctx stops new batches from starting; a batch already running
// is allowed to finish.
func (c *Committer) Commit(ctx context.Context, records []models.CanonicalFoodRecord) (CommitResult, error) {
	var res CommitResult
	for start := 0; start < len(records); start += c.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("commit stopped before batch %d: %w", res.Batches+1, err)
		}

		end := min(start+c.BatchSize, len(records))
		batch := records[start:end]
		res.Batches++

		bctx := context.WithoutCancel(ctx)
		err := c.Store.InTx(bctx, func(tx Store) error {
			for _, rec := range batch {
				if err := tx.Foods().Upsert(bctx, rec); err != nil {
					return fmt.Errorf("upsert %s: %w", rec.ExternalID, err)
				}
			}
			return nil
		})
		if err == nil {
			res.Committed += len(batch)
			continue
		}

		res.Fallbacks++
		c.Log.Warn("batch commit failed, retrying records one by one",
			"batch", res.Batches,
			"size", len(batch),
			"error", err,
		)
		for _, rec := range batch {
			if err := c.Store.Foods().Upsert(bctx, rec); err != nil {
				res.Errors = append(res.Errors, RecordError{Record: rec, Err: err})
				continue
			}
			res.Committed++
		}
	}
	return res, nil
}
