package ingest

import (
	"context"

	"forma/pkg/models"
)

// FoodStore is the catalog the pipeline writes into. Lookups return
// (nil, nil) when nothing matches. Delete fails when the row is still
// referenced by a food log.
type FoodStore interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.StoredFood, error)
	// FindByExternalIDFold matches ignoring letter case and returns the
	// oldest such row.
	FindByExternalIDFold(ctx context.Context, externalID string) (*models.StoredFood, error)
	Get(ctx context.Context, id int64) (*models.StoredFood, error)
	Upsert(ctx context.Context, rec models.CanonicalFoodRecord) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	// ListExternalIDCollisions returns groups of rows whose external ids are
	// equal ignoring case, each group ordered by store id.
	ListExternalIDCollisions(ctx context.Context) ([][]models.StoredFood, error)
}

// LogReferenceStore holds the user logs that point at catalog rows.
type LogReferenceStore interface {
	CountByFoodID(ctx context.Context, foodID int64) (int, error)
	RepointAll(ctx context.Context, fromFoodID, toFoodID int64) (int, error)
}

// Store groups both collaborators. InTx runs fn against a Store bound to a
// single transaction; fn's error rolls everything back.
type Store interface {
	Foods() FoodStore
	Logs() LogReferenceStore
	InTx(ctx context.Context, fn func(tx Store) error) error
}
