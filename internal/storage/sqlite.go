package storage

import (
	"context"
	"database/sql"
	"fmt"

	"forma/internal/catalog"
	"forma/internal/foodlog"
	"forma/internal/ingest"
	"forma/pkg/database"
)

// SQLite is the ingest.Store backed by one SQLite database. A value made by
// InTx is bound to that transaction.
type SQLite struct {
	db *sql.DB
	tx *sql.Tx
}

var _ ingest.Store = (*SQLite)(nil)

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) conn() database.DBTX {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *SQLite) Foods() ingest.FoodStore {
	return catalog.NewRepo(s.conn())
}

func (s *SQLite) Logs() ingest.LogReferenceStore {
	return foodlog.NewRepo(s.conn())
}

// InTx runs fn in a transaction and commits when fn returns nil. A nested
// call joins the outer transaction.
func (s *SQLite) InTx(ctx context.Context, fn func(tx ingest.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&SQLite{db: s.db, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
