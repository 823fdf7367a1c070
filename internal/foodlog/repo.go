package foodlog

import (
	"context"
	"fmt"
	"time"

	"forma/pkg/database"
	"forma/pkg/models"
)

type Repo struct {
	DB database.DBTX
}

func NewRepo(db database.DBTX) *Repo {
	return &Repo{DB: db}
}

// Create inserts a log entry. LoggedAt defaults to now.
func (r *Repo) Create(ctx context.Context, l models.FoodLog) error {
	if l.LoggedAt.IsZero() {
		l.LoggedAt = time.Now().UTC()
	}
	if l.QuantityG <= 0 {
		l.QuantityG = 100
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO food_logs (id, user_id, food_id, quantity_g, logged_at)
		VALUES (?, ?, ?, ?, ?)
	`, l.ID, l.UserID, l.FoodID, l.QuantityG, l.LoggedAt)
	if err != nil {
		return fmt.Errorf("insert food log: %w", err)
	}
	return nil
}

func (r *Repo) CountByFoodID(ctx context.Context, foodID int64) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM food_logs WHERE food_id = ?
	`, foodID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count food logs: %w", err)
	}
	return n, nil
}

// RepointAll moves every log of one food onto another and returns how many
// rows moved.
func (r *Repo) RepointAll(ctx context.Context, from, to int64) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE food_logs SET food_id = ? WHERE food_id = ?
	`, to, from)
	if err != nil {
		return 0, fmt.Errorf("repoint food logs %d -> %d: %w", from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (r *Repo) ListByFood(ctx context.Context, foodID int64, limit, offset int) ([]models.FoodLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, food_id, quantity_g, logged_at
		FROM food_logs
		WHERE food_id = ?
		ORDER BY logged_at DESC, id ASC
		LIMIT ? OFFSET ?
	`, foodID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list food logs: %w", err)
	}
	defer rows.Close()

	out := make([]models.FoodLog, 0, limit)
	for rows.Next() {
		var l models.FoodLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.FoodID, &l.QuantityG, &l.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan food log: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// ListAll streams every log to fn, ordered by id.
func (r *Repo) ListAll(ctx context.Context, fn func(models.FoodLog) error) error {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, food_id, quantity_g, logged_at
		FROM food_logs
		ORDER BY id ASC
	`)
	if err != nil {
		return fmt.Errorf("list all food logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l models.FoodLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.FoodID, &l.QuantityG, &l.LoggedAt); err != nil {
			return fmt.Errorf("scan food log: %w", err)
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	return rows.Err()
}
