package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"forma/pkg/database"
	"forma/pkg/models"
)

const foodColumns = `
	id, external_id, name_en, name_ar, brand_en, brand_ar, category, subcategory,
	serving_size_g, calories, protein_g, carbs_g, fat_g, fiber_g, sugar_g, sodium_mg,
	is_egyptian, barcode, available_at, tags, created_at, updated_at
`

type Repo struct {
	DB database.DBTX
}

type ListQuery struct {
	Q        string // keyword search in English/Arabic name and brand
	Category string
	Egyptian *bool
	Limit    int
	Offset   int
}

func NewRepo(db database.DBTX) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Get(ctx context.Context, id int64) (*models.StoredFood, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+foodColumns+` FROM foods WHERE id = ?`, id)
	f, err := scanFood(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan get: %w", err)
	}
	return f, nil
}

func (r *Repo) FindByExternalID(ctx context.Context, externalID string) (*models.StoredFood, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+foodColumns+` FROM foods WHERE external_id = ?`, externalID)
	f, err := scanFood(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan findByExternalID: %w", err)
	}
	return f, nil
}

func (r *Repo) FindByExternalIDFold(ctx context.Context, externalID string) (*models.StoredFood, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+foodColumns+` FROM foods
		WHERE LOWER(external_id) = LOWER(?)
		ORDER BY id ASC
		LIMIT 1
	`, externalID)
	f, err := scanFood(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan findByExternalIDFold: %w", err)
	}
	return f, nil
}

// Upsert inserts rec or, when its external id exists, overwrites every
// mutable column. external_id itself is never updated.
func (r *Repo) Upsert(ctx context.Context, rec models.CanonicalFoodRecord) error {
	availableAt, err := json.Marshal(nonNil(rec.AvailableAt))
	if err != nil {
		return fmt.Errorf("marshal available_at for %s: %w", rec.ExternalID, err)
	}
	tags, err := json.Marshal(nonNil(rec.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags for %s: %w", rec.ExternalID, err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO foods (
			external_id, name_en, name_ar, brand_en, brand_ar, category, subcategory,
			serving_size_g, calories, protein_g, carbs_g, fat_g, fiber_g, sugar_g, sodium_mg,
			is_egyptian, barcode, available_at, tags
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
		  name_en = excluded.name_en,
		  name_ar = excluded.name_ar,
		  brand_en = excluded.brand_en,
		  brand_ar = excluded.brand_ar,
		  category = excluded.category,
		  subcategory = excluded.subcategory,
		  serving_size_g = excluded.serving_size_g,
		  calories = excluded.calories,
		  protein_g = excluded.protein_g,
		  carbs_g = excluded.carbs_g,
		  fat_g = excluded.fat_g,
		  fiber_g = excluded.fiber_g,
		  sugar_g = excluded.sugar_g,
		  sodium_mg = excluded.sodium_mg,
		  is_egyptian = excluded.is_egyptian,
		  barcode = excluded.barcode,
		  available_at = excluded.available_at,
		  tags = excluded.tags,
		  updated_at = CURRENT_TIMESTAMP
	`,
		rec.ExternalID,
		rec.NameEn,
		rec.NameAr,
		rec.BrandEn,
		rec.BrandAr,
		rec.Category,
		rec.Subcategory,
		rec.ServingSizeG,
		rec.Calories,
		rec.ProteinG,
		rec.CarbsG,
		rec.FatG,
		rec.FiberG,
		rec.SugarG,
		rec.SodiumMg,
		rec.IsEgyptian,
		rec.Barcode,
		string(availableAt),
		string(tags),
	)
	if err != nil {
		return fmt.Errorf("exec upsert for %s: %w", rec.ExternalID, err)
	}
	return nil
}

// Delete removes a food row. It fails with a foreign key error while any
// food log still points at the row.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM foods WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete food %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete food %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM foods`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count foods: %w", err)
	}
	return total, nil
}

// ListExternalIDCollisions groups rows whose external ids differ only in
// letter case. Groups and their members come back ordered by id.
func (r *Repo) ListExternalIDCollisions(ctx context.Context) ([][]models.StoredFood, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+foodColumns+`
		FROM foods
		WHERE LOWER(external_id) IN (
			SELECT LOWER(external_id) FROM foods
			GROUP BY LOWER(external_id)
			HAVING COUNT(*) > 1
		)
		ORDER BY LOWER(external_id) ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("collision query: %w", err)
	}
	defer rows.Close()

	var (
		out     [][]models.StoredFood
		lastKey string
	)
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("collision scan: %w", err)
		}
		key := strings.ToLower(f.ExternalID)
		if len(out) == 0 || key != lastKey {
			out = append(out, nil)
			lastKey = key
		}
		out[len(out)-1] = append(out[len(out)-1], *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) CountList(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.StoredFood, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.StoredFood, 0, q.Limit)
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// buildListSQL builds either COUNT(*) or SELECT list.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT ` + foodColumns + ` FROM foods`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM foods`
	}

	var where []string
	var args []any

	if kw := strings.ToLower(strings.TrimSpace(q.Q)); kw != "" {
		where = append(where, "(LOWER(name_en) LIKE ? OR name_ar LIKE ? OR LOWER(COALESCE(brand_en, '')) LIKE ?)")
		like := "%" + kw + "%"
		args = append(args, like, like, like)
	}

	if c := strings.TrimSpace(q.Category); c != "" {
		where = append(where, "category = ?")
		args = append(args, strings.ToUpper(c))
	}

	if q.Egyptian != nil {
		where = append(where, "is_egyptian = ?")
		args = append(args, *q.Egyptian)
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY name_en ASC, id ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFood(s scanner) (*models.StoredFood, error) {
	var (
		f           models.StoredFood
		brandEn     sql.NullString
		brandAr     sql.NullString
		subcategory sql.NullString
		sugar       sql.NullFloat64
		sodium      sql.NullFloat64
		barcode     sql.NullString
		availableAt string
		tags        string
	)
	if err := s.Scan(
		&f.ID, &f.ExternalID, &f.NameEn, &f.NameAr, &brandEn, &brandAr, &f.Category, &subcategory,
		&f.ServingSizeG, &f.Calories, &f.ProteinG, &f.CarbsG, &f.FatG, &f.FiberG, &sugar, &sodium,
		&f.IsEgyptian, &barcode, &availableAt, &tags, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return nil, err
	}

	f.BrandEn = stringPtr(brandEn)
	f.BrandAr = stringPtr(brandAr)
	f.Subcategory = stringPtr(subcategory)
	f.SugarG = floatPtr(sugar)
	f.SodiumMg = floatPtr(sodium)
	f.Barcode = stringPtr(barcode)

	_ = json.Unmarshal([]byte(availableAt), &f.AvailableAt)
	_ = json.Unmarshal([]byte(tags), &f.Tags)
	return &f, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
