package ingest

import (
	"context"
	"errors"
	"sort"
	"strings"

	"forma/pkg/models"
)

// memStore is an in-memory Store. InTx works on a copy that replaces the
// original only when fn succeeds.
type memStore struct {
	foods  map[int64]models.StoredFood
	logs   map[int64]int
	nextID int64
	// failUpsert makes Upsert fail for matching external ids.
	failUpsert func(externalID string) bool
	upserts    int
}

func newMemStore() *memStore {
	return &memStore{foods: map[int64]models.StoredFood{}, logs: map[int64]int{}}
}

var errInvalidRecord = errors.New("check constraint failed")

func (m *memStore) Foods() FoodStore        { return memFoods{m} }
func (m *memStore) Logs() LogReferenceStore { return memLogs{m} }

func (m *memStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	cp := &memStore{
		foods:      make(map[int64]models.StoredFood, len(m.foods)),
		logs:       make(map[int64]int, len(m.logs)),
		nextID:     m.nextID,
		failUpsert: m.failUpsert,
	}
	for k, v := range m.foods {
		cp.foods[k] = v
	}
	for k, v := range m.logs {
		cp.logs[k] = v
	}
	if err := fn(cp); err != nil {
		m.upserts += cp.upserts
		return err
	}
	m.foods, m.logs, m.nextID = cp.foods, cp.logs, cp.nextID
	m.upserts += cp.upserts
	return nil
}

type memFoods struct{ m *memStore }

func (f memFoods) FindByExternalID(_ context.Context, externalID string) (*models.StoredFood, error) {
	for _, v := range f.m.foods {
		if v.ExternalID == externalID {
			v := v
			return &v, nil
		}
	}
	return nil, nil
}

func (f memFoods) FindByExternalIDFold(_ context.Context, externalID string) (*models.StoredFood, error) {
	var found *models.StoredFood
	for _, v := range f.m.foods {
		if strings.EqualFold(v.ExternalID, externalID) && (found == nil || v.ID < found.ID) {
			v := v
			found = &v
		}
	}
	return found, nil
}

func (f memFoods) Get(_ context.Context, id int64) (*models.StoredFood, error) {
	if v, ok := f.m.foods[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func (f memFoods) Upsert(ctx context.Context, rec models.CanonicalFoodRecord) error {
	f.m.upserts++
	if rec.Calories < 0 || strings.TrimSpace(rec.NameEn) == "" {
		return errInvalidRecord
	}
	if f.m.failUpsert != nil && f.m.failUpsert(rec.ExternalID) {
		return errors.New("injected upsert failure")
	}
	if existing, _ := f.FindByExternalID(ctx, rec.ExternalID); existing != nil {
		existing.CanonicalFoodRecord = rec
		f.m.foods[existing.ID] = *existing
		return nil
	}
	f.m.nextID++
	f.m.foods[f.m.nextID] = models.StoredFood{ID: f.m.nextID, CanonicalFoodRecord: rec}
	return nil
}

func (f memFoods) Delete(_ context.Context, id int64) error {
	if f.m.logs[id] > 0 {
		return errors.New("foreign key constraint failed")
	}
	delete(f.m.foods, id)
	return nil
}

func (f memFoods) Count(context.Context) (int, error) { return len(f.m.foods), nil }

func (f memFoods) ListExternalIDCollisions(context.Context) ([][]models.StoredFood, error) {
	byKey := map[string][]models.StoredFood{}
	for _, v := range f.m.foods {
		k := strings.ToLower(v.ExternalID)
		byKey[k] = append(byKey[k], v)
	}
	var keys []string
	for k, rows := range byKey {
		if len(rows) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out [][]models.StoredFood
	for _, k := range keys {
		rows := byKey[k]
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		out = append(out, rows)
	}
	return out, nil
}

type memLogs struct{ m *memStore }

func (l memLogs) CountByFoodID(_ context.Context, id int64) (int, error) { return l.m.logs[id], nil }

func (l memLogs) RepointAll(_ context.Context, from, to int64) (int, error) {
	n := l.m.logs[from]
	l.m.logs[to] += n
	delete(l.m.logs, from)
	return n, nil
}
