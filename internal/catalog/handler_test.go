package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forma/internal/dbtest"
)

type refsByID map[int64]int

func (r refsByID) CountByFoodID(_ context.Context, id int64) (int, error) { return r[id], nil }

type fixedRefs struct {
	n   int
	err error
}

func (f fixedRefs) CountByFoodID(context.Context, int64) (int, error) { return f.n, f.err }

func newTestRouter(t *testing.T, refs ReferenceCounter) (*gin.Engine, *Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := NewRepo(dbtest.Open(t))
	r := gin.New()
	NewHandler(repo, refs, nil).RegisterRoutes(r.Group("/foods"))
	return r, repo
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGetByExternalID(t *testing.T) {
	r, repo := newTestRouter(t, fixedRefs{})
	require.NoError(t, repo.Upsert(context.Background(), food("food-koshari", "Koshari")))

	w := get(r, "/foods/food-koshari")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Koshari", body["name_en"])

	assert.Equal(t, http.StatusNotFound, get(r, "/foods/food-missing").Code)
}

func TestGetByExternalIDServesFromCache(t *testing.T) {
	r, repo := newTestRouter(t, fixedRefs{})
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, food("food-koshari", "Koshari")))

	require.Equal(t, http.StatusOK, get(r, "/foods/food-koshari").Code)

	f, err := repo.FindByExternalID(ctx, "food-koshari")
	require.NoError(t, err)
	_, err = repo.DB.ExecContext(ctx, `DELETE FROM foods WHERE id = ?`, f.ID)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(r, "/foods/food-koshari").Code)
}

func TestList(t *testing.T) {
	r, repo := newTestRouter(t, fixedRefs{})
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, food("food-koshari", "Koshari")))
	require.NoError(t, repo.Upsert(ctx, food("food-ful", "Ful")))

	w := get(r, "/foods?limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Total int              `json:"total"`
		Limit int              `json:"limit"`
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 1, body.Limit)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Ful", body.Items[0]["name_en"])

	assert.Equal(t, http.StatusBadRequest, get(r, "/foods?egyptian=maybe").Code)
}

func TestReferences(t *testing.T) {
	r, repo := newTestRouter(t, fixedRefs{n: 3})
	require.NoError(t, repo.Upsert(context.Background(), food("food-koshari", "Koshari")))

	w := get(r, "/foods/food-koshari/references")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["references"])
	assert.Equal(t, "food-koshari", body["external_id"])

	assert.Equal(t, http.StatusNotFound, get(r, "/foods/food-missing/references").Code)
}

func TestReferencesCountFailure(t *testing.T) {
	r, repo := newTestRouter(t, fixedRefs{err: errors.New("boom")})
	require.NoError(t, repo.Upsert(context.Background(), food("food-koshari", "Koshari")))

	assert.Equal(t, http.StatusInternalServerError, get(r, "/foods/food-koshari/references").Code)
}

func TestReferencesSkipCachedRow(t *testing.T) {
	ctx := context.Background()
	gin.SetMode(gin.TestMode)
	repo := NewRepo(dbtest.Open(t))
	require.NoError(t, repo.Upsert(ctx, food("food-ful", "Ful")))
	old, err := repo.FindByExternalID(ctx, "food-ful")
	require.NoError(t, err)

	refs := refsByID{}
	r := gin.New()
	NewHandler(repo, refs, nil).RegisterRoutes(r.Group("/foods"))
	require.Equal(t, http.StatusOK, get(r, "/foods/food-ful").Code)

	// Replace the row under the same external id, as a retirement followed
	// by a re-ingest would.
	_, err = repo.DB.ExecContext(ctx, `DELETE FROM foods WHERE id = ?`, old.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, food("food-ful", "Ful")))
	fresh, err := repo.FindByExternalID(ctx, "food-ful")
	require.NoError(t, err)
	require.NotEqual(t, old.ID, fresh.ID)
	refs[fresh.ID] = 4

	w := get(r, "/foods/food-ful/references")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(fresh.ID), body["food_id"])
	assert.Equal(t, float64(4), body["references"])
}
