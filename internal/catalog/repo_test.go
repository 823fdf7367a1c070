package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forma/internal/dbtest"
	"forma/pkg/models"
)

func food(externalID, name string) models.CanonicalFoodRecord {
	return models.CanonicalFoodRecord{
		ExternalID:   externalID,
		NameEn:       name,
		NameAr:       name,
		Category:     "MAIN",
		ServingSizeG: 100,
		Calories:     150,
		ProteinG:     5,
		AvailableAt:  []string{"Egyptian Markets"},
		Tags:         []string{"main"},
		IsEgyptian:   true,
	}
}

func ptr[T any](v T) *T { return &v }

func TestUpsertInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(dbtest.Open(t))

	rec := food("food-koshari", "Koshari")
	rec.BrandEn = ptr("Abou Tarek")
	rec.SugarG = ptr(2.5)
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err := repo.FindByExternalID(ctx, "food-koshari")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Koshari", got.NameEn)
	assert.Equal(t, "Abou Tarek", *got.BrandEn)
	assert.Equal(t, 2.5, *got.SugarG)
	assert.Nil(t, got.SodiumMg)
	assert.Equal(t, []string{"Egyptian Markets"}, got.AvailableAt)
	assert.True(t, got.IsEgyptian)

	rec.Calories = 320
	rec.BrandEn = nil
	require.NoError(t, repo.Upsert(ctx, rec))

	again, err := repo.FindByExternalID(ctx, "food-koshari")
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID, "upsert must keep the row id")
	assert.Equal(t, 320.0, again.Calories)
	assert.Nil(t, again.BrandEn)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertRejectsConstraintViolations(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(dbtest.Open(t))

	bad := food("food-bad", "Bad")
	bad.Calories = -1
	assert.Error(t, repo.Upsert(ctx, bad))

	blank := food("food-blank", "   ")
	assert.Error(t, repo.Upsert(ctx, blank))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLookupsReturnNilWhenMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(dbtest.Open(t))

	f, err := repo.FindByExternalID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = repo.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, f)

	assert.Error(t, repo.Delete(ctx, 42))
}

func TestListExternalIDCollisions(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(dbtest.Open(t))

	require.NoError(t, repo.Upsert(ctx, food("food-ful", "Ful")))
	require.NoError(t, repo.Upsert(ctx, food("FOOD-FUL", "Ful Medames")))
	require.NoError(t, repo.Upsert(ctx, food("food-taameya", "Taameya")))
	require.NoError(t, repo.Upsert(ctx, food("Food-Ful", "ful")))

	groups, err := repo.ListExternalIDCollisions(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 3)
	assert.Equal(t, "food-ful", groups[0][0].ExternalID)
	assert.Less(t, groups[0][0].ID, groups[0][1].ID)
	assert.Less(t, groups[0][1].ID, groups[0][2].ID)
}

func TestFindByExternalIDFold(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(dbtest.Open(t))

	require.NoError(t, repo.Upsert(ctx, food("EG-001", "Ful")))
	require.NoError(t, repo.Upsert(ctx, food("eg-001", "Ful")))

	got, err := repo.FindByExternalIDFold(ctx, "Eg-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "EG-001", got.ExternalID)

	got, err = repo.FindByExternalIDFold(ctx, "eg-002")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(dbtest.Open(t))

	a := food("food-koshari", "Koshari")
	b := food("food-whey", "Whey Protein")
	b.Category = "SUPPLEMENT"
	b.IsEgyptian = false
	b.BrandEn = ptr("Optimum")
	c := food("food-molokhia", "Molokhia")
	c.NameAr = "ملوخية"
	for _, r := range []models.CanonicalFoodRecord{a, b, c} {
		require.NoError(t, repo.Upsert(ctx, r))
	}

	total, err := repo.CountList(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	items, err := repo.List(ctx, ListQuery{Category: "supplement"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "food-whey", items[0].ExternalID)

	items, err = repo.List(ctx, ListQuery{Q: "optimum"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, err = repo.List(ctx, ListQuery{Q: "ملوخ"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "food-molokhia", items[0].ExternalID)

	total, err = repo.CountList(ctx, ListQuery{Egyptian: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	items, err = repo.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Koshari", items[0].NameEn)
	assert.Equal(t, "Molokhia", items[1].NameEn)

	items, err = repo.List(ctx, ListQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Whey Protein", items[0].NameEn)
}
