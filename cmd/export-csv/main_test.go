package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forma/internal/catalog"
	"forma/internal/dbtest"
	"forma/internal/foodlog"
	"forma/pkg/models"
)

func TestExportFoodsAndLogs(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	foods := catalog.NewRepo(db)
	logs := foodlog.NewRepo(db)

	sugar := 1.5
	require.NoError(t, foods.Upsert(ctx, models.CanonicalFoodRecord{
		ExternalID: "food-koshari", NameEn: "Koshari", NameAr: "كشري", Category: "MAIN",
		ServingSizeG: 100, Calories: 300, SugarG: &sugar, IsEgyptian: true,
		AvailableAt: []string{"Cairo", "Giza"}, Tags: []string{"main"},
	}))
	k, err := foods.FindByExternalID(ctx, "food-koshari")
	require.NoError(t, err)
	loggedAt := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, logs.Create(ctx, models.FoodLog{ID: "log-1", UserID: "u1", FoodID: k.ID, QuantityG: 250, LoggedAt: loggedAt}))

	var foodsOut bytes.Buffer
	ids, err := exportFoods(ctx, foods, &foodsOut)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{k.ID: "food-koshari"}, ids)

	rows, err := csv.NewReader(&foodsOut).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, foodHeader, rows[0])
	assert.Equal(t, []string{
		"food-koshari", "Koshari", "كشري", "", "", "MAIN", "",
		"100", "300", "0", "0", "0", "0", "1.5", "",
		"true", "", "Cairo|Giza", "main",
	}, rows[1])

	var logsOut bytes.Buffer
	require.NoError(t, exportLogs(ctx, logs, ids, &logsOut))
	rows, err = csv.NewReader(&logsOut).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"log-1", "u1", "food-koshari", "250", "2024-03-01T08:30:00Z"}, rows[1])
}
