package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"forma/internal/catalog"
	"forma/internal/foodlog"
	"forma/pkg/database"
	"forma/pkg/logger"
	"forma/pkg/models"
	"forma/pkg/utils"
)

const pageSize = 100

var foodHeader = []string{
	"external_id", "name_en", "name_ar", "brand_en", "brand_ar", "category", "subcategory",
	"serving_size_g", "calories", "protein_g", "carbs_g", "fat_g", "fiber_g", "sugar_g", "sodium_mg",
	"is_egyptian", "barcode", "available_at", "tags",
}

var logHeader = []string{"id", "user_id", "food_external_id", "quantity_g", "logged_at"}

func main() {
	utils.LoadDotEnv()
	var (
		foodsOut = flag.String("foods", "data/export/foods.csv", "output CSV path for foods")
		logsOut  = flag.String("logs", "data/export/food_logs.csv", "output CSV path for food logs")
	)
	flag.Parse()

	log, err := logger.New(os.Getenv("FORMA_LOG_MODE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Open(database.DefaultConfig())
	if err != nil {
		log.Fatal("catalog store unavailable", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal("db migrate failed", "error", err)
	}

	var externalIDs map[int64]string
	err = writeFile(*foodsOut, func(w io.Writer) error {
		externalIDs, err = exportFoods(ctx, catalog.NewRepo(db), w)
		return err
	})
	if err != nil {
		log.Fatal("export foods failed", "error", err)
	}
	err = writeFile(*logsOut, func(w io.Writer) error {
		return exportLogs(ctx, foodlog.NewRepo(db), externalIDs, w)
	})
	if err != nil {
		log.Fatal("export food logs failed", "error", err)
	}

	log.Info("export finished", "foods", *foodsOut, "food_logs", *logsOut, "food_rows", len(externalIDs))
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// exportFoods writes every catalog row and returns the store id to
// external id mapping for the log export.
func exportFoods(ctx context.Context, repo *catalog.Repo, out io.Writer) (map[int64]string, error) {
	w := csv.NewWriter(out)
	if err := w.Write(foodHeader); err != nil {
		return nil, err
	}

	ids := make(map[int64]string)
	for offset := 0; ; offset += pageSize {
		page, err := repo.List(ctx, catalog.ListQuery{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, f := range page {
			ids[f.ID] = f.ExternalID
			if err := w.Write(foodRow(f)); err != nil {
				return nil, err
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	w.Flush()
	return ids, w.Error()
}

func foodRow(f models.StoredFood) []string {
	return []string{
		f.ExternalID,
		f.NameEn,
		f.NameAr,
		deref(f.BrandEn),
		deref(f.BrandAr),
		f.Category,
		deref(f.Subcategory),
		formatFloat(f.ServingSizeG),
		formatFloat(f.Calories),
		formatFloat(f.ProteinG),
		formatFloat(f.CarbsG),
		formatFloat(f.FatG),
		formatFloat(f.FiberG),
		formatFloatPtr(f.SugarG),
		formatFloatPtr(f.SodiumMg),
		strconv.FormatBool(f.IsEgyptian),
		deref(f.Barcode),
		strings.Join(f.AvailableAt, "|"),
		strings.Join(f.Tags, "|"),
	}
}

func exportLogs(ctx context.Context, repo *foodlog.Repo, externalIDs map[int64]string, out io.Writer) error {
	w := csv.NewWriter(out)
	if err := w.Write(logHeader); err != nil {
		return err
	}

	err := repo.ListAll(ctx, func(l models.FoodLog) error {
		return w.Write([]string{
			l.ID,
			l.UserID,
			externalIDs[l.FoodID],
			formatFloat(l.QuantityG),
			l.LoggedAt.UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
