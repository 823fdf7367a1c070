package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"forma/internal/catalog"
	"forma/internal/foodlog"
	"forma/pkg/database"
	"forma/pkg/logger"
	"forma/pkg/models"
	"forma/pkg/utils"
)

type importResult struct {
	Imported int
	// Skipped counts rows without a user, an unknown food, or bad numbers.
	Skipped int
}

func main() {
	utils.LoadDotEnv()
	in := flag.String("logs", "data/food_logs.csv", "input CSV path for food logs")
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

	f, err := os.Open(*in)
	if err != nil {
		log.Fatal("open input failed", "path", *in, "error", err)
	}
	defer f.Close()

	res, err := importLogs(ctx, catalog.NewRepo(db), foodlog.NewRepo(db), f, log)
	if err != nil {
		log.Fatal("import food logs failed", "error", err)
	}
	log.Info("import finished", "path", *in, "imported", res.Imported, "skipped", res.Skipped)
}

// importLogs reads user_id,food_external_id,quantity_g,logged_at rows. An
// id column is honoured when present; otherwise each row gets a new uuid.
func importLogs(ctx context.Context, foods *catalog.Repo, logs *foodlog.Repo, in io.Reader, log *logger.Logger) (importResult, error) {
	var res importResult

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return res, fmt.Errorf("read header: %w", err)
	}

	line := 1
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}

		userID := valueAt(header, row, "user_id")
		externalID := valueAt(header, row, "food_external_id")
		if userID == "" || externalID == "" {
			res.Skipped++
			continue
		}

		food, err := foods.FindByExternalID(ctx, externalID)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		if food == nil {
			log.Warn("unknown food, row skipped", "line", line, "food_external_id", externalID)
			res.Skipped++
			continue
		}

		entry := models.FoodLog{
			ID:     valueAt(header, row, "id"),
			UserID: userID,
			FoodID: food.ID,
		}
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if q := valueAt(header, row, "quantity_g"); q != "" {
			entry.QuantityG, err = strconv.ParseFloat(q, 64)
			if err != nil {
				log.Warn("bad quantity, row skipped", "line", line, "value", q)
				res.Skipped++
				continue
			}
		}
		if ts := valueAt(header, row, "logged_at"); ts != "" {
			entry.LoggedAt, err = time.Parse(time.RFC3339, ts)
			if err != nil {
				log.Warn("bad logged_at, row skipped", "line", line, "value", ts)
				res.Skipped++
				continue
			}
		}

		if err := logs.Create(ctx, entry); err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		res.Imported++
	}
	return res, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
