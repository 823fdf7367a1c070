package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"forma/pkg/logger"
	"forma/pkg/models"
)

type Options struct {
	InputDir  string
	BatchSize int
	// Default applies to every file without an entry in Sources.
	Default SourceOptions
	// Sources overrides normalization per file, keyed by base name.
	Sources map[string]SourceOptions
	// Cleanup merges case-colliding rows already in the store before the
	// new records are committed.
	Cleanup bool
}

// Pipeline runs one ingestion: read, normalize, de-duplicate, commit.
// Two pipelines must not run against the same store at the same time.
type Pipeline struct {
	Store Store
	Opts  Options
	Log   *logger.Logger
}

func NewPipeline(store Store, opts Options, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{Store: store, Opts: opts, Log: log}
}

func (p *Pipeline) sourceFor(path string) SourceOptions {
	if s, ok := p.Opts.Sources[filepath.Base(path)]; ok {
		return s
	}
	return p.Opts.Default
}

// Run processes every input file and commits the survivors. The returned
// summary is filled as far as the run got, even on error.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	sum := &Summary{RunID: uuid.NewString()}
	log := p.Log.With("run_id", sum.RunID)

	files, err := ListInputFiles(p.Opts.InputDir)
	if err != nil {
		return sum, err
	}
	log.Info("starting ingest", "input_dir", p.Opts.InputDir, "files", len(files))

	session := NewSession()
	for _, path := range files {
		src := p.sourceFor(path)
		file, err := ReadSource(path, src.ArrayKey)
		if err != nil {
			log.Warn("skipping input file", "file", path, "error", err)
			sum.FilesSkipped++
			continue
		}

		recs := make([]models.CanonicalFoodRecord, 0, len(file.Records))
		for i, raw := range file.Records {
			recs = append(recs, Normalize(raw, session.Seen()+i+1, src))
		}
		session.Add(filepath.Base(path), recs)
		sum.FilesProcessed++
		log.Info("read input file",
			"file", path,
			"records", len(recs),
			"namespace", src.Namespace,
			"blake2b", file.Digest,
		)
	}

	sum.Candidates = session.Seen()
	sum.InvalidSkipped = len(session.Invalid())
	sum.DuplicatesSkipped = session.DuplicatesSkipped()
	survivors := session.Survivors()
	sum.UniqueCandidates = len(survivors)

	for _, g := range session.Duplicates() {
		winner, losers := ResolveGroup(g.Candidates)
		for _, l := range losers {
			log.Debug("duplicate skipped",
				"name", l.Record.NameEn,
				"external_id", l.Record.ExternalID,
				"source", l.Source,
				"kept_source", winner.Source,
				"kept_score", Score(winner.Record),
				"score", Score(l.Record),
			)
		}
	}

	if p.Opts.Cleanup {
		cr, err := CleanupCatalog(ctx, p.Store, CleanupOptions{}, log)
		sum.Cleanup = &cr
		if err != nil {
			return sum, err
		}
	}

	survivors, err = adoptStoredIDs(ctx, p.Store.Foods(), survivors)
	if err != nil {
		return sum, err
	}

	committer := NewCommitter(p.Store, p.Opts.BatchSize, log)
	cres, err := committer.Commit(ctx, survivors)
	sum.Committed = cres.Committed
	sum.Errors = cres.Errors
	if err != nil {
		return sum, err
	}

	sum.FinalCount, err = p.Store.Foods().Count(ctx)
	if err != nil {
		return sum, fmt.Errorf("count catalog: %w", err)
	}
	sum.Duration = time.Since(started)
	return sum, nil
}

// adoptStoredIDs rewrites each record's external id to the spelling already
// in the store when the two differ only in letter case, so the upsert hits
// the existing row instead of adding a case variant.
func adoptStoredIDs(ctx context.Context, foods FoodStore, records []models.CanonicalFoodRecord) ([]models.CanonicalFoodRecord, error) {
	for i, rec := range records {
		existing, err := foods.FindByExternalIDFold(ctx, rec.ExternalID)
		if err != nil {
			return records, fmt.Errorf("resolve stored id for %s: %w", rec.ExternalID, err)
		}
		if existing != nil && existing.ExternalID != rec.ExternalID {
			records[i].ExternalID = existing.ExternalID
		}
	}
	return records, nil
}
