package ingest

import (
	"time"

	"forma/pkg/logger"
)

const (
	maxErrorDetails = 5
	maxErrorLen     = 160
)

// Summary is the run report. Every count is derived from the data the run
// produced.
type Summary struct {
	RunID             string
	FilesProcessed    int
	FilesSkipped      int
	Candidates        int
	UniqueCandidates  int
	DuplicatesSkipped int
	InvalidSkipped    int
	Committed         int
	Errors            []RecordError
	FinalCount        int
	Cleanup           *CleanupResult
	Duration          time.Duration
}

// Failed reports whether any record or retirement failed.
func (s *Summary) Failed() bool {
	if len(s.Errors) > 0 {
		return true
	}
	return s.Cleanup != nil && len(s.Cleanup.Errors) > 0
}

// Log writes the summary. Only the first few record errors are detailed.
func (s *Summary) Log(log *logger.Logger) {
	log = log.With("run_id", s.RunID)
	log.Info("ingest summary",
		"files_processed", s.FilesProcessed,
		"files_skipped", s.FilesSkipped,
		"records_read", s.Candidates,
		"unique_candidates", s.UniqueCandidates,
		"duplicates_skipped", s.DuplicatesSkipped,
		"invalid_skipped", s.InvalidSkipped,
		"committed", s.Committed,
		"errors", len(s.Errors),
		"final_count", s.FinalCount,
		"duration", s.Duration.Round(time.Millisecond),
	)

	if s.Cleanup != nil {
		log.Info("cleanup summary",
			"collision_groups", s.Cleanup.Groups,
			"retired", len(s.Cleanup.Retired),
			"errors", len(s.Cleanup.Errors),
		)
	}

	for i, e := range s.Errors {
		if i == maxErrorDetails {
			log.Warn("more record errors not shown", "count", len(s.Errors)-maxErrorDetails)
			break
		}
		log.Warn("record failed",
			"name", e.Record.NameEn,
			"external_id", e.Record.ExternalID,
			"error", truncate(e.Err.Error(), maxErrorLen),
		)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
