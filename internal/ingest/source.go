package ingest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"forma/pkg/models"
)

// ErrUnrecognizedShape marks a file that is neither a JSON array nor an
// object holding one under a known key.
var ErrUnrecognizedShape = errors.New("unrecognized file shape")

// ErrTrailingData marks a file with more content after its JSON document.
var ErrTrailingData = errors.New("trailing data after JSON document")

// defaultArrayKeys are tried, in order, when a file is a JSON object and
// the source did not name its array property.
var defaultArrayKeys = []string{"foods", "items", "data", "products", "supplements"}

// ListInputFiles returns the *.json files directly under dir, sorted by
// name so runs over the same directory see records in the same order.
func ListInputFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// SourceFile is one decoded input file. Digest is the hex BLAKE2b-256 of
// the whole file, so a run can be traced back to its exact inputs.
type SourceFile struct {
	Records []models.RawFoodRecord
	Digest  string
}

func ReadSource(path, arrayKey string) (SourceFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return SourceFile{}, err
	}
	recs, err := DecodeSource(bytes.NewReader(b), arrayKey)
	if err != nil {
		return SourceFile{}, err
	}
	sum := blake2b.Sum256(b)
	return SourceFile{Records: recs, Digest: hex.EncodeToString(sum[:])}, nil
}

// DecodeSource parses one input document. Numbers are kept as json.Number
// so barcodes and ids survive without float rounding.
func DecodeSource(r io.Reader, arrayKey string) ([]models.RawFoodRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}

	switch v := doc.(type) {
	case []any:
		return toRecords(v), nil
	case map[string]any:
		keys := defaultArrayKeys
		if arrayKey != "" {
			keys = append([]string{arrayKey}, defaultArrayKeys...)
		}
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok {
				return toRecords(arr), nil
			}
		}
	}
	return nil, ErrUnrecognizedShape
}

func toRecords(items []any) []models.RawFoodRecord {
	out := make([]models.RawFoodRecord, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, models.RawFoodRecord(m))
		}
	}
	return out
}
