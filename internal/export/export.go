// Package export writes CSV reports of an index: every entity ranked by
// frequency, and the strongest co-occurrence pairs.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
)

const (
	EntitiesFile     = "entities_report.csv"
	CoOccurrenceFile = "co_occurrence.csv"
	// DefaultMaxPairs bounds the co-occurrence report.
	DefaultMaxPairs = 5000
)

// Entities writes "Rank,Entity,Frequency" for every entity, most frequent
// first.
func Entities(w io.Writer, x *index.Index) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Rank", "Entity", "Frequency"}); err != nil {
		return 0, err
	}
	rows := x.TopEntities(0)
	for i, ec := range rows {
		if err := cw.Write([]string{strconv.Itoa(i + 1), ec.Entity, strconv.Itoa(ec.Count)}); err != nil {
			return i, err
		}
	}
	cw.Flush()
	return len(rows), cw.Error()
}

// CoOccurrence writes "Source,Target,Weight" for the maxPairs heaviest
// unordered pairs, each listed once with Source < Target. maxPairs <= 0
// writes every pair.
func CoOccurrence(w io.Writer, x *index.Index, maxPairs int) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Source", "Target", "Weight"}); err != nil {
		return 0, err
	}
	pairs := x.TopPairs(maxPairs)
	for i, p := range pairs {
		if err := cw.Write([]string{p.Source, p.Target, strconv.Itoa(p.Weight)}); err != nil {
			return i, err
		}
	}
	cw.Flush()
	return len(pairs), cw.Error()
}

// Summary reports what WriteDir produced.
type Summary struct {
	EntitiesPath     string
	Entities         int
	CoOccurrencePath string
	Pairs            int
}

// WriteDir writes both reports into dir, creating it if needed.
func WriteDir(dir string, x *index.Index, maxPairs int) (Summary, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("creating export dir: %w", err)
	}
	s := Summary{
		EntitiesPath:     filepath.Join(dir, EntitiesFile),
		CoOccurrencePath: filepath.Join(dir, CoOccurrenceFile),
	}
	var err error
	if s.Entities, err = writeFile(s.EntitiesPath, func(w io.Writer) (int, error) {
		return Entities(w, x)
	}); err != nil {
		return s, err
	}
	if s.Pairs, err = writeFile(s.CoOccurrencePath, func(w io.Writer) (int, error) {
		return CoOccurrence(w, x, maxPairs)
	}); err != nil {
		return s, err
	}
	slog.Info("export written",
		"entities_path", s.EntitiesPath,
		"entities", s.Entities,
		"co_occurrence_path", s.CoOccurrencePath,
		"pairs", s.Pairs,
	)
	return s, nil
}

func writeFile(path string, fn func(io.Writer) (int, error)) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}
	n, err := fn(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", path, err)
	}
	return n, nil
}
