// Package jsonfile keeps the review set in a single JSON file. It backs the
// static artifact written after every ingestion and doubles as a database-free
// repository for local runs.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"pnm_gardeners/internal/domain"
)

type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store { return &Store{path: path} }

func (s *Store) Path() string { return s.path }

// WriteReviews replaces the file contents with rs.
func (s *Store) WriteReviews(rs []domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(rs)
}

func (s *Store) ReplaceReviews(ctx context.Context, rs []domain.Review) error {
	return s.WriteReviews(rs)
}

func (s *Store) InsertReviews(ctx context.Context, rs []domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.read()
	if err != nil {
		return err
	}
	return s.write(append(cur, rs...))
}

// ListReviews returns approved reviews, newest first. A missing file is an
// empty set.
func (s *Store) ListReviews(ctx context.Context, limit int) ([]domain.Review, error) {
	s.mu.Lock()
	rs, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := rs[:0]
	for _, r := range rs {
		if r.Approved {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LogRun has no file of its own; runs go to the log.
func (s *Store) LogRun(ctx context.Context, run domain.Run) error {
	log.Info().
		Str("source", run.Source).
		Int("segments", run.Segments).
		Int("skipped", run.Skipped).
		Int("stored", run.Stored).
		Str("file", s.path).
		Msg("ingest run")
	return nil
}

func (s *Store) read() ([]domain.Review, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rs []domain.Review
	if err := json.Unmarshal(b, &rs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return rs, nil
}

// write goes through a temp file and rename so readers never see a partial set.
func (s *Store) write(rs []domain.Review) error {
	if rs == nil {
		rs = []domain.Review{}
	}
	b, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".reviews-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
