package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pnm_gardeners/internal/adapters/observability"
	"pnm_gardeners/internal/domain"
	"pnm_gardeners/internal/extract"
)

const (
	SourceCheckatrade = "checkatrade"
	SourceDrive       = "drive"

	insertBatchSize = 50
)

// Report summarises one ingestion run.
type Report struct {
	Source   string
	Segments int
	Parsed   int
	Skipped  int
	Stored   int
	Reviews  []domain.Review
}

type IngestionService struct {
	source    domain.ReviewSource
	repo      domain.ReviewRepository
	cache     domain.Cache
	extractor *extract.Extractor
	assembler *Assembler
	artifact  domain.ArtifactWriter

	sourceScale float64
}

// NewIngestionService wires the pipeline. source, repo and cache may be nil:
// a nil repo turns the service into a dry run that only assembles records.
func NewIngestionService(src domain.ReviewSource, r domain.ReviewRepository, cache domain.Cache, ex *extract.Extractor, asm *Assembler) *IngestionService {
	return &IngestionService{
		source:      src,
		repo:        r,
		cache:       cache,
		extractor:   ex,
		assembler:   asm,
		sourceScale: asm.Scale(),
	}
}

// WithArtifact makes every successful run also write the dataset through w.
func (s *IngestionService) WithArtifact(w domain.ArtifactWriter) *IngestionService {
	s.artifact = w
	return s
}

// WithSourceScale declares the rating scale the review page publishes on.
func (s *IngestionService) WithSourceScale(scale float64) *IngestionService {
	s.sourceScale = scale
	return s
}

// IngestPage fetches the reviews page and runs it through IngestMarkdown.
func (s *IngestionService) IngestPage(ctx context.Context) (Report, error) {
	if s.source == nil {
		return Report{}, fmt.Errorf("ingest page: no review source configured")
	}
	md, err := s.source.FetchReviewsMarkdown(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("fetch reviews page: %w", err)
	}
	return s.IngestMarkdown(ctx, SourceCheckatrade, md)
}

// IngestMarkdown extracts, assembles and stores the reviews in text,
// replacing the previously stored set.
func (s *IngestionService) IngestMarkdown(ctx context.Context, source, text string) (Report, error) {
	if strings.TrimSpace(text) == "" {
		return Report{Source: source}, domain.ErrEmptySource
	}

	res := s.extractor.Extract(text)
	observability.ObserveSegments(len(res.Reviews), res.Skipped)

	reviews := s.assembler.Assemble(res.Reviews, s.sourceScale)
	rep := Report{
		Source:   source,
		Segments: res.Segments,
		Parsed:   len(res.Reviews),
		Skipped:  res.Skipped,
		Reviews:  reviews,
	}

	if s.artifact != nil {
		if err := s.artifact.WriteReviews(reviews); err != nil {
			return rep, fmt.Errorf("write artifact: %w", err)
		}
	}

	if s.repo == nil {
		return rep, nil
	}
	if err := s.repo.ReplaceReviews(ctx, reviews); err != nil {
		// IMPORTANT: do not swallow this; a failed replace leaves the old set in place
		return rep, fmt.Errorf("replace reviews (%s): %w", source, err)
	}
	rep.Stored = len(reviews)
	s.finish(ctx, rep)
	return rep, nil
}

// IngestPhotos groups photo items into reviews and stores them. With replace
// set the grouped records become the whole stored set; otherwise they are
// appended in batches.
func (s *IngestionService) IngestPhotos(ctx context.Context, items []domain.PhotoItem, sourceScale float64, replace bool) (Report, error) {
	reviews := s.assembler.GroupPhotos(items, sourceScale)
	rep := Report{
		Source:   SourceDrive,
		Segments: len(items),
		Parsed:   len(reviews),
		Reviews:  reviews,
	}
	if len(reviews) == 0 {
		return rep, domain.ErrEmptySource
	}
	if s.repo == nil {
		return rep, nil
	}

	if replace {
		if err := s.repo.ReplaceReviews(ctx, reviews); err != nil {
			return rep, fmt.Errorf("replace photo reviews: %w", err)
		}
		rep.Stored = len(reviews)
	} else {
		for start := 0; start < len(reviews); start += insertBatchSize {
			end := min(start+insertBatchSize, len(reviews))
			if err := s.repo.InsertReviews(ctx, reviews[start:end]); err != nil {
				s.finish(ctx, rep)
				return rep, fmt.Errorf("insert photo reviews [%d:%d]: %w", start, end, err)
			}
			rep.Stored = end
		}
	}
	s.finish(ctx, rep)
	return rep, nil
}

// finish records the run and drops cached listings. Both are best-effort.
func (s *IngestionService) finish(ctx context.Context, rep Report) {
	observability.ObserveIngest(rep.Source, rep.Stored)
	run := domain.Run{Source: rep.Source, Segments: rep.Segments, Skipped: rep.Skipped, Stored: rep.Stored}
	if err := s.repo.LogRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("source", rep.Source).Msg("log run failed")
	}
	if s.cache != nil {
		s.invalidateReviews(ctx)
	}
}

// invalidateReviews drops the cached listing for every limit.
func (s *IngestionService) invalidateReviews(ctx context.Context) {
	if err := s.cache.DelPrefix(ctx, reviewsKeyPrefix); err != nil {
		log.Warn().Err(err).Msg("listing cache invalidation failed")
	}
}
