package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrEmptySource = errors.New("empty source text")
)

type ReviewRepository interface {
	// Write paths
	ReplaceReviews(ctx context.Context, rs []Review) error
	InsertReviews(ctx context.Context, rs []Review) error
	LogRun(ctx context.Context, run Run) error

	// Read paths
	ListReviews(ctx context.Context, limit int) ([]Review, error)
}

// ReviewSource yields the raw markdown of the trade-directory reviews page.
type ReviewSource interface {
	FetchReviewsMarkdown(ctx context.Context) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	// DelPrefix drops every key that starts with prefix.
	DelPrefix(ctx context.Context, prefix string) error
}

// PhotoSource lists the files of one cloud-storage folder as raw metadata maps.
type PhotoSource interface {
	ListFolder(ctx context.Context, folderID string) ([]map[string]any, error)
}

// ArtifactWriter persists the assembled dataset outside the repository,
// e.g. as a JSON file for static hosting.
type ArtifactWriter interface {
	WriteReviews(rs []Review) error
}
