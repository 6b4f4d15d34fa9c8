package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pnm_gardeners/internal/domain"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

type QueryService struct {
	repo     domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// every listing variant lives under this prefix, one key per limit
const reviewsKeyPrefix = "reviews:"

func reviewsKey(limit int) string { return fmt.Sprintf("%s%d", reviewsKeyPrefix, limit) }

// ListReviews returns approved reviews, newest first, read through the cache.
func (s *QueryService) ListReviews(ctx context.Context, limit int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	key := reviewsKey(limit)
	var out []domain.Review
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	rs, err := s.repo.ListReviews(ctx, limit)
	if err != nil {
		return nil, err
	}

	// copy slice to avoid aliasing the repo's backing array
	out = make([]domain.Review, len(rs))
	copy(out, rs)

	// optional size guard
	if s.cache != nil {
		if b, _ := json.Marshal(out); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
		}
	}
	return out, nil
}
