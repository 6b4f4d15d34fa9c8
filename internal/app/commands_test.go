package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pnm_gardeners/internal/app"
	"pnm_gardeners/internal/domain"
	"pnm_gardeners/internal/extract"
)

const pageMarkdown = `# Reviews

- 10
### Lawn mowing
Posted 3 days ago
Tidy job, on time.
Job location: SW12

- 9
### Fence painting
Posted 1 week ago
Lovely colour.
Job location: SW19

- 4
nothing to see here
`

type fakeSource struct {
	md  string
	err error
}

func (f fakeSource) FetchReviewsMarkdown(ctx context.Context) (string, error) { return f.md, f.err }

type fakeArtifact struct {
	got []domain.Review
	err error
}

func (f *fakeArtifact) WriteReviews(rs []domain.Review) error {
	f.got = rs
	return f.err
}

func newService(src domain.ReviewSource, repo domain.ReviewRepository, cache domain.Cache) *app.IngestionService {
	ex := extract.New(extract.DefaultOptions(), nil)
	return app.NewIngestionService(src, repo, cache, ex, newTestAssembler(false))
}

func TestIngestMarkdown_ReplacesSetAndLogsRun(t *testing.T) {
	repo := &fakeRepo{stored: []domain.Review{{ID: "old"}}}
	cache := &fakeCache{}
	_ = cache.Set(context.Background(), "reviews:50", []domain.Review{{ID: "stale"}}, 60)
	art := &fakeArtifact{}
	svc := newService(nil, repo, cache).WithArtifact(art)

	rep, err := svc.IngestMarkdown(context.Background(), app.SourceCheckatrade, pageMarkdown)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if rep.Segments != 3 || rep.Parsed != 2 || rep.Skipped != 1 || rep.Stored != 2 {
		t.Fatalf("report: %+v", rep)
	}
	if repo.replaced != 1 || len(repo.stored) != 2 || repo.stored[0].Service != "Lawn mowing" {
		t.Fatalf("stored set not replaced: %+v", repo.stored)
	}
	if len(art.got) != 2 {
		t.Fatalf("artifact not written: %+v", art.got)
	}
	if len(repo.runs) != 1 || repo.runs[0] != (domain.Run{Source: "checkatrade", Segments: 3, Skipped: 1, Stored: 2}) {
		t.Fatalf("runs: %+v", repo.runs)
	}
	if _, ok := cache.store["reviews:50"]; ok {
		t.Fatal("listing cache not invalidated")
	}
}

func TestIngestMarkdown_EmptySource(t *testing.T) {
	repo := &fakeRepo{stored: []domain.Review{{ID: "keep"}}}
	svc := newService(nil, repo, nil)

	_, err := svc.IngestMarkdown(context.Background(), "file", " \n\t")
	if !errors.Is(err, domain.ErrEmptySource) {
		t.Fatalf("want ErrEmptySource, got %v", err)
	}
	if repo.replaced != 0 || repo.stored[0].ID != "keep" {
		t.Fatal("empty input must not touch the store")
	}
}

func TestIngestMarkdown_ReplaceFailureSurfaces(t *testing.T) {
	repo := &fakeRepo{replaceErr: errors.New("deadlock")}
	svc := newService(nil, repo, nil)

	_, err := svc.IngestMarkdown(context.Background(), "file", pageMarkdown)
	if err == nil || !strings.Contains(err.Error(), "deadlock") {
		t.Fatalf("expected wrapped replace error, got %v", err)
	}
	if len(repo.runs) != 0 {
		t.Fatalf("failed run should not be logged as stored: %+v", repo.runs)
	}
}

func TestIngestMarkdown_ArtifactFailureStopsBeforeStore(t *testing.T) {
	repo := &fakeRepo{}
	svc := newService(nil, repo, nil).WithArtifact(&fakeArtifact{err: errors.New("disk full")})

	if _, err := svc.IngestMarkdown(context.Background(), "file", pageMarkdown); err == nil {
		t.Fatal("expected artifact error")
	}
	if repo.replaced != 0 {
		t.Fatal("store must not be replaced after artifact failure")
	}
}

func TestIngestMarkdown_DryRunWithoutRepo(t *testing.T) {
	svc := newService(nil, nil, nil)
	rep, err := svc.IngestMarkdown(context.Background(), "file", pageMarkdown)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Stored != 0 || len(rep.Reviews) != 2 {
		t.Fatalf("dry run report: %+v", rep)
	}
}

func TestIngestMarkdown_SourceScaleNormalised(t *testing.T) {
	repo := &fakeRepo{}
	svc := newService(nil, repo, nil).WithSourceScale(5)
	md := "- 4\n### Weeding\nPosted today\nok\nJob location: SW11\n"

	if _, err := svc.IngestMarkdown(context.Background(), "file", md); err != nil {
		t.Fatal(err)
	}
	if repo.stored[0].Rating != 8 {
		t.Fatalf("rating on 10 scale: %v", repo.stored[0].Rating)
	}
}

func TestIngestPage_FetchesThenIngests(t *testing.T) {
	repo := &fakeRepo{}
	svc := newService(fakeSource{md: pageMarkdown}, repo, nil)

	rep, err := svc.IngestPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Source != app.SourceCheckatrade || rep.Stored != 2 {
		t.Fatalf("report: %+v", rep)
	}

	svc = newService(fakeSource{err: domain.ErrNotFound}, repo, nil)
	if _, err := svc.IngestPage(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want wrapped ErrNotFound, got %v", err)
	}
}

func TestIngestPhotos_AppendsInBatches(t *testing.T) {
	repo := &fakeRepo{}
	cache := &fakeCache{}
	svc := newService(nil, repo, cache)

	var items []domain.PhotoItem
	for i := 0; i < 120; i++ {
		// every item its own group: distinct service names
		items = append(items, domain.PhotoItem{URL: fmt.Sprintf("u%d", i), Service: fmt.Sprintf("S%d", i), Postcode: "SW12", Rating: 10})
	}

	rep, err := svc.IngestPhotos(context.Background(), items, 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Stored != 120 || len(repo.inserts) != 3 || len(repo.inserts[2]) != 20 {
		t.Fatalf("batches: stored=%d batches=%d", rep.Stored, len(repo.inserts))
	}
	if len(cache.dels) == 0 {
		t.Fatal("expected cache invalidation")
	}
}

func TestIngestPhotos_ReplaceAndEmpty(t *testing.T) {
	repo := &fakeRepo{stored: []domain.Review{{ID: "old"}}}
	svc := newService(nil, repo, nil)

	items := []domain.PhotoItem{
		{URL: "a", Service: "Patio", Postcode: "SW12", Rating: 10},
		{URL: "b", Service: "Patio", Postcode: "SW12", Rating: 10},
	}
	rep, err := svc.IngestPhotos(context.Background(), items, 10, true)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Stored != 1 || len(repo.stored) != 1 || len(repo.stored[0].Images) != 2 {
		t.Fatalf("replace: %+v / %+v", rep, repo.stored)
	}

	if _, err := svc.IngestPhotos(context.Background(), nil, 10, true); !errors.Is(err, domain.ErrEmptySource) {
		t.Fatalf("want ErrEmptySource, got %v", err)
	}
}

func TestIngestMarkdown_InvalidatesEveryListingLimit(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	cache := &fakeCache{}
	q := app.NewQueryService(repo, cache, time.Minute)

	for _, lim := range []int{7, app.DefaultListLimit, 333} {
		if rs, err := q.ListReviews(ctx, lim); err != nil || len(rs) != 0 {
			t.Fatalf("limit %d before ingest: %v %v", lim, rs, err)
		}
	}
	_ = cache.Set(ctx, "unrelated", 1, 60)

	rep, err := newService(nil, repo, cache).IngestMarkdown(ctx, app.SourceCheckatrade, pageMarkdown)
	if err != nil || rep.Stored != 2 {
		t.Fatalf("ingest: %+v %v", rep, err)
	}

	for _, lim := range []int{7, app.DefaultListLimit, 333} {
		rs, err := q.ListReviews(ctx, lim)
		if err != nil || len(rs) != 2 {
			t.Fatalf("limit %d after ingest: got %d reviews, err %v", lim, len(rs), err)
		}
	}
	if _, ok := cache.store["unrelated"]; !ok {
		t.Fatal("invalidation dropped an unrelated key")
	}
}
