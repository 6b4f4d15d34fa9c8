package jsonfile_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pnm_gardeners/internal/adapters/jsonfile"
	"pnm_gardeners/internal/domain"
)

func review(id string, approved bool, at time.Time) domain.Review {
	return domain.Review{ID: id, Name: "N", Rating: 10, Postcode: "SW11", Images: []string{}, Approved: approved, CreatedAt: at}
}

func TestStore_ReplaceInsertList(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "reviews.json")
	s := jsonfile.New(path)

	// missing file reads as empty
	rs, err := s.ListReviews(ctx, 10)
	if err != nil || len(rs) != 0 {
		t.Fatalf("empty list: %v %v", rs, err)
	}

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.ReplaceReviews(ctx, []domain.Review{review("a", true, t0), review("hidden", false, t0)}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertReviews(ctx, []domain.Review{review("b", true, t0.Add(time.Hour))}); err != nil {
		t.Fatal(err)
	}

	rs, err = s.ListReviews(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 2 || rs[0].ID != "b" || rs[1].ID != "a" {
		t.Fatalf("want [b a], got %+v", rs)
	}

	rs, _ = s.ListReviews(ctx, 1)
	if len(rs) != 1 {
		t.Fatalf("limit not applied: %d", len(rs))
	}

	// replace drops everything previously stored
	if err := s.ReplaceReviews(ctx, nil); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	var raw []map[string]any
	if err := json.Unmarshal(b, &raw); err != nil || len(raw) != 0 {
		t.Fatalf("file after empty replace: %s (%v)", b, err)
	}
}

func TestStore_WrittenShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.json")
	s := jsonfile.New(path)
	r := review("x", true, time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC))
	r.Lat, r.Lng = 51.4648, -0.1731
	if err := s.WriteReviews([]domain.Review{r}); err != nil {
		t.Fatal(err)
	}

	b, _ := os.ReadFile(path)
	var raw []map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"id", "name", "rating", "date", "text", "service", "postcode", "lat", "lng", "images", "approved", "created_at"} {
		if _, ok := raw[0][k]; !ok {
			t.Fatalf("missing key %q in %s", k, b)
		}
	}
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.json")
	_ = os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := jsonfile.New(path).ListReviews(context.Background(), 5); err == nil {
		t.Fatal("expected decode error")
	}
}
