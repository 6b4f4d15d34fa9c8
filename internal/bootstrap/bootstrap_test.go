package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"pnm_gardeners/internal/shared"
)

func baseConfig() shared.Config {
	return shared.Config{
		StoreDriver:      shared.StoreNone,
		FallbackPostcode: "SW11",
		FallbackRating:   10,
		RatingScale:      10,
		Workers:          1,
	}
}

func TestOpenStore_FileAndNone(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig()

	st, err := OpenStore(ctx, cfg)
	if err != nil || st.Repo != nil {
		t.Fatalf("none driver: %+v %v", st, err)
	}
	st.Close()

	cfg.StoreDriver = shared.StoreFile
	cfg.ReviewsOut = filepath.Join(t.TempDir(), "reviews.json")
	st, err = OpenStore(ctx, cfg)
	if err != nil || st.Repo == nil {
		t.Fatalf("file driver: %+v %v", st, err)
	}
	if rs, err := st.Repo.ListReviews(ctx, 5); err != nil || len(rs) != 0 {
		t.Fatalf("empty file store: %v %v", rs, err)
	}

	cfg.StoreDriver = "bogus"
	if _, err := OpenStore(ctx, cfg); !errors.Is(err, shared.ErrUnknownStore) {
		t.Fatalf("want ErrUnknownStore, got %v", err)
	}
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig()

	if c, check := OpenCache(ctx, cfg); c != nil || check != nil {
		t.Fatal("no REDIS_ADDR should mean no cache")
	}
	if CacheOrNil(nil) != nil {
		t.Fatal("nil cache must stay a nil interface")
	}

	mr := miniredis.RunT(t)
	cfg.RedisAddr = mr.Addr()
	c, check := OpenCache(ctx, cfg)
	if c == nil || check == nil || check(ctx) != nil {
		t.Fatal("expected live cache")
	}
	_ = c.Close()

	mr.Close()
	if c, _ := OpenCache(ctx, cfg); c != nil {
		t.Fatal("unreachable redis should be skipped")
	}
}

func TestResolver_CustomTableAndFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yaml")
	table := "fallback: KT1\nareas:\n  KT1: {label: Kingston, lat: 51.41, lng: -0.30}\n  SW12: {label: Balham, lat: 51.46, lng: -0.17}\n"
	if err := os.WriteFile(path, []byte(table), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig()
	cfg.PostcodeTable = path
	cfg.FallbackPostcode = "SW12"
	r, err := Resolver(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if r.FallbackCode() != "SW12" {
		t.Fatalf("fallback: %s", r.FallbackCode())
	}

	// fallback code absent from the table keeps the table's own fallback
	cfg.FallbackPostcode = "ZZ1"
	r, _ = Resolver(cfg)
	if r.FallbackCode() != "KT1" {
		t.Fatalf("fallback: %s", r.FallbackCode())
	}

	cfg.PostcodeTable = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Resolver(cfg); err == nil {
		t.Fatal("expected error for missing table file")
	}
}

func TestPipeline_UsesConfiguredFallbacks(t *testing.T) {
	cfg := baseConfig()
	cfg.FallbackPostcode = "SW19"
	cfg.FallbackRating = 8

	ex, asm, err := Pipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	res := ex.Extract("- [\n### Hedge trimming\nPosted today\nNeat.\n")
	if len(res.Reviews) != 1 {
		t.Fatalf("extract: %+v", res)
	}
	r := res.Reviews[0]
	if r.Postcode != "SW19" || r.Rating != 8 {
		t.Fatalf("fallbacks not applied: %+v", r)
	}
	out := asm.Assemble(res.Reviews, 10)
	if out[0].Lat != 51.4214 {
		t.Fatalf("SW19 lat: %v", out[0].Lat)
	}
}
