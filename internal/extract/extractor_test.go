package extract_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"pnm_gardeners/internal/extract"
)

func newExtractor(buf *bytes.Buffer) *extract.Extractor {
	l := zerolog.New(buf)
	return extract.New(extract.DefaultOptions(), &l)
}

func TestExtract_RatingRoundTrip(t *testing.T) {
	in := "- 9.67\n### Title\nPosted 1 January\nBody text here\nVerified reviewer\nJob location: SW12"

	res := newExtractor(&bytes.Buffer{}).Extract(in)
	if res.Segments != 1 || len(res.Reviews) != 1 {
		t.Fatalf("segments=%d reviews=%d", res.Segments, len(res.Reviews))
	}
	r := res.Reviews[0]
	if r.Rating != 9.67 || r.Title != "Title" || r.Date != "Posted 1 January" ||
		r.Body != "Body text here" || r.Postcode != "SW12" {
		t.Fatalf("unexpected review: %+v", r)
	}
	if r.Name != "Anonymous" || r.Images == nil || len(r.Images) != 0 {
		t.Fatalf("unexpected defaults: name=%q images=%v", r.Name, r.Images)
	}
}

func TestExtract_SamplePage(t *testing.T) {
	var buf bytes.Buffer
	res := newExtractor(&buf).Extract(samplePage)

	if res.Segments != 3 || res.Skipped != 0 || len(res.Reviews) != 3 {
		t.Fatalf("segments=%d skipped=%d reviews=%d", res.Segments, res.Skipped, len(res.Reviews))
	}

	first := res.Reviews[0]
	if first.Rating != 10 || first.Title != "Back yard transformed!" || first.Date != "Posted 4 days ago" {
		t.Fatalf("unexpected first review: %+v", first)
	}
	if first.Body != "Spectacular workmanship and customer service. A great bunch of helpful friendly characters. My Garden is fully patiod now." {
		t.Fatalf("unexpected body: %q", first.Body)
	}
	if first.Postcode != "CR4" {
		t.Fatalf("postcode = %s", first.Postcode)
	}

	linked := res.Reviews[1]
	if linked.Rating != 8.67 {
		t.Fatalf("rating after profile link = %v", linked.Rating)
	}
	if linked.Name != "Peter B" {
		t.Fatalf("name = %q", linked.Name)
	}
	if linked.Title != "New garden fence , garden maintenance, planting winter bulbs" || linked.Postcode != "SW18" {
		t.Fatalf("unexpected linked review: %+v", linked)
	}

	last := res.Reviews[2]
	if last.Body != "The guys were excellent! Will definitely use again, highly recommend. 5 *" {
		t.Fatalf("body should be unescaped and stop before trailer: %q", last.Body)
	}
	if strings.Contains(buf.String(), "review segment skipped") {
		t.Fatalf("no skip expected, log: %s", buf.String())
	}
}

func TestExtract_ImagesNormalizedInOrder(t *testing.T) {
	res := newExtractor(&bytes.Buffer{}).Extract(samplePage)
	imgs := res.Reviews[0].Images

	want := []string{
		"https://storage.googleapis.com/media/user-media/01K7RX.1000073101.heic?GoogleAccessId=app%40capi.iam&Expires=1766257348&Signature=XVh%2BTe%3D%3D",
		"https://storage.googleapis.com/media/user-media/01K7RY.1000073100.jpg?Expires=1766257348&Signature=Ykye%3D%3D",
	}
	if len(imgs) != len(want) {
		t.Fatalf("images = %v", imgs)
	}
	for i := range want {
		if imgs[i] != want[i] {
			t.Fatalf("image %d = %s, want %s", i, imgs[i], want[i])
		}
		if strings.Contains(imgs[i], ".thumb.") {
			t.Fatalf("thumbnail leaked: %s", imgs[i])
		}
	}
}

func TestExtract_FailSoftOnMalformedEntry(t *testing.T) {
	in := "- 10\n### Hedge trim\nPosted 2 days ago\nTidy job.\nJob location: SW4\n" +
		"- [broken link with no markers\njust some stray text\n"

	var buf bytes.Buffer
	res := newExtractor(&buf).Extract(in)

	if res.Segments != 2 || res.Skipped != 1 || len(res.Reviews) != 1 {
		t.Fatalf("segments=%d skipped=%d reviews=%d", res.Segments, res.Skipped, len(res.Reviews))
	}
	if res.Reviews[0].Title != "Hedge trim" {
		t.Fatalf("unexpected survivor: %+v", res.Reviews[0])
	}
	if n := strings.Count(buf.String(), "review segment skipped"); n != 1 {
		t.Fatalf("expected exactly one skip event, got %d: %s", n, buf.String())
	}
}

func TestExtract_SegmentCountMatchesDelimiters(t *testing.T) {
	var b strings.Builder
	b.WriteString("preamble that is discarded\n")
	for i := 0; i < 7; i++ {
		b.WriteString("- 10\n### Lawn care\nPosted 1 May\nGood.\nJob location: SW12\n")
	}
	res := newExtractor(&bytes.Buffer{}).Extract(b.String())
	if res.Segments != 7 || len(res.Reviews)+res.Skipped != 7 || len(res.Reviews) != 7 {
		t.Fatalf("segments=%d reviews=%d skipped=%d", res.Segments, len(res.Reviews), res.Skipped)
	}
}

func TestExtract_Fallbacks(t *testing.T) {
	in := "- 10\nPosted yesterday\nNo heading and no location here.\n"
	res := newExtractor(&bytes.Buffer{}).Extract(in)
	if len(res.Reviews) != 1 {
		t.Fatalf("reviews = %d", len(res.Reviews))
	}
	r := res.Reviews[0]
	if r.Title != "Garden Service" || r.Postcode != "SW11" || r.Name != "Anonymous" {
		t.Fatalf("unexpected fallbacks: %+v", r)
	}
	if r.Body != "No heading and no location here." {
		t.Fatalf("body = %q", r.Body)
	}
}

func TestExtract_MalformedRatingUsesFallback(t *testing.T) {
	huge := "- " + strings.Repeat("9", 400) + "\n### T\nPosted today\nok\n"
	opts := extract.DefaultOptions()
	opts.FallbackRating = 7
	l := zerolog.Nop()
	res := extract.New(opts, &l).Extract(huge)
	if len(res.Reviews) != 1 || res.Reviews[0].Rating != 7 {
		t.Fatalf("expected fallback rating 7, got %+v", res.Reviews)
	}
}

func TestExtract_BracketedNamePattern(t *testing.T) {
	in := "- 9\n### Patio clean\nPosted 3 March\nSpotless. [Sarah K]\nJob location: SW16\n"
	res := newExtractor(&bytes.Buffer{}).Extract(in)
	if len(res.Reviews) != 1 || res.Reviews[0].Name != "Sarah K" {
		t.Fatalf("unexpected: %+v", res.Reviews)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	res := newExtractor(&bytes.Buffer{}).Extract("")
	if res.Segments != 0 || len(res.Reviews) != 0 {
		t.Fatalf("unexpected: %+v", res)
	}
}

func TestExtract_TitleIsFirstHeadingAnywhere(t *testing.T) {
	in := "- 8\nPosted 2 days ago\n### Hedge\nNice work\nJob location: SW4"
	res := newExtractor(&bytes.Buffer{}).Extract(in)
	if len(res.Reviews) != 1 {
		t.Fatalf("reviews = %d", len(res.Reviews))
	}
	r := res.Reviews[0]
	if r.Title != "Hedge" || r.Date != "Posted 2 days ago" || r.Body != "Nice work" || r.Postcode != "SW4" {
		t.Fatalf("unexpected review: %+v", r)
	}
}

func TestExtract_BackslashEscapesRemoved(t *testing.T) {
	in := "- 10\n### Excellent work\\!\nPosted 11 October\nWill definitely use again, highly recommend. 5 \\*\nJob location: SW2"
	res := newExtractor(&bytes.Buffer{}).Extract(in)
	if len(res.Reviews) != 1 {
		t.Fatalf("reviews = %d", len(res.Reviews))
	}
	r := res.Reviews[0]
	if r.Title != "Excellent work!" {
		t.Fatalf("title = %q", r.Title)
	}
	if r.Body != "Will definitely use again, highly recommend. 5 *" {
		t.Fatalf("body = %q", r.Body)
	}
}
