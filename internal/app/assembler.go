package app

import (
	"math"
	"time"

	"github.com/google/uuid"

	"pnm_gardeners/internal/domain"
	"pnm_gardeners/internal/extract"
	"pnm_gardeners/internal/geo"
)

const (
	DefaultRatingScale = 10
	photoReviewerName  = "Verified Customer"
	photoWorkDate      = "Recent work"
)

// Assembler turns extracted entries and photo items into stored reviews.
type Assembler struct {
	resolver *geo.Resolver
	scale    float64
	jitter   bool

	// NewID and Now are swapped out in tests.
	NewID func() string
	Now   func() time.Time
}

// NewAssembler builds an Assembler that stores ratings on the given scale
// (1..scale). With jitter on, coordinates get a per-record display offset.
func NewAssembler(r *geo.Resolver, scale float64, jitter bool) *Assembler {
	if scale <= 0 {
		scale = DefaultRatingScale
	}
	return &Assembler{
		resolver: r,
		scale:    scale,
		jitter:   jitter,
		NewID:    uuid.NewString,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (a *Assembler) Scale() float64 { return a.scale }

// Assemble attaches coordinates and identity to extracted entries, keeping
// source order. sourceScale is the scale the ratings were published on.
func (a *Assembler) Assemble(in []extract.ParsedReview, sourceScale float64) []domain.Review {
	now := a.Now()
	out := make([]domain.Review, 0, len(in))
	for i, p := range in {
		c := a.coords(p.Postcode, i)
		images := append([]string{}, p.Images...)
		out = append(out, domain.Review{
			ID:        a.NewID(),
			Name:      p.Name,
			Rating:    NormalizeRating(p.Rating, sourceScale, a.scale),
			Date:      p.Date,
			Text:      p.Body,
			Service:   p.Title,
			Postcode:  a.postcode(p.Postcode),
			Lat:       c.Lat,
			Lng:       c.Lng,
			Images:    images,
			Approved:  true,
			CreatedAt: now,
		})
	}
	return out
}

type photoKey struct {
	postcode string
	service  string
	rating   float64
}

// GroupPhotos folds photos into one review per (postcode, service, rating).
//
// The key is a heuristic stand-in for job identity: cloud storage carries no
// job ID, so two distinct jobs for the same service in the same outward code
// with the same rating collapse into one review.
func (a *Assembler) GroupPhotos(items []domain.PhotoItem, sourceScale float64) []domain.Review {
	now := a.Now()
	index := map[photoKey]int{}
	var out []domain.Review

	for _, it := range items {
		if it.URL == "" {
			continue
		}
		k := photoKey{
			postcode: a.postcode(it.Postcode),
			service:  it.Service,
			rating:   NormalizeRating(it.Rating, sourceScale, a.scale),
		}
		if i, ok := index[k]; ok {
			out[i].Images = append(out[i].Images, it.URL)
			continue
		}

		c := a.coords(k.postcode, len(out))
		index[k] = len(out)
		out = append(out, domain.Review{
			ID:        a.NewID(),
			Name:      orDefault(it.Name, photoReviewerName),
			Rating:    k.rating,
			Date:      orDefault(it.Date, photoWorkDate),
			Text:      it.Text,
			Service:   it.Service,
			Postcode:  k.postcode,
			Lat:       c.Lat,
			Lng:       c.Lng,
			Images:    []string{it.URL},
			Approved:  true,
			CreatedAt: now,
		})
	}
	return out
}

func (a *Assembler) coords(postcode string, seed int) domain.Coordinates {
	c := a.resolver.Resolve(postcode)
	if a.jitter {
		c = geo.Jitter(c, uint64(seed))
	}
	return c
}

func (a *Assembler) postcode(code string) string {
	if code == "" {
		return a.resolver.FallbackCode()
	}
	return code
}

// NormalizeRating rescales v from one scale to another, clamped to [1, to]
// and rounded to two decimals. A non-positive from means v is already on to.
func NormalizeRating(v, from, to float64) float64 {
	if to <= 0 {
		to = DefaultRatingScale
	}
	if from <= 0 {
		from = to
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return to
	}
	r := v * to / from
	r = math.Max(1, math.Min(to, r))
	return math.Round(r*100) / 100
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
