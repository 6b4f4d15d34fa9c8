// Package geo maps UK outward codes to approximate map coordinates.
package geo

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pnm_gardeners/internal/domain"
)

//go:embed postcodes.yaml
var defaultTableYAML []byte

// MaxJitter bounds the per-axis offset applied by Jitter, in degrees.
const MaxJitter = 0.003

var (
	ErrEmptyTable      = errors.New("postcode table has no areas")
	ErrUnknownFallback = errors.New("fallback code is not in the table")
)

type Area struct {
	Code  string  `yaml:"-"`
	Label string  `yaml:"label"`
	Lat   float64 `yaml:"lat"`
	Lng   float64 `yaml:"lng"`
}

type Table struct {
	Fallback string          `yaml:"fallback"`
	Areas    map[string]Area `yaml:"areas"`
}

// LoadTable decodes and validates a YAML postcode table.
func LoadTable(r io.Reader) (Table, error) {
	var t Table
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return Table{}, fmt.Errorf("decode postcode table: %w", err)
	}
	areas := make(map[string]Area, len(t.Areas))
	for code, a := range t.Areas {
		code = normalizeCode(code)
		a.Code = code
		areas[code] = a
	}
	t.Areas = areas
	t.Fallback = normalizeCode(t.Fallback)

	if len(t.Areas) == 0 {
		return Table{}, ErrEmptyTable
	}
	if _, ok := t.Areas[t.Fallback]; !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownFallback, t.Fallback)
	}
	return t, nil
}

func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open postcode table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// DefaultTable returns the embedded south London table.
func DefaultTable() Table {
	t, err := LoadTable(strings.NewReader(string(defaultTableYAML)))
	if err != nil {
		panic(fmt.Sprintf("embedded postcode table: %v", err))
	}
	return t
}

type Resolver struct {
	table    Table
	fallback Area
}

func NewResolver(t Table) *Resolver {
	return &Resolver{table: t, fallback: t.Areas[t.Fallback]}
}

// WithFallback returns a copy of r that falls back to code when it is known.
func (r *Resolver) WithFallback(code string) *Resolver {
	a, ok := r.Lookup(code)
	if !ok {
		return r
	}
	return &Resolver{table: r.table, fallback: a}
}

func (r *Resolver) Lookup(code string) (Area, bool) {
	a, ok := r.table.Areas[normalizeCode(code)]
	return a, ok
}

// Resolve never fails: unknown or empty codes map to the fallback area.
func (r *Resolver) Resolve(code string) domain.Coordinates {
	a, ok := r.Lookup(code)
	if !ok {
		a = r.fallback
	}
	return domain.Coordinates{Lat: a.Lat, Lng: a.Lng}
}

func (r *Resolver) FallbackCode() string { return r.fallback.Code }

// Jitter offsets base by up to MaxJitter per axis. It is display noise for
// de-overlapping map markers; the same seed always yields the same point.
func Jitter(base domain.Coordinates, seed uint64) domain.Coordinates {
	a := splitmix(seed)
	b := splitmix(a)
	return domain.Coordinates{
		Lat: round6(base.Lat + unit(a)*MaxJitter),
		Lng: round6(base.Lng + unit(b)*MaxJitter),
	}
}

// splitmix64 step; good enough spread for marker offsets.
func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// unit maps x onto [-1, 1).
func unit(x uint64) float64 {
	return float64(x>>11)/float64(1<<53)*2 - 1
}

func round6(f float64) float64 { return math.Round(f*1e6) / 1e6 }

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
