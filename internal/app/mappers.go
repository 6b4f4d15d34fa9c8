package app

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"pnm_gardeners/internal/domain"
)

/********** alias registry (single source of truth) **********/

// Drive files carry job metadata in appProperties when the uploader set it;
// older uploads only have a description.
var photoAliases = map[string][]string{
	"postcode": {"appProperties.postcode", "properties.postcode", "appProperties.job_location"},
	"rating":   {"appProperties.rating", "properties.rating", "appProperties.score"},
	"name":     {"appProperties.customer_name", "appProperties.customer", "properties.customer"},
	"text":     {"appProperties.review", "properties.review", "description"},
	"date":     {"appProperties.work_date", "properties.work_date"},
}

var filenamePostcode = regexp.MustCompile(`(?i)(?:^|[^A-Z0-9])([A-Z]{1,2}\d{1,2})(?:[^A-Z0-9]|$)`)

const driveViewURL = "https://drive.google.com/uc?export=view&id="

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty trimmed string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "8,5").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

/********** photo mapper **********/

// MapPhotos converts Drive file listings for one service folder into photo
// items. Files without an id are dropped; a missing rating takes fallbackRating.
func MapPhotos(service string, files []map[string]any, fallbackRating float64) []domain.PhotoItem {
	out := make([]domain.PhotoItem, 0, len(files))
	for _, f := range files {
		id := lookupStr(f, "id")
		if id == "" {
			log.Warn().Str("context", "MapPhotos").Str("service", service).Msg("drive file without id")
			continue
		}

		it := domain.PhotoItem{
			URL:     driveViewURL + id,
			Service: service,
			Name:    firstNonEmptyAlias(f, photoAliases, "name"),
			Text:    firstNonEmptyAlias(f, photoAliases, "text"),
			Date:    firstNonEmptyAlias(f, photoAliases, "date"),
			Rating:  fallbackRating,
		}

		// Postcode → prefer metadata; fallback to a code embedded in the filename.
		it.Postcode = strings.ToUpper(firstNonEmptyAlias(f, photoAliases, "postcode"))
		if it.Postcode == "" {
			if m := filenamePostcode.FindStringSubmatch(lookupStr(f, "name")); m != nil {
				it.Postcode = strings.ToUpper(m[1])
			}
		}

		if r := getFloatFlexible(f, photoAliases["rating"]...); r != nil {
			it.Rating = *r
		}

		out = append(out, it)
	}
	return out
}
