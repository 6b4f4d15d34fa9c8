package extract

import (
	"regexp"
	"strings"
)

// DefaultThumbMarker is the filename token the trade directory inserts into
// reduced-resolution attachment URLs (IMG_1941.thumb.jpeg).
const DefaultThumbMarker = ".thumb."

var imageEmbed = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^)\s]+)\)`)

// NormalizeImageURLs returns the targets of every ![alt](url) embed in text,
// in order of appearance, with thumbnail markers stripped. When host is set,
// embeds pointing elsewhere are ignored.
func NormalizeImageURLs(text, host, marker string) []string {
	var out []string
	for _, m := range imageEmbed.FindAllStringSubmatch(text, -1) {
		u := m[1]
		if host != "" && !hasHost(u, host) {
			continue
		}
		out = append(out, StripThumb(u, marker))
	}
	return out
}

// StripThumb removes every thumbnail marker from u, leaving query strings
// (signed URL parameters) untouched. URLs without the marker are returned as-is.
func StripThumb(u, marker string) string {
	if marker == "" {
		marker = DefaultThumbMarker
	}
	if !strings.Contains(u, marker) {
		return u
	}
	path, query, hasQuery := strings.Cut(u, "?")
	repl := ""
	if len(marker) > 1 && strings.HasPrefix(marker, ".") && strings.HasSuffix(marker, ".") {
		// dot-delimited marker: keep one dot between name and extension
		repl = "."
	}
	// markers can overlap (x.thumb.thumb.jpg), so repeat until none remain
	for strings.Contains(path, marker) {
		path = strings.ReplaceAll(path, marker, repl)
	}
	if hasQuery {
		return path + "?" + query
	}
	return path
}

func hasHost(u, host string) bool {
	rest := u
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	h, _, _ := strings.Cut(rest, "/")
	return strings.EqualFold(h, host)
}
