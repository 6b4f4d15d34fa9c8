// Package extract turns the scraped trade-directory reviews page (rendered as
// markdown) into structured review entries.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrSegmentMalformed = errors.New("segment has no title, posted date or job location")

// Options carries the fallbacks used when a field cannot be extracted.
type Options struct {
	FallbackRating   float64
	FallbackPostcode string
	DefaultTitle     string
	UnknownDate      string
	AnonymousName    string
	ImageHost        string // only embeds on this host are collected; empty = any
	ThumbMarker      string
}

func DefaultOptions() Options {
	return Options{
		FallbackRating:   10,
		FallbackPostcode: "SW11",
		DefaultTitle:     "Garden Service",
		UnknownDate:      "Unknown",
		AnonymousName:    "Anonymous",
		ImageHost:        "storage.googleapis.com",
		ThumbMarker:      DefaultThumbMarker,
	}
}

// ParsedReview is one entry as found in the source text. Coordinates and
// identity are attached later by the assembler.
type ParsedReview struct {
	Rating   float64  `json:"rating"`
	Title    string   `json:"service"`
	Date     string   `json:"date"`
	Body     string   `json:"text"`
	Postcode string   `json:"postcode"`
	Name     string   `json:"customer_name"`
	Images   []string `json:"images"`
}

type Result struct {
	Reviews  []ParsedReview
	Segments int // delimiter matches found
	Skipped  int // segments dropped as malformed
}

type Extractor struct {
	opts   Options
	logger zerolog.Logger

	delimiter     *regexp.Regexp
	leadingRating *regexp.Regexp
	linkRating    *regexp.Regexp
	postcode      *regexp.Regexp
	bracketName   *regexp.Regexp
	mdEscape      *regexp.Regexp
}

// New builds an Extractor. Zero-valued option fields take DefaultOptions values.
func New(opts Options, logger *zerolog.Logger) *Extractor {
	def := DefaultOptions()
	if opts.FallbackPostcode == "" {
		opts.FallbackPostcode = def.FallbackPostcode
	}
	if opts.FallbackRating == 0 {
		opts.FallbackRating = def.FallbackRating
	}
	if opts.DefaultTitle == "" {
		opts.DefaultTitle = def.DefaultTitle
	}
	if opts.UnknownDate == "" {
		opts.UnknownDate = def.UnknownDate
	}
	if opts.AnonymousName == "" {
		opts.AnonymousName = def.AnonymousName
	}
	if opts.ThumbMarker == "" {
		opts.ThumbMarker = def.ThumbMarker
	}
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Extractor{
		opts:   opts,
		logger: l.With().Str("component", "extractor").Logger(),
		// "- 10", "- 9.67" or "- [" (reviewer profile link before the rating)
		delimiter:     regexp.MustCompile(`(?m)^- (?:\d+(?:\.\d+)?|\[)`),
		leadingRating: regexp.MustCompile(`^- (\d+(?:\.\d+)?)`),
		linkRating:    regexp.MustCompile(`\]\([^)]*\)\s*(\d+(?:\.\d+)?)`),
		postcode:      regexp.MustCompile(`Job location:\s*([A-Z]{1,2}\d{1,2})\b`),
		bracketName:   regexp.MustCompile(`\[([A-Z][a-z]+\s+[A-Z])\]`),
		mdEscape:      regexp.MustCompile("\\\\([\\\\`*_{}\\[\\]()#+\\-.!])"),
	}
}

// Extract splits markdown into review segments and parses each one. A
// malformed segment is logged and skipped; it never aborts the run.
func (e *Extractor) Extract(markdown string) Result {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	bounds := e.delimiter.FindAllStringIndex(markdown, -1)

	res := Result{Segments: len(bounds)}
	for i, b := range bounds {
		end := len(markdown)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		seg := markdown[b[0]:end]

		r, err := e.safeParse(seg)
		if err != nil {
			res.Skipped++
			e.logger.Warn().Int("segment", i).Err(err).Msg("review segment skipped")
			continue
		}
		res.Reviews = append(res.Reviews, r)
	}
	return res
}

func (e *Extractor) safeParse(seg string) (r ParsedReview, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("parse panic: %v", p)
		}
	}()
	return e.parseSegment(seg)
}

type state int

const (
	seekingRating state = iota
	seekingTitle
	seekingDate
	collectingBody
	done
)

func (e *Extractor) parseSegment(seg string) (ParsedReview, error) {
	r := ParsedReview{
		Rating:   e.opts.FallbackRating,
		Title:    e.opts.DefaultTitle,
		Date:     e.opts.UnknownDate,
		Postcode: e.opts.FallbackPostcode,
		Name:     e.opts.AnonymousName,
	}
	var (
		st                         = seekingRating
		header                     []string
		body                       []string
		hasTitle, hasDate, hasCode bool
		linkName                   string
	)

	lines := strings.Split(seg, "\n")
	// the title is the first heading wherever it sits; the walk below only
	// tracks the date and body boundaries
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); isHeading(trimmed) {
			r.Title = e.unescape(strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
			hasTitle = true
			break
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch st {
		case seekingRating:
			header = append(header, line)
			joined := strings.Join(header, "\n")
			if m := e.leadingRating.FindStringSubmatch(joined); m != nil {
				r.Rating = e.parseRating(m[1])
				st = seekingTitle
				continue
			}
			if strings.Contains(joined, "](") && strings.Contains(trimmed, ")") {
				if m := e.linkRating.FindStringSubmatch(joined); m != nil {
					r.Rating = e.parseRating(m[1])
				}
				linkName = nameFromLink(joined)
				st = seekingTitle
				continue
			}
			// an unterminated profile link: give up on the header at the first heading
			if !isHeading(trimmed) {
				continue
			}
			st = seekingTitle
			fallthrough

		case seekingTitle:
			if isHeading(trimmed) {
				st = seekingDate
				continue
			}
			if isPosted(trimmed) {
				r.Date = trimmed
				hasDate = true
				st = collectingBody
			}

		case seekingDate:
			if isPosted(trimmed) {
				r.Date = trimmed
				hasDate = true
				st = collectingBody
			}

		case collectingBody:
			if isBodyStop(trimmed) {
				st = done
				continue
			}
			if trimmed != "" && !isHeading(trimmed) {
				body = append(body, e.unescape(trimmed))
			}
		}
	}

	r.Body = strings.Join(strings.Fields(strings.Join(body, " ")), " ")

	if m := e.postcode.FindStringSubmatch(seg); m != nil {
		r.Postcode = m[1]
		hasCode = true
	}

	if !hasTitle && !hasDate && !hasCode {
		return ParsedReview{}, ErrSegmentMalformed
	}

	switch {
	case e.bracketName.MatchString(seg):
		r.Name = e.bracketName.FindStringSubmatch(seg)[1]
	case linkName != "":
		r.Name = linkName
	}

	r.Images = NormalizeImageURLs(seg, e.opts.ImageHost, e.opts.ThumbMarker)
	if r.Images == nil {
		r.Images = []string{}
	}
	return r, nil
}

// parseRating substitutes the fallback for values that do not parse.
func (e *Extractor) parseRating(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return e.opts.FallbackRating
	}
	return f
}

func (e *Extractor) unescape(s string) string {
	return e.mdEscape.ReplaceAllString(s, "$1")
}

// nameFromLink pulls the display name out of a "- [P\\\nPeter B](url)" header.
// The first line of the link text is the avatar initial.
func nameFromLink(header string) string {
	start := strings.Index(header, "[")
	end := strings.Index(header, "](")
	if start < 0 || end <= start {
		return ""
	}
	text := header[start+1 : end]
	lines := strings.Split(text, "\n")
	name := strings.TrimSpace(strings.Trim(lines[len(lines)-1], `\ `))
	return name
}

func isHeading(line string) bool { return strings.HasPrefix(line, "#") }

func isPosted(line string) bool { return strings.Contains(line, "Posted") }

func isBodyStop(line string) bool {
	return strings.HasPrefix(line, "![") ||
		strings.HasPrefix(line, "Verified") ||
		strings.HasPrefix(line, "Job location") ||
		strings.HasPrefix(line, "Load more reviews")
}
