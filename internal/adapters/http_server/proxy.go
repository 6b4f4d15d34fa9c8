package httpserver

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pnm_gardeners/internal/adapters/httpx"
	"pnm_gardeners/internal/domain"
)

const (
	proxyReferer = "https://www.checkatrade.com/"
	proxyMaxBody = 15 << 20
)

// ImageProxy re-serves review photos whose host refuses hotlinking. Only
// hosts on the allow-list are fetched.
type ImageProxy struct {
	http    *httpx.Client
	allowed map[string]bool
}

func NewImageProxy(rps int, hosts ...string) *ImageProxy {
	allowed := map[string]bool{}
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = true
		}
	}
	p := &ImageProxy{allowed: allowed}
	p.http = httpx.New("image_proxy", rps, 15*time.Second).
		WithHeader("User-Agent", "Mozilla/5.0 (compatible; pnm-gardeners/1.0)").
		WithMaxBody(proxyMaxBody).
		WithRedirectCheck(p.allowedURL)
	return p
}

// allowedURL holds for absolute http(s) URLs on an allow-listed host.
func (p *ImageProxy) allowedURL(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && p.allowed[strings.ToLower(u.Hostname())]
}

func (p *ImageProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid url", "url query parameter is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid url", "url must be an absolute http(s) URL")
		return
	}
	if !p.allowedURL(u) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "host not allowed")
		return
	}

	resp, err := p.http.Get(r.Context(), "image", u.String(), http.Header{"Referer": {proxyReferer}})
	if errors.Is(err, httpx.ErrRedirectBlocked) {
		log.Warn().Err(err).Str("host", u.Host).Msg("image proxy redirect blocked")
		writeProblem(w, http.StatusForbidden, "Forbidden", "redirect to a host that is not allowed")
		return
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Str("host", u.Host).Msg("image proxy fetch failed")
		}
		writeProblem(w, http.StatusNotFound, "Not Found", "image not available")
		return
	}
	mt, _, _ := mime.ParseMediaType(resp.ContentType)
	if !strings.HasPrefix(mt, "image/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "upstream did not return an image")
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Body); err != nil {
		log.Error().Err(err).Msg("failed to write proxied image")
	}
}
