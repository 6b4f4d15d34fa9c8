// Package httpx is the outbound HTTP transport shared by the upstream adapters:
// client-side rate limiting, retries on 429/5xx honouring Retry-After, and
// status mapping onto sentinel errors.
package httpx

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pnm_gardeners/internal/adapters/observability"
	"pnm_gardeners/internal/domain"
)

const (
	DefaultMaxBody = 10 << 20
	maxAttempts    = 4
)

var (
	ErrNotFound     = fmt.Errorf("upstream: %w", domain.ErrNotFound)
	ErrUnauthorized = errors.New("upstream: unauthorized")
	ErrForbidden    = errors.New("upstream: forbidden")
	ErrTooLarge     = errors.New("upstream: body too large")

	// ErrRedirectBlocked is returned when a redirect hop fails the client's check.
	ErrRedirectBlocked = errors.New("upstream: redirect not allowed")
)

const maxRedirects = 10

type Client struct {
	service string
	hc      *http.Client
	rl      *rate.Limiter
	header  http.Header
	maxBody int64
}

// New builds a Client labelled service in the external request metrics.
// Non-positive rps defaults to 5.
func New(service string, rps int, timeout time.Duration) *Client {
	if rps <= 0 {
		rps = 5
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		service: service,
		hc:      &http.Client{Timeout: timeout},
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
		header:  http.Header{},
		maxBody: DefaultMaxBody,
	}
}

// WithHeader sets a header sent on every request.
func (c *Client) WithHeader(k, v string) *Client {
	c.header.Set(k, v)
	return c
}

func (c *Client) WithMaxBody(n int64) *Client {
	c.maxBody = n
	return c
}

// WithRedirectCheck vets every redirect hop before it is followed.
func (c *Client) WithRedirectCheck(allow func(*neturl.URL) bool) *Client {
	c.hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: stopped after %d redirects", ErrRedirectBlocked, maxRedirects)
		}
		if !allow(req.URL) {
			return fmt.Errorf("%w: %s", ErrRedirectBlocked, req.URL.Host)
		}
		return nil
	}
	return c
}

// Response is a fully read 2xx response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// GetJSON performs Get and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint, url string, out any) error {
	resp, err := c.Get(ctx, endpoint, url, http.Header{"Accept": {"application/json"}})
	if err != nil {
		return err
	}
	if len(resp.Body) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Body, out)
}

// Get performs a GET with client-side rate limiting and retries.
// endpoint is only a metrics label; keep its cardinality low.
func (c *Client) Get(ctx context.Context, endpoint, url string, hdr http.Header) (Response, error) {
	// client-side rate limiting
	if err := c.rl.Wait(ctx); err != nil {
		return Response{}, err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		last := i == maxAttempts-1

		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Response{}, err
		}
		for k, vs := range c.header {
			req.Header[k] = vs
		}
		for k, vs := range hdr {
			req.Header[k] = vs
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(c.service, endpoint, 0, time.Since(start))
			// network error or context canceled
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			if errors.Is(err, ErrRedirectBlocked) {
				return Response{}, err
			}
			lastErr = err
			if !last && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			return Response{}, lastErr
		}
		observability.ObserveExternal(c.service, endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
			body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
			resp.Body.Close()
			if err != nil {
				return Response{}, err
			}
			if int64(len(body)) > c.maxBody {
				return Response{}, ErrTooLarge
			}
			return Response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: body}, nil

		case http.StatusNotFound:
			resp.Body.Close()
			return Response{}, ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return Response{}, ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return Response{}, ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if !last && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			return Response{}, lastErr

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return Response{}, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return Response{}, lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff: 200ms doubling per attempt, plus up to 50% jitter from crypto/rand.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
