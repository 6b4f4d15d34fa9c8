// Package checkatrade fetches the public reviews page of the trade directory
// profile and hands it to the extractor as markdown.
package checkatrade

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"pnm_gardeners/internal/adapters/httpx"
	"pnm_gardeners/internal/domain"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

type Client struct {
	pageURL string
	http    *httpx.Client
}

// New returns a client for the reviews page at pageURL. The URL may point at
// the HTML page itself or at a reader service that already returns markdown.
func New(pageURL string, rps int) (*Client, error) {
	if pageURL == "" {
		return nil, fmt.Errorf("reviews page URL is required")
	}
	return &Client{
		pageURL: pageURL,
		http:    httpx.New("checkatrade", rps, 30*time.Second).WithHeader("User-Agent", browserUA),
	}, nil
}

// FetchReviewsMarkdown downloads the page and returns it as markdown.
func (c *Client) FetchReviewsMarkdown(ctx context.Context) (string, error) {
	resp, err := c.http.Get(ctx, "reviews_page", c.pageURL, nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(resp.Body)) == "" {
		return "", domain.ErrEmptySource
	}
	return ToMarkdown(resp.ContentType, string(resp.Body))
}

// ToMarkdown converts an HTML body to markdown; anything else passes through.
func ToMarkdown(contentType, body string) (string, error) {
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt != "text/html" && mt != "application/xhtml+xml" {
		return body, nil
	}
	md, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return md, nil
}
