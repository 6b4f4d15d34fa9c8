// Package drive lists work photos from the shared cloud-storage folders, one
// folder per service category.
package drive

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"pnm_gardeners/internal/adapters/httpx"
)

// Drive query string literals escape backslash and single quote with a backslash.
var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

const (
	DefaultBaseURL = "https://www.googleapis.com"
	pageSize       = 1000
	maxPages       = 50
	fileFields     = "nextPageToken,files(id,name,mimeType,createdTime,description,appProperties,properties)"
)

type Client struct {
	base string
	key  string
	http *httpx.Client
}

func New(base, apiKey string, rps int) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("drive API key is required")
	}
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		key:  apiKey,
		http: httpx.New("drive", rps, 20*time.Second),
	}, nil
}

type listPage struct {
	NextPageToken string           `json:"nextPageToken"`
	Files         []map[string]any `json:"files"`
}

// ListFolder returns the image files directly inside folderID, following
// pagination until the listing is exhausted.
func (c *Client) ListFolder(ctx context.Context, folderID string) ([]map[string]any, error) {
	if folderID == "" {
		return nil, fmt.Errorf("folder id is required")
	}
	var (
		out   []map[string]any
		token string
	)
	for page := 0; page < maxPages; page++ {
		var lp listPage
		if err := c.http.GetJSON(ctx, "files.list", c.listURL(folderID, token), &lp); err != nil {
			return out, fmt.Errorf("list folder %s: %w", folderID, err)
		}
		for _, f := range lp.Files {
			if mt, _ := f["mimeType"].(string); strings.HasPrefix(mt, "image/") {
				out = append(out, f)
			}
		}
		if lp.NextPageToken == "" {
			return out, nil
		}
		token = lp.NextPageToken
	}
	return out, fmt.Errorf("list folder %s: more than %d pages", folderID, maxPages)
}

func (c *Client) listURL(folderID, token string) string {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("'%s' in parents and mimeType contains 'image/' and trashed = false", queryEscaper.Replace(folderID)))
	q.Set("fields", fileFields)
	q.Set("pageSize", fmt.Sprint(pageSize))
	q.Set("key", c.key)
	if token != "" {
		q.Set("pageToken", token)
	}
	return c.base + "/drive/v3/files?" + q.Encode()
}

// ParseFolders reads "Service=folderID,Service=folderID" into a map.
// Entries without both halves are ignored.
func ParseFolders(s string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		name, id, ok := strings.Cut(part, "=")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			continue
		}
		out[name] = id
	}
	return out
}

// Services returns the folder map's service names in a stable order.
func Services(folders map[string]string) []string {
	names := make([]string, 0, len(folders))
	for n := range folders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
