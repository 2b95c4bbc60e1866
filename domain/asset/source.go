package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Source opens the payload behind a locator.
type Source interface {
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

// HTTPSource fetches http and https locators.
type HTTPSource struct {
	Client *http.Client
}

func (s *HTTPSource) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("asset: build request: %w", err)
	}
	client := http.DefaultClient
	if s != nil && s.Client != nil {
		client = s.Client
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asset: GET %s: %w", locator, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("asset: GET %s: %s", locator, resp.Status)
	}
	return resp.Body, nil
}

// FileSource opens local paths and file:// URLs. Relative paths resolve
// against Root.
type FileSource struct {
	Root string
}

func (s *FileSource) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := locator
	if strings.HasPrefix(locator, "file://") {
		u, err := url.Parse(locator)
		if err != nil {
			return nil, fmt.Errorf("asset: parse %q: %w", locator, err)
		}
		p = filepath.FromSlash(u.Path)
	}
	if !filepath.IsAbs(p) && s != nil && s.Root != "" {
		p = filepath.Join(s.Root, p)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("asset: open: %w", err)
	}
	return f, nil
}

// MultiSource dispatches on the locator's URL scheme. Locators without a
// scheme use the "file" entry.
type MultiSource map[string]Source

// NewDefaultSource serves http(s) through client and everything else from
// the local filesystem relative to root.
func NewDefaultSource(client *http.Client, root string) MultiSource {
	h := &HTTPSource{Client: client}
	return MultiSource{"http": h, "https": h, "file": &FileSource{Root: root}}
}

func (m MultiSource) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	scheme := "file"
	if u, err := url.Parse(locator); err == nil && len(u.Scheme) > 1 {
		// single letter schemes are Windows drive letters
		scheme = strings.ToLower(u.Scheme)
	}
	src, ok := m[scheme]
	if !ok {
		return nil, fmt.Errorf("asset: unsupported scheme %q", scheme)
	}
	return src.Open(ctx, locator)
}
