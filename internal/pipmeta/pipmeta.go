// Package pipmeta fetches package metadata from the PyPI JSON API for
// pip's dependency display. Fetches for a batch run in parallel, bounded
// by a small worker pool; this is the one deliberate exception to the
// otherwise sequential command flow.
package pipmeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the PyPI JSON API endpoint.
const DefaultBaseURL = "https://pypi.org/pypi"

// maxParallelFetches bounds the metadata worker pool.
const maxParallelFetches = 5

// requestTimeout bounds one metadata request.
const requestTimeout = 30 * time.Second

// ErrPackageNotFound is returned for unknown package names.
var ErrPackageNotFound = errors.New("pipmeta: package not found")

// Package is the metadata slice pip commands display.
type Package struct {
	Name         string
	Version      string
	Summary      string
	License      string
	HomePage     string
	RequiresDist []string
}

// Requires returns the direct dependency names, with version specifiers,
// extras, and environment markers stripped. Requirements gated on an
// extra are skipped entirely.
func (p *Package) Requires() []string {
	var names []string

	seen := map[string]bool{}

	for _, req := range p.RequiresDist {
		name, ok := parseRequirement(req)
		if !ok || seen[name] {
			continue
		}

		seen[name] = true
		names = append(names, name)
	}

	return names
}

// metadataResponse mirrors the PyPI JSON document.
type metadataResponse struct {
	Info struct {
		Name         string   `json:"name"`
		Version      string   `json:"version"`
		Summary      string   `json:"summary"`
		License      string   `json:"license"`
		HomePage     string   `json:"home_page"`
		RequiresDist []string `json:"requires_dist"`
	} `json:"info"`
}

// Client fetches package metadata.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a metadata client against baseURL (DefaultBaseURL in
// production, a test server otherwise).
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// Get fetches one package's metadata.
func (c *Client) Get(ctx context.Context, name string) (*Package, error) {
	endpoint := fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("pipmeta: building request for %s: %w", name, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pipmeta: fetching %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pipmeta: fetching %s: unexpected status %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pipmeta: reading %s metadata: %w", name, err)
	}

	var meta metadataResponse
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("pipmeta: parsing %s metadata: %w", name, err)
	}

	return &Package{
		Name:         meta.Info.Name,
		Version:      meta.Info.Version,
		Summary:      meta.Info.Summary,
		License:      meta.Info.License,
		HomePage:     meta.Info.HomePage,
		RequiresDist: meta.Info.RequiresDist,
	}, nil
}

// GetAll fetches a batch in parallel with at most five requests in
// flight. Per-package failures are collected, not fatal: one unknown
// name must not sink the whole display.
func (c *Client) GetAll(ctx context.Context, names []string) (map[string]*Package, map[string]error) {
	packages := make(map[string]*Package, len(names))
	failures := map[string]error{}

	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)

	for _, name := range names {
		g.Go(func() error {
			pkg, err := c.Get(ctx, name)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				c.logger.Warn("metadata fetch failed",
					slog.String("package", name),
					slog.String("error", err.Error()),
				)
				failures[name] = err

				return nil
			}

			packages[name] = pkg

			return nil
		})
	}

	// Workers never return errors; Wait only propagates ctx cancellation.
	if err := g.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()

		return packages, failures
	}

	return packages, failures
}

// parseRequirement extracts the bare package name from a requires_dist
// entry like `numpy (>=1.20) ; python_version >= "3.8"`. Entries gated
// on an extra marker report ok=false.
func parseRequirement(req string) (string, bool) {
	spec := req

	if idx := strings.Index(spec, ";"); idx >= 0 {
		marker := spec[idx+1:]
		if strings.Contains(marker, "extra ==") || strings.Contains(marker, `extra==`) {
			return "", false
		}

		spec = spec[:idx]
	}

	spec = strings.TrimSpace(spec)

	// The name ends at the first specifier, extras bracket, or space.
	end := len(spec)
	for i, r := range spec {
		if r == ' ' || r == '(' || r == '[' || r == '<' || r == '>' || r == '=' || r == '!' || r == '~' {
			end = i
			break
		}
	}

	name := strings.TrimSpace(spec[:end])
	if name == "" {
		return "", false
	}

	return name, true
}
