package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// maxDocumentSize caps GeoJSON downloads.
const maxDocumentSize = 256 << 20

// ErrOutsideBase is returned for a URL that would read a file the loader
// is not allowed to open.
var ErrOutsideBase = errors.New("path outside the data directory")

// Loader fetches GeoJSON documents by URL. http(s) URLs are downloaded.
// Site-relative URLs ("/geojson/x.geojson") are read from under BaseDir and
// may not leave it. file:// URLs are read only when AllowFiles is set.
type Loader struct {
	Client     *http.Client
	BaseDir    string
	AllowFiles bool
}

// NewLoader creates a loader resolving site-relative URLs against baseDir.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		Client:  &http.Client{Timeout: 30 * time.Second},
		BaseDir: baseDir,
	}
}

// NewFileLoader creates a loader for trusted input that also reads
// file:// URLs.
func NewFileLoader() *Loader {
	l := NewLoader("")
	l.AllowFiles = true
	return l
}

// Fetch loads and parses the FeatureCollection at url.
func (l *Loader) Fetch(ctx context.Context, url string) (*geojson.FeatureCollection, error) {
	data, err := l.read(ctx, url)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing geojson %s: %w", url, err)
	}
	return fc, nil
}

// CheckURL reports whether url is one a plain NewLoader would read:
// http(s), or a site-relative path that stays inside the base directory.
func CheckURL(url string) error {
	if isHTTP(url) {
		return nil
	}
	if strings.HasPrefix(url, "file://") {
		return fmt.Errorf("%s: file URLs are not allowed: %w", url, ErrOutsideBase)
	}
	if _, err := localPath(url); err != nil {
		return err
	}
	return nil
}

func isHTTP(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// localPath turns a site-relative URL into a path relative to the base
// directory.
func localPath(url string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(url, "/"))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%s: %w", url, ErrOutsideBase)
	}
	return rel, nil
}

func (l *Loader) read(ctx context.Context, url string) ([]byte, error) {
	if !isHTTP(url) {
		return l.readFile(url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}

func (l *Loader) readFile(url string) ([]byte, error) {
	if p, ok := strings.CutPrefix(url, "file://"); ok {
		if !l.AllowFiles {
			return nil, fmt.Errorf("%s: file URLs are not allowed: %w", url, ErrOutsideBase)
		}
		data, err := os.ReadFile(filepath.FromSlash(p))
		if err != nil {
			return nil, fmt.Errorf("reading geojson %s: %w", p, err)
		}
		return data, nil
	}

	if l.BaseDir == "" {
		return nil, fmt.Errorf("%s: no data directory configured: %w", url, ErrOutsideBase)
	}
	rel, err := localPath(url)
	if err != nil {
		return nil, err
	}
	// os.Root also refuses symlinks that point out of the directory.
	root, err := os.OpenRoot(l.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", l.BaseDir, err)
	}
	defer root.Close()
	data, err := root.ReadFile(rel)
	if err != nil {
		return nil, fmt.Errorf("reading geojson %s: %w", url, err)
	}
	return data, nil
}
