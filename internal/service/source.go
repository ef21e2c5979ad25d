package service

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// SourceService lists the GeoJSON files the server can hand to the browser
// and to the engine loader.
type SourceService struct {
	dir    string
	prefix string
}

// NewSourceService serves files from <webDir>/geojson under /geojson/.
func NewSourceService(webDir string) *SourceService {
	return &SourceService{
		dir:    filepath.Join(webDir, "geojson"),
		prefix: "/geojson",
	}
}

// List returns all GeoJSON files, sorted by name.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".geojson", ".json":
		default:
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, SourceFile{
			Name: entry.Name(),
			URL:  path.Join(s.prefix, entry.Name()),
			Size: formatSize(info.Size()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Dir returns the directory holding the files.
func (s *SourceService) Dir() string {
	return s.dir
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
