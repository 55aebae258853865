package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CogService lists the COG rasters served to the review map.
type CogService struct {
	cogsDir string
}

// NewCogService creates a new COG service.
func NewCogService(dataDir string) *CogService {
	return &CogService{
		cogsDir: filepath.Join(dataDir, "cogs"),
	}
}

func cogID(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, ext := range []string{".cog.tif", ".tiff", ".tif"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)], true
		}
	}
	return "", false
}

// List returns all COG files sorted by ID.
func (s *CogService) List() ([]CogFile, error) {
	entries, err := os.ReadDir(s.cogsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []CogFile{}, nil
		}
		return nil, err
	}

	files := []CogFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := cogID(entry.Name())
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, CogFile{
			ID:   id,
			Name: entry.Name(),
			Size: formatSize(info.Size()),
			URL:  "/cogs/" + entry.Name(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

// Find returns the COG file with the given ID.
func (s *CogService) Find(id string) (CogFile, bool) {
	files, err := s.List()
	if err != nil {
		return CogFile{}, false
	}
	for _, f := range files {
		if f.ID == id {
			return f, true
		}
	}
	return CogFile{}, false
}

// CogsDir returns the path to the COG directory.
func (s *CogService) CogsDir() string {
	return s.cogsDir
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
