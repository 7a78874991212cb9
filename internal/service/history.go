package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReportItem is one markdown report under the results dir.
type ReportItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type ReportPage struct {
	Items      []ReportItem `json:"items"`
	NextCursor string       `json:"next_cursor"`
	HasMore    bool         `json:"has_more"`
}

type ReportFile struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ListReports pages through the markdown reports in the results dir. cursor
// is the path of the last item of the previous page.
func (s *Service) ListReports(cursor string, limit int) (*ReportPage, error) {
	return listReports(s.Config.ResultsDir, cursor, limit)
}

func listReports(resultsDir, cursor string, limit int) (*ReportPage, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	root, err := filepath.Abs(strings.TrimSpace(resultsDir))
	if err != nil {
		return nil, fmt.Errorf("resolve results dir: %w", err)
	}

	var items []ReportItem
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}
		items = append(items, ReportItem{Name: d.Name(), Path: filepath.ToSlash(path)})
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ReportPage{Items: []ReportItem{}}, nil
		}
		return nil, fmt.Errorf("walk results dir: %w", err)
	}
	// newest first: report names start with their timestamp
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name > items[j].Name
		}
		return items[i].Path < items[j].Path
	})

	start := 0
	if cursor != "" {
		for i, it := range items {
			if it.Path == cursor {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(items))
	page := &ReportPage{Items: items[start:end]}
	if end < len(items) {
		page.NextCursor = items[end-1].Path
		page.HasMore = true
	}
	return page, nil
}

// ReadReport returns the report at path, which must be a markdown file
// inside the results dir.
func (s *Service) ReadReport(path string) (*ReportFile, error) {
	return readReport(s.Config.ResultsDir, path)
}

func readReport(resultsDir, path string) (*ReportFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("path is required")
	}
	root, err := filepath.Abs(strings.TrimSpace(resultsDir))
	if err != nil {
		return nil, fmt.Errorf("resolve results dir: %w", err)
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, errors.New("invalid path")
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, errors.New("path is outside results_dir")
	}
	if !strings.EqualFold(filepath.Ext(abs), ".md") {
		return nil, errors.New("path is not a markdown file")
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("report not found: %s", path)
		}
		return nil, fmt.Errorf("read report: %w", err)
	}
	return &ReportFile{Name: filepath.Base(abs), Path: filepath.ToSlash(abs), Content: string(content)}, nil
}
