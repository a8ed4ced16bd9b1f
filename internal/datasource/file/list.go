package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ouvidoria/internal/config"
)

// ReadList reads a list file: one path per line, blank lines and lines
// starting with '#' ignored. Relative entries are resolved against the
// directory holding the list file.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list %s: %w", path, err)
	}
	defer f.Close()

	base := filepath.Dir(path)
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read list %s: %w", path, err)
	}
	return out, nil
}

// Discover expands a file source into the ordered list of raw files to ingest.
// Explicit paths, list-file entries and Dir/Pattern matches are merged,
// de-duplicated and sorted lexicographically so every run sees the same order.
// Directories matched by the pattern are skipped. An empty result is not an
// error; the ingestor decides what "no input" means.
func Discover(src config.SourceFile) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, p := range src.Paths {
		if strings.TrimSpace(p) != "" {
			add(p)
		}
	}
	if src.ListFile != "" {
		listed, err := ReadList(src.ListFile)
		if err != nil {
			return nil, err
		}
		for _, p := range listed {
			add(p)
		}
	}
	if src.Dir != "" {
		if _, err := os.Stat(src.Dir); err != nil {
			return nil, fmt.Errorf("source dir: %w", err)
		}
		pattern := src.Pattern
		if pattern == "" {
			pattern = "*"
		}
		matches, err := filepath.Glob(filepath.Join(src.Dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
				add(m)
			}
		}
	}

	sort.Strings(out)
	return out, nil
}
