// Package collector selects the repository files handed to the oracle.
package collector

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-hclog"

	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
)

// CodeFile is a collected file read once for the duration of a scan.
type CodeFile struct {
	Path    string
	Content string
}

// Collector walks a repository and keeps files whose name ends with an
// allow-listed extension.
type Collector struct {
	extensions []string
	exclude    []string
	logger     hclog.Logger
}

// New creates a Collector. Extensions are matched case-insensitively as
// suffixes; exclude entries are doublestar patterns relative to the root.
func New(extensions, exclude []string, logger hclog.Logger) (*Collector, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errs.NewConfigurationError("scan.exclude", fmt.Sprintf("invalid pattern %q", pattern))
		}
	}

	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			exts = append(exts, ext)
		}
	}

	return &Collector{extensions: exts, exclude: exclude, logger: logger}, nil
}

// Collect returns slash-separated paths relative to root in walk order.
func (c *Collector) Collect(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			c.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if c.isExcluded(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if c.matches(d.Name()) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %q: %w", root, err)
	}

	c.logger.Debug("files collected", "root", root, "count", len(paths))
	return paths, nil
}

func (c *Collector) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range c.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (c *Collector) isExcluded(rel string) bool {
	for _, pattern := range c.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// ReadCodeFile reads rel under root. Content must be valid UTF-8.
func ReadCodeFile(root, rel string) (CodeFile, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return CodeFile{}, fmt.Errorf("%w: %v", errs.ErrUnreadableFile, err)
	}
	if !utf8.Valid(data) {
		return CodeFile{}, fmt.Errorf("%w: %s is not valid UTF-8", errs.ErrUnreadableFile, rel)
	}
	return CodeFile{Path: rel, Content: string(data)}, nil
}
