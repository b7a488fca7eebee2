package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scan-io-git/llmscan/pkg/shared/files"
)

// Source names the tree to scan: a local directory or a remote URL.
type Source struct {
	Path   string
	URL    string
	Branch string
}

// Checkout is an acquired working tree.
type Checkout struct {
	Root     string
	Name     string
	Remote   bool
	Revision *Revision
	tempDir  string
}

// Cleanup removes the temporary clone of a remote source. It is a no-op for local paths.
func (c *Checkout) Cleanup() error {
	if c == nil || c.tempDir == "" {
		return nil
	}
	if err := os.RemoveAll(c.tempDir); err != nil {
		return fmt.Errorf("failed to remove temporary clone %q: %w", c.tempDir, err)
	}
	return nil
}

// Validate checks that exactly one of Path and URL is set.
func (s Source) Validate() error {
	switch {
	case s.Path == "" && s.URL == "":
		return ErrNoSource
	case s.Path != "" && s.URL != "":
		return ErrAmbiguousSource
	}
	return nil
}

// Acquire resolves src into a working tree. Remote sources are cloned into a
// temporary folder that the caller removes with Checkout.Cleanup.
func (c *Client) Acquire(ctx context.Context, src Source) (*Checkout, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	if src.Path != "" {
		return OpenLocal(src.Path)
	}

	tempDir, err := os.MkdirTemp("", "llmscan-clone-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary folder: %w", err)
	}
	checkout := &Checkout{Root: tempDir, Remote: true, tempDir: tempDir}

	name, err := c.CloneRepository(ctx, src.URL, src.Branch, tempDir)
	if err != nil {
		_ = checkout.Cleanup()
		return nil, err
	}
	checkout.Name = name

	if rev, err := ReadRevision(tempDir); err == nil {
		checkout.Revision = rev
	}
	return checkout, nil
}

// OpenLocal validates a local directory. Git metadata is collected when the
// directory belongs to a repository.
func OpenLocal(path string) (*Checkout, error) {
	path, err := files.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap path %q: %w", path, err)
	}
	if err := files.ValidateDirectory(path); err != nil {
		return nil, fmt.Errorf("invalid repository path: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	checkout := &Checkout{Root: abs, Name: filepath.Base(abs)}
	if rev, err := ReadRevision(abs); err == nil {
		checkout.Revision = rev
	}
	return checkout, nil
}
