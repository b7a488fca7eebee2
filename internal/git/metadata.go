package git

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Revision is the git state a scan ran against.
type Revision struct {
	Root      string
	Subfolder string
	Branch    string
	Commit    string
	Remote    string
}

// ReadRevision locates the repository that contains dir and reads its HEAD.
// It fails when dir is not inside a git working tree.
func ReadRevision(dir string) (*Revision, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", dir, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%q is not inside a git repository: %w", abs, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}

	rev := &Revision{Root: filepath.Clean(wt.Filesystem.Root())}
	if rel, err := filepath.Rel(rev.Root, abs); err == nil && rel != "." {
		rev.Subfolder = filepath.ToSlash(rel)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD: %w", err)
	}
	rev.Commit = head.Hash().String()
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}

	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		rev.Remote = strings.TrimSuffix(remote.Config().URLs[0], ".git")
	}
	return rev, nil
}
