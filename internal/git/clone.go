package git

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gitsight/go-vcsurl"
	"github.com/go-git/go-git/v5"

	"github.com/scan-io-git/llmscan/pkg/shared/config"
	log "github.com/scan-io-git/llmscan/pkg/shared/logger"
)

// RepositoryName extracts the repository name from a clone URL.
func RepositoryName(cloneURL string) (string, error) {
	info, err := vcsurl.Parse(cloneURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse VCS URL: %w", err)
	}
	return info.Name, nil
}

// CloneRepository clones cloneURL into targetFolder. An empty branch clones
// the remote default branch.
func (c *Client) CloneRepository(ctx context.Context, cloneURL, branch, targetFolder string) (string, error) {
	name, err := RepositoryName(cloneURL)
	if err != nil {
		// self-hosted and file remotes are not known to vcsurl
		c.logger.Debug("failed to parse VCS URL, using the last path element", "VCSURL", cloneURL, "error", err)
		name = strings.TrimSuffix(path.Base(strings.TrimRight(cloneURL, "/")), ".git")
	}

	auth, err := c.authFor(cloneURL)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &git.CloneOptions{
		Auth:     auth,
		URL:      cloneURL,
		Progress: log.GetLoggerOutput(c.logger),
		Depth:    config.SetThen(c.cfg.Depth, config.DefaultGitDepth),
	}
	if branch != "" {
		opts.ReferenceName = branchReference(branch)
		opts.SingleBranch = true
	}

	c.logger.Debug("starting repository fetch", "repository", name, "branch", branch, "cloneURL", cloneURL, "targetFolder", targetFolder)
	if _, err := git.PlainCloneContext(ctx, targetFolder, false, opts); err != nil {
		c.logger.Error("error occurred during clone", "error", err, "targetFolder", targetFolder)
		return "", fmt.Errorf("error occurred during clone: %w", err)
	}

	c.logger.Info("repository cloned successfully", "repository", name, "targetFolder", targetFolder)
	return name, nil
}
