// Package repotext renders a repository as one text blob used as context by
// the refinement pass.
package repotext

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/llmscan/internal/collector"
	"github.com/scan-io-git/llmscan/pkg/shared/files"
)

// FileName is the name of the persisted blob inside the output folder.
const FileName = "repo_content.txt"

const separator = "================================================================"

// Blob is the rendered repository.
type Blob struct {
	Text      string
	Files     int
	Skipped   int
	Truncated bool
}

// Build concatenates every file in paths under a header. Rendering stops
// before the blob would exceed maxBytes; a non-positive maxBytes means no limit.
func Build(root, repoName string, paths []string, maxBytes int, logger hclog.Logger) Blob {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n%s\n\n", repoName, separator)

	var blob Blob
	for _, rel := range paths {
		file, err := collector.ReadCodeFile(root, rel)
		if err != nil {
			logger.Warn("skipping file in repository text", "file", rel, "error", err)
			blob.Skipped++
			continue
		}

		section := fmt.Sprintf("File: %s/%s\n%s\n%s\n\n", repoName, rel, separator, strings.TrimRight(file.Content, "\n"))
		if maxBytes > 0 && b.Len()+len(section) > maxBytes {
			logger.Warn("repository text truncated", "limit_bytes", maxBytes, "included_files", blob.Files, "total_files", len(paths))
			blob.Truncated = true
			break
		}
		b.WriteString(section)
		blob.Files++
	}

	blob.Text = b.String()
	return blob
}

// Save writes the blob to FileName inside folder and returns the file path.
func Save(folder string, blob Blob) (string, error) {
	if err := files.CreateFolderIfNotExists(folder); err != nil {
		return "", err
	}
	path := filepath.Join(folder, FileName)
	if err := files.WriteFile(path, []byte(blob.Text)); err != nil {
		return "", fmt.Errorf("failed to save repository text: %w", err)
	}
	return path, nil
}
