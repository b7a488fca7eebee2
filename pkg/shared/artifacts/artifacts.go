package artifacts

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/llmscan/pkg/shared/files"
)

// GetArtifactName build returns artifact name.
// Example: scan_2025-09-15T08:28:46Z.llmscan-artifact.
func GetArtifactName(command string, t time.Time) string {
	ts := t.UTC().Format(time.RFC3339)
	return fmt.Sprintf("%s_%s.llmscan-artifact", command, ts)
}

// SaveArtifactJSON writes the provided run record to <dir>/<base>.json.
// Returns full path.
func SaveArtifactJSON(dir string, logger hclog.Logger, command string, record interface{}) (string, error) {
	if err := files.CreateFolderIfNotExists(dir); err != nil {
		return "", err
	}
	base := GetArtifactName(command, time.Now())
	path := filepath.Join(dir, base+".json")

	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return path, fmt.Errorf("error marshaling the result data: %w", err)
	}

	if err := files.WriteJsonFile(path, data); err != nil {
		return path, fmt.Errorf("error writing result to log file: %w", err)
	}
	logger.Info("artifact saved to file", "path", path)

	return path, nil
}
