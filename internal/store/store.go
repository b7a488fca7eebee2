// Package store persists report artifacts to the output folder and,
// optionally, mirrors them to S3.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/llmscan/pkg/shared/config"
	"github.com/scan-io-git/llmscan/pkg/shared/files"
)

// ErrMirror marks a failed upload to a secondary store. The artifact is
// still available at the primary location.
var ErrMirror = errors.New("mirror upload failed")

// Store saves a named artifact and returns where it ended up.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// FileStore writes artifacts under a local folder.
type FileStore struct {
	folder string
	logger hclog.Logger
}

// NewFileStore creates folder when missing.
func NewFileStore(folder string, logger hclog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	expanded, err := files.ExpandPath(folder)
	if err != nil {
		return nil, err
	}
	if err := files.CreateFolderIfNotExists(expanded); err != nil {
		return nil, err
	}
	return &FileStore{folder: expanded, logger: logger}, nil
}

// Folder returns the absolute output folder.
func (s *FileStore) Folder() string {
	return s.folder
}

// Save overwrites folder/name with data.
func (s *FileStore) Save(_ context.Context, name string, data []byte) (string, error) {
	target, err := files.EnsureWithinRoot(s.folder, filepath.Join(s.folder, name))
	if err != nil {
		return "", err
	}
	if err := files.WriteJsonFile(target, data); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	s.logger.Debug("artifact saved", "path", target, "bytes", len(data))
	return target, nil
}

// Multi saves to the primary store first and then to each mirror. A mirror
// failure is returned wrapped in ErrMirror after all mirrors have been
// tried; the primary location is still reported.
type Multi struct {
	Primary Store
	Mirrors []Store
	Logger  hclog.Logger
}

// Save implements Store.
func (m *Multi) Save(ctx context.Context, name string, data []byte) (string, error) {
	location, err := m.Primary.Save(ctx, name, data)
	if err != nil {
		return "", err
	}

	var mirrorErr error
	for _, mirror := range m.Mirrors {
		remote, err := mirror.Save(ctx, name, data)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("mirror upload failed", "name", name, "error", err)
			}
			mirrorErr = fmt.Errorf("%w: %v", ErrMirror, err)
			continue
		}
		if m.Logger != nil {
			m.Logger.Info("artifact mirrored", "name", name, "location", remote)
		}
	}
	return location, mirrorErr
}

// New builds the store described by cfg rooted at the output folder.
// Remote keys are placed under the configured prefix joined with keyPrefix.
func New(cfg *config.Config, folder, keyPrefix string, logger hclog.Logger) (Store, error) {
	local, err := NewFileStore(folder, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Type != config.StorageS3 {
		return local, nil
	}

	storage := cfg.Storage
	storage.Prefix = path.Join(storage.Prefix, keyPrefix)
	remote, err := NewS3Store(storage, logger)
	if err != nil {
		return nil, err
	}
	return &Multi{Primary: local, Mirrors: []Store{remote}, Logger: logger}, nil
}
