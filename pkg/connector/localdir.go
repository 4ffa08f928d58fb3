package connector

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/models"
)

// LocalDirConnector serves tabular files from a local directory. It exists
// for development and tests; the file name doubles as the file ID.
type LocalDirConnector struct {
	dir string
}

// NewLocalDirConnector creates a connector over one directory.
func NewLocalDirConnector(dir string) *LocalDirConnector {
	return &LocalDirConnector{dir: dir}
}

// List returns the tabular files in the directory.
func (c *LocalDirConnector) List(ctx context.Context) ([]models.FileInfo, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConnectivity, "failed to read source directory %s", c.dir)
	}

	var files []models.FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !hasTabularExtension(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, models.FileInfo{
			ID:         entry.Name(),
			Name:       entry.Name(),
			ModifiedAt: info.ModTime(),
		})
	}
	return files, nil
}

// Fetch opens one file by name.
func (c *LocalDirConnector) Fetch(ctx context.Context, fileID string) (io.ReadCloser, error) {
	// Reject IDs that escape the source directory.
	if filepath.Base(fileID) != fileID {
		return nil, errors.Newf(errors.CodeNotFound, "source file %s not found", fileID)
	}

	f, err := os.Open(filepath.Join(c.dir, fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.CodeNotFound, "source file %s not found", fileID)
		}
		return nil, errors.Wrapf(err, errors.CodeConnectivity, "failed to open source file %s", fileID)
	}
	return f, nil
}

// hasTabularExtension reports whether a file name ends in a loadable format.
func hasTabularExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
