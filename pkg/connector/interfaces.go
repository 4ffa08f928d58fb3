// Package connector defines the I/O boundary to the remote file store.
package connector

import (
	"context"
	"io"

	"github.com/quillhq/quill/pkg/models"
)

// Connector lists and fetches raw tabular files from a remote folder.
// Implementations carry no retry logic; retries belong to the refresh cycle.
type Connector interface {
	// List returns every tabular file in the source folder with its
	// last-modified marker.
	List(ctx context.Context) ([]models.FileInfo, error)
	// Fetch returns the raw content of one file. The caller closes the reader.
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, error)
}
