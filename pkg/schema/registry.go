// Package schema exposes a read-only view of dataset schemas, used to
// ground the external planner's understanding of the available fields.
package schema

import (
	"github.com/quillhq/quill/pkg/models"
)

// SnapshotProvider is the subset of the dataset cache the registry reads.
type SnapshotProvider interface {
	Names() []string
	SchemaOf(name string) ([]models.Column, error)
}

// Registry is a thin read-only view over the cache. It holds no state of
// its own; types are inferred once at load time and live on the Dataset.
type Registry struct {
	provider SnapshotProvider
}

// NewRegistry creates a registry over a snapshot provider.
func NewRegistry(provider SnapshotProvider) *Registry {
	return &Registry{provider: provider}
}

// DescribeAll returns the columns of every loaded dataset.
func (r *Registry) DescribeAll() map[string][]models.Column {
	out := make(map[string][]models.Column)
	for _, name := range r.provider.Names() {
		cols, err := r.provider.SchemaOf(name)
		if err != nil {
			// The snapshot was not ready between Names and SchemaOf; skip it.
			continue
		}
		out[name] = cols
	}
	return out
}

// Describe returns the columns of one dataset.
func (r *Registry) Describe(name string) ([]models.Column, error) {
	return r.provider.SchemaOf(name)
}
