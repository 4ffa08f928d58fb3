package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/models"
)

type mockProvider struct {
	namesFunc    func() []string
	schemaOfFunc func(name string) ([]models.Column, error)
}

func (m *mockProvider) Names() []string {
	return m.namesFunc()
}

func (m *mockProvider) SchemaOf(name string) ([]models.Column, error) {
	return m.schemaOfFunc(name)
}

func TestRegistry_DescribeAll(t *testing.T) {
	schemas := map[string][]models.Column{
		"sales":    {{Name: "partner", Type: models.TypeString}, {Name: "amount", Type: models.TypeNumber}},
		"partners": {{Name: "id", Type: models.TypeNumber}},
	}
	provider := &mockProvider{
		namesFunc: func() []string { return []string{"partners", "sales"} },
		schemaOfFunc: func(name string) ([]models.Column, error) {
			return schemas[name], nil
		},
	}

	reg := NewRegistry(provider)
	all := reg.DescribeAll()

	require.Len(t, all, 2)
	assert.Equal(t, schemas["sales"], all["sales"])
	assert.Equal(t, schemas["partners"], all["partners"])
}

func TestRegistry_DescribeAllSkipsVanishedSnapshots(t *testing.T) {
	provider := &mockProvider{
		namesFunc: func() []string { return []string{"sales", "ghost"} },
		schemaOfFunc: func(name string) ([]models.Column, error) {
			if name == "ghost" {
				return nil, errors.ErrNotReady
			}
			return []models.Column{{Name: "amount", Type: models.TypeNumber}}, nil
		},
	}

	reg := NewRegistry(provider)
	all := reg.DescribeAll()

	require.Len(t, all, 1)
	assert.Contains(t, all, "sales")
}

func TestRegistry_Describe(t *testing.T) {
	provider := &mockProvider{
		namesFunc: func() []string { return nil },
		schemaOfFunc: func(name string) ([]models.Column, error) {
			return nil, errors.ErrDatasetNotFound
		},
	}

	reg := NewRegistry(provider)
	_, err := reg.Describe("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
