package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset_ColumnNames(t *testing.T) {
	ds := &Dataset{
		Name: "sales",
		Columns: []Column{
			{Name: "partner", Type: TypeString},
			{Name: "amount", Type: TypeNumber},
			{Name: "date", Type: TypeDate},
		},
	}

	assert.Equal(t, []string{"partner", "amount", "date"}, ds.ColumnNames())
}

func TestDataset_ColumnType(t *testing.T) {
	ds := &Dataset{
		Columns: []Column{
			{Name: "amount", Type: TypeNumber},
		},
	}

	typ, ok := ds.ColumnType("amount")
	require.True(t, ok)
	assert.Equal(t, TypeNumber, typ)

	_, ok = ds.ColumnType("region")
	assert.False(t, ok)
}

func TestQueryPlan_UnmarshalIgnoresUnknownFields(t *testing.T) {
	raw := `{
		"filters": [{"column": "date", "operator": "gte", "value": "2024-01-01"}],
		"group_by": ["partner"],
		"aggregations": [{"column": "amount", "function": "sum", "alias": "total"}],
		"chart_type": "bar",
		"some_future_field": {"ignored": true}
	}`

	var plan QueryPlan
	require.NoError(t, json.Unmarshal([]byte(raw), &plan))

	require.Len(t, plan.Filters, 1)
	assert.Equal(t, OpGte, plan.Filters[0].Operator)
	assert.Equal(t, []string{"partner"}, plan.GroupBy)
	require.Len(t, plan.Aggregations, 1)
	assert.Equal(t, AggSum, plan.Aggregations[0].Function)
	assert.Equal(t, "total", plan.Aggregations[0].Alias)
	assert.Zero(t, plan.Limit)
	assert.Nil(t, plan.Sort)
}

func TestHealthStatus_JSONShape(t *testing.T) {
	status := HealthStatus{
		Datasets: map[string]DatasetHealth{
			"sales": {
				LoadedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
				RowCount: 42,
				Stale:    true,
			},
		},
	}

	data, err := json.Marshal(status)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stale":true`)
	assert.Contains(t, string(data), `"row_count":42`)
}
