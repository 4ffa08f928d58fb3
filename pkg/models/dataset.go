// Package models provides data structures used throughout the quill engine.
package models

import (
	"time"
)

// ColumnType is the inferred type of a dataset column.
type ColumnType string

const (
	// TypeNumber is a numeric column (stored as float64).
	TypeNumber ColumnType = "number"
	// TypeString is a free-text column.
	TypeString ColumnType = "string"
	// TypeDate is a date or timestamp column (stored as time.Time).
	TypeDate ColumnType = "date"
	// TypeBoolean is a true/false column.
	TypeBoolean ColumnType = "boolean"
)

// Column describes a single dataset column and its inferred type.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Row is a single dataset row. Cell values are float64, string, time.Time,
// bool, or nil for null.
type Row map[string]interface{}

// Dataset is an immutable snapshot of one named table. A refresh produces a
// brand-new Dataset value; published datasets are never mutated in place.
type Dataset struct {
	Name             string    `json:"name"`
	Columns          []Column  `json:"columns"`
	Rows             []Row     `json:"-"`
	SourceModifiedAt time.Time `json:"source_modified_at"`
	LoadedAt         time.Time `json:"loaded_at"`
	SkippedRows      int       `json:"skipped_rows"`
}

// ColumnNames returns the ordered column names.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnType returns the inferred type of a column and whether it exists.
func (d *Dataset) ColumnType(name string) (ColumnType, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return "", false
}

// FileInfo describes one file in the remote source folder.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
}

// DatasetHealth reports freshness of one cached dataset.
type DatasetHealth struct {
	LoadedAt         time.Time `json:"loaded_at"`
	SourceModifiedAt time.Time `json:"source_modified_at"`
	RowCount         int       `json:"row_count"`
	SkippedRows      int       `json:"skipped_rows"`
	Stale            bool      `json:"stale"`
}

// HealthStatus reports freshness of every cached dataset.
type HealthStatus struct {
	Datasets map[string]DatasetHealth `json:"datasets"`
}
