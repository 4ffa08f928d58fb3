package loader

import (
	"strconv"
	"strings"
	"time"

	"github.com/quillhq/quill/pkg/models"
)

// dateLayouts are tried in order when inferring and converting date cells.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
}

// buildTable infers a type per column and converts the raw string grid into
// typed rows. Empty cells and cells that do not parse as the inferred type
// become null.
func buildTable(header []string, raw [][]string) ([]models.Column, []models.Row) {
	columns := make([]models.Column, len(header))
	for i, name := range header {
		columns[i] = models.Column{Name: name, Type: inferColumnType(raw, i)}
	}

	rows := make([]models.Row, 0, len(raw))
	for _, record := range raw {
		row := make(models.Row, len(columns))
		for i, col := range columns {
			row[col.Name] = convertCell(record[i], col.Type)
		}
		rows = append(rows, row)
	}
	return columns, rows
}

// inferColumnType scans one column of the raw grid. A column is numeric,
// boolean, or date only if every non-empty cell parses as that type; a
// column with no non-empty cells defaults to string.
func inferColumnType(raw [][]string, col int) models.ColumnType {
	sawValue := false
	isNumber, isBool, isDate := true, true, true

	for _, record := range raw {
		cell := strings.TrimSpace(record[col])
		if cell == "" {
			continue
		}
		sawValue = true

		if isNumber {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				isNumber = false
			}
		}
		if isBool && !isBoolCell(cell) {
			isBool = false
		}
		if isDate && !isDateCell(cell) {
			isDate = false
		}
		if !isNumber && !isBool && !isDate {
			return models.TypeString
		}
	}

	if !sawValue {
		return models.TypeString
	}
	switch {
	case isBool:
		return models.TypeBoolean
	case isNumber:
		return models.TypeNumber
	case isDate:
		return models.TypeDate
	default:
		return models.TypeString
	}
}

// convertCell parses one cell as the inferred column type. Empty cells and
// parse failures become null rather than failing the row.
func convertCell(cell string, typ models.ColumnType) interface{} {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}

	switch typ {
	case models.TypeNumber:
		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			return f
		}
	case models.TypeBoolean:
		switch strings.ToLower(cell) {
		case "true":
			return true
		case "false":
			return false
		}
	case models.TypeDate:
		if t, ok := ParseDate(cell); ok {
			return t
		}
	case models.TypeString:
		return cell
	}
	return nil
}

func isBoolCell(cell string) bool {
	switch strings.ToLower(cell) {
	case "true", "false":
		return true
	}
	return false
}

func isDateCell(cell string) bool {
	_, ok := ParseDate(cell)
	return ok
}

// ParseDate parses a cell using the supported date layouts.
func ParseDate(cell string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
