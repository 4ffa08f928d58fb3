// Package chart maps execution results into renderer-agnostic chart specs.
package chart

import (
	"github.com/spf13/cast"

	"github.com/quillhq/quill/pkg/models"
)

// supportedTypes is the closed set of chart shapes the builder emits.
var supportedTypes = map[models.ChartType]bool{
	models.ChartBar:     true,
	models.ChartLine:    true,
	models.ChartPie:     true,
	models.ChartDonut:   true,
	models.ChartScatter: true,
}

// Build maps a result table and the plan's chart fields into a ChartSpec.
// An absent or unsupported chart type falls back to a bar chart when the
// result shape permits one categorical and one numeric column; otherwise
// Build returns nil and the caller surfaces a text-only answer.
func Build(result *models.ExecutionResult, plan *models.QueryPlan) *models.ChartSpec {
	if result == nil || len(result.Rows) == 0 {
		return nil
	}

	chartType := models.ChartType(plan.ChartType)
	if !supportedTypes[chartType] {
		chartType = models.ChartBar
	}

	xField, yField := resolveAxes(result, plan)
	if xField == "" || yField == "" {
		return nil
	}

	spec := &models.ChartSpec{
		Traces: buildTraces(result, chartType, xField, yField, plan.SeriesField),
		Layout: buildLayout(chartType, plan, xField, yField),
	}
	if len(spec.Traces) == 0 {
		return nil
	}
	return spec
}

// resolveAxes picks the x and y columns, preferring the plan's explicit
// fields and falling back to the first categorical and first numeric column.
func resolveAxes(result *models.ExecutionResult, plan *models.QueryPlan) (string, string) {
	xField, yField := plan.XField, plan.YField

	if xField == "" {
		for _, col := range result.Columns {
			if col != yField && !isNumericColumn(result, col) {
				xField = col
				break
			}
		}
	}
	if yField == "" {
		for _, col := range result.Columns {
			if col != xField && isNumericColumn(result, col) {
				yField = col
				break
			}
		}
	}
	return xField, yField
}

// buildTraces emits one trace, or one per distinct series value when a
// series field is set. Rows keep the result's ordering within each trace.
func buildTraces(result *models.ExecutionResult, chartType models.ChartType, xField, yField, seriesField string) []models.Trace {
	if seriesField == "" {
		trace := models.Trace{Type: chartType}
		for _, row := range result.Rows {
			trace.X = append(trace.X, row[xField])
			trace.Y = append(trace.Y, row[yField])
		}
		return []models.Trace{trace}
	}

	byName := make(map[string]*models.Trace)
	var order []string
	for _, row := range result.Rows {
		name := seriesLabel(row[seriesField])
		trace, ok := byName[name]
		if !ok {
			trace = &models.Trace{Type: chartType, Name: name}
			byName[name] = trace
			order = append(order, name)
		}
		trace.X = append(trace.X, row[xField])
		trace.Y = append(trace.Y, row[yField])
	}

	traces := make([]models.Trace, 0, len(order))
	for _, name := range order {
		traces = append(traces, *byName[name])
	}
	return traces
}

func buildLayout(chartType models.ChartType, plan *models.QueryPlan, xField, yField string) map[string]interface{} {
	layout := map[string]interface{}{
		"x_label": xField,
		"y_label": yField,
	}
	if plan.Title != "" {
		layout["title"] = plan.Title
	}
	switch chartType {
	case models.ChartDonut:
		layout["hole"] = 0.4
	case models.ChartBar:
		if plan.SeriesField != "" {
			layout["barmode"] = "group"
		}
	}
	return layout
}

// isNumericColumn reports whether the first non-null cell of a column is
// numeric.
func isNumericColumn(result *models.ExecutionResult, col string) bool {
	for _, row := range result.Rows {
		v := row[col]
		if v == nil {
			continue
		}
		_, ok := v.(float64)
		return ok
	}
	return false
}

// seriesLabel renders a series key, keeping nulls as their own series.
func seriesLabel(v interface{}) string {
	if v == nil {
		return "null"
	}
	return cast.ToString(v)
}
