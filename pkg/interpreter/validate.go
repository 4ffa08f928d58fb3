package interpreter

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/loader"
	"github.com/quillhq/quill/pkg/models"
)

// monthPrefix marks a derived year-month group key: "month(date_column)".
const monthPrefix = "month("

// validOperators maps each filter operator to the column types it accepts.
var validOperators = map[models.FilterOperator][]models.ColumnType{
	models.OpEq:       {models.TypeNumber, models.TypeString, models.TypeDate, models.TypeBoolean},
	models.OpNeq:      {models.TypeNumber, models.TypeString, models.TypeDate, models.TypeBoolean},
	models.OpGt:       {models.TypeNumber, models.TypeDate},
	models.OpGte:      {models.TypeNumber, models.TypeDate},
	models.OpLt:       {models.TypeNumber, models.TypeDate},
	models.OpLte:      {models.TypeNumber, models.TypeDate},
	models.OpIn:       {models.TypeNumber, models.TypeString, models.TypeDate, models.TypeBoolean},
	models.OpContains: {models.TypeString},
}

// validatePlan checks every plan field against the dataset schema before any
// execution. A violation returns a plan validation error naming the
// offending field; execution never proceeds partially.
func validatePlan(ds *models.Dataset, plan *models.QueryPlan) error {
	for _, f := range plan.Filters {
		colType, ok := ds.ColumnType(f.Column)
		if !ok {
			return planErr("filter references unknown column %q", f.Column)
		}
		allowed, known := validOperators[f.Operator]
		if !known {
			return planErr("filter on column %q uses unsupported operator %q", f.Column, f.Operator)
		}
		if !typeAllowed(colType, allowed) {
			return planErr("operator %q is not applicable to %s column %q", f.Operator, colType, f.Column)
		}
		if err := validateFilterValue(f, colType); err != nil {
			return err
		}
	}

	for _, g := range plan.GroupBy {
		if err := validateGroupKey(ds, g); err != nil {
			return err
		}
	}

	outputs := make(map[string]bool, len(plan.GroupBy)+len(plan.Aggregations))
	for _, g := range plan.GroupBy {
		outputs[g] = true
	}
	for _, a := range plan.Aggregations {
		colType, ok := ds.ColumnType(a.Column)
		if !ok {
			return planErr("aggregation references unknown column %q", a.Column)
		}
		switch a.Function {
		case models.AggCount:
			// count applies to any column type
		case models.AggSum, models.AggAvg:
			if colType != models.TypeNumber {
				return planErr("aggregation %q requires a number column, %q is %s", a.Function, a.Column, colType)
			}
		case models.AggMin, models.AggMax:
			if colType != models.TypeNumber && colType != models.TypeDate {
				return planErr("aggregation %q requires a number or date column, %q is %s", a.Function, a.Column, colType)
			}
		default:
			return planErr("unsupported aggregation function %q", a.Function)
		}

		alias := aggregationAlias(a)
		if outputs[alias] {
			return planErr("duplicate output column %q", alias)
		}
		outputs[alias] = true
	}

	if plan.Sort != nil {
		if !sortableColumn(ds, plan, plan.Sort.Column) {
			return planErr("sort references unknown output column %q", plan.Sort.Column)
		}
		switch plan.Sort.Direction {
		case models.SortAsc, models.SortDesc, "":
		default:
			return planErr("unsupported sort direction %q", plan.Sort.Direction)
		}
	}

	if plan.Limit < 0 {
		return planErr("limit must be a positive integer, got %d", plan.Limit)
	}

	for _, field := range []struct{ name, value string }{
		{"x_field", plan.XField},
		{"y_field", plan.YField},
		{"series_field", plan.SeriesField},
	} {
		if field.value == "" {
			continue
		}
		if !sortableColumn(ds, plan, field.value) {
			return planErr("%s references unknown output column %q", field.name, field.value)
		}
	}

	return nil
}

// validateGroupKey accepts either a plain column name or a month(<column>)
// derivation over a date column.
func validateGroupKey(ds *models.Dataset, key string) error {
	if inner, ok := monthArgument(key); ok {
		colType, exists := ds.ColumnType(inner)
		if !exists {
			return planErr("group_by references unknown column %q", inner)
		}
		if colType != models.TypeDate {
			return planErr("month() grouping requires a date column, %q is %s", inner, colType)
		}
		return nil
	}
	if _, ok := ds.ColumnType(key); !ok {
		return planErr("group_by references unknown column %q", key)
	}
	return nil
}

// validateFilterValue checks the plan-supplied comparison value coerces to
// the column type instead of silently coercing at execution time.
func validateFilterValue(f models.Filter, colType models.ColumnType) error {
	if f.Operator == models.OpIn {
		items, err := cast.ToSliceE(f.Value)
		if err != nil {
			return planErr("filter %q on column %q requires a list value", f.Operator, f.Column)
		}
		for _, item := range items {
			if !valueCoercible(item, colType) {
				return planErr("filter value %v is not comparable to %s column %q", item, colType, f.Column)
			}
		}
		return nil
	}
	if !valueCoercible(f.Value, colType) {
		return planErr("filter value %v is not comparable to %s column %q", f.Value, colType, f.Column)
	}
	return nil
}

func valueCoercible(v interface{}, colType models.ColumnType) bool {
	if v == nil {
		return false
	}
	switch colType {
	case models.TypeNumber:
		_, err := cast.ToFloat64E(v)
		return err == nil
	case models.TypeBoolean:
		_, err := cast.ToBoolE(v)
		return err == nil
	case models.TypeDate:
		s, err := cast.ToStringE(v)
		if err != nil {
			return false
		}
		_, ok := loader.ParseDate(s)
		return ok
	case models.TypeString:
		_, err := cast.ToStringE(v)
		return err == nil
	}
	return false
}

// sortableColumn reports whether name is a column of the plan's output:
// group keys and aliases when grouping/aggregating, raw columns otherwise.
func sortableColumn(ds *models.Dataset, plan *models.QueryPlan, name string) bool {
	if len(plan.GroupBy) == 0 && len(plan.Aggregations) == 0 {
		_, ok := ds.ColumnType(name)
		return ok
	}
	for _, g := range plan.GroupBy {
		if g == name {
			return true
		}
	}
	for _, a := range plan.Aggregations {
		if aggregationAlias(a) == name {
			return true
		}
	}
	return false
}

// aggregationAlias returns the output column name of one aggregation.
func aggregationAlias(a models.Aggregation) string {
	if a.Alias != "" {
		return a.Alias
	}
	return string(a.Function) + "_" + a.Column
}

// monthArgument extracts the column inside a month(<column>) group key.
func monthArgument(key string) (string, bool) {
	if strings.HasPrefix(key, monthPrefix) && strings.HasSuffix(key, ")") {
		inner := strings.TrimSpace(key[len(monthPrefix) : len(key)-1])
		return inner, inner != ""
	}
	return "", false
}

func typeAllowed(t models.ColumnType, allowed []models.ColumnType) bool {
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

func planErr(format string, args ...interface{}) error {
	return errors.Newf(errors.CodePlanInvalid, format, args...)
}
