// Package interpreter validates and executes externally planned queries
// against immutable dataset snapshots.
package interpreter

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/loader"
	"github.com/quillhq/quill/pkg/models"
)

// cancelCheckStride is how many rows are processed between context checks.
const cancelCheckStride = 1024

// Config bounds plan execution against resource exhaustion.
type Config struct {
	// MaxInputRows is the largest dataset a plan may execute over.
	MaxInputRows int
	// MaxOutputRows is the largest result (rows or distinct groups) a plan
	// may produce.
	MaxOutputRows int
}

// DefaultConfig returns default execution bounds.
func DefaultConfig() *Config {
	return &Config{
		MaxInputRows:  1_000_000,
		MaxOutputRows: 10_000,
	}
}

// Interpreter executes query plans. It holds no per-request state, so any
// number of executions may run concurrently over shared snapshots.
type Interpreter struct {
	config *Config
	logger zerolog.Logger
}

// New creates an interpreter.
func New(cfg *Config, logger zerolog.Logger) *Interpreter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Interpreter{config: cfg, logger: logger}
}

// Execute runs one plan over one snapshot. The canonical operation order is
// filter, then group and aggregate, then sort, then limit, independent of
// the order fields appear in the plan. Execution is deterministic: the same
// snapshot and plan always produce the same result.
func (i *Interpreter) Execute(ctx context.Context, ds *models.Dataset, plan *models.QueryPlan) (*models.ExecutionResult, error) {
	if err := validatePlan(ds, plan); err != nil {
		return nil, err
	}
	if len(ds.Rows) > i.config.MaxInputRows {
		return nil, errors.Newf(errors.CodeLimitExceeded,
			"dataset %q has %d rows, execution ceiling is %d; narrow the query", ds.Name, len(ds.Rows), i.config.MaxInputRows)
	}

	filtered, err := i.filterRows(ctx, ds, plan.Filters)
	if err != nil {
		return nil, err
	}

	var result *models.ExecutionResult
	if len(plan.GroupBy) == 0 && len(plan.Aggregations) == 0 {
		result = &models.ExecutionResult{Columns: ds.ColumnNames(), Rows: filtered}
	} else {
		result, err = i.groupAndAggregate(ctx, filtered, plan)
		if err != nil {
			return nil, err
		}
	}

	if plan.Sort != nil {
		sortRows(result.Rows, plan.Sort)
	}
	if plan.Limit > 0 && len(result.Rows) > plan.Limit {
		result.Rows = result.Rows[:plan.Limit]
	}
	if len(result.Rows) > i.config.MaxOutputRows {
		return nil, errors.Newf(errors.CodeLimitExceeded,
			"result has %d rows, ceiling is %d; aggregate or limit the query", len(result.Rows), i.config.MaxOutputRows)
	}

	i.logger.Debug().
		Str("dataset", ds.Name).
		Int("input_rows", len(ds.Rows)).
		Int("output_rows", len(result.Rows)).
		Msg("Executed plan")
	return result, nil
}

// filterRows applies all predicates conjunctively.
func (i *Interpreter) filterRows(ctx context.Context, ds *models.Dataset, filters []models.Filter) ([]models.Row, error) {
	if len(filters) == 0 {
		// Copy so a later sort cannot reorder the shared snapshot.
		out := make([]models.Row, len(ds.Rows))
		copy(out, ds.Rows)
		return out, nil
	}

	out := make([]models.Row, 0, len(ds.Rows))
	for n, row := range ds.Rows {
		if n%cancelCheckStride == 0 {
			if err := ctxErr(ctx); err != nil {
				return nil, err
			}
		}
		if matchRow(ds, row, filters) {
			out = append(out, row)
		}
	}
	return out, nil
}

// matchRow reports whether every filter predicate holds. Null cells fail
// every predicate.
func matchRow(ds *models.Dataset, row models.Row, filters []models.Filter) bool {
	for _, f := range filters {
		colType, _ := ds.ColumnType(f.Column)
		if !matchFilter(row[f.Column], f, colType) {
			return false
		}
	}
	return true
}

func matchFilter(value interface{}, f models.Filter, colType models.ColumnType) bool {
	if value == nil {
		return false
	}

	if f.Operator == models.OpIn {
		items, err := cast.ToSliceE(f.Value)
		if err != nil {
			return false
		}
		for _, item := range items {
			if equalTyped(value, item, colType) {
				return true
			}
		}
		return false
	}

	switch f.Operator {
	case models.OpEq:
		return equalTyped(value, f.Value, colType)
	case models.OpNeq:
		return !equalTyped(value, f.Value, colType)
	case models.OpContains:
		cell, ok := value.(string)
		if !ok {
			return false
		}
		target, err := cast.ToStringE(f.Value)
		if err != nil {
			return false
		}
		return strings.Contains(strings.ToLower(cell), strings.ToLower(target))
	case models.OpGt, models.OpGte, models.OpLt, models.OpLte:
		cmp, ok := compareTyped(value, f.Value, colType)
		if !ok {
			return false
		}
		switch f.Operator {
		case models.OpGt:
			return cmp > 0
		case models.OpGte:
			return cmp >= 0
		case models.OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	}
	return false
}

// equalTyped compares a cell with a plan value after coercing the plan
// value to the column type.
func equalTyped(cell, target interface{}, colType models.ColumnType) bool {
	switch colType {
	case models.TypeNumber:
		v, ok := cell.(float64)
		if !ok {
			return false
		}
		t, err := cast.ToFloat64E(target)
		return err == nil && v == t
	case models.TypeBoolean:
		v, ok := cell.(bool)
		if !ok {
			return false
		}
		t, err := cast.ToBoolE(target)
		return err == nil && v == t
	case models.TypeDate:
		v, ok := cell.(time.Time)
		if !ok {
			return false
		}
		t, ok := coerceDate(target)
		return ok && v.Equal(t)
	default:
		v, ok := cell.(string)
		if !ok {
			return false
		}
		t, err := cast.ToStringE(target)
		return err == nil && v == t
	}
}

// compareTyped returns cell<=>target as -1/0/1 for ordered column types.
func compareTyped(cell, target interface{}, colType models.ColumnType) (int, bool) {
	switch colType {
	case models.TypeNumber:
		v, ok := cell.(float64)
		if !ok {
			return 0, false
		}
		t, err := cast.ToFloat64E(target)
		if err != nil {
			return 0, false
		}
		switch {
		case v < t:
			return -1, true
		case v > t:
			return 1, true
		default:
			return 0, true
		}
	case models.TypeDate:
		v, ok := cell.(time.Time)
		if !ok {
			return 0, false
		}
		t, ok := coerceDate(target)
		if !ok {
			return 0, false
		}
		switch {
		case v.Before(t):
			return -1, true
		case v.After(t):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func coerceDate(target interface{}) (time.Time, bool) {
	if t, ok := target.(time.Time); ok {
		return t, true
	}
	s, err := cast.ToStringE(target)
	if err != nil {
		return time.Time{}, false
	}
	return loader.ParseDate(s)
}

// ctxErr maps context errors onto the engine taxonomy. A canceled or timed
// out execution returns no partial result.
func ctxErr(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return errors.Wrap(ctx.Err(), errors.CodeDeadlineExceeded, "plan execution timeout")
	default:
		return errors.Wrap(ctx.Err(), errors.CodeCanceled, "plan execution canceled")
	}
}
