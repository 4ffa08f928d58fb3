package interpreter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/models"
)

// rowGroup collects the rows sharing one group key.
type rowGroup struct {
	keyValues []interface{}
	rows      []models.Row
}

// groupAndAggregate buckets the filtered rows by the group keys and computes
// one output row per group. With no group keys, the whole filtered set
// collapses into a single row. Null key values form their own group rather
// than being dropped, so totals are not silently lost.
func (i *Interpreter) groupAndAggregate(ctx context.Context, rows []models.Row, plan *models.QueryPlan) (*models.ExecutionResult, error) {
	columns := make([]string, 0, len(plan.GroupBy)+len(plan.Aggregations))
	columns = append(columns, plan.GroupBy...)
	for _, a := range plan.Aggregations {
		columns = append(columns, aggregationAlias(a))
	}

	groups, err := i.groupRows(ctx, rows, plan.GroupBy)
	if err != nil {
		return nil, err
	}

	out := make([]models.Row, 0, len(groups))
	for _, g := range groups {
		row := make(models.Row, len(columns))
		for idx, key := range plan.GroupBy {
			row[key] = g.keyValues[idx]
		}
		for _, a := range plan.Aggregations {
			row[aggregationAlias(a)] = aggregate(g.rows, a)
		}
		out = append(out, row)
	}

	return &models.ExecutionResult{Columns: columns, Rows: out}, nil
}

// groupRows buckets rows preserving first-seen group order, which keeps
// execution deterministic for a fixed snapshot.
func (i *Interpreter) groupRows(ctx context.Context, rows []models.Row, groupBy []string) ([]*rowGroup, error) {
	if len(groupBy) == 0 {
		return []*rowGroup{{rows: rows}}, nil
	}

	index := make(map[string]*rowGroup)
	var ordered []*rowGroup

	for n, row := range rows {
		if n%cancelCheckStride == 0 {
			if err := ctxErr(ctx); err != nil {
				return nil, err
			}
		}

		keyValues := make([]interface{}, len(groupBy))
		for idx, key := range groupBy {
			keyValues[idx] = groupKeyValue(row, key)
		}

		hash := hashKey(keyValues)
		g, ok := index[hash]
		if !ok {
			if len(ordered) >= i.config.MaxOutputRows {
				return nil, errors.Newf(errors.CodeLimitExceeded,
					"grouping produced more than %d distinct groups; narrow the query", i.config.MaxOutputRows)
			}
			g = &rowGroup{keyValues: keyValues}
			index[hash] = g
			ordered = append(ordered, g)
		}
		g.rows = append(g.rows, row)
	}

	return ordered, nil
}

// groupKeyValue resolves one group key for one row. A month(<column>)
// key derives a "2006-01" string from a date column.
func groupKeyValue(row models.Row, key string) interface{} {
	if inner, ok := monthArgument(key); ok {
		t, isTime := row[inner].(time.Time)
		if !isTime {
			return nil
		}
		return t.Format("2006-01")
	}
	return row[key]
}

// hashKey builds a collision-safe map key from group key values.
func hashKey(values []interface{}) string {
	var b strings.Builder
	for _, v := range values {
		if v == nil {
			b.WriteString("\x00null")
		} else {
			fmt.Fprintf(&b, "%T:%v", v, v)
		}
		b.WriteByte('\x1f')
	}
	return b.String()
}

// aggregate computes one aggregation over the rows of a group. Null cells
// are skipped; a group whose every cell is null aggregates to null, not
// zero. Count counts non-null cells only.
func aggregate(rows []models.Row, a models.Aggregation) interface{} {
	switch a.Function {
	case models.AggCount:
		count := 0
		for _, row := range rows {
			if row[a.Column] != nil {
				count++
			}
		}
		return float64(count)

	case models.AggSum, models.AggAvg:
		sum := 0.0
		count := 0
		for _, row := range rows {
			if v, ok := row[a.Column].(float64); ok {
				sum += v
				count++
			}
		}
		if count == 0 {
			return nil
		}
		if a.Function == models.AggAvg {
			return sum / float64(count)
		}
		return sum

	case models.AggMin, models.AggMax:
		return minmax(rows, a)
	}
	return nil
}

func minmax(rows []models.Row, a models.Aggregation) interface{} {
	var best interface{}
	for _, row := range rows {
		v := row[a.Column]
		if v == nil {
			continue
		}
		if best == nil {
			best = v
			continue
		}
		cmp := compareCells(v, best)
		if (a.Function == models.AggMin && cmp < 0) || (a.Function == models.AggMax && cmp > 0) {
			best = v
		}
	}
	return best
}

// sortRows orders rows by one output column. Null cells always sort last
// regardless of direction. The sort is stable, so equal keys keep their
// deterministic pre-sort order.
func sortRows(rows []models.Row, s *models.Sort) {
	desc := s.Direction == models.SortDesc
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][s.Column], rows[j][s.Column]
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		cmp := compareCells(a, b)
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

// compareCells orders two non-null cells of the same column.
func compareCells(a, b interface{}) int {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0
		}
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0
		}
		switch {
		case !av && bv:
			return -1
		case av && !bv:
			return 1
		}
		return 0
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0
		}
		return strings.Compare(av, bv)
	}
	return 0
}
