package models

// FilterOperator is a comparison operator in a plan filter.
type FilterOperator string

const (
	OpEq       FilterOperator = "eq"
	OpNeq      FilterOperator = "neq"
	OpGt       FilterOperator = "gt"
	OpGte      FilterOperator = "gte"
	OpLt       FilterOperator = "lt"
	OpLte      FilterOperator = "lte"
	OpIn       FilterOperator = "in"
	OpContains FilterOperator = "contains"
)

// AggregateFunction is an aggregation function in a plan.
type AggregateFunction string

const (
	AggSum   AggregateFunction = "sum"
	AggAvg   AggregateFunction = "avg"
	AggCount AggregateFunction = "count"
	AggMin   AggregateFunction = "min"
	AggMax   AggregateFunction = "max"
)

// SortDirection orders aggregated rows ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Filter is a single conjunctive predicate over one column.
type Filter struct {
	Column   string         `json:"column"`
	Operator FilterOperator `json:"operator"`
	Value    interface{}    `json:"value"`
}

// Aggregation computes one value per group.
type Aggregation struct {
	Column   string            `json:"column"`
	Function AggregateFunction `json:"function"`
	Alias    string            `json:"alias"`
}

// Sort orders the aggregated rows by one output column.
type Sort struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

// QueryPlan is the externally planned description of what to execute.
// It is semi-trusted input: every field is validated against the target
// dataset's schema before execution. Unknown JSON fields are ignored for
// forward compatibility; missing optional fields take their zero defaults.
type QueryPlan struct {
	Filters      []Filter      `json:"filters,omitempty"`
	GroupBy      []string      `json:"group_by,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	Sort         *Sort         `json:"sort,omitempty"`
	Limit        int           `json:"limit,omitempty"`

	ChartType   string `json:"chart_type,omitempty"`
	Title       string `json:"title,omitempty"`
	XField      string `json:"x_field,omitempty"`
	YField      string `json:"y_field,omitempty"`
	SeriesField string `json:"series_field,omitempty"`
}

// ExecutionResult is the ordered output table of one plan execution.
type ExecutionResult struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}
