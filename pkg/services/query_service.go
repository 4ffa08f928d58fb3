package services

import (
	"context"
	"strings"
	"time"

	"github.com/quillhq/quill/pkg/chart"
	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/infrastructure/metrics"
	"github.com/quillhq/quill/pkg/models"
	"github.com/quillhq/quill/pkg/planner"
	"github.com/quillhq/quill/pkg/schema"
)

// queryService implements QueryService on top of the dataset cache,
// the plan interpreter and an external planner.
type queryService struct {
	cache        DatasetReader
	registry     *schema.Registry
	executor     PlanExecutor
	planner      planner.Planner
	logger       Logger
	metrics      metrics.Collector
	queryTimeout time.Duration
}

// QueryServiceOption configures the query service.
type QueryServiceOption func(*queryService)

// WithQueryTimeout bounds each plan execution. Zero disables the bound.
func WithQueryTimeout(d time.Duration) QueryServiceOption {
	return func(s *queryService) {
		s.queryTimeout = d
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector metrics.Collector) QueryServiceOption {
	return func(s *queryService) {
		s.metrics = collector
	}
}

// NewQueryService creates a new query service.
func NewQueryService(cache DatasetReader, executor PlanExecutor, pl planner.Planner, logger Logger, opts ...QueryServiceOption) QueryService {
	s := &queryService{
		cache:    cache,
		registry: schema.NewRegistry(cache),
		executor: executor,
		planner:  pl,
		logger:   logger,
		metrics:  metrics.NewNoOpCollector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSchema returns the schema of every loaded dataset.
func (s *queryService) GetSchema() map[string][]models.Column {
	return s.registry.DescribeAll()
}

// Execute runs one plan against one dataset.
func (s *queryService) Execute(ctx context.Context, dataset string, plan *models.QueryPlan) (*models.ExecutionResult, *models.ChartSpec, error) {
	if plan == nil {
		return nil, nil, errors.New(errors.CodePlanInvalid, "plan is required")
	}
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return nil, nil, errors.New(errors.CodePlanInvalid, "dataset name is required")
	}

	timer := s.metrics.StartTimer("query_execute_duration_seconds")
	defer timer.Stop()

	ds, err := s.cache.Get(dataset)
	if err != nil {
		s.metrics.IncrementCounter("query_executions_total", "dataset", dataset, "status", "miss")
		return nil, nil, err
	}

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	result, err := s.executor.Execute(ctx, ds, plan)
	if err != nil {
		if errors.IsPlanInvalid(err) {
			s.metrics.IncrementCounter("plan_validation_failures_total", "dataset", dataset)
		}
		s.metrics.IncrementCounter("query_executions_total", "dataset", dataset, "status", "error")
		s.logger.Warn("plan execution failed",
			"dataset", dataset,
			"error", err.Error())
		return nil, nil, err
	}

	s.metrics.IncrementCounter("query_executions_total", "dataset", dataset, "status", "ok")
	s.logger.Debug("plan executed",
		"dataset", dataset,
		"rows", len(result.Rows))

	return result, chart.Build(result, plan), nil
}

// Ask plans the question externally and executes every returned plan.
// Plans that fail validation or execution are skipped so one bad plan
// does not sink the whole answer.
func (s *queryService) Ask(ctx context.Context, req *AskRequest) (*AskResult, error) {
	if req == nil || strings.TrimSpace(req.Question) == "" {
		return nil, errors.New(errors.CodePlanInvalid, "question is required")
	}
	if s.planner == nil {
		return nil, errors.New(errors.CodeInternal, "no planner configured")
	}

	timer := s.metrics.StartTimer("ask_duration_seconds")
	defer timer.Stop()

	schemas := s.GetSchema()
	if len(schemas) == 0 {
		return nil, errors.ErrNotReady
	}

	resp, err := s.planner.Plan(ctx, &planner.PlanRequest{
		Question: req.Question,
		History:  req.History,
		Schemas:  schemas,
	})
	if err != nil {
		s.metrics.IncrementCounter("ask_total", "status", "plan_error")
		return nil, errors.Wrap(err, errors.CodeParseFailed, "planner request failed")
	}

	out := &AskResult{
		Answer:  resp.Answer,
		Insight: resp.Insight,
	}
	for i := range resp.Plans {
		dp := &resp.Plans[i]
		result, spec, err := s.Execute(ctx, dp.Dataset, &dp.Plan)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			s.logger.Warn("skipping planned chart",
				"dataset", dp.Dataset,
				"error", err.Error())
			continue
		}
		out.Charts = append(out.Charts, ChartAnswer{
			Dataset: dp.Dataset,
			Result:  result,
			Chart:   spec,
		})
	}

	s.metrics.IncrementCounter("ask_total", "status", "ok")
	s.logger.Info("question answered",
		"plans", len(resp.Plans),
		"charts", len(out.Charts))
	return out, nil
}

// Health reports per-dataset freshness from the cache.
func (s *queryService) Health() models.HealthStatus {
	return s.cache.Health()
}
