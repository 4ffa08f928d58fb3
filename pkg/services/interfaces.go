// Package services contains business logic implementations.
package services

import (
	"context"

	"github.com/quillhq/quill/pkg/models"
	"github.com/quillhq/quill/pkg/planner"
)

// DatasetReader is the subset of the dataset cache the services read.
type DatasetReader interface {
	Get(name string) (*models.Dataset, error)
	SchemaOf(name string) ([]models.Column, error)
	Names() []string
	Health() models.HealthStatus
}

// PlanExecutor runs one validated plan over one snapshot.
type PlanExecutor interface {
	Execute(ctx context.Context, ds *models.Dataset, plan *models.QueryPlan) (*models.ExecutionResult, error)
}

// QueryService is the engine surface exposed to the transport layer.
type QueryService interface {
	// GetSchema returns dataset schemas for planner grounding.
	GetSchema() map[string][]models.Column
	// Execute validates and runs one plan against one dataset, returning
	// the result table and an optional chart spec.
	Execute(ctx context.Context, dataset string, plan *models.QueryPlan) (*models.ExecutionResult, *models.ChartSpec, error)
	// Ask answers a natural-language question via the external planner.
	Ask(ctx context.Context, req *AskRequest) (*AskResult, error)
	// Health reports per-dataset freshness.
	Health() models.HealthStatus
}

// AskRequest carries one question plus prior conversation turns.
type AskRequest struct {
	Question string         `json:"question"`
	History  []planner.Turn `json:"history,omitempty"`
}

// ChartAnswer pairs one executed plan's result with its chart spec.
type ChartAnswer struct {
	Dataset string                  `json:"dataset"`
	Result  *models.ExecutionResult `json:"result"`
	Chart   *models.ChartSpec       `json:"chart,omitempty"`
}

// AskResult is the composed answer to one question.
type AskResult struct {
	Answer  string        `json:"answer"`
	Insight string        `json:"insight,omitempty"`
	Charts  []ChartAnswer `json:"charts,omitempty"`
}

// Logger defines logging interface.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
