// Package planner defines the boundary to the external planning service
// that turns a natural-language question into a query plan.
package planner

import (
	"context"

	"github.com/quillhq/quill/pkg/models"
)

// PlanRequest carries everything the external planner needs: the question,
// the conversation so far, and the dataset schemas for grounding.
type PlanRequest struct {
	Question string                     `json:"question"`
	History  []Turn                     `json:"history,omitempty"`
	Schemas  map[string][]models.Column `json:"schemas"`
}

// PlanResponse is the planner's structured answer. Plans name the dataset
// they target; the engine validates and executes them.
type PlanResponse struct {
	Answer  string        `json:"answer"`
	Insight string        `json:"insight,omitempty"`
	Plans   []DatasetPlan `json:"plans,omitempty"`
}

// DatasetPlan pairs one query plan with its target dataset.
type DatasetPlan struct {
	Dataset string           `json:"dataset"`
	Plan    models.QueryPlan `json:"plan"`
}

// Planner converts a question plus schema grounding into query plans.
// Implementations call an external service and live outside the engine.
type Planner interface {
	Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error)
}
