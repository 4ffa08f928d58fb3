package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill/pkg/errors"
)

// HTTPPlanner calls an external planning service over HTTP. The service
// receives the question, conversation history and dataset schemas, and
// returns an answer plus zero or more query plans.
type HTTPPlanner struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   zerolog.Logger
}

// HTTPPlannerOption configures the HTTP planner.
type HTTPPlannerOption func(*HTTPPlanner)

// WithHTTPClient overrides the HTTP client, mostly for tests.
func WithHTTPClient(client *http.Client) HTTPPlannerOption {
	return func(p *HTTPPlanner) {
		p.client = client
	}
}

// NewHTTPPlanner creates a planner client for the given endpoint.
func NewHTTPPlanner(endpoint, apiKey string, timeout time.Duration, logger zerolog.Logger, opts ...HTTPPlannerOption) *HTTPPlanner {
	p := &HTTPPlanner{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan sends the request to the planning service.
func (p *HTTPPlanner) Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to encode plan request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to build plan request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectivity, "planner unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(errors.CodeParseFailed,
			fmt.Sprintf("planner returned status %d: %s", resp.StatusCode, snippet))
	}

	var out PlanResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, errors.CodeParseFailed, "failed to decode plan response")
	}

	p.logger.Debug().
		Int("plans", len(out.Plans)).
		Dur("duration", time.Since(start)).
		Msg("planner responded")
	return &out, nil
}
