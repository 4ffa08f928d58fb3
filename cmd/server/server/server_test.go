package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/cmd/server/config"
	"github.com/quillhq/quill/pkg/models"
	"github.com/quillhq/quill/pkg/planner"
)

const salesCSV = `date,partner,amount
2024-01-15,A,100
2024-02-20,B,50
2023-12-01,A,70
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(salesCSV), 0o644))

	cfg := config.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.Source = config.SourceConfig{Type: "local", Local: config.LocalConfig{Dir: dir}}
	cfg.Metrics.Enabled = false
	return cfg
}

// newTestServer builds a wired server and loads the test dataset once.
func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	s, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.cache.Refresh(context.Background()))
	return s
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleExecute(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	h := s.routes(nil)

	rec := postJSON(t, h, "/api/v1/execute", executeRequest{
		Dataset: "sales",
		Plan: models.QueryPlan{
			Filters: []models.Filter{
				{Column: "date", Operator: models.OpGte, Value: "2024-01-01"},
			},
			GroupBy: []string{"partner"},
			Aggregations: []models.Aggregation{
				{Column: "amount", Function: models.AggSum, Alias: "total"},
			},
			ChartType: "bar",
			XField:    "partner",
			YField:    "total",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp executeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.Equal(t, []string{"partner", "total"}, resp.Result.Columns)
	assert.Len(t, resp.Result.Rows, 2)
	require.NotNil(t, resp.Chart)
	assert.Len(t, resp.Chart.Traces, 1)
}

func TestHandleExecuteInvalidPlan(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	h := s.routes(nil)

	rec := postJSON(t, h, "/api/v1/execute", executeRequest{
		Dataset: "sales",
		Plan: models.QueryPlan{
			GroupBy: []string{"region"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "PLAN_INVALID")
	assert.Contains(t, rec.Body.String(), "region")
}

func TestHandleExecuteUnknownDataset(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	h := s.routes(nil)

	rec := postJSON(t, h, "/api/v1/execute", executeRequest{Dataset: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestHandleSchema(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	h := s.routes(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/schema", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp schemaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Datasets, "sales")
	assert.Len(t, resp.Datasets["sales"], 3)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	h := s.routes(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var health models.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Contains(t, health.Datasets, "sales")
	assert.Equal(t, 3, health.Datasets["sales"].RowCount)
}

func TestHandleAsk(t *testing.T) {
	plannerCalls := 0
	plannerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		plannerCalls++
		var req planner.PlanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req.Schemas, "sales")
		if plannerCalls > 1 {
			// The second question must carry the first exchange.
			require.Len(t, req.History, 1)
			assert.Equal(t, "total by partner?", req.History[0].Question)
		}
		_ = json.NewEncoder(w).Encode(planner.PlanResponse{
			Answer: "Partner A leads.",
			Plans: []planner.DatasetPlan{
				{Dataset: "sales", Plan: models.QueryPlan{
					GroupBy: []string{"partner"},
					Aggregations: []models.Aggregation{
						{Column: "amount", Function: models.AggSum, Alias: "total"},
					},
					ChartType: "bar",
					XField:    "partner",
					YField:    "total",
				}},
			},
		})
	}))
	defer plannerSrv.Close()

	cfg := testConfig(t)
	cfg.Planner.Endpoint = plannerSrv.URL
	s := newTestServer(t, cfg)
	h := s.routes(nil)

	rec := postJSON(t, h, "/api/v1/ask", askRequest{Question: "total by partner?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Partner A leads.")

	var first askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.NotEmpty(t, first.SessionID)

	rec = postJSON(t, h, "/api/v1/ask", askRequest{Question: "and by month?", SessionID: first.SessionID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, plannerCalls)
}

func TestHandleAskSessionsAreIsolated(t *testing.T) {
	histories := make(map[string][]planner.Turn)
	plannerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req planner.PlanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		histories[req.Question] = req.History
		_ = json.NewEncoder(w).Encode(planner.PlanResponse{Answer: "ok"})
	}))
	defer plannerSrv.Close()

	cfg := testConfig(t)
	cfg.Planner.Endpoint = plannerSrv.URL
	s := newTestServer(t, cfg)
	h := s.routes(nil)

	// Client A holds a conversation across two requests.
	rec := postJSON(t, h, "/api/v1/ask", askRequest{Question: "a first"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var a askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	require.NotEmpty(t, a.SessionID)

	rec = postJSON(t, h, "/api/v1/ask", askRequest{Question: "a second", SessionID: a.SessionID})
	require.Equal(t, http.StatusOK, rec.Code)

	// Client B arrives with no session and must get a clean history.
	rec = postJSON(t, h, "/api/v1/ask", askRequest{Question: "b first"})
	require.Equal(t, http.StatusOK, rec.Code)
	var b askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.NotEqual(t, a.SessionID, b.SessionID)

	require.Len(t, histories["a second"], 1)
	assert.Equal(t, "a first", histories["a second"][0].Question)
	assert.Empty(t, histories["b first"])
}

func TestHandleAskWithoutPlanner(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	h := s.routes(nil)

	rec := postJSON(t, h, "/api/v1/ask", askRequest{Question: "anything"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRoutesRequireAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth = config.AuthConfig{
		Enabled: true,
		Type:    "bearer",
		BearerAuth: config.BearerAuthConfig{
			Tokens: map[string]string{"good-token": "alice"},
		},
	}
	s := newTestServer(t, cfg)
	h := s.routes(nil)

	rec := postJSON(t, h, "/api/v1/execute", executeRequest{Dataset: "sales"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays open for probes.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/schema", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec3 := httptest.NewRecorder()
	h.ServeHTTP(rec3, req)
	assert.Equal(t, http.StatusOK, rec3.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true

	s, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.cache.Refresh(context.Background()))

	srv := httptest.NewServer(s.http.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerStartShutdown(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	done := make(chan error, 1)
	go func() {
		done <- s.Start(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
