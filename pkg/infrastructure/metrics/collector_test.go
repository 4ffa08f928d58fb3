package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpCollector(t *testing.T) {
	c := NewNoOpCollector()

	// Must not panic.
	c.IncrementCounter("x", "a", "b")
	c.RecordHistogram("y", 1.5)
	c.RecordGauge("z", 2.0, "a", "b")

	timer := c.StartTimer("op")
	elapsed := timer.Stop()
	assert.GreaterOrEqual(t, elapsed, 0.0)
}

func TestPrometheusCollector_Counters(t *testing.T) {
	c := NewPrometheusCollector()

	c.IncrementCounter("quill_test_total", "dataset", "sales")
	c.IncrementCounter("quill_test_total", "dataset", "sales")
	c.IncrementCounter("quill_test_total", "dataset", "budget")

	body := scrape(t, c)
	assert.Contains(t, body, `quill_test_total{dataset="sales"} 2`)
	assert.Contains(t, body, `quill_test_total{dataset="budget"} 1`)
}

func TestPrometheusCollector_GaugeAndHistogram(t *testing.T) {
	c := NewPrometheusCollector()

	c.RecordGauge("quill_rows", 42, "dataset", "sales")
	c.RecordHistogram("quill_duration_seconds", 0.25)

	body := scrape(t, c)
	assert.Contains(t, body, `quill_rows{dataset="sales"} 42`)
	assert.Contains(t, body, "quill_duration_seconds_count 1")
}

func TestPrometheusCollector_Timer(t *testing.T) {
	c := NewPrometheusCollector()

	timer := c.StartTimer("quill_timed_seconds")
	elapsed := timer.Stop()
	assert.GreaterOrEqual(t, elapsed, 0.0)

	body := scrape(t, c)
	assert.Contains(t, body, "quill_timed_seconds_count 1")
}

func TestParseLabelPairs_OddCount(t *testing.T) {
	names, values := parseLabelPairs([]string{"a", "1", "dangling"})
	assert.Equal(t, []string{"a"}, names)
	assert.Equal(t, []string{"1"}, values)
}

func scrape(t *testing.T, c *PrometheusCollector) string {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}
