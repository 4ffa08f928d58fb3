package cache

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/models"
)

// mockConnector implements connector.Connector.
type mockConnector struct {
	listFunc  func(ctx context.Context) ([]models.FileInfo, error)
	fetchFunc func(ctx context.Context, fileID string) (io.ReadCloser, error)
}

func (m *mockConnector) List(ctx context.Context) ([]models.FileInfo, error) {
	return m.listFunc(ctx)
}

func (m *mockConnector) Fetch(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return m.fetchFunc(ctx, fileID)
}

func staticConnector(files map[string]string, modified time.Time) *mockConnector {
	return &mockConnector{
		listFunc: func(ctx context.Context) ([]models.FileInfo, error) {
			infos := make([]models.FileInfo, 0, len(files))
			for name := range files {
				infos = append(infos, models.FileInfo{ID: name, Name: name, ModifiedAt: modified})
			}
			return infos, nil
		},
		fetchFunc: func(ctx context.Context, fileID string) (io.ReadCloser, error) {
			content, ok := files[fileID]
			if !ok {
				return nil, errors.Newf(errors.CodeNotFound, "source file %s not found", fileID)
			}
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func testConfig() *Config {
	return DefaultConfig().WithRefreshInterval(10 * time.Millisecond).WithFetchTimeout(time.Second)
}

func TestRefresh_PublishesDatasets(t *testing.T) {
	conn := staticConnector(map[string]string{
		"sales.csv":    "partner,amount\nA,100\nB,50\n",
		"partners.csv": "id,name\n1,Acme\n",
	}, time.Now())

	c := New(conn, testConfig(), zerolog.Nop(), nil)
	require.NoError(t, c.Refresh(context.Background()))

	ds, err := c.Get("sales")
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 2)

	assert.Equal(t, []string{"partners", "sales"}, c.Names())

	cols, err := c.SchemaOf("partners")
	require.NoError(t, err)
	assert.Equal(t, []models.Column{
		{Name: "id", Type: models.TypeNumber},
		{Name: "name", Type: models.TypeString},
	}, cols)
}

func TestGet_BeforeFirstRefresh(t *testing.T) {
	conn := staticConnector(nil, time.Now())
	c := New(conn, testConfig(), zerolog.Nop(), nil)

	_, err := c.Get("sales")
	require.Error(t, err)
	assert.True(t, errors.IsNotReady(err))
}

func TestGet_UnknownDatasetAfterRefresh(t *testing.T) {
	conn := staticConnector(map[string]string{"sales.csv": "a\n1\n"}, time.Now())
	c := New(conn, testConfig(), zerolog.Nop(), nil)
	require.NoError(t, c.Refresh(context.Background()))

	_, err := c.Get("region")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRefresh_SkipsUnmodifiedFiles(t *testing.T) {
	fetches := 0
	modified := time.Now()
	conn := &mockConnector{
		listFunc: func(ctx context.Context) ([]models.FileInfo, error) {
			return []models.FileInfo{{ID: "f1", Name: "sales.csv", ModifiedAt: modified}}, nil
		},
		fetchFunc: func(ctx context.Context, fileID string) (io.ReadCloser, error) {
			fetches++
			return io.NopCloser(strings.NewReader("a\n1\n")), nil
		},
	}

	c := New(conn, testConfig(), zerolog.Nop(), nil)
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 1, fetches)

	// A newer modification time forces a reload.
	modified = modified.Add(time.Minute)
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, fetches)
}

func TestRefresh_KeepsPreviousSnapshotOnParseFailure(t *testing.T) {
	content := "partner,amount\nA,100\n"
	modified := time.Now()
	conn := &mockConnector{
		listFunc: func(ctx context.Context) ([]models.FileInfo, error) {
			return []models.FileInfo{{ID: "f1", Name: "sales.csv", ModifiedAt: modified}}, nil
		},
		fetchFunc: func(ctx context.Context, fileID string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}

	c := New(conn, testConfig(), zerolog.Nop(), nil)
	require.NoError(t, c.Refresh(context.Background()))

	// Second cycle: the file changed but its content no longer parses.
	content = ""
	modified = modified.Add(time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	ds, err := c.Get("sales")
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 1)

	health := c.Health()
	require.Contains(t, health.Datasets, "sales")
	assert.True(t, health.Datasets["sales"].Stale)

	// A later good cycle clears the staleness flag.
	content = "partner,amount\nA,100\nB,50\n"
	modified = modified.Add(time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	ds, err = c.Get("sales")
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 2)
	assert.False(t, c.Health().Datasets["sales"].Stale)
}

func TestRefresh_ConnectivityFailureKeepsCache(t *testing.T) {
	healthy := true
	conn := &mockConnector{
		listFunc: func(ctx context.Context) ([]models.FileInfo, error) {
			if !healthy {
				return nil, errors.New(errors.CodeConnectivity, "network down")
			}
			return []models.FileInfo{{ID: "f1", Name: "sales.csv", ModifiedAt: time.Now()}}, nil
		},
		fetchFunc: func(ctx context.Context, fileID string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("a\n1\n")), nil
		},
	}

	c := New(conn, testConfig(), zerolog.Nop(), nil)
	require.NoError(t, c.Refresh(context.Background()))

	healthy = false
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsConnectivity(err))

	_, err = c.Get("sales")
	assert.NoError(t, err)
}

func TestStartStop(t *testing.T) {
	var mu sync.Mutex
	cycles := 0
	conn := &mockConnector{
		listFunc: func(ctx context.Context) ([]models.FileInfo, error) {
			mu.Lock()
			cycles++
			mu.Unlock()
			return nil, nil
		},
		fetchFunc: func(ctx context.Context, fileID string) (io.ReadCloser, error) {
			return nil, errors.ErrSourceFileGone
		},
	}

	c := New(conn, testConfig(), zerolog.Nop(), nil)
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return cycles >= 3
	}, time.Second, 5*time.Millisecond)

	c.Stop()
	mu.Lock()
	after := cycles
	mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, after, cycles)
	mu.Unlock()
}

// Readers racing a refresh must always observe one complete snapshot:
// either every row from version 1 or every row from version 2.
func TestConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	version := 0
	var vmu sync.Mutex
	conn := &mockConnector{
		listFunc: func(ctx context.Context) ([]models.FileInfo, error) {
			vmu.Lock()
			version++
			v := version
			vmu.Unlock()
			return []models.FileInfo{{ID: "f1", Name: "sales.csv", ModifiedAt: time.Now().Add(time.Duration(v) * time.Second)}}, nil
		},
		fetchFunc: func(ctx context.Context, fileID string) (io.ReadCloser, error) {
			vmu.Lock()
			v := version
			vmu.Unlock()
			content := "v\n"
			for i := 0; i < 100; i++ {
				content += fmt.Sprintf("%d\n", v)
			}
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}

	c := New(conn, testConfig(), zerolog.Nop(), nil)
	require.NoError(t, c.Refresh(context.Background()))

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				ds, err := c.Get("sales")
				if err != nil {
					continue
				}
				first := ds.Rows[0]["v"]
				for _, row := range ds.Rows {
					if row["v"] != first {
						t.Error("observed mixed snapshot")
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, c.Refresh(context.Background()))
	}
	close(done)
	wg.Wait()
}

func TestGetStats(t *testing.T) {
	conn := staticConnector(map[string]string{"sales.csv": "a,b\n1,2\nbad-row\n3,4\n"}, time.Now())
	c := New(conn, testConfig(), zerolog.Nop(), nil)
	require.NoError(t, c.Refresh(context.Background()))

	stats := c.GetStats()
	assert.Equal(t, uint64(1), stats.RefreshCycles)
	assert.Equal(t, uint64(1), stats.Loads)
	assert.Equal(t, uint64(2), stats.RowsLoaded)
	assert.Equal(t, uint64(1), stats.RowsSkipped)
	assert.False(t, stats.LastRefresh.IsZero())
}
