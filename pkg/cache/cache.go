// Package cache keeps an always-available, eventually-fresh in-memory copy
// of every dataset in the remote source folder.
package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill/pkg/connector"
	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/infrastructure/metrics"
	"github.com/quillhq/quill/pkg/loader"
	"github.com/quillhq/quill/pkg/models"
)

// entry holds the published snapshot for one dataset name. The snapshot
// pointer is swapped atomically on publish; readers never take a lock on it.
type entry struct {
	snapshot atomic.Pointer[models.Dataset]
	stale    atomic.Bool
}

// DatasetCache owns the name→snapshot mapping and the periodic refresh
// cycle. Each dataset is swapped independently as soon as its own load
// completes, so a large file never delays the others.
type DatasetCache struct {
	conn    connector.Connector
	loader  *loader.Loader
	config  *Config
	logger  zerolog.Logger
	metrics metrics.Collector
	stats   *StatsCollector

	mu      sync.RWMutex
	entries map[string]*entry

	listedOnce atomic.Bool

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a dataset cache over the given connector.
func New(conn connector.Connector, cfg *Config, logger zerolog.Logger, collector metrics.Collector) *DatasetCache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	return &DatasetCache{
		conn:    conn,
		loader:  loader.New(cfg.MaxFileRows, logger),
		config:  cfg,
		logger:  logger,
		metrics: collector,
		stats:   NewStatsCollector(),
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs one refresh immediately, then refreshes on the configured
// interval until Stop is called or ctx is canceled. The initial refresh
// error is returned so callers can log a degraded start; the background
// loop continues regardless.
func (c *DatasetCache) Start(ctx context.Context) error {
	var initialErr error
	c.startOnce.Do(func() {
		initialErr = c.Refresh(ctx)
		c.started.Store(true)
		go c.run(ctx)
	})
	return initialErr
}

// Stop halts the refresh loop and waits for it to exit.
func (c *DatasetCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if c.started.Load() {
			<-c.doneCh
		}
	})
}

func (c *DatasetCache) run(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				// Connectivity errors are retried at the next tick.
				c.logger.Warn().Err(err).Msg("Refresh cycle failed")
			}
		}
	}
}

// Refresh runs one reconciliation cycle against the remote source. A file
// is reloaded only when its remote modification time is newer than the
// published snapshot. A failed reload keeps the prior snapshot and marks
// the dataset stale.
func (c *DatasetCache) Refresh(ctx context.Context) error {
	timer := c.metrics.StartTimer("dataset_refresh_duration_seconds")
	defer timer.Stop()
	defer c.stats.RecordCycle()

	listCtx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
	files, err := c.conn.List(listCtx)
	cancel()
	if err != nil {
		c.metrics.IncrementCounter("dataset_refresh_errors_total", "stage", "list")
		return errors.Wrap(err, errors.CodeConnectivity, "failed to list source folder")
	}
	c.listedOnce.Store(true)

	for _, file := range files {
		name := loader.DatasetName(file.Name)
		ent := c.entryFor(name)

		current := ent.snapshot.Load()
		if current != nil && !file.ModifiedAt.After(current.SourceModifiedAt) {
			continue
		}

		if err := c.loadOne(ctx, ent, name, file); err != nil {
			c.stats.RecordLoadFailure()
			c.metrics.IncrementCounter("dataset_load_errors_total", "dataset", name)
			if current != nil {
				// Keep serving the previous snapshot, flag staleness.
				ent.stale.Store(true)
				c.metrics.RecordGauge("dataset_stale", 1, "dataset", name)
			}
			c.logger.Error().Err(err).Str("dataset", name).Msg("Failed to load dataset")
			continue
		}
	}

	c.logger.Debug().Int("files", len(files)).Msg("Refresh cycle complete")
	return nil
}

// loadOne fetches, parses, and atomically publishes one dataset.
func (c *DatasetCache) loadOne(ctx context.Context, ent *entry, name string, file models.FileInfo) error {
	fetchCtx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
	defer cancel()

	rc, err := c.conn.Fetch(fetchCtx, file.ID)
	if err != nil {
		return err
	}
	defer rc.Close()

	ds, err := c.loader.Load(file.Name, rc)
	if err != nil {
		return err
	}
	ds.Name = name
	ds.SourceModifiedAt = file.ModifiedAt

	// Atomic publish: in-flight readers keep the prior snapshot, new reads
	// see this one immediately.
	ent.snapshot.Store(ds)
	ent.stale.Store(false)

	c.stats.RecordLoad(len(ds.Rows), ds.SkippedRows)
	c.metrics.IncrementCounter("dataset_loads_total", "dataset", name)
	c.metrics.RecordGauge("dataset_rows", float64(len(ds.Rows)), "dataset", name)
	c.metrics.RecordGauge("dataset_stale", 0, "dataset", name)

	c.logger.Info().
		Str("dataset", name).
		Int("rows", len(ds.Rows)).
		Int("skipped_rows", ds.SkippedRows).
		Time("source_modified_at", ds.SourceModifiedAt).
		Msg("Published dataset snapshot")
	return nil
}

// entryFor returns the entry for a name, creating it if needed.
func (c *DatasetCache) entryFor(name string) *entry {
	c.mu.RLock()
	ent, ok := c.entries[name]
	c.mu.RUnlock()
	if ok {
		return ent
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok = c.entries[name]; ok {
		return ent
	}
	ent = &entry{}
	c.entries[name] = ent
	return ent
}

// Get returns the current snapshot for a dataset. The returned Dataset is
// immutable; callers may read it for the full lifetime of a request while
// refreshes publish newer snapshots alongside it.
func (c *DatasetCache) Get(name string) (*models.Dataset, error) {
	c.mu.RLock()
	ent, ok := c.entries[name]
	c.mu.RUnlock()

	if !ok {
		if !c.listedOnce.Load() {
			return nil, errors.Newf(errors.CodeNotReady, "dataset %q not yet loaded", name)
		}
		return nil, errors.Newf(errors.CodeNotFound, "dataset %q not found", name)
	}

	ds := ent.snapshot.Load()
	if ds == nil {
		return nil, errors.Newf(errors.CodeNotReady, "dataset %q not yet loaded", name)
	}
	return ds, nil
}

// SchemaOf returns the inferred columns of a dataset.
func (c *DatasetCache) SchemaOf(name string) ([]models.Column, error) {
	ds, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	return ds.Columns, nil
}

// Names returns the sorted names of all loaded datasets.
func (c *DatasetCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries))
	for name, ent := range c.entries {
		if ent.snapshot.Load() != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Health reports per-dataset freshness.
func (c *DatasetCache) Health() models.HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := models.HealthStatus{Datasets: make(map[string]models.DatasetHealth, len(c.entries))}
	for name, ent := range c.entries {
		ds := ent.snapshot.Load()
		if ds == nil {
			status.Datasets[name] = models.DatasetHealth{Stale: true}
			continue
		}
		status.Datasets[name] = models.DatasetHealth{
			LoadedAt:         ds.LoadedAt,
			SourceModifiedAt: ds.SourceModifiedAt,
			RowCount:         len(ds.Rows),
			SkippedRows:      ds.SkippedRows,
			Stale:            ent.stale.Load(),
		}
	}
	return status
}

// GetStats returns refresh statistics.
func (c *DatasetCache) GetStats() Stats {
	return c.stats.GetStats()
}
