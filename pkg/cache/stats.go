package cache

import (
	"sync/atomic"
	"time"
)

// Stats holds refresh-cycle statistics.
type Stats struct {
	RefreshCycles uint64
	Loads         uint64
	LoadFailures  uint64
	RowsLoaded    uint64
	RowsSkipped   uint64
	LastRefresh   time.Time
}

// StatsCollector collects and reports refresh statistics.
type StatsCollector struct {
	refreshCycles atomic.Uint64
	loads         atomic.Uint64
	loadFailures  atomic.Uint64
	rowsLoaded    atomic.Uint64
	rowsSkipped   atomic.Uint64
	lastRefresh   atomic.Int64
}

// NewStatsCollector creates a new statistics collector.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

// RecordCycle records one completed refresh cycle.
func (c *StatsCollector) RecordCycle() {
	c.refreshCycles.Add(1)
	c.lastRefresh.Store(time.Now().UnixNano())
}

// RecordLoad records one successful dataset load.
func (c *StatsCollector) RecordLoad(rows, skipped int) {
	c.loads.Add(1)
	c.rowsLoaded.Add(uint64(rows))
	c.rowsSkipped.Add(uint64(skipped))
}

// RecordLoadFailure records one failed dataset load.
func (c *StatsCollector) RecordLoadFailure() {
	c.loadFailures.Add(1)
}

// GetStats returns the current refresh statistics.
func (c *StatsCollector) GetStats() Stats {
	var last time.Time
	if ns := c.lastRefresh.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		RefreshCycles: c.refreshCycles.Load(),
		Loads:         c.loads.Load(),
		LoadFailures:  c.loadFailures.Load(),
		RowsLoaded:    c.rowsLoaded.Load(),
		RowsSkipped:   c.rowsSkipped.Load(),
		LastRefresh:   last,
	}
}
