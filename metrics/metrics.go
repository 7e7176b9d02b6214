package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics captures operational stats for pipeline runs.
type Metrics struct {
	runsStarted   int64
	runsSucceeded int64
	runsFailed    int64

	recordsRead   int64
	recordsKept   int64
	geographies   int64
	lastRunMillis int64
	lastRunUnix   int64
}

// Snapshot provides a consistent view of the current metrics.
type Snapshot struct {
	RunsStarted   int64     `json:"runs_started"`
	RunsSucceeded int64     `json:"runs_succeeded"`
	RunsFailed    int64     `json:"runs_failed"`
	RecordsRead   int64     `json:"records_read"`
	RecordsKept   int64     `json:"records_kept"`
	Geographies   int64     `json:"geographies"`
	LastRunMillis int64     `json:"last_run_ms"`
	LastRunAt     time.Time `json:"last_run_at"`
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// RecordStart counts a run attempt.
func (m *Metrics) RecordStart() {
	atomic.AddInt64(&m.runsStarted, 1)
}

// RecordRun records the outcome of a finished run. Record counts are only
// updated for successful runs.
func (m *Metrics) RecordRun(read, kept, geographies int, elapsed time.Duration, finished time.Time, err error) {
	atomic.StoreInt64(&m.lastRunMillis, elapsed.Milliseconds())
	atomic.StoreInt64(&m.lastRunUnix, finished.Unix())
	if err != nil {
		atomic.AddInt64(&m.runsFailed, 1)
		return
	}
	atomic.AddInt64(&m.runsSucceeded, 1)
	atomic.StoreInt64(&m.recordsRead, int64(read))
	atomic.StoreInt64(&m.recordsKept, int64(kept))
	atomic.StoreInt64(&m.geographies, int64(geographies))
}

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		RunsStarted:   atomic.LoadInt64(&m.runsStarted),
		RunsSucceeded: atomic.LoadInt64(&m.runsSucceeded),
		RunsFailed:    atomic.LoadInt64(&m.runsFailed),
		RecordsRead:   atomic.LoadInt64(&m.recordsRead),
		RecordsKept:   atomic.LoadInt64(&m.recordsKept),
		Geographies:   atomic.LoadInt64(&m.geographies),
		LastRunMillis: atomic.LoadInt64(&m.lastRunMillis),
	}
	if ts := atomic.LoadInt64(&m.lastRunUnix); ts > 0 {
		s.LastRunAt = time.Unix(ts, 0).UTC()
	}
	return s
}
