package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestRecordRun(t *testing.T) {
	m := New()
	m.RecordStart()
	finished := time.Date(2020, time.October, 2, 12, 0, 0, 0, time.UTC)
	m.RecordRun(120, 80, 3, 1500*time.Millisecond, finished, nil)

	m.RecordStart()
	m.RecordRun(999, 0, 0, 20*time.Millisecond, finished.Add(time.Minute), errors.New("bad row"))

	s := m.Snapshot()
	if s.RunsStarted != 2 || s.RunsSucceeded != 1 || s.RunsFailed != 1 {
		t.Fatalf("unexpected run counters %+v", s)
	}
	if s.RecordsRead != 120 || s.RecordsKept != 80 || s.Geographies != 3 {
		t.Fatalf("failed run must not overwrite record counts: %+v", s)
	}
	if s.LastRunMillis != 20 || !s.LastRunAt.Equal(finished.Add(time.Minute)) {
		t.Fatalf("unexpected last run %+v", s)
	}
}
