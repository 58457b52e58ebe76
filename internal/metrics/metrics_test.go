package metrics

import (
	"errors"
	"testing"
	"time"
)

// captureBackend records every call for assertions.
type captureBackend struct {
	counters  map[string]float64
	labels    map[string]Labels
	durations map[string]float64
	flushed   int
}

func newCaptureBackend() *captureBackend {
	return &captureBackend{
		counters:  map[string]float64{},
		labels:    map[string]Labels{},
		durations: map[string]float64{},
	}
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.counters[name] += delta
	c.labels[name] = labels
}

func (c *captureBackend) ObserveDuration(name string, seconds float64, labels Labels) {
	c.durations[name] += seconds
	c.labels[name] = labels
}

func (c *captureBackend) Flush() error {
	c.flushed++
	return nil
}

func withCapture(t *testing.T) *captureBackend {
	t.Helper()
	prev := backend
	cap := newCaptureBackend()
	SetBackend(cap)
	t.Cleanup(func() { backend = prev })
	return cap
}

func TestRecordStageStatus(t *testing.T) {
	cap := withCapture(t)

	RecordStage("orders", "validate", nil, 250*time.Millisecond)
	RecordStage("orders", "load", errors.New("boom"), time.Second)

	if got := cap.counters["ingest_stage_total"]; got != 2 {
		t.Fatalf("ingest_stage_total=%v; want 2", got)
	}
	if got := cap.labels["ingest_stage_total"]["status"]; got != "failure" {
		t.Fatalf("last status=%q; want failure", got)
	}
	if got := cap.durations["ingest_stage_duration_seconds"]; got != 1.25 {
		t.Fatalf("duration sum=%v; want 1.25", got)
	}
}

func TestRecordRowsSkipsNonPositive(t *testing.T) {
	cap := withCapture(t)

	RecordRows("orders", "loaded", 10)
	RecordRows("orders", "loaded", 0)
	RecordRows("orders", "loaded", -3)

	if got := cap.counters["ingest_rows_total"]; got != 10 {
		t.Fatalf("ingest_rows_total=%v; want 10", got)
	}
	if got := cap.labels["ingest_rows_total"]["kind"]; got != "loaded" {
		t.Fatalf("kind=%q; want loaded", got)
	}
}

func TestRecordBatches(t *testing.T) {
	cap := withCapture(t)

	RecordBatches("orders", 4)
	RecordBatches("orders", 0)

	if got := cap.counters["ingest_batches_total"]; got != 4 {
		t.Fatalf("ingest_batches_total=%v; want 4", got)
	}
}

func TestSetBackendNilKeepsCurrent(t *testing.T) {
	cap := withCapture(t)
	SetBackend(nil)
	RecordBatches("orders", 1)
	if got := cap.counters["ingest_batches_total"]; got != 1 {
		t.Fatalf("nil SetBackend replaced the backend; got %v", got)
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if cap.flushed != 1 {
		t.Fatalf("flushed=%d; want 1", cap.flushed)
	}
}
