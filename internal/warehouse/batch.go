package warehouse

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

// Batch is one bounded group of rows bound for a single round trip. Rows are
// aligned to the dataset's column order; columns a record lacks become nil.
type Batch struct {
	Index int
	From  int // inclusive row offset within the dataset
	To    int // exclusive
	Rows  [][]any
}

// ForEachBatch slices the dataset into batches of at most batchSize and calls
// fn for each. A failing fn aborts iteration and is wrapped in a *BatchError
// carrying the batch index and row range. Progress is logged per batch with
// running totals and instantaneous rows/sec.
func ForEachBatch(ds records.Dataset, batchSize int, log *slog.Logger, fn func(Batch) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batchSize must be > 0, got %d", batchSize)
	}
	if fn == nil {
		return fmt.Errorf("batch fn must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	var (
		start = time.Now()
		last  = start
		sent  int
	)
	for from, idx := 0, 0; from < ds.Len(); from, idx = from+batchSize, idx+1 {
		to := from + batchSize
		if to > ds.Len() {
			to = ds.Len()
		}

		rows := make([][]any, 0, to-from)
		for _, rec := range ds.Rows[from:to] {
			row := make([]any, len(ds.Columns))
			for j, c := range ds.Columns {
				row[j] = rec[c]
			}
			rows = append(rows, row)
		}

		b := Batch{Index: idx, From: from, To: to, Rows: rows}
		if err := fn(b); err != nil {
			return &BatchError{Batch: idx, From: from, To: to, Err: err}
		}

		sent += len(rows)
		now := time.Now()
		rps := float64(0)
		if d := now.Sub(last); d > 0 {
			rps = float64(len(rows)) / d.Seconds()
		}
		log.Debug("batch flushed",
			"batch", idx,
			"rows", len(rows),
			"total_sent", sent,
			"rps", int64(rps),
			"elapsed", now.Sub(start).Truncate(time.Millisecond).String(),
		)
		last = now
	}
	return nil
}
