// Package extract contains the thin source adapters that supply datasets to
// the pipeline: local CSV files and paginated REST APIs. Adapters are
// independent implementations of the Extractor capability interface; the core
// never inspects their internals and sees their failures only as
// ExtractionError values.
//
// Every adapter stamps extracted rows with the reserved provenance columns
// (_loaded_at, _source) before handing the dataset on.
package extract

import (
	"fmt"
	"time"

	"context"

	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

// Extractor produces one rectangular dataset per call.
type Extractor interface {
	Extract(ctx context.Context) (records.Dataset, error)
}

// ExtractionError wraps any failure from a source adapter with the source
// identifier, as the single error kind the core sees from extraction.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for source %q: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Stamp attaches the provenance metadata columns to every row and to the
// column list. Existing values under those columns are overwritten; rows are
// mutated in place.
func Stamp(ds records.Dataset, source string, at time.Time) records.Dataset {
	if !ds.HasColumn(records.MetaLoadedAt) {
		ds.Columns = append(ds.Columns, records.MetaLoadedAt)
	}
	if !ds.HasColumn(records.MetaSource) {
		ds.Columns = append(ds.Columns, records.MetaSource)
	}
	for _, r := range ds.Rows {
		r[records.MetaLoadedAt] = at
		r[records.MetaSource] = source
	}
	return ds
}
