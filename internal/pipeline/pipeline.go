// Package pipeline orchestrates ingestion runs: each job extracts a dataset,
// applies the cleanup transform chain, validates rows against the schema
// contract, and loads the surviving rows into the warehouse.
//
// Jobs within a run are isolated: one job failing does not stop the others,
// and every job reports its own outcome in the run summary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Svencol/data-modeling-pipeline/internal/config"
	"github.com/Svencol/data-modeling-pipeline/internal/extract"
	"github.com/Svencol/data-modeling-pipeline/internal/logging"
	"github.com/Svencol/data-modeling-pipeline/internal/metrics"
	"github.com/Svencol/data-modeling-pipeline/internal/transform"
	"github.com/Svencol/data-modeling-pipeline/internal/validator"
	"github.com/Svencol/data-modeling-pipeline/internal/warehouse"
	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

// defaultBatchSize bounds insert batches when a job does not set its own.
const defaultBatchSize = 500

// Job is one extraction-validation-load unit of a run.
type Job struct {
	// Name labels the job in logs, metrics, and the run summary.
	Name string

	// Extractor produces the job's dataset.
	Extractor extract.Extractor

	// Schema names the contract rows are validated against.
	Schema string

	// Mode selects the validation policy for this job.
	Mode validator.Mode

	// Table is the unqualified destination table.
	Table string

	// LoadMode selects append, replace, or fail semantics. Ignored when
	// Upsert is set.
	LoadMode warehouse.LoadMode

	// BatchSize bounds insert batches; zero uses the runner default.
	BatchSize int

	// Trim strips leading and trailing whitespace from string values
	// ahead of validation.
	Trim bool

	// DedupKeys lists columns identifying duplicate rows dropped ahead of
	// validation. Empty disables deduplication.
	DedupKeys []string

	// Upsert switches the job to insert-or-update semantics.
	Upsert *UpsertSpec
}

// UpsertSpec configures key-based conflict resolution.
type UpsertSpec struct {
	Keys          []string
	UpdateColumns []string
}

// JobResult reports one job's outcome.
type JobResult struct {
	Job       string
	Extracted int64
	Invalid   int64
	Deduped   int64
	Loaded    int64
	Duration  time.Duration
	Err       error
}

// RunSummary reports a whole run.
type RunSummary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Results  []JobResult
}

// Failed returns the results of jobs that ended in error.
func (s RunSummary) Failed() []JobResult {
	var out []JobResult
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Runner executes ingestion jobs against a single warehouse.
type Runner struct {
	// Repo is the destination warehouse.
	Repo warehouse.Repository

	// Validator checks rows against registered contracts.
	Validator *validator.Validator

	// SchemaNS is the warehouse schema namespace tables live in.
	SchemaNS string

	// Concurrency is the number of jobs run in parallel; values below one
	// run jobs sequentially.
	Concurrency int

	// Log is the run-scoped logger; nil uses slog.Default.
	Log *slog.Logger

	// Now supplies timestamps, injectable for tests.
	Now func() time.Time
}

// Run executes all jobs and returns a per-job summary. The returned error is
// non-nil only when the run could not start at all (e.g. the warehouse is
// unreachable); individual job failures are reported in the summary.
func (r *Runner) Run(ctx context.Context, jobs []Job) (RunSummary, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	runID := uuid.NewString()
	log := r.Log
	if log == nil {
		log = logging.ForRun(runID)
	} else {
		log = log.With("run_id", runID)
	}

	if err := r.Repo.Ping(ctx); err != nil {
		return RunSummary{RunID: runID}, fmt.Errorf("warehouse unreachable: %w", err)
	}

	started := now()
	log.Info("run started", "jobs", len(jobs), "concurrency", r.Concurrency)

	results := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if r.Concurrency > 1 {
		g.SetLimit(r.Concurrency)
	} else {
		g.SetLimit(1)
	}
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.runJob(gctx, logging.ForJob(log, job.Name), job)
			// Job failures stay inside the result so sibling jobs keep
			// running.
			return nil
		})
	}
	_ = g.Wait()

	sum := RunSummary{
		RunID:    runID,
		Started:  started,
		Duration: now().Sub(started),
		Results:  results,
	}
	log.Info("run finished",
		"duration", sum.Duration,
		"failed_jobs", len(sum.Failed()),
	)
	return sum, nil
}

func (r *Runner) runJob(ctx context.Context, log *slog.Logger, job Job) JobResult {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	started := now()
	res := JobResult{Job: job.Name}
	defer func() {
		res.Duration = now().Sub(started)
		if res.Err != nil {
			log.Error("job failed", "error", res.Err, "duration", res.Duration)
		} else {
			log.Info("job finished",
				"extracted", res.Extracted,
				"invalid", res.Invalid,
				"deduped", res.Deduped,
				"loaded", res.Loaded,
				"duration", res.Duration,
			)
		}
	}()

	ds, err := r.stage(job.Name, "extract", func() (records.Dataset, error) {
		return job.Extractor.Extract(ctx)
	})
	if err != nil {
		res.Err = fmt.Errorf("extract: %w", err)
		return res
	}
	res.Extracted = int64(ds.Len())
	metrics.RecordRows(job.Name, "extracted", res.Extracted)
	if ds.Empty() {
		log.Info("source produced no rows; nothing to load")
		return res
	}

	var chain transform.Chain
	if job.Trim {
		chain = append(chain, transform.TrimSpace{})
	}
	if len(job.DedupKeys) > 0 {
		chain = append(chain, transform.Dedup{Keys: job.DedupKeys})
	}
	if len(chain) > 0 {
		before := ds.Len()
		ds.Rows = chain.Apply(ds.Rows)
		res.Deduped = int64(before - ds.Len())
		metrics.RecordRows(job.Name, "deduped", res.Deduped)
	}

	var rowErrs []validator.RowError
	ds, err = r.stage(job.Name, "validate", func() (records.Dataset, error) {
		var verr error
		ds, rowErrs, verr = r.Validator.Validate(ds, job.Schema, job.Mode)
		return ds, verr
	})
	if err != nil {
		res.Err = fmt.Errorf("validate: %w", err)
		return res
	}
	res.Invalid = int64(len(rowErrs))
	metrics.RecordRows(job.Name, "invalid", res.Invalid)

	if ds.Empty() {
		log.Info("no rows left after validation; nothing to load")
		return res
	}

	batchSize := job.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	loaded, err := r.loadStage(ctx, job, ds, batchSize)
	if err != nil {
		res.Err = fmt.Errorf("load: %w", err)
		return res
	}
	res.Loaded = loaded
	metrics.RecordRows(job.Name, "loaded", loaded)
	metrics.RecordBatches(job.Name, (loaded+int64(batchSize)-1)/int64(batchSize))
	return res
}

// stage wraps one pipeline stage with timing metrics.
func (r *Runner) stage(job, name string, fn func() (records.Dataset, error)) (records.Dataset, error) {
	start := time.Now()
	ds, err := fn()
	metrics.RecordStage(job, name, err, time.Since(start))
	return ds, err
}

func (r *Runner) loadStage(ctx context.Context, job Job, ds records.Dataset, batchSize int) (int64, error) {
	start := time.Now()
	var loaded int64
	var err error
	if job.Upsert != nil {
		updateCols := job.Upsert.UpdateColumns
		if len(updateCols) == 0 {
			updateCols = warehouse.DefaultUpdateColumns(ds.Columns, job.Upsert.Keys)
		}
		loaded, err = r.Repo.Upsert(ctx, ds, job.Table, r.SchemaNS, job.Upsert.Keys, updateCols)
	} else {
		loaded, err = r.Repo.Load(ctx, ds, job.Table, r.SchemaNS, job.LoadMode, batchSize)
	}
	metrics.RecordStage(job.Name, "load", err, time.Since(start))
	return loaded, err
}

// BuildJobs translates config jobs into runnable jobs and constructs their
// extractors. Returns an error naming the first job that cannot be built.
func BuildJobs(spec config.Spec) ([]Job, error) {
	out := make([]Job, 0, len(spec.Jobs))
	for i, cj := range spec.Jobs {
		job, err := buildJob(spec, cj)
		if err != nil {
			return nil, fmt.Errorf("jobs[%d] (%s): %w", i, cj.Name, err)
		}
		out = append(out, job)
	}
	return out, nil
}

func buildJob(spec config.Spec, cj config.Job) (Job, error) {
	modeStr := cj.ValidationMode
	if modeStr == "" {
		modeStr = spec.Validation.Mode
	}
	mode := validator.ModeFilter
	if modeStr != "" {
		var err error
		if mode, err = validator.ParseMode(modeStr); err != nil {
			return Job{}, err
		}
	}

	loadMode := warehouse.ModeAppend
	if cj.LoadMode != "" {
		var err error
		if loadMode, err = warehouse.ParseLoadMode(cj.LoadMode); err != nil {
			return Job{}, err
		}
	}

	ext, err := buildExtractor(cj)
	if err != nil {
		return Job{}, err
	}

	job := Job{
		Name:      cj.Name,
		Extractor: ext,
		Schema:    cj.Schema,
		Mode:      mode,
		Table:     cj.Table,
		LoadMode:  loadMode,
		BatchSize: cj.BatchSize,
		Trim:      cj.Trim,
		DedupKeys: cj.DedupKeys,
	}
	if cj.Upsert != nil {
		job.Upsert = &UpsertSpec{
			Keys:          cj.Upsert.Keys,
			UpdateColumns: cj.Upsert.UpdateColumns,
		}
	}
	return job, nil
}

func buildExtractor(cj config.Job) (extract.Extractor, error) {
	o := cj.Source.Options
	switch cj.Source.Kind {
	case "csv":
		path := o.String("path", "")
		if path == "" {
			return nil, fmt.Errorf("csv source requires a path")
		}
		return &extract.CSV{
			Path:        path,
			Source:      o.String("source", cj.Name),
			Comma:       o.Rune("delimiter", ','),
			DateColumns: o.StringSlice("date_columns"),
			DateLayout:  o.String("date_layout", ""),
		}, nil
	case "api":
		base := o.String("base_url", "")
		if base == "" {
			return nil, fmt.Errorf("api source requires a base_url")
		}
		params := url.Values{}
		for k, v := range o.StringMap("params") {
			params.Set(k, v)
		}
		headers := http.Header{}
		for k, v := range o.StringMap("headers") {
			headers.Set(k, v)
		}
		return &extract.API{
			BaseURL:     base,
			Endpoint:    o.String("endpoint", ""),
			Source:      o.String("source", cj.Name),
			Params:      params,
			Headers:     headers,
			Username:    o.String("username", ""),
			Password:    o.String("password", ""),
			DataKey:     o.String("data_key", ""),
			NextPageKey: o.String("next_page_key", ""),
			PageDelay:   time.Duration(o.Int("page_delay_ms", 0)) * time.Millisecond,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cj.Source.Kind)
	}
}
