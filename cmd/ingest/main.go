// main is the entry point for the ingest binary. It loads the run config,
// lints it, optionally initializes a metrics backend, and executes all
// configured jobs against the warehouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Svencol/data-modeling-pipeline/internal/config"
	"github.com/Svencol/data-modeling-pipeline/internal/logging"
	"github.com/Svencol/data-modeling-pipeline/internal/metrics"
	"github.com/Svencol/data-modeling-pipeline/internal/metrics/datadog"
	"github.com/Svencol/data-modeling-pipeline/internal/metrics/prompush"
	"github.com/Svencol/data-modeling-pipeline/internal/pipeline"
	"github.com/Svencol/data-modeling-pipeline/internal/schema"
	"github.com/Svencol/data-modeling-pipeline/internal/validator"
	"github.com/Svencol/data-modeling-pipeline/internal/warehouse"

	// register all backends with the warehouse factory; the config selects
	// which one a run uses.
	_ "github.com/Svencol/data-modeling-pipeline/internal/warehouse/all"
)

func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		modeFlg           string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/sample.json", "run config JSON path")
	flag.StringVar(&modeFlg, "mode", "", "validation mode override for all jobs (strict, filter, flag)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none); empty falls back to METRICS_BACKEND")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	flag.BoolVar(&validate, "validate", false, "lint the configuration and exit")
	verbose := flag.Bool("v", false, "enable debug logs")

	flag.Parse()

	// .env is optional; local development convenience only.
	_ = godotenv.Load()

	spec, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	if modeFlg != "" {
		spec.Validation.Mode = modeFlg
		for i := range spec.Jobs {
			spec.Jobs[i].ValidationMode = ""
		}
	}

	level := spec.Logging.Level
	if *verbose {
		level = "debug"
	}
	logging.Setup(level, spec.Logging.Format)

	registry := schema.NewRegistry()
	schema.RegisterBuiltin(registry)

	issues := config.Lint(spec, registry)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fatalf("configuration is invalid: %s", cfgPath)
	}
	if validate {
		fmt.Printf("configuration is valid: %s\n", cfgPath)
		return
	}

	setupMetrics(metricsBackendFlg, pushGatewayURLFlg, statsdAddrFlg)
	defer func() {
		if err := metrics.Flush(); err != nil {
			slog.Warn("metrics flush failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := warehouse.New(ctx, warehouse.Config{
		Kind:         spec.Warehouse.Kind,
		DSN:          spec.Warehouse.DSN,
		MaxConns:     spec.Warehouse.MaxConns,
		MaxIdleConns: spec.Warehouse.MaxIdleConns,
	})
	if err != nil {
		fatalf("connect warehouse: %v", err)
	}
	defer repo.Close()

	jobs, err := pipeline.BuildJobs(spec)
	if err != nil {
		fatalf("build jobs: %v", err)
	}

	runner := &pipeline.Runner{
		Repo:        repo,
		Validator:   validator.New(registry, slog.Default()),
		SchemaNS:    spec.Warehouse.Schema,
		Concurrency: spec.Concurrency,
	}

	start := time.Now()
	sum, err := runner.Run(ctx, jobs)
	if err != nil {
		fatalf("%v", err)
	}
	slog.Info("run complete",
		"run_id", sum.RunID,
		"jobs", len(sum.Results),
		"failed", len(sum.Failed()),
		"duration", time.Since(start).Truncate(time.Millisecond),
	)
	if len(sum.Failed()) > 0 {
		os.Exit(1)
	}
}

// setupMetrics picks the metrics backend: flag, then env, then disabled.
func setupMetrics(backendName, gwURL, statsdAddr string) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend("ingest", gwURL)
		if err != nil {
			slog.Warn("metrics init failed; metrics disabled", "backend", backendName, "error", err)
			return
		}
		metrics.SetBackend(b)
		slog.Info("metrics enabled", "backend", backendName, "url", gwURL)

	case "datadog":
		if statsdAddr == "" {
			statsdAddr = os.Getenv("DD_AGENT_ADDR")
		}
		if statsdAddr == "" {
			statsdAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: statsdAddr, Namespace: "ingest."})
		if err != nil {
			slog.Warn("metrics init failed; metrics disabled", "backend", backendName, "error", err)
			return
		}
		metrics.SetBackend(b)
		slog.Info("metrics enabled", "backend", backendName, "addr", statsdAddr)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		slog.Warn("unknown metrics backend; metrics disabled", "backend", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
