package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"migrator/internal/config"
	"migrator/internal/engine"
	"migrator/internal/ledger"
	"migrator/internal/metrics"
	"migrator/internal/metrics/prompush"
	"migrator/internal/store"
	"migrator/internal/transform"
	"migrator/internal/transform/builtin"

	// register all backends with the store factory.
	// the DSN selects which to use but we build in support for all of them.
	_ "migrator/internal/store/all"
)

// main is the entry point for the migrate binary. It loads the migration set,
// lints it, optionally initializes a metrics backend, and executes the run.
// The process exit code mirrors the report status: 0 completed, 1 partial,
// 2 failed or aborted.
func main() {
	var (
		cfgPath           string
		sourceDB          string
		targetDB          string
		tablesFlag        string
		reportFile        string
		logFile           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		batchSize         int
		workers           int
		failureThreshold  float64
		dryRun            bool
		skipVerify        bool
		validate          bool
		progress          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/migration.yaml", "migration set YAML path")
	flag.StringVar(&sourceDB, "source-db", "", "source connection string (overrides config and SOURCE_DB)")
	flag.StringVar(&targetDB, "target-db", "", "target connection string (overrides config and TARGET_DB)")
	flag.StringVar(&tablesFlag, "tables", "", "comma-separated subset of tables to migrate")
	flag.StringVar(&reportFile, "report-file", "", "also write the JSON report to this path")
	flag.StringVar(&logFile, "log-file", "", "write logs to this path instead of stderr")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.IntVar(&batchSize, "batch-size", 0, fmt.Sprintf("rows per transaction (default from config, else %d)", config.DefaultBatchSize))
	flag.IntVar(&workers, "workers", 0, "transform worker pool size (0 = one per CPU, capped)")
	flag.Float64Var(&failureThreshold, "failure-threshold", 0, fmt.Sprintf("failed-row fraction that fails a table (default from config, else %.1f)", config.DefaultFailureThreshold))
	flag.BoolVar(&dryRun, "dry-run", false, "read and transform but write nothing")
	flag.BoolVar(&skipVerify, "skip-verify", false, "skip post-migration checks")
	flag.BoolVar(&validate, "validate", false, "validate the migration set and exit")
	flag.BoolVar(&progress, "progress", false, "show a per-table progress bar")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fatalf("open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	// Flag → env → config file, most specific wins.
	cfg.SourceDB = firstOf(sourceDB, os.Getenv("SOURCE_DB"), cfg.SourceDB)
	cfg.TargetDB = firstOf(targetDB, os.Getenv("TARGET_DB"), cfg.TargetDB)
	if batchSize > 0 {
		cfg.Runtime.BatchSize = batchSize
	}
	if workers > 0 {
		cfg.Runtime.TransformWorkers = workers
	}
	if failureThreshold > 0 {
		cfg.Runtime.FailureThreshold = failureThreshold
	}

	issues := config.Validate(cfg, builtin.Names())
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("migration set is invalid: %v", cfgPath)
		os.Exit(2)
	}
	if validate {
		log.Printf("migration set is valid: %v", cfgPath)
		os.Exit(0)
	}

	setupMetrics(metricsBackendFlg, pushGatewayURLFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	// SIGINT/SIGTERM aborts the run; in-flight batches either commit or
	// roll back whole, so the target is never left half-written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := cfg.Runtime.EffectiveStatementTimeout()
	source, err := store.Open(ctx, store.Config{DSN: cfg.SourceDB, Timeout: timeout})
	if err != nil {
		fatalf("open source store: %v", err)
	}
	defer source.Close()
	target, err := store.Open(ctx, store.Config{DSN: cfg.TargetDB, Timeout: timeout})
	if err != nil {
		fatalf("open target store: %v", err)
	}
	defer target.Close()

	reg := transform.NewRegistry()
	for _, t := range cfg.Tables {
		fn, err := builtin.New(t.Transform, builtin.Params{
			Now:    time.Now().UTC(),
			Scales: t.Scales(),
		})
		if err != nil {
			fatalf("table %s: %v", t.Name, err)
		}
		reg.Register(t.Name, fn)
	}

	opts := engine.Options{
		DryRun:     dryRun,
		SkipVerify: skipVerify,
	}
	if tablesFlag != "" {
		for _, name := range strings.Split(tablesFlag, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.Tables = append(opts.Tables, name)
			}
		}
	}
	if progress {
		var bar *progressbar.ProgressBar
		opts.OnTableStart = func(table string, total int64) {
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetDescription(table),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		opts.OnBatch = func(table string, rows int) {
			if bar != nil {
				_ = bar.Add(rows)
			}
		}
	}

	start := time.Now()
	e := engine.New(cfg, source, target, reg, ledger.New(), opts)
	rep, runErr := e.Run(ctx)
	if rep == nil {
		fatalf("%v", runErr)
	}
	if runErr != nil {
		log.Printf("%v", runErr)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}

	if reportFile != "" {
		if err := rep.WriteFile(reportFile); err != nil {
			log.Printf("%v", err)
		}
	}
	if err := rep.WriteJSON(os.Stdout); err != nil {
		fatalf("%v", err)
	}
	os.Exit(rep.ExitCode())
}

// setupMetrics decides the metrics backend: flag → env → none.
func setupMetrics(backendName, gatewayURL string, verbose bool) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		if gatewayURL == "" {
			gatewayURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gatewayURL == "" {
			gatewayURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend("migrator", gatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v backend=%v", gatewayURL, backendName)
		metrics.SetBackend(b)
	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

// firstOf returns the first non-empty value.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}
