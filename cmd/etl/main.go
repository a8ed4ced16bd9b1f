// Command etl normalizes the raw ombudsman extracts into the Parquet artifact
// and refreshes the optional SQL mirrors.
//
// Usage:
//
//	go run ./cmd/etl -config configs/pipeline.yaml
//	go run ./cmd/etl -config configs/pipeline.yaml -validate
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ouvidoria/internal/config"
	"ouvidoria/internal/metrics"
	"ouvidoria/internal/metrics/install"

	// register every mirror backend; the pipeline picks which to use.
	_ "ouvidoria/internal/storage/all"
)

func main() {
	var (
		cfgPath  string
		validate bool
	)
	flag.StringVar(&cfgPath, "config", "", "pipeline config (.json, .yaml); defaults apply when empty")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	p, err := config.LoadWithEnv(cfgPath, os.Getenv)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	if err := install.FromConfig(p.Job, p.Metrics); err != nil {
		log.Printf("metrics: %v; using nop", err)
	}
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	sum, err := run(ctx, p)
	if err != nil {
		log.Printf("etl: %v", err)
		// os.Exit skips deferred calls.
		if ferr := metrics.Flush(); ferr != nil {
			log.Printf("metrics: flush error: %v", ferr)
		}
		stop()
		os.Exit(1)
	}
	log.Printf("etl: run_id=%s rows=%d files=%d skipped=%d mirrors=%d completed in %s",
		sum.RunID, sum.Rows, sum.Files, sum.Skipped, sum.Mirrored, time.Since(start).Truncate(time.Millisecond))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
