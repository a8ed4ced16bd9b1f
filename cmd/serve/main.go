// Command serve answers filtered reads of the Parquet artifact over HTTP.
//
// Usage:
//
//	go run ./cmd/serve -config configs/pipeline.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ouvidoria/internal/catalog"
	"ouvidoria/internal/config"
	"ouvidoria/internal/metrics"
	"ouvidoria/internal/metrics/install"
	"ouvidoria/internal/predict"
	"ouvidoria/internal/query"
	"ouvidoria/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "pipeline config (.json, .yaml); defaults apply when empty")
	addr := flag.String("addr", "", "listen address (overrides serve.addr)")
	threads := flag.Int("threads", 0, "DuckDB worker threads (0 = DuckDB default)")
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	p, err := config.LoadWithEnv(*cfgPath, os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *addr != "" {
		p.Serve.Addr = *addr
	}
	for _, iss := range config.ValidatePipeline(p) {
		if iss.Severity == config.SeverityError {
			log.Fatalf("config: %v", iss)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, p, *threads); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// shutdownGrace bounds how long in-flight requests may finish.
const shutdownGrace = 10 * time.Second

func serve(ctx context.Context, p config.Pipeline, threads int) error {
	if err := install.FromConfig(p.Job, p.Metrics); err != nil {
		log.Printf("metrics: %v; using nop", err)
	}
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	eng, err := query.Open(ctx, threads)
	if err != nil {
		return err
	}
	defer eng.Close()

	opts := catalog.Cached(ctx, eng, p.Artifact.Path, p.Serve.SnapshotPath)
	svc := &predict.Service{}
	if p.Serve.ScorerURL != "" {
		svc.Scorer = predict.NewHTTPScorer(p.Serve.ScorerURL)
	}
	reader := &query.Reader{Engine: eng, Path: p.Artifact.Path}
	srv := server.New(server.Config{Addr: p.Serve.Addr, MaxRows: p.Serve.MaxRows}, reader, opts, svc).HTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s artifact=%s", srv.Addr, p.Artifact.Path)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
