package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults returns the pipeline used when no file is given. It matches the
// layout of a fresh checkout: raw extracts under data/raw, artifact under
// data/processed.
func Defaults() Pipeline {
	return Pipeline{
		Job: "ouvidoria",
		Source: Source{
			Kind: "file",
			File: SourceFile{Dir: "data/raw", Pattern: "*.csv"},
		},
		Parser: Parser{
			Kind: "csv",
			Options: Options{
				"comma":             ";",
				"fallback_encoding": "ISO-8859-1",
				"lazy_quotes":       true,
			},
		},
		Artifact: Artifact{
			Path:        "data/processed/ouvidoria.parquet",
			Compression: "snappy",
		},
		Serve: Serve{Addr: ":8080", MaxRows: 10000},
	}
}

// Load reads a pipeline file. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON. Unset fields keep their Defaults values.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config %s: %w", path, err)
	}
	p := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(b, &p)
	default:
		err = decodeJSON(b, &p)
	}
	if err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

func decodeJSON(b []byte, p *Pipeline) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(p)
}

func decodeYAML(b []byte, p *Pipeline) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return err
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	return nil
}

// Environment overrides. Each maps onto exactly one pipeline field.
const (
	EnvSourceDir      = "OUVIDORIA_SOURCE_DIR"
	EnvArtifactPath   = "OUVIDORIA_ARTIFACT_PATH"
	EnvCompression    = "OUVIDORIA_COMPRESSION"
	EnvHTTPAddr       = "OUVIDORIA_HTTP_ADDR"
	EnvSnapshotPath   = "OUVIDORIA_SNAPSHOT_PATH"
	EnvScorerURL      = "OUVIDORIA_SCORER_URL"
	EnvMaxRows        = "OUVIDORIA_MAX_ROWS"
	EnvMetricsBackend = "OUVIDORIA_METRICS_BACKEND"
	EnvPushgatewayURL = "OUVIDORIA_PUSHGATEWAY_URL"
	EnvDogStatsDAddr  = "OUVIDORIA_DOGSTATSD_ADDR"
	EnvPostgresDSN    = "OUVIDORIA_PG_DSN"
)

// ApplyEnv overlays environment values onto p. getenv is usually os.Getenv;
// tests pass a map-backed func to stay hermetic.
//
// OUVIDORIA_PG_DSN replaces the DSN of every postgres mirror, so credentials
// never need to live in the pipeline file.
func ApplyEnv(p *Pipeline, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&p.Source.File.Dir, EnvSourceDir)
	set(&p.Artifact.Path, EnvArtifactPath)
	set(&p.Artifact.Compression, EnvCompression)
	set(&p.Serve.Addr, EnvHTTPAddr)
	set(&p.Serve.SnapshotPath, EnvSnapshotPath)
	set(&p.Serve.ScorerURL, EnvScorerURL)
	set(&p.Metrics.Backend, EnvMetricsBackend)
	set(&p.Metrics.PushgatewayURL, EnvPushgatewayURL)
	set(&p.Metrics.DogStatsDAddr, EnvDogStatsDAddr)

	if v := getenv(EnvMaxRows); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Serve.MaxRows = n
		}
	}
	if dsn := getenv(EnvPostgresDSN); dsn != "" {
		for i := range p.Mirrors {
			if p.Mirrors[i].Kind == "postgres" {
				p.Mirrors[i].DSN = dsn
			}
		}
	}
}

// LoadWithEnv is Load (or Defaults when path is empty) followed by ApplyEnv.
func LoadWithEnv(path string, getenv func(string) string) (Pipeline, error) {
	p := Defaults()
	if path != "" {
		var err error
		if p, err = Load(path); err != nil {
			return Pipeline{}, err
		}
	}
	ApplyEnv(&p, getenv)
	return p, nil
}
