// Package config defines the pipeline file shared by the ETL and serving
// binaries. Pipelines are decoded from JSON or YAML (chosen by file extension)
// and then overlaid with OUVIDORIA_* environment variables so that a container
// can retarget paths and endpoints without editing the file.
//
// Example (trimmed):
//
//	{
//	  "job":      "ouvidoria",
//	  "source":   { "kind": "file", "file": { "dir": "data/raw", "pattern": "*.csv" } },
//	  "parser":   { "kind": "csv", "options": { "comma": ";", "fallback_encoding": "ISO-8859-1" } },
//	  "artifact": { "path": "data/processed/ouvidoria.parquet", "compression": "snappy" },
//	  "mirrors":  [ { "kind": "sqlite", "dsn": "file:mirror.db", "table": "complaints" } ],
//	  "serve":    { "addr": ":8080", "scorer_url": "http://scorer:9000/predict" }
//	}
package config

import (
	"encoding/json"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels metrics and log lines for this pipeline.
	Job string `json:"job" yaml:"job"`

	Source   Source   `json:"source" yaml:"source"`
	Parser   Parser   `json:"parser" yaml:"parser"`
	Artifact Artifact `json:"artifact" yaml:"artifact"`

	// Mirrors are optional SQL copies of the compacted rows.
	Mirrors []Mirror `json:"mirrors" yaml:"mirrors"`

	Metrics Metrics `json:"metrics" yaml:"metrics"`
	Serve   Serve   `json:"serve" yaml:"serve"`
}

// Source identifies where raw extracts come from. Only "file" exists today.
type Source struct {
	Kind string     `json:"kind" yaml:"kind"`
	File SourceFile `json:"file" yaml:"file"`
}

// SourceFile lists raw files either explicitly, through a list file, or by
// globbing a directory. All three may be combined; duplicates are dropped.
type SourceFile struct {
	Dir      string   `json:"dir" yaml:"dir"`
	Pattern  string   `json:"pattern" yaml:"pattern"`
	Paths    []string `json:"paths" yaml:"paths"`
	ListFile string   `json:"list_file" yaml:"list_file"`
}

// Parser selects and tunes the raw decoder.
type Parser struct {
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the parser. For csv:
	//   comma (string), fallback_encoding (string), lazy_quotes (bool,
	//   default true), trim_space (bool, leading white space only)
	Options Options `json:"options" yaml:"options"`
}

// Artifact configures the compacted Parquet file.
type Artifact struct {
	Path string `json:"path" yaml:"path"`

	// Compression is one of snappy (default), zstd, gzip, none.
	Compression string `json:"compression" yaml:"compression"`

	// MaxRowGroup caps rows per Parquet row group; 0 uses the writer default.
	MaxRowGroup int64 `json:"max_row_group" yaml:"max_row_group"`
}

// Mirror is one optional SQL copy of the artifact rows.
type Mirror struct {
	// Kind is a registered storage kind ("postgres", "sqlite").
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`

	// Table is the destination table; it is created when AutoCreateTable is set.
	Table           string `json:"table" yaml:"table"`
	AutoCreateTable bool   `json:"auto_create_table" yaml:"auto_create_table"`

	// Truncate empties the table first, matching the wholesale artifact rewrite.
	Truncate bool `json:"truncate" yaml:"truncate"`
}

// Metrics picks an optional metrics backend.
type Metrics struct {
	// Backend is "", "prompush" or "datadog".
	Backend        string   `json:"backend" yaml:"backend"`
	PushgatewayURL string   `json:"pushgateway_url" yaml:"pushgateway_url"`
	DogStatsDAddr  string   `json:"dogstatsd_addr" yaml:"dogstatsd_addr"`
	Namespace      string   `json:"namespace" yaml:"namespace"`
	Tags           []string `json:"tags" yaml:"tags"`
}

// Serve configures the HTTP reader process.
type Serve struct {
	Addr string `json:"addr" yaml:"addr"`

	// SnapshotPath stores the option catalog between restarts. Empty disables it.
	SnapshotPath string `json:"snapshot_path" yaml:"snapshot_path"`

	// ScorerURL is the external dissatisfaction scoring endpoint. Empty leaves
	// prediction unavailable.
	ScorerURL string `json:"scorer_url" yaml:"scorer_url"`

	// MaxRows caps /api/records responses; 0 means 10000.
	MaxRows int `json:"max_rows" yaml:"max_rows"`
}

// Options is a small helper to fetch typed values from free-form maps decoded
// from JSON or YAML. Missing keys and unexpected types return def.
type Options map[string]any

// String returns the string at key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool at key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int at key or def. encoding/json yields float64 and
// yaml.v3 yields int; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of the string at key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringSlice returns the strings in the array at key, or nil.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON makes a missing or null "options" object decode to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
