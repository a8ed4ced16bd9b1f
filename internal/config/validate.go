package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the config
// (e.g. "artifact.compression", "mirrors[1].dsn").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Known kinds. Unknown kinds are errors, not warnings: nothing else registers.
var (
	knownCompression = map[string]struct{}{"": {}, "snappy": {}, "zstd": {}, "gzip": {}, "none": {}}
	knownMirrors     = map[string]struct{}{"postgres": {}, "sqlite": {}}
	knownMetrics     = map[string]struct{}{"": {}, "prompush": {}, "datadog": {}}
)

// ValidatePipeline lints p without mutating it.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and run logs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateArtifact(p.Artifact)...)
	issues = append(issues, validateMirrors(p.Mirrors)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	issues = append(issues, validateServe(p.Serve)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if s.Kind != "file" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unsupported source kind %q; only \"file\" exists", s.Kind),
		})
	}
	f := s.File
	if strings.TrimSpace(f.Dir) == "" && len(f.Paths) == 0 && strings.TrimSpace(f.ListFile) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.file",
			Message:  "file source needs dir, paths or list_file",
		})
	}
	if f.Dir != "" && f.Pattern == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.file.pattern",
			Message:  "no pattern given; every regular file in dir will be read",
		})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	if p.Kind != "csv" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q; only \"csv\" exists", p.Kind),
		})
	}
	if c := p.Options.Rune("comma", ';'); c != ';' {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.comma",
			Message:  fmt.Sprintf("extracts are semicolon-delimited; got %q", c),
		})
	}
	if name := p.Options.String("fallback_encoding", ""); name != "" {
		if enc, err := ianaindex.IANA.Encoding(name); err != nil || enc == nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.fallback_encoding",
				Message:  fmt.Sprintf("unknown or unsupported encoding %q", name),
			})
		}
	}
	return issues
}

func validateArtifact(a Artifact) []Issue {
	var issues []Issue
	if strings.TrimSpace(a.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "artifact.path",
			Message:  "artifact.path must not be empty",
		})
	}
	if _, ok := knownCompression[strings.ToLower(a.Compression)]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "artifact.compression",
			Message:  fmt.Sprintf("unknown compression %q; use snappy, zstd, gzip or none", a.Compression),
		})
	}
	if a.MaxRowGroup < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "artifact.max_row_group",
			Message:  "max_row_group must not be negative",
		})
	}
	return issues
}

func validateMirrors(ms []Mirror) []Issue {
	var issues []Issue
	for i, m := range ms {
		prefix := fmt.Sprintf("mirrors[%d]", i)
		if _, ok := knownMirrors[m.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     prefix + ".kind",
				Message:  fmt.Sprintf("unknown mirror kind %q", m.Kind),
			})
		}
		if strings.TrimSpace(m.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     prefix + ".dsn",
				Message:  "dsn must not be empty",
			})
		}
		if strings.TrimSpace(m.Table) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     prefix + ".table",
				Message:  "table must not be empty",
			})
		}
		if !m.Truncate {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     prefix + ".truncate",
				Message:  "mirror is appended to on every run and will accumulate duplicates",
			})
		}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	if _, ok := knownMetrics[m.Backend]; !ok {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q", m.Backend),
		})
	}
	switch m.Backend {
	case "prompush":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prompush backend requires pushgateway_url",
			})
		}
	case "datadog":
		if m.DogStatsDAddr == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.dogstatsd_addr",
				Message:  "datadog backend requires dogstatsd_addr",
			})
		}
	}
	return issues
}

func validateServe(s Serve) []Issue {
	var issues []Issue
	if s.MaxRows < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "serve.max_rows",
			Message:  "max_rows must not be negative",
		})
	}
	if s.ScorerURL == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "serve.scorer_url",
			Message:  "no scorer configured; /api/predict will report the model as unavailable",
		})
	}
	return issues
}
