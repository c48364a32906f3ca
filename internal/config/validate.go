package config

import (
	"fmt"
	"sort"
	"strings"

	"datacleaner/internal/cleaner"
)

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the dotted YAML location.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// OutputFormats and StorageKinds are the accepted values for their sections.
var (
	OutputFormats   = []string{"csv", "jsonl", "xlsx"}
	StorageKinds    = []string{"sqlite", "postgres", "mssql"}
	MetricsBackends = []string{"none", "datadog"}
)

// Validate reports every problem in c. Errors must stop the run; warnings are
// informational.
func Validate(c Config) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if err := c.Classification.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			add(SeverityError, "classification", "%s", line)
		}
	}

	targets := map[string][]string{}
	for from, to := range c.FieldMapping {
		if strings.TrimSpace(to) == "" {
			add(SeverityWarning, "field_mapping."+from, "empty target name; column keeps its name")
			continue
		}
		targets[to] = append(targets[to], from)
	}
	for to, froms := range targets {
		if len(froms) > 1 {
			sort.Strings(froms)
			add(SeverityWarning, "field_mapping", "columns %s all map to %q; only the first present one is renamed", strings.Join(froms, ", "), to)
		}
	}

	switch cleaner.Selection(c.Selection.Strategy) {
	case "", cleaner.SelectMostKeywords, cleaner.SelectPriority:
	default:
		add(SeverityError, "selection.strategy", "unknown strategy %q (want keywords or priority)", c.Selection.Strategy)
	}

	if len(c.Vocabulary.HeaderKeywords) == 0 {
		add(SeverityWarning, "vocabulary.header_keywords", "no header keywords; only the fallback header rule can find tables")
	}

	switch {
	case c.Runtime.Workers < 0:
		add(SeverityError, "runtime.workers", "must not be negative, got %d", c.Runtime.Workers)
	case c.Runtime.Workers > cleaner.MaxWorkers:
		add(SeverityWarning, "runtime.workers", "%d exceeds the maximum; %d will be used", c.Runtime.Workers, cleaner.MaxWorkers)
	}

	if c.Output.Format != "" && !oneOf(c.Output.Format, OutputFormats) {
		add(SeverityError, "output.format", "unknown format %q (want %s)", c.Output.Format, strings.Join(OutputFormats, ", "))
	}

	if c.Storage.Kind != "" {
		if !oneOf(c.Storage.Kind, StorageKinds) {
			add(SeverityError, "storage.kind", "unknown kind %q (want %s)", c.Storage.Kind, strings.Join(StorageKinds, ", "))
		}
		if strings.TrimSpace(c.Storage.DSN) == "" {
			add(SeverityError, "storage.dsn", "required when storage.kind is set")
		}
	}
	if c.Storage.BatchSize < 0 {
		add(SeverityError, "storage.batch_size", "must not be negative, got %d", c.Storage.BatchSize)
	}

	if c.Metrics.Backend != "" && !oneOf(c.Metrics.Backend, MetricsBackends) {
		add(SeverityError, "metrics.backend", "unknown backend %q (want none or datadog)", c.Metrics.Backend)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity != issues[j].Severity {
			return issues[i].Severity == SeverityError
		}
		return issues[i].Path < issues[j].Path
	})
	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
