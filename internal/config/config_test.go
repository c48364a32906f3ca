package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datacleaner/internal/cleaner"
	"datacleaner/internal/dataset"
	"datacleaner/internal/normalize"
	"datacleaner/internal/project"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParse_SectionsAndDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(strings.NewReader(`
field_mapping:
  商品: product
classification:
  text: [商品]
  numeric:
    - {pattern: 排名, type: integer}
  fuzzy:
    - {pattern: "*销量", kind: range}
selection:
  strategy: priority
storage:
  kind: sqlite
  dsn: file:out.db
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"商品": "product"}, cfg.FieldMapping)
	assert.Equal(t, []string{"商品"}, cfg.Classification.Text)
	assert.Equal(t, dataset.Integer, cfg.Classification.Numeric[0].Type)
	assert.Equal(t, normalize.KindRange, cfg.Classification.Fuzzy[0].Kind)
	assert.Equal(t, "priority", cfg.Selection.Strategy)
	assert.Equal(t, "sqlite", cfg.Storage.Kind)

	def := Default()
	assert.Equal(t, def.Selection.Priority, cfg.Selection.Priority)
	assert.Equal(t, def.Vocabulary, cfg.Vocabulary)
	assert.Equal(t, cleaner.DefaultWorkers, cfg.Runtime.Workers)
	assert.Equal(t, 1000, cfg.Storage.BatchSize)
	assert.Equal(t, "none", cfg.Metrics.Backend)
}

func TestParse_EmptyIsDefault(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(strings.NewReader("\n# nothing\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("field_maping:\n  a: b\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.yml")

	cfg, err := Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(missing, true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_ShippedConfig(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join("..", "..", DefaultPath), true)
	require.NoError(t, err)
	assert.Equal(t, "rank", cfg.FieldMapping["排名"])
	assert.False(t, HasErrors(Validate(cfg)), "%v", Validate(cfg))
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	p, explicit := ResolvePath(" a.yml ", env(map[string]string{EnvPath: "b.yml"}))
	assert.Equal(t, "a.yml", p)
	assert.True(t, explicit)

	p, explicit = ResolvePath("", env(map[string]string{EnvPath: "b.yml"}))
	assert.Equal(t, "b.yml", p)
	assert.True(t, explicit)

	p, explicit = ResolvePath("", env(nil))
	assert.Equal(t, DefaultPath, p)
	assert.False(t, explicit)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{
		EnvWorkers:     "6",
		EnvStorageKind: "postgres",
		EnvStorageDSN:  "postgres://localhost/db",
	})))
	assert.Equal(t, 6, cfg.Runtime.Workers)
	assert.Equal(t, "postgres", cfg.Storage.Kind)
	assert.Equal(t, "postgres://localhost/db", cfg.Storage.DSN)

	assert.Error(t, cfg.ApplyEnv(env(map[string]string{EnvWorkers: "many"})))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Validate(Default()))

	tests := []struct {
		name     string
		mutate   func(*Config)
		path     string
		severity Severity
	}{
		{"bad strategy", func(c *Config) { c.Selection.Strategy = "random" }, "selection.strategy", SeverityError},
		{"negative workers", func(c *Config) { c.Runtime.Workers = -1 }, "runtime.workers", SeverityError},
		{"too many workers", func(c *Config) { c.Runtime.Workers = 64 }, "runtime.workers", SeverityWarning},
		{"bad format", func(c *Config) { c.Output.Format = "parquet" }, "output.format", SeverityError},
		{"bad storage kind", func(c *Config) { c.Storage.Kind = "oracle"; c.Storage.DSN = "x" }, "storage.kind", SeverityError},
		{"storage without dsn", func(c *Config) { c.Storage.Kind = "sqlite" }, "storage.dsn", SeverityError},
		{"negative batch", func(c *Config) { c.Storage.BatchSize = -5 }, "storage.batch_size", SeverityError},
		{"bad metrics backend", func(c *Config) { c.Metrics.Backend = "statsd" }, "metrics.backend", SeverityError},
		{"empty mapping target", func(c *Config) { c.FieldMapping = map[string]string{"商品": " "} }, "field_mapping.商品", SeverityWarning},
		{"mapping collision", func(c *Config) { c.FieldMapping = map[string]string{"a": "x", "b": "x"} }, "field_mapping", SeverityWarning},
		{"no keywords", func(c *Config) { c.Vocabulary.HeaderKeywords = nil }, "vocabulary.header_keywords", SeverityWarning},
		{"bad classification", func(c *Config) {
			c.Classification = project.Classification{Numeric: []project.NumericRule{{Pattern: "排名", Type: dataset.Text}}}
		}, "classification", SeverityError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			issues := Validate(cfg)
			require.Len(t, issues, 1, "%v", issues)
			assert.Equal(t, tt.path, issues[0].Path)
			assert.Equal(t, tt.severity, issues[0].Severity)
			assert.Equal(t, tt.severity == SeverityError, HasErrors(issues))
		})
	}
}

func TestValidate_ErrorsFirst(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Runtime.Workers = 99
	cfg.Output.Format = "pdf"
	issues := Validate(cfg)
	require.Len(t, issues, 2)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Contains(t, issues[1].String(), "warning: runtime.workers")
}

func TestEngineOptions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Selection.Strategy = "priority"
	cfg.FieldMapping = map[string]string{"商品": "product"}

	opts := cfg.EngineOptions()
	assert.Equal(t, cleaner.SelectPriority, opts.Selection)
	assert.Equal(t, "product", opts.Mapping["商品"])

	_, err := cleaner.New(opts)
	assert.NoError(t, err)
}
