// Package config loads the YAML run configuration: field mapping, column
// classification, vocabulary overrides, table selection and the runtime,
// output, storage and metrics settings of the CLI.
//
// A missing file at the default location is not an error; the built-in
// defaults apply. Everything read from disk goes through Validate before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"datacleaner/internal/cleaner"
	"datacleaner/internal/project"
	"datacleaner/internal/segment"
)

const (
	// DefaultPath is read when neither -config nor EnvPath is set.
	DefaultPath = "configs/datacleaner.yml"
	// EnvPath names the environment variable holding a config path.
	EnvPath = "DATACLEANER_CONFIG"

	EnvWorkers     = "DATACLEANER_WORKERS"
	EnvStorageDSN  = "DATACLEANER_STORAGE_DSN"
	EnvStorageKind = "DATACLEANER_STORAGE_KIND"
)

// Config is the whole file.
type Config struct {
	// FieldMapping renames output columns (old -> new).
	FieldMapping   map[string]string      `yaml:"field_mapping"`
	Classification project.Classification `yaml:"classification"`
	Vocabulary     segment.Vocabulary     `yaml:"vocabulary"`
	Selection      Selection              `yaml:"selection"`
	Runtime        Runtime                `yaml:"runtime"`
	Output         Output                 `yaml:"output"`
	Storage        Storage                `yaml:"storage"`
	Metrics        Metrics                `yaml:"metrics"`
}

type Selection struct {
	// Strategy is "keywords" (default) or "priority".
	Strategy string   `yaml:"strategy"`
	Priority []string `yaml:"priority"`
}

type Runtime struct {
	// Workers bounds batch concurrency; 0 means cleaner.DefaultWorkers.
	Workers int `yaml:"workers"`
}

type Output struct {
	// Format is csv, jsonl or xlsx. Empty means "from the output extension".
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// Storage configures the optional database sink. An empty Kind disables it.
type Storage struct {
	Kind      string `yaml:"kind"`
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	BatchSize int    `yaml:"batch_size"`
}

type Metrics struct {
	// Backend is "none" (default) or "datadog".
	Backend string   `yaml:"backend"`
	Job     string   `yaml:"job"`
	Tags    []string `yaml:"tags"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Classification: project.DefaultClassification(),
		Vocabulary:     segment.DefaultVocabulary(),
		Selection: Selection{
			Strategy: string(cleaner.SelectMostKeywords),
			Priority: append([]string(nil), segment.DefaultPriority...),
		},
		Runtime: Runtime{Workers: cleaner.DefaultWorkers},
		Storage: Storage{BatchSize: 1000},
		Metrics: Metrics{Backend: "none", Job: "datacleaner"},
	}
}

// ResolvePath picks the config path: the flag value, then EnvPath, then
// DefaultPath. explicit reports whether the path was asked for, in which case
// a missing file is an error.
func ResolvePath(flagValue string, getenv func(string) string) (path string, explicit bool) {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p, true
	}
	if p := strings.TrimSpace(getenv(EnvPath)); p != "" {
		return p, true
	}
	return DefaultPath, false
}

// Load reads path. When the file does not exist and explicit is false the
// defaults are returned.
func Load(path string, explicit bool) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML. Unknown keys are rejected so typos surface. Sections
// left out of the file keep their defaults; a classification section replaces
// the default classification as a whole.
func Parse(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode yaml: %w", err)
		}
	}
	cfg.fill(Default())
	return cfg, nil
}

func (c *Config) fill(def Config) {
	if c.Classification.Empty() {
		c.Classification = def.Classification
	}
	c.Vocabulary = def.Vocabulary.Merge(c.Vocabulary)
	if c.Selection.Strategy == "" {
		c.Selection.Strategy = def.Selection.Strategy
	}
	if len(c.Selection.Priority) == 0 {
		c.Selection.Priority = def.Selection.Priority
	}
	if c.Runtime.Workers == 0 {
		c.Runtime.Workers = def.Runtime.Workers
	}
	if c.Storage.BatchSize == 0 {
		c.Storage.BatchSize = def.Storage.BatchSize
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = def.Metrics.Backend
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = def.Metrics.Job
	}
}

// ApplyEnv overrides workers and the storage sink from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvWorkers, v, err)
		}
		c.Runtime.Workers = n
	}
	if v := strings.TrimSpace(getenv(EnvStorageKind)); v != "" {
		c.Storage.Kind = v
	}
	if v := getenv(EnvStorageDSN); strings.TrimSpace(v) != "" {
		c.Storage.DSN = v
	}
	return nil
}

// EngineOptions turns the cleaning sections into cleaner options. Logger and
// Metrics are left for the caller.
func (c Config) EngineOptions() cleaner.Options {
	return cleaner.Options{
		Vocabulary:     c.Vocabulary,
		Classification: c.Classification,
		Mapping:        c.FieldMapping,
		Selection:      cleaner.Selection(c.Selection.Strategy),
		Priority:       c.Selection.Priority,
	}
}
