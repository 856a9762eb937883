// Package config loads .callpath.yaml. Every scalar is a pointer so an unset
// key is distinguishable from an explicit zero; Effective* accessors apply
// the defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DeusData/callpath-mapper/internal/lang"
)

// FileName is looked up in the working directory when no path is given.
const FileName = ".callpath.yaml"

// ErrInvalidDepth is returned for a negative analysis.max_depth.
var ErrInvalidDepth = errors.New("max_depth must be >= 0")

// Config holds the user-overridable settings of one analysis run.
type Config struct {
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Output    OutputConfig    `yaml:"output"`
}

// AnalysisConfig tunes resolution.
type AnalysisConfig struct {
	// MaxDepth bounds collaborator hops in indirect paths. Default: 5.
	MaxDepth *int `yaml:"max_depth"`

	// ExcludeTests skips spec/test files during discovery. Default: true.
	ExcludeTests *bool `yaml:"exclude_tests"`

	// Workers bounds parallel file extraction. Default: number of CPUs.
	Workers *int `yaml:"workers"`
}

// DiscoveryConfig tunes which files are scanned.
type DiscoveryConfig struct {
	// ExcludeDirs are directory names skipped in addition to the built-in list.
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// ExcludeGlobs are root-relative glob patterns ("src/generated/**").
	ExcludeGlobs []string `yaml:"exclude_globs"`

	// FrontendExtensions default to .ts and .js.
	FrontendExtensions []string `yaml:"frontend_extensions"`

	// BackendExtensions default to .cs.
	BackendExtensions []string `yaml:"backend_extensions"`
}

// OutputConfig selects the sinks.
type OutputConfig struct {
	// Dir receives the output files. Default: ./call_path_analysis.
	Dir *string `yaml:"dir"`

	// Formats lists sinks by name. Default: [json].
	Formats []string `yaml:"formats"`
}

// Default returns a configuration with nothing set.
func Default() *Config {
	return &Config{}
}

// Load reads the YAML file at path. A missing file yields the defaults; a
// file that exists but does not parse is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir reads FileName from dir.
func LoadDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Validate rejects values no run could use.
func (c *Config) Validate() error {
	if c.Analysis.MaxDepth != nil && *c.Analysis.MaxDepth < 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidDepth, *c.Analysis.MaxDepth)
	}
	return nil
}

// EffectiveMaxDepth returns the configured depth, or 5.
func (c *Config) EffectiveMaxDepth() int {
	if c.Analysis.MaxDepth != nil {
		return *c.Analysis.MaxDepth
	}
	return 5
}

// EffectiveExcludeTests returns the configured flag, or true.
func (c *Config) EffectiveExcludeTests() bool {
	if c.Analysis.ExcludeTests != nil {
		return *c.Analysis.ExcludeTests
	}
	return true
}

// EffectiveWorkers returns the configured worker count, or NumCPU. Values
// below 1 fall back to the default.
func (c *Config) EffectiveWorkers() int {
	if c.Analysis.Workers != nil && *c.Analysis.Workers > 0 {
		return *c.Analysis.Workers
	}
	return runtime.NumCPU()
}

// EffectiveOutputDir returns the configured output directory, or
// ./call_path_analysis.
func (c *Config) EffectiveOutputDir() string {
	if c.Output.Dir != nil && *c.Output.Dir != "" {
		return *c.Output.Dir
	}
	return "call_path_analysis"
}

// EffectiveFormats returns the configured sink names lower-cased, or [json].
func (c *Config) EffectiveFormats() []string {
	if len(c.Output.Formats) == 0 {
		return []string{"json"}
	}
	out := make([]string, 0, len(c.Output.Formats))
	for _, f := range c.Output.Formats {
		out = append(out, strings.ToLower(strings.TrimSpace(f)))
	}
	return out
}

// Extensions returns the extension -> layer table used by discovery, or nil
// when neither list is configured so discovery keeps its registered defaults.
func (c *Config) Extensions() map[string]lang.Layer {
	fe := c.Discovery.FrontendExtensions
	be := c.Discovery.BackendExtensions
	if len(fe) == 0 && len(be) == 0 {
		return nil
	}
	if len(fe) == 0 {
		fe = []string{".ts", ".js"}
	}
	if len(be) == 0 {
		be = []string{".cs"}
	}
	out := make(map[string]lang.Layer, len(fe)+len(be))
	for _, ext := range fe {
		out[normalizeExt(ext)] = lang.Frontend
	}
	for _, ext := range be {
		out[normalizeExt(ext)] = lang.Backend
	}
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// SetMaxDepth and the other setters let CLI flags override file values.
func (c *Config) SetMaxDepth(v int) { c.Analysis.MaxDepth = &v }

func (c *Config) SetExcludeTests(v bool) { c.Analysis.ExcludeTests = &v }

func (c *Config) SetWorkers(v int) { c.Analysis.Workers = &v }

func (c *Config) SetOutputDir(v string) { c.Output.Dir = &v }
