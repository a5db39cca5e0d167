package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/asc2maf/internal/units"
)

// EnvPrefix prefixes every environment variable the converter reads.
const EnvPrefix = "ASC2MAF_"

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// ConverterConfig holds the converter settings. Every field is optional; the
// Get* methods supply defaults for fields left nil, so partial configs are
// safe.
type ConverterConfig struct {
	// Header
	PixelsPerDegree *float64 `json:"pixels_per_degree,omitempty"`

	// File naming
	InputExt         *string `json:"input_ext,omitempty"`
	OutputExt        *string `json:"output_ext,omitempty"`
	ParticipantStart *int    `json:"participant_start,omitempty"` // rune offset into the base name
	ParticipantEnd   *int    `json:"participant_end,omitempty"`

	// Batch
	Workers *int `json:"workers,omitempty"`

	// Optional outputs
	PlotDir     *string `json:"plot_dir,omitempty"`
	Report      *bool   `json:"report,omitempty"`
	CatalogPath *string `json:"catalog_path,omitempty"`

	// Watch mode
	WatchDebounce *string `json:"watch_debounce,omitempty"` // duration string like "500ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a ConverterConfig with all fields set to nil.
func EmptyConfig() *ConverterConfig {
	return &ConverterConfig{}
}

// LoadConfig loads a ConverterConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadConfig(path string) (*ConverterConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ConverterConfig) Validate() error {
	if c.PixelsPerDegree != nil && !(*c.PixelsPerDegree > 0) {
		return fmt.Errorf("pixels_per_degree must be positive, got %f", *c.PixelsPerDegree)
	}

	for name, ext := range map[string]*string{"input_ext": c.InputExt, "output_ext": c.OutputExt} {
		if ext == nil {
			continue
		}
		if !strings.HasPrefix(*ext, ".") || len(*ext) < 2 || strings.ContainsAny(*ext, `/\`) {
			return fmt.Errorf("%s must look like \".ext\", got %q", name, *ext)
		}
	}
	if c.InputExt != nil && c.OutputExt != nil && strings.EqualFold(*c.InputExt, *c.OutputExt) {
		return fmt.Errorf("input_ext and output_ext must differ, both are %q", *c.InputExt)
	}

	if start, end := c.GetParticipantStart(), c.GetParticipantEnd(); start < 0 || end < start {
		return fmt.Errorf("participant range [%d, %d) is invalid", start, end)
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	if c.WatchDebounce != nil && *c.WatchDebounce != "" {
		d, err := time.ParseDuration(*c.WatchDebounce)
		if err != nil {
			return fmt.Errorf("invalid watch_debounce '%s': %w", *c.WatchDebounce, err)
		}
		if d < 0 {
			return fmt.Errorf("watch_debounce must be non-negative, got %s", d)
		}
	}

	return nil
}

// Merge copies every field set in other over c.
func (c *ConverterConfig) Merge(other *ConverterConfig) {
	if other == nil {
		return
	}
	if other.PixelsPerDegree != nil {
		c.PixelsPerDegree = other.PixelsPerDegree
	}
	if other.InputExt != nil {
		c.InputExt = other.InputExt
	}
	if other.OutputExt != nil {
		c.OutputExt = other.OutputExt
	}
	if other.ParticipantStart != nil {
		c.ParticipantStart = other.ParticipantStart
	}
	if other.ParticipantEnd != nil {
		c.ParticipantEnd = other.ParticipantEnd
	}
	if other.Workers != nil {
		c.Workers = other.Workers
	}
	if other.PlotDir != nil {
		c.PlotDir = other.PlotDir
	}
	if other.Report != nil {
		c.Report = other.Report
	}
	if other.CatalogPath != nil {
		c.CatalogPath = other.CatalogPath
	}
	if other.WatchDebounce != nil {
		c.WatchDebounce = other.WatchDebounce
	}
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EnvLookup returns a lookup over the process environment that falls back
// to the variables in dotenvPath. Variables already set in the environment
// win. A missing dotenv file is not an error.
func EnvLookup(dotenvPath string) (LookupFunc, error) {
	vars, err := godotenv.Read(dotenvPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", dotenvPath, err)
		}
		vars = nil
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}, nil
}

// FromEnv builds a config from ASC2MAF_* variables. Unset variables leave
// the field nil.
func FromEnv(lookup LookupFunc) (*ConverterConfig, error) {
	cfg := EmptyConfig()
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("PIXELS_PER_DEGREE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%sPIXELS_PER_DEGREE: %w", EnvPrefix, err)
		}
		cfg.PixelsPerDegree = ptrFloat64(f)
	}
	if v, ok := get("INPUT_EXT"); ok {
		cfg.InputExt = ptrString(v)
	}
	if v, ok := get("OUTPUT_EXT"); ok {
		cfg.OutputExt = ptrString(v)
	}
	for name, dst := range map[string]**int{
		"PARTICIPANT_START": &cfg.ParticipantStart,
		"PARTICIPANT_END":   &cfg.ParticipantEnd,
		"WORKERS":           &cfg.Workers,
	} {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = ptrInt(n)
		}
	}
	if v, ok := get("PLOT_DIR"); ok {
		cfg.PlotDir = ptrString(v)
	}
	if v, ok := get("REPORT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%sREPORT: %w", EnvPrefix, err)
		}
		cfg.Report = ptrBool(b)
	}
	if v, ok := get("CATALOG_PATH"); ok {
		cfg.CatalogPath = ptrString(v)
	}
	if v, ok := get("WATCH_DEBOUNCE"); ok {
		cfg.WatchDebounce = ptrString(v)
	}
	return cfg, nil
}

// Resolve layers defaults < file < environment. An empty path skips the
// file. Flags are applied by the caller with Merge.
func Resolve(path string, lookup LookupFunc) (*ConverterConfig, error) {
	cfg := EmptyConfig()
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(fileCfg)
	}
	if lookup != nil {
		envCfg, err := FromEnv(lookup)
		if err != nil {
			return nil, err
		}
		cfg.Merge(envCfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// GetPixelsPerDegree returns the pixels_per_degree value or the default.
func (c *ConverterConfig) GetPixelsPerDegree() float64 {
	if c.PixelsPerDegree == nil {
		return units.DefaultPixelsPerDegree
	}
	return *c.PixelsPerDegree
}

// GetInputExt returns the input_ext value or the default.
func (c *ConverterConfig) GetInputExt() string {
	if c.InputExt == nil {
		return ".asc"
	}
	return *c.InputExt
}

// GetOutputExt returns the output_ext value or the default.
func (c *ConverterConfig) GetOutputExt() string {
	if c.OutputExt == nil {
		return ".maf"
	}
	return *c.OutputExt
}

// GetParticipantStart returns the participant_start value or the default.
func (c *ConverterConfig) GetParticipantStart() int {
	if c.ParticipantStart == nil {
		return 3 // "exp002.asc" -> "002"
	}
	return *c.ParticipantStart
}

// GetParticipantEnd returns the participant_end value or the default.
func (c *ConverterConfig) GetParticipantEnd() int {
	if c.ParticipantEnd == nil {
		return 6
	}
	return *c.ParticipantEnd
}

// GetWorkers returns the workers value or the default.
func (c *ConverterConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetPlotDir returns the plot_dir value; empty disables plots.
func (c *ConverterConfig) GetPlotDir() string {
	if c.PlotDir == nil {
		return ""
	}
	return *c.PlotDir
}

// GetReport returns the report value or the default.
func (c *ConverterConfig) GetReport() bool {
	if c.Report == nil {
		return false
	}
	return *c.Report
}

// GetCatalogPath returns the catalog_path value; empty disables the catalog.
func (c *ConverterConfig) GetCatalogPath() string {
	if c.CatalogPath == nil {
		return ""
	}
	return *c.CatalogPath
}

// GetWatchDebounce parses and returns the WatchDebounce as a time.Duration.
func (c *ConverterConfig) GetWatchDebounce() time.Duration {
	if c.WatchDebounce == nil || *c.WatchDebounce == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.WatchDebounce)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}
