// Package config holds the process wide defaults for the pipeline. Values
// come from built-in defaults, then an optional YAML file, then the
// environment, and are validated once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/docgeo/pkg/document"
	"github.com/lehigh-university-libraries/docgeo/pkg/groundtruth"
	"github.com/lehigh-university-libraries/docgeo/pkg/imageprep"
	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
	"github.com/lehigh-university-libraries/docgeo/pkg/providers"
	yaml "go.yaml.in/yaml/v3"
)

// Config is the process configuration
type Config struct {
	Engine         string `yaml:"engine"`
	Language       string `yaml:"language"`
	EngineConfig   string `yaml:"engine_config"`
	TargetDPI      int    `yaml:"target_dpi"`
	SourceDPI      int    `yaml:"source_dpi"`
	Binarize       string `yaml:"binarize"`
	Threshold      int    `yaml:"threshold"`
	AdaptiveWindow int    `yaml:"adaptive_window"`
	AdaptiveOffset int    `yaml:"adaptive_offset"`
	MinConfidence  int    `yaml:"min_confidence"`
	Workers        int    `yaml:"workers"`
	GroundTruthDir string `yaml:"gt_dir"`
}

// Default returns the built-in defaults
func Default() *Config {
	prep := imageprep.DefaultOptions()
	// Binarize is left empty so the threshold picks the mode: 0 adaptive, above 0 fixed.
	return &Config{
		Engine:         "tesseract",
		Language:       "eng",
		EngineConfig:   "--psm 6",
		TargetDPI:      prep.TargetDPI,
		SourceDPI:      prep.SourceDPI,
		AdaptiveWindow: prep.AdaptiveWindow,
		AdaptiveOffset: prep.AdaptiveOffset,
		MinConfidence:  document.DefaultMinConfidence,
		GroundTruthDir: groundtruth.DefaultDir,
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"OCR_ENGINE": &c.Engine,
		"OCR_LANG":   &c.Language,
		"OCR_CONFIG": &c.EngineConfig,
		"BINARIZE":   &c.Binarize,
		"GT_DIR":     &c.GroundTruthDir,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TARGET_DPI":      &c.TargetDPI,
		"SOURCE_DPI":      &c.SourceDPI,
		"THRESHOLD":       &c.Threshold,
		"ADAPTIVE_WINDOW": &c.AdaptiveWindow,
		"ADAPTIVE_OFFSET": &c.AdaptiveOffset,
		"MIN_CONFIDENCE":  &c.MinConfidence,
		"OCR_WORKERS":     &c.Workers,
	}
	for name, dst := range ints {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return ocrerr.Config(name, "not an integer: %q", v)
		}
		*dst = n
	}
	return nil
}

// Validate reports the first invalid value as an *ocrerr.ConfigurationError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Engine) == "" {
		return ocrerr.Config("OCR_ENGINE", "must not be empty")
	}
	if _, err := providers.ParseEngineConfig(c.EngineConfig); err != nil {
		return err
	}
	prep, err := c.PrepOptions()
	if err != nil {
		return err
	}
	if err := prep.Validate(); err != nil {
		return err
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return ocrerr.Config("MIN_CONFIDENCE", "must be within 0-100, got %d", c.MinConfidence)
	}
	if c.Workers < 0 {
		return ocrerr.Config("OCR_WORKERS", "must not be negative, got %d", c.Workers)
	}
	return nil
}

// PrepOptions returns the image preparation options. With no binarize mode
// the threshold decides: 0 selects adaptive, anything above selects fixed.
// Only an explicit "none" turns binarization off.
func (c *Config) PrepOptions() (imageprep.Options, error) {
	mode, err := imageprep.ParseMode(c.Binarize)
	if err != nil {
		return imageprep.Options{}, err
	}
	if strings.TrimSpace(c.Binarize) == "" {
		mode = imageprep.ModeAdaptive
		if c.Threshold > 0 {
			mode = imageprep.ModeFixed
		}
	}
	return imageprep.Options{
		TargetDPI:      c.TargetDPI,
		SourceDPI:      c.SourceDPI,
		Mode:           mode,
		Threshold:      c.Threshold,
		AdaptiveWindow: c.AdaptiveWindow,
		AdaptiveOffset: c.AdaptiveOffset,
	}, nil
}

// OCRConfig returns the per-invocation engine configuration.
func (c *Config) OCRConfig() providers.Config {
	return providers.Config{
		Language:     c.Language,
		EngineConfig: c.EngineConfig,
	}
}
