package cmd

import (
	"log/slog"

	"github.com/lehigh-university-libraries/docgeo/internal/config"
	"github.com/lehigh-university-libraries/docgeo/pkg/gcvision"
	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
	"github.com/lehigh-university-libraries/docgeo/pkg/pipeline"
	"github.com/lehigh-university-libraries/docgeo/pkg/providers"
	"github.com/lehigh-university-libraries/docgeo/pkg/tesseract"
	"github.com/spf13/cobra"
)

// app is the validated configuration and engines shared by every command.
type app struct {
	cfg      *config.Config
	registry *providers.Registry
}

func newRegistry() *providers.Registry {
	registry := providers.NewRegistry()
	registry.Register(tesseract.New())
	registry.Register(gcvision.New())
	return registry
}

// setup loads the configuration, applies the persistent flag overrides and
// checks the configured engine exists. Configuration problems surface here,
// before any page is read.
func setup(cmd *cobra.Command) (*app, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	for flag, dst := range map[string]*string{
		"engine":     &cfg.Engine,
		"lang":       &cfg.Language,
		"ocr-config": &cfg.EngineConfig,
	} {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, registry: newRegistry()}
	if _, err := a.options(cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// options builds pipeline options for cfg, which may be a per-request copy
// of the process configuration.
func (a *app) options(cfg *config.Config) (pipeline.Options, error) {
	engine, err := a.registry.Get(cfg.Engine)
	if err != nil {
		return pipeline.Options{}, ocrerr.Config("OCR_ENGINE", "%v", err)
	}
	prep, err := cfg.PrepOptions()
	if err != nil {
		return pipeline.Options{}, err
	}

	opts := pipeline.Options{
		Engine:        engine,
		Config:        cfg.OCRConfig(),
		Prep:          prep,
		MinConfidence: cfg.MinConfidence,
		Workers:       cfg.Workers,
	}
	if err := opts.Validate(); err != nil {
		return pipeline.Options{}, err
	}
	return opts, nil
}

func (a *app) Close() {
	if err := a.registry.Close(); err != nil {
		slog.Warn("Closing engines failed", "err", err)
	}
}
