// Package pipeline runs pages through normalization, token extraction and
// grouping, one page at a time or as a bounded concurrent batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/lehigh-university-libraries/docgeo/pkg/document"
	"github.com/lehigh-university-libraries/docgeo/pkg/imageprep"
	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
	"github.com/lehigh-university-libraries/docgeo/pkg/providers"
	"golang.org/x/sync/errgroup"
)

// Generator is reported in the structured document metadata.
const Generator = "WF-DocAI"

// Options is the configuration for one invocation. Request handlers copy
// the process defaults and override per request.
type Options struct {
	Engine        providers.Engine
	Config        providers.Config
	Prep          imageprep.Options
	MinConfidence int
	// Workers bounds concurrent pages in a batch; <= 0 means one per CPU.
	Workers int
}

// Validate checks the options once, before any page is processed.
func (o Options) Validate() error {
	if o.Engine == nil {
		return ocrerr.Config("OCR_ENGINE", "no engine configured")
	}
	if err := o.Prep.Validate(); err != nil {
		return err
	}
	if o.MinConfidence < 0 || o.MinConfidence > 100 {
		return ocrerr.Config("MIN_CONFIDENCE", "must be within 0-100, got %d", o.MinConfidence)
	}
	return o.Engine.ValidateConfig(o.Config)
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// TokenPage is the token endpoint result. Width and Height are those of the
// prepared image the coordinates refer to; Scale maps them back to the
// uploaded image.
type TokenPage struct {
	Page   int              `json:"page" yaml:"page"`
	Width  int              `json:"width" yaml:"width"`
	Height int              `json:"height" yaml:"height"`
	Scale  float64          `json:"scale" yaml:"scale"`
	Tokens []document.Token `json:"tokens" yaml:"tokens"`
}

// ElementPage is one page of grouped elements
type ElementPage struct {
	Page     int                `json:"page" yaml:"page"`
	Width    int                `json:"width" yaml:"width"`
	Height   int                `json:"height" yaml:"height"`
	Elements []document.Element `json:"elements" yaml:"elements"`
}

// PageInput is one uploaded page
type PageInput struct {
	Page int
	Data []byte
}

// PageFailure records a page that could not be processed
type PageFailure struct {
	Page  int         `json:"page" yaml:"page"`
	Kind  ocrerr.Kind `json:"kind" yaml:"kind"`
	Error string      `json:"error" yaml:"error"`
}

// Batch holds the pages that succeeded, in page order, and those that did not.
type Batch struct {
	Pages  []ElementPage
	Failed []PageFailure
}

// ProcessTokens prepares one page image and returns its filtered tokens.
// Errors are tagged with page.
func ProcessTokens(ctx context.Context, data []byte, page int, opts Options) (*TokenPage, error) {
	start := time.Now()

	prepared, err := imageprep.Normalize(data, opts.Prep)
	if err != nil {
		return nil, ocrerr.AtPage(err, page)
	}
	slog.Debug("Prepared page", "page", page, "image", prepared.String())

	cfg := opts.Config
	cfg.DPI = effectiveDPI(opts.Prep, prepared)

	tokens, err := document.ExtractTokens(ctx, opts.Engine, prepared.Image, cfg, page, opts.MinConfidence)
	if err != nil {
		return nil, err
	}

	slog.Info("Page processed", "page", page, "tokens", len(tokens), "duration", time.Since(start))
	return &TokenPage{
		Page:   page,
		Width:  prepared.Width,
		Height: prepared.Height,
		Scale:  prepared.Scale,
		Tokens: tokens,
	}, nil
}

// ProcessElements runs each page through ProcessTokens and GroupTokens on a
// bounded worker pool. A failing page does not stop the others.
func ProcessElements(ctx context.Context, pages []PageInput, opts Options) *Batch {
	results := make([]*ElementPage, len(pages))
	errs := make([]error, len(pages))

	var g errgroup.Group
	g.SetLimit(opts.workers())
	for i, in := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = fmt.Errorf("page %d: %w", in.Page, err)
				return nil
			}
			tp, err := ProcessTokens(ctx, in.Data, in.Page, opts)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &ElementPage{
				Page:     tp.Page,
				Width:    tp.Width,
				Height:   tp.Height,
				Elements: document.GroupTokens(tp.Tokens),
			}
			return nil
		})
	}
	_ = g.Wait()

	batch := &Batch{Pages: []ElementPage{}, Failed: []PageFailure{}}
	for i, in := range pages {
		if errs[i] != nil {
			slog.Warn("Page failed", "page", in.Page, "err", errs[i])
			batch.Failed = append(batch.Failed, PageFailure{
				Page:  in.Page,
				Kind:  ocrerr.KindOf(errs[i]),
				Error: errs[i].Error(),
			})
			continue
		}
		batch.Pages = append(batch.Pages, *results[i])
	}
	return batch
}

func effectiveDPI(prep imageprep.Options, prepared *imageprep.Prepared) int {
	if prepared.Scale > 1 {
		return prep.TargetDPI
	}
	return prep.SourceDPI
}
