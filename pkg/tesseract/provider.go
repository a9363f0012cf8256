// Package tesseract implements the default OCR engine on top of the
// Tesseract library via gosseract. Tesseract and its language data must be
// installed on the host:
//
//	apt-get install tesseract-ocr libtesseract-dev
package tesseract

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strconv"

	"github.com/lehigh-university-libraries/docgeo/pkg/providers"
	"github.com/otiai10/gosseract/v2"
)

// Provider implements the Tesseract engine
type Provider struct {
	clientFactory func() *gosseract.Client
}

// New creates a new Tesseract provider
func New() *Provider {
	return &Provider{clientFactory: gosseract.NewClient}
}

// Name returns the engine name
func (p *Provider) Name() string {
	return "tesseract"
}

// ValidateConfig checks that the engine config string parses
func (p *Provider) ValidateConfig(config providers.Config) error {
	_, err := providers.ParseEngineConfig(config.EngineConfig)
	return err
}

// Close is a no-op; clients are created per call.
func (p *Provider) Close() error {
	return nil
}

// Recognize runs Tesseract over img. A fresh client is used per call, so
// concurrent calls do not share engine state.
func (p *Provider) Recognize(ctx context.Context, img image.Image, config providers.Config) (providers.WordData, error) {
	if err := ctx.Err(); err != nil {
		return providers.WordData{}, err
	}

	opts, err := providers.ParseEngineConfig(config.EngineConfig)
	if err != nil {
		return providers.WordData{}, err
	}

	data, err := providers.EncodePNG(img)
	if err != nil {
		return providers.WordData{}, err
	}

	client := p.clientFactory()
	defer client.Close()

	if err := configure(client, config, opts); err != nil {
		return providers.WordData{}, err
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return providers.WordData{}, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		return providers.WordData{}, fmt.Errorf("recognize words: %w", err)
	}

	slog.Debug("Tesseract recognition completed", "words", len(boxes), "psm", opts.PSM)
	return toWordData(boxes), nil
}

func configure(client *gosseract.Client, config providers.Config, opts providers.EngineOptions) error {
	langs := config.Languages()
	if opts.Language != "" {
		langs = providers.Config{Language: opts.Language}.Languages()
	}
	if len(langs) > 0 {
		if err := client.SetLanguage(langs...); err != nil {
			return fmt.Errorf("set languages: %w", err)
		}
	}

	if opts.PSM != providers.Unset {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PSM)); err != nil {
			return fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if opts.OEM != providers.Unset {
		// The engine mode is fixed when the API initialises.
		slog.Debug("Ignoring --oem, not settable through gosseract", "oem", opts.OEM)
	}

	dpi := config.DPI
	if opts.DPI != providers.Unset {
		dpi = opts.DPI
	}
	if dpi > 0 {
		if err := client.SetVariable("user_defined_dpi", strconv.Itoa(dpi)); err != nil {
			return fmt.Errorf("set dpi: %w", err)
		}
	}

	for k, v := range opts.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	return nil
}

// toWordData keeps Tesseract's reading order; block, paragraph and line
// numbers become the group key.
func toWordData(boxes []gosseract.BoundingBox) providers.WordData {
	var words providers.WordData
	for _, b := range boxes {
		conf := providers.ConfidenceUnavailable
		if b.Confidence >= 0 {
			conf = int(math.Round(b.Confidence))
		}
		words.Append(
			b.Word,
			b.Box.Min.X,
			b.Box.Min.Y,
			b.Box.Dx(),
			b.Box.Dy(),
			conf,
			providers.NewGroupKey(b.BlockNum, b.ParNum, b.LineNum),
		)
	}
	return words
}
