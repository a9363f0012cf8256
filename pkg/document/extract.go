// Package document turns engine word output into positioned tokens and
// line elements, and flattens externally supplied document-metadata
// objects into fields with normalized boxes.
package document

import (
	"context"
	"image"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
	"github.com/lehigh-university-libraries/docgeo/pkg/providers"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinConfidence is the confidence gate applied when none is configured.
const DefaultMinConfidence = 50

// ExtractTokens runs engine over img and returns the filtered tokens in
// engine order. Any engine failure is returned as an *ocrerr.EngineError
// for page; there is no retry.
func ExtractTokens(ctx context.Context, engine providers.Engine, img image.Image, cfg providers.Config, page, minConfidence int) ([]Token, error) {
	words, err := engine.Recognize(ctx, img, cfg)
	if err != nil {
		return nil, ocrerr.Engine(page, engine.Name(), err)
	}

	tokens, err := FilterTokens(words, page, minConfidence)
	if err != nil {
		return nil, ocrerr.Engine(page, engine.Name(), err)
	}

	slog.Debug("Extracted tokens", "page", page, "engine", engine.Name(), "words", len(words.Text), "kept", len(tokens))
	return tokens, nil
}

// FilterTokens converts engine word data to tokens. Words with empty text
// after trimming are dropped, as are words whose confidence is known and
// below minConfidence. Misaligned word data is an error.
func FilterTokens(words providers.WordData, page, minConfidence int) ([]Token, error) {
	n, err := words.Len()
	if err != nil {
		return nil, err
	}

	tokens := make([]Token, 0, n)
	for i := 0; i < n; i++ {
		text := norm.NFC.String(strings.TrimSpace(words.Text[i]))
		if text == "" {
			continue
		}
		conf := words.Confidence[i]
		if conf != providers.ConfidenceUnavailable && conf < minConfidence {
			continue
		}

		x0, y0 := words.Left[i], words.Top[i]
		tokens = append(tokens, Token{
			Page:       page,
			Text:       text,
			X0:         x0,
			Y0:         y0,
			X1:         x0 + max(words.Width[i], 0),
			Y1:         y0 + max(words.Height[i], 0),
			Confidence: conf,
			Key:        words.Key[i],
		})
	}
	return tokens, nil
}
