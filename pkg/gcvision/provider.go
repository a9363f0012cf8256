// Package gcvision implements an OCR engine backed by Google Cloud Vision
// document text detection.
//
// Credentials come from Application Default Credentials
// (GOOGLE_APPLICATION_CREDENTIALS) or, when set, GOOGLE_VISION_API_KEY.
package gcvision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/lehigh-university-libraries/docgeo/pkg/providers"
	"google.golang.org/api/option"
)

// Provider implements the Google Cloud Vision engine
type Provider struct {
	mu      sync.Mutex
	client  *vision.ImageAnnotatorClient
	options []option.ClientOption
}

// New creates a new Vision provider. The API client is dialled lazily on
// first use.
func New(opts ...option.ClientOption) *Provider {
	if key := os.Getenv("GOOGLE_VISION_API_KEY"); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	return &Provider{options: opts}
}

// Name returns the engine name
func (p *Provider) Name() string {
	return "vision"
}

// ValidateConfig accepts the same option string as Tesseract; options
// without a Vision equivalent are ignored.
func (p *Provider) ValidateConfig(config providers.Config) error {
	_, err := providers.ParseEngineConfig(config.EngineConfig)
	return err
}

// Close releases the API client, if one was created.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

func (p *Provider) getClient() (*vision.ImageAnnotatorClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := vision.NewImageAnnotatorClient(context.Background(), p.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	p.client = client
	return client, nil
}

// Recognize sends img to DOCUMENT_TEXT_DETECTION.
func (p *Provider) Recognize(ctx context.Context, img image.Image, config providers.Config) (providers.WordData, error) {
	client, err := p.getClient()
	if err != nil {
		return providers.WordData{}, err
	}

	data, err := providers.EncodePNG(img)
	if err != nil {
		return providers.WordData{}, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:    &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: languageHints(config.Languages()),
				},
			},
		},
	}

	resp, err := client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return providers.WordData{}, fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return providers.WordData{}, fmt.Errorf("no response from vision API")
	}

	r := resp.GetResponses()[0]
	if st := r.GetError(); st != nil && st.GetCode() != 0 {
		return providers.WordData{}, fmt.Errorf("vision API error %d: %s", st.GetCode(), st.GetMessage())
	}

	words := fromAnnotation(r.GetFullTextAnnotation())
	slog.Debug("Vision recognition completed", "words", len(words.Text))
	return words, nil
}

// fromAnnotation flattens the page/block/paragraph/word hierarchy. Vision
// has no line level, so the line index within a paragraph advances after
// each word ending in a line break.
func fromAnnotation(ann *visionpb.TextAnnotation) providers.WordData {
	var words providers.WordData
	for pageIdx, page := range ann.GetPages() {
		for blockIdx, block := range page.GetBlocks() {
			for paraIdx, para := range block.GetParagraphs() {
				line := 1
				for _, word := range para.GetWords() {
					var text strings.Builder
					var brk visionpb.TextAnnotation_DetectedBreak_BreakType
					for _, sym := range word.GetSymbols() {
						text.WriteString(sym.GetText())
						brk = sym.GetProperty().GetDetectedBreak().GetType()
					}

					x0, y0, x1, y1 := polyBounds(word.GetBoundingBox())
					conf := providers.ConfidenceUnavailable
					if c := word.GetConfidence(); c > 0 {
						conf = int(math.Round(float64(c) * 100))
					}

					words.Append(text.String(), x0, y0, x1-x0, y1-y0, conf,
						providers.NewGroupKey(pageIdx+1, blockIdx+1, paraIdx+1, line))

					if brk == visionpb.TextAnnotation_DetectedBreak_LINE_BREAK ||
						brk == visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE {
						line++
					}
				}
			}
		}
	}
	return words
}

func polyBounds(poly *visionpb.BoundingPoly) (x0, y0, x1, y1 int) {
	vertices := poly.GetVertices()
	if len(vertices) == 0 {
		return 0, 0, 0, 0
	}
	x0, y0 = math.MaxInt, math.MaxInt
	x1, y1 = math.MinInt, math.MinInt
	for _, v := range vertices {
		x, y := int(v.GetX()), int(v.GetY())
		x0, y0 = min(x0, x), min(y0, y)
		x1, y1 = max(x1, x), max(y1, y)
	}
	return x0, y0, x1, y1
}

// Tesseract language codes mapped to the BCP-47 hints Vision expects.
var hintCodes = map[string]string{
	"eng": "en",
	"deu": "de",
	"fra": "fr",
	"spa": "es",
	"ita": "it",
	"por": "pt",
	"nld": "nl",
	"pol": "pl",
}

func languageHints(langs []string) []string {
	var hints []string
	for _, l := range langs {
		if h, ok := hintCodes[strings.ToLower(l)]; ok {
			l = h
		}
		hints = append(hints, l)
	}
	return hints
}
