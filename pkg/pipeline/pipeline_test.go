package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/docgeo/pkg/imageprep"
	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
	"github.com/lehigh-university-libraries/docgeo/pkg/providers"
)

// fakeEngine reports one word in the bottom right corner of whatever image
// it is given, and fails for images narrower than failBelow.
type fakeEngine struct {
	mu        sync.Mutex
	seen      []image.Rectangle
	configs   []providers.Config
	failBelow int
	empty     bool
}

func (f *fakeEngine) Recognize(ctx context.Context, img image.Image, config providers.Config) (providers.WordData, error) {
	f.mu.Lock()
	f.seen = append(f.seen, img.Bounds())
	f.configs = append(f.configs, config)
	f.mu.Unlock()

	b := img.Bounds()
	if b.Dx() < f.failBelow {
		return providers.WordData{}, errors.New("unreadable buffer")
	}
	var words providers.WordData
	if f.empty {
		return words, nil
	}
	words.Append("Total", b.Dx()-60, b.Dy()-25, 30, 15, 90, providers.NewGroupKey(1, 1, 1))
	words.Append("12.00", b.Dx()-25, b.Dy()-24, 20, 15, 88, providers.NewGroupKey(1, 1, 1))
	words.Append("smudge", 0, 0, 5, 5, 10, providers.NewGroupKey(1, 1, 2))
	return words, nil
}
func (f *fakeEngine) Name() string                                { return "fake" }
func (f *fakeEngine) ValidateConfig(config providers.Config) error { return nil }
func (f *fakeEngine) Close() error                                { return nil }

func pngPage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(w/2, h/2, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testOptions(engine providers.Engine) Options {
	return Options{
		Engine:        engine,
		Config:        providers.Config{Language: "eng", EngineConfig: "--psm 6"},
		Prep:          imageprep.DefaultOptions(),
		MinConfidence: 50,
		Workers:       2,
	}
}

func TestProcessTokens_Upscaled(t *testing.T) {
	engine := &fakeEngine{}
	tp, err := ProcessTokens(context.Background(), pngPage(t, 200, 100), 1, testOptions(engine))
	if err != nil {
		t.Fatalf("ProcessTokens() error = %v", err)
	}

	if tp.Width != 625 || tp.Height != 313 {
		t.Errorf("dimensions = %dx%d, want 625x313", tp.Width, tp.Height)
	}
	if tp.Scale != 3.125 {
		t.Errorf("Scale = %v, want 3.125", tp.Scale)
	}
	if engine.seen[0] != image.Rect(0, 0, 625, 313) {
		t.Errorf("engine saw %v", engine.seen[0])
	}
	if engine.configs[0].DPI != 300 {
		t.Errorf("engine DPI = %d, want 300", engine.configs[0].DPI)
	}

	if len(tp.Tokens) != 2 {
		t.Fatalf("expected 2 tokens after the confidence gate, got %+v", tp.Tokens)
	}
	last := tp.Tokens[1]
	if last.X1 != 620 || last.Y1 != 304 {
		t.Errorf("token not in upscaled space: %+v", last)
	}
}

func TestProcessTokens_Errors(t *testing.T) {
	opts := testOptions(&fakeEngine{failBelow: 10000})

	_, err := ProcessTokens(context.Background(), []byte("not an image"), 4, opts)
	var inErr *ocrerr.InputError
	if !errors.As(err, &inErr) || inErr.Page != 4 {
		t.Errorf("expected InputError for page 4, got %v", err)
	}

	_, err = ProcessTokens(context.Background(), pngPage(t, 20, 20), 5, opts)
	var engErr *ocrerr.EngineError
	if !errors.As(err, &engErr) || engErr.Page != 5 {
		t.Errorf("expected EngineError for page 5, got %v", err)
	}
}

func TestProcessTokens_NoDetections(t *testing.T) {
	tp, err := ProcessTokens(context.Background(), pngPage(t, 50, 50), 1, testOptions(&fakeEngine{empty: true}))
	if err != nil {
		t.Fatalf("an empty page is not an error: %v", err)
	}
	if tp.Tokens == nil || len(tp.Tokens) != 0 {
		t.Errorf("Tokens = %#v, want empty slice", tp.Tokens)
	}
}

func TestProcessElements_PartialSuccess(t *testing.T) {
	opts := testOptions(&fakeEngine{failBelow: 100})
	opts.Prep.TargetDPI = 0

	pages := []PageInput{
		{Page: 1, Data: pngPage(t, 300, 200)},
		{Page: 2, Data: []byte("junk")},
		{Page: 3, Data: pngPage(t, 50, 50)},
		{Page: 4, Data: pngPage(t, 400, 300)},
	}
	batch := ProcessElements(context.Background(), pages, opts)

	if len(batch.Pages) != 2 || batch.Pages[0].Page != 1 || batch.Pages[1].Page != 4 {
		t.Fatalf("Pages = %+v", batch.Pages)
	}
	if len(batch.Failed) != 2 {
		t.Fatalf("Failed = %+v", batch.Failed)
	}
	if batch.Failed[0].Page != 2 || batch.Failed[0].Kind != ocrerr.KindInput {
		t.Errorf("first failure = %+v", batch.Failed[0])
	}
	if batch.Failed[1].Page != 3 || batch.Failed[1].Kind != ocrerr.KindEngine {
		t.Errorf("second failure = %+v", batch.Failed[1])
	}

	elems := batch.Pages[0].Elements
	if len(elems) != 1 || elems[0].Content != "Total 12.00" {
		t.Fatalf("Elements = %+v", elems)
	}
	if bb := elems[0].BoundingBox; bb.X != 240 || bb.Y != 175 || bb.Width != 55 || bb.Height != 16 {
		t.Errorf("BoundingBox = %+v", bb)
	}
}

func TestProcessElements_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := ProcessElements(ctx, []PageInput{{Page: 1, Data: pngPage(t, 10, 10)}}, testOptions(&fakeEngine{}))
	if len(batch.Pages) != 0 || len(batch.Failed) != 1 {
		t.Errorf("batch = %+v", batch)
	}
}

func TestBuildStructured(t *testing.T) {
	opts := testOptions(&fakeEngine{})
	opts.Prep.TargetDPI = 0
	batch := ProcessElements(context.Background(), []PageInput{
		{Page: 1, Data: pngPage(t, 100, 100)},
		{Page: 2, Data: pngPage(t, 100, 100)},
	}, opts)

	doc := BuildStructured(batch, opts)
	if len(doc.Documents) != 1 {
		t.Fatalf("Documents = %d", len(doc.Documents))
	}
	meta := doc.Documents[0].Properties[0].Metadata.MetaDataMap
	want := MetaDataMap{Generator: "WF-DocAI", Engine: "fake", PSM: "6", Pages: 2}
	if meta != want {
		t.Errorf("MetaDataMap = %+v, want %+v", meta, want)
	}
	if len(doc.Documents[0].Errors) != 0 {
		t.Errorf("Errors = %+v", doc.Documents[0].Errors)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"defaults", func(o *Options) {}, false},
		{"no engine", func(o *Options) { o.Engine = nil }, true},
		{"bad threshold", func(o *Options) { o.Prep.Threshold = 300 }, true},
		{"bad confidence", func(o *Options) { o.MinConfidence = 101 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(&fakeEngine{})
			tt.mutate(&opts)
			err := opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && ocrerr.KindOf(err) != ocrerr.KindConfiguration {
				t.Errorf("expected configuration error, got %T", err)
			}
		})
	}
}
