package providers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"
)

// ConfidenceUnavailable marks a word for which the engine reported no
// confidence score.
const ConfidenceUnavailable = -1

// Config represents the per-invocation configuration handed to an engine
type Config struct {
	// Language is an engine language code, "+" separated for several
	// (e.g. "eng" or "eng+deu").
	Language string
	// EngineConfig is a Tesseract style option string such as "--psm 6".
	EngineConfig string
	// DPI is the effective resolution of the prepared image; zero is unknown.
	DPI int
}

// Languages splits Language on "+".
func (c Config) Languages() []string {
	var langs []string
	for _, l := range strings.Split(c.Language, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// GroupKey identifies the structural unit (block, paragraph, line) a word
// belongs to. It is opaque: the only supported operation is equality.
type GroupKey struct {
	id string
}

// NewGroupKey builds a key from engine specific structural identifiers.
func NewGroupKey(ids ...int) GroupKey {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return GroupKey{id: strings.Join(parts, "/")}
}

// String returns a printable form for logs.
func (k GroupKey) String() string {
	return k.id
}

// WordData is the fixed shape returned by an engine: aligned parallel
// slices with one entry per detected word, in reading order.
type WordData struct {
	Text       []string
	Left       []int
	Top        []int
	Width      []int
	Height     []int
	Confidence []int
	Key        []GroupKey
}

// Len returns the number of words, or an error when the slices are not
// aligned.
func (d WordData) Len() (int, error) {
	n := len(d.Text)
	lens := map[string]int{
		"left":       len(d.Left),
		"top":        len(d.Top),
		"width":      len(d.Width),
		"height":     len(d.Height),
		"confidence": len(d.Confidence),
		"key":        len(d.Key),
	}
	for name, l := range lens {
		if l != n {
			return 0, fmt.Errorf("misaligned word data: %d texts but %d %s values", n, l, name)
		}
	}
	return n, nil
}

// Append adds one word.
func (d *WordData) Append(text string, left, top, width, height, confidence int, key GroupKey) {
	d.Text = append(d.Text, text)
	d.Left = append(d.Left, left)
	d.Top = append(d.Top, top)
	d.Width = append(d.Width, width)
	d.Height = append(d.Height, height)
	d.Confidence = append(d.Confidence, confidence)
	d.Key = append(d.Key, key)
}

// Engine interface that all OCR engines must implement
type Engine interface {
	// Recognize runs OCR over a prepared pixel buffer and returns one entry
	// per detected word.
	Recognize(ctx context.Context, img image.Image, config Config) (WordData, error)
	// Name returns the engine's name
	Name() string
	// ValidateConfig validates the engine-specific configuration
	ValidateConfig(config Config) error
	// Close releases engine resources
	Close() error
}

// EncodePNG losslessly encodes a prepared buffer for engines that take
// encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
