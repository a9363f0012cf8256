// Package imageprep turns encoded page images into pixel buffers ready for
// OCR: decode, optional upscale to a target resolution, optional
// binarization.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Mode selects the binarization applied after scaling.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeFixed    Mode = "fixed"
	ModeAdaptive Mode = "adaptive"
)

const (
	DefaultTargetDPI      = 300
	DefaultSourceDPI      = 96
	DefaultAdaptiveWindow = 31
	DefaultAdaptiveOffset = 10

	// upscaleEpsilon keeps already high resolution input untouched.
	upscaleEpsilon = 1.01
)

// Options configures Normalize.
type Options struct {
	// TargetDPI is the resolution to scale to. Zero disables upscaling.
	TargetDPI int
	// SourceDPI is the resolution assumed for the input image.
	SourceDPI int
	Mode      Mode
	// Threshold is the fixed cutoff (0-255). Zero in fixed mode means
	// adaptive.
	Threshold      int
	AdaptiveWindow int
	AdaptiveOffset int
}

// DefaultOptions returns the 300 DPI / 96 DPI defaults with no binarization.
func DefaultOptions() Options {
	return Options{
		TargetDPI:      DefaultTargetDPI,
		SourceDPI:      DefaultSourceDPI,
		Mode:           ModeNone,
		AdaptiveWindow: DefaultAdaptiveWindow,
		AdaptiveOffset: DefaultAdaptiveOffset,
	}
}

// ParseMode parses a binarization mode name. An empty name means none.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeNone, nil
	case ModeNone, ModeFixed, ModeAdaptive:
		return m, nil
	default:
		return "", ocrerr.Config("BINARIZE", "unknown mode %q (want none, fixed or adaptive)", s)
	}
}

// Validate reports the first invalid option as a ConfigurationError.
func (o Options) Validate() error {
	if o.TargetDPI < 0 {
		return ocrerr.Config("TARGET_DPI", "must not be negative, got %d", o.TargetDPI)
	}
	if o.SourceDPI <= 0 {
		return ocrerr.Config("SOURCE_DPI", "must be positive, got %d", o.SourceDPI)
	}
	if _, err := ParseMode(string(o.Mode)); err != nil {
		return err
	}
	if o.Threshold < 0 || o.Threshold > 255 {
		return ocrerr.Config("THRESHOLD", "must be within 0-255, got %d", o.Threshold)
	}
	if o.AdaptiveWindow < 3 || o.AdaptiveWindow%2 == 0 {
		return ocrerr.Config("ADAPTIVE_WINDOW", "must be an odd number >= 3, got %d", o.AdaptiveWindow)
	}
	return nil
}

// Scale returns the resize factor implied by the DPI options.
func (o Options) Scale() float64 {
	if o.TargetDPI <= 0 || o.SourceDPI <= 0 {
		return 1
	}
	return float64(o.TargetDPI) / float64(o.SourceDPI)
}

// Prepared is a decoded, scaled and optionally binarized page.
type Prepared struct {
	Image          image.Image
	Width          int
	Height         int
	OriginalWidth  int
	OriginalHeight int
	// Scale is the factor actually applied; 1 when the image was not resized.
	Scale float64
}

// Normalize decodes data and prepares it for OCR. Undecodable input is
// reported as an *ocrerr.InputError.
func Normalize(data []byte, opts Options) (*Prepared, error) {
	if len(data) == 0 {
		return nil, ocrerr.Input(0, nil, "empty image")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ocrerr.Input(0, err, "decode image")
	}

	bounds := img.Bounds()
	out := &Prepared{
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
		Scale:          1,
	}
	if out.OriginalWidth == 0 || out.OriginalHeight == 0 {
		return nil, ocrerr.Input(0, nil, "image has no pixels")
	}

	if scale := opts.Scale(); scale > upscaleEpsilon {
		w := int(math.Round(float64(out.OriginalWidth) * scale))
		h := int(math.Round(float64(out.OriginalHeight) * scale))
		img = imaging.Resize(img, w, h, imaging.CatmullRom)
		out.Scale = scale
	}

	img, err = binarize(img, opts)
	if err != nil {
		return nil, err
	}

	out.Image = img
	out.Width = img.Bounds().Dx()
	out.Height = img.Bounds().Dy()
	return out, nil
}

func binarize(img image.Image, opts Options) (image.Image, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	if mode == ModeFixed && opts.Threshold == 0 {
		mode = ModeAdaptive
	}

	switch mode {
	case ModeFixed:
		return FixedThreshold(toGray(imaging.Grayscale(img)), uint8(opts.Threshold)), nil
	case ModeAdaptive:
		window := opts.AdaptiveWindow
		if window == 0 {
			window = DefaultAdaptiveWindow
		}
		return AdaptiveThreshold(imaging.Grayscale(img), window, opts.AdaptiveOffset), nil
	default:
		return img, nil
	}
}

// FixedThreshold maps pixels brighter than cutoff to white, the rest to black.
func FixedThreshold(gray *image.Gray, cutoff uint8) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x, v := range src {
			if v > cutoff {
				dst[x] = 255
			}
		}
	}
	return out
}

// AdaptiveThreshold compares each pixel against the Gaussian weighted mean
// of its window minus offset. gray must already be grayscale.
func AdaptiveThreshold(gray *image.NRGBA, window, offset int) *image.Gray {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	// Same sigma OpenCV derives for a kernel of this size.
	sigma := 0.3*(float64(window-1)*0.5-1) + 0.8
	mean := imaging.Blur(gray, sigma)

	src := toGray(gray)
	local := toGray(mean)
	out := image.NewGray(src.Rect)
	for i, v := range src.Pix {
		if int(v) > int(local.Pix[i])-offset {
			out.Pix[i] = 255
		}
	}
	return out
}

// toGray reads the red channel of a grayscale NRGBA image.
func toGray(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return out
}

// String implements fmt.Stringer for log output.
func (p *Prepared) String() string {
	return fmt.Sprintf("%dx%d (from %dx%d, scale %.3f)", p.Width, p.Height, p.OriginalWidth, p.OriginalHeight, p.Scale)
}
