package providers

import (
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
)

// Unset marks an EngineOptions integer that the config string did not set.
const Unset = -1

// EngineOptions is the parsed form of an engine config string.
type EngineOptions struct {
	PSM       int
	OEM       int
	DPI       int
	Language  string
	Variables map[string]string
}

// ParseEngineConfig parses a Tesseract command line style option string:
//
//	--psm N   page segmentation mode (0-13)
//	--oem N   engine mode (0-3)
//	--dpi N   source resolution hint
//	-l LANG   language override
//	-c K=V    engine variable, repeatable
//
// Both "--psm 6" and "--psm=6" are accepted. Anything else is a
// ConfigurationError.
func ParseEngineConfig(s string) (EngineOptions, error) {
	opts := EngineOptions{PSM: Unset, OEM: Unset, DPI: Unset}
	fields := strings.Fields(s)

	for i := 0; i < len(fields); i++ {
		flag, value, hasValue := strings.Cut(fields[i], "=")
		if !strings.HasPrefix(flag, "-") || (hasValue && !strings.HasPrefix(flag, "--")) {
			return opts, ocrerr.Config("OCR_CONFIG", "unexpected argument %q", fields[i])
		}
		if !hasValue {
			if i+1 >= len(fields) {
				return opts, ocrerr.Config("OCR_CONFIG", "%s requires a value", flag)
			}
			i++
			value = fields[i]
		}

		var err error
		switch flag {
		case "--psm":
			opts.PSM, err = parseRange(flag, value, 0, 13)
		case "--oem":
			opts.OEM, err = parseRange(flag, value, 0, 3)
		case "--dpi":
			opts.DPI, err = parseRange(flag, value, 1, 2400)
		case "-l":
			opts.Language = value
		case "-c":
			k, v, ok := strings.Cut(value, "=")
			if !ok || k == "" {
				return opts, ocrerr.Config("OCR_CONFIG", "-c expects key=value, got %q", value)
			}
			if opts.Variables == nil {
				opts.Variables = make(map[string]string)
			}
			opts.Variables[k] = v
		default:
			return opts, ocrerr.Config("OCR_CONFIG", "unsupported option %q", flag)
		}
		if err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// PSMLabel returns the page segmentation mode as reported in document
// metadata, or "" when the config string does not set one.
func PSMLabel(engineConfig string) string {
	opts, err := ParseEngineConfig(engineConfig)
	if err != nil || opts.PSM == Unset {
		return ""
	}
	return strconv.Itoa(opts.PSM)
}

func parseRange(flag, value string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return Unset, ocrerr.Config("OCR_CONFIG", "%s expects an integer, got %q", flag, value)
	}
	if n < lo || n > hi {
		return Unset, ocrerr.Config("OCR_CONFIG", "%s must be within %d-%d, got %d", flag, lo, hi, n)
	}
	return n, nil
}
