package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

var (
	// key=VALUE, api_key=VALUE, apiKey=VALUE, api-key=VALUE in URL queries
	keyPattern = regexp.MustCompile(`([?&])(api[_\-]?[kK]ey|key)=([^&\s"]+)`)
	// Authorization: Bearer TOKEN
	bearerPattern = regexp.MustCompile(`Bearer\s+([A-Za-z0-9_\-\.]+)`)
	// x-goog-api-key: VALUE
	googKeyPattern = regexp.MustCompile(`(?i)(x-goog-api-key):\s*([^\s]+)`)
	// GOOGLE_VISION_API_KEY=VALUE as echoed from an environment
	envKeyPattern = regexp.MustCompile(`(GOOGLE_VISION_API_KEY)=([^\s"]+)`)
)

// MaskSensitiveData masks API keys and other sensitive information in strings
// This is used to prevent accidental logging of sensitive data in error messages and URLs
func MaskSensitiveData(s string) string {
	if s == "" {
		return s
	}

	s = keyPattern.ReplaceAllString(s, `${1}${2}=***MASKED***`)
	s = bearerPattern.ReplaceAllString(s, `Bearer ***MASKED***`)
	s = googKeyPattern.ReplaceAllString(s, `${1}: ***MASKED***`)
	s = envKeyPattern.ReplaceAllString(s, `${1}=***MASKED***`)

	return s
}

// MaskSensitiveError wraps an error and masks sensitive data when the error is converted to string
func MaskSensitiveError(err error) error {
	if err == nil {
		return nil
	}
	return &maskedError{err: err}
}

type maskedError struct {
	err error
}

func (e *maskedError) Error() string {
	return MaskSensitiveData(e.err.Error())
}

func (e *maskedError) Unwrap() error {
	return e.err
}

func ExitOnError(msg string, err error) {
	slog.Error(msg, "err", MaskSensitiveError(err))
	os.Exit(1)
}

// Render writes v to w as indented JSON or as YAML.
func Render(w io.Writer, v any, format string) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}
