package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestMaskSensitiveData(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "no sensitive data",
			input:    "page 2: tesseract engine failed: set image: bad buffer",
			expected: "page 2: tesseract engine failed: set image: bad buffer",
		},
		{
			name:     "vision URL with API key",
			input:    "https://vision.googleapis.com/v1/images:annotate?key=AIzaSyABCDEFGHIJKLMNOPQRSTUVWXYZ",
			expected: "https://vision.googleapis.com/v1/images:annotate?key=***MASKED***",
		},
		{
			name:     "URL with api_key parameter",
			input:    "https://example.com/api?api_key=secret123&other=value",
			expected: "https://example.com/api?api_key=***MASKED***&other=value",
		},
		{
			name:     "Bearer token in Authorization header",
			input:    "Authorization: Bearer ya29.a0AfH6SMB",
			expected: "Authorization: Bearer ***MASKED***",
		},
		{
			name:     "goog api key header",
			input:    "X-Goog-Api-Key: AIzaSyTest123",
			expected: "X-Goog-Api-Key: ***MASKED***",
		},
		{
			name:     "environment assignment",
			input:    "invalid configuration GOOGLE_VISION_API_KEY=AIzaSyTest123 rejected",
			expected: "invalid configuration GOOGLE_VISION_API_KEY=***MASKED*** rejected",
		},
		{
			name:     "multiple keys in same string",
			input:    "Error: failed to call https://api.example.com?key=secret123&other=value with Bearer token123",
			expected: "Error: failed to call https://api.example.com?key=***MASKED***&other=value with Bearer ***MASKED***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MaskSensitiveData(tt.input)
			if result != tt.expected {
				t.Errorf("MaskSensitiveData() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestMaskSensitiveError(t *testing.T) {
	if MaskSensitiveError(nil) != nil {
		t.Errorf("MaskSensitiveError() should return nil for nil input")
	}

	originalErr := errors.New("vision API request failed: https://vision.googleapis.com?key=secret123")
	masked := MaskSensitiveError(originalErr)

	expectedMasked := "vision API request failed: https://vision.googleapis.com?key=***MASKED***"
	if masked.Error() != expectedMasked {
		t.Errorf("Masked error message = %q, want %q", masked.Error(), expectedMasked)
	}
	if !errors.Is(masked, originalErr) {
		t.Errorf("masked error should unwrap to the original")
	}
}

func TestRender(t *testing.T) {
	v := struct {
		Page  int    `json:"page" yaml:"page"`
		Title string `json:"title" yaml:"title"`
	}{Page: 1, Title: "INVOICE"}

	tests := []struct {
		format   string
		expected string
		wantErr  bool
	}{
		{"json", "{\n  \"page\": 1,\n  \"title\": \"INVOICE\"\n}\n", false},
		{"", "{\n  \"page\": 1,\n  \"title\": \"INVOICE\"\n}\n", false},
		{"YAML", "page: 1\ntitle: INVOICE\n", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := Render(&buf, v, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Render() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !strings.Contains(err.Error(), "xml") {
					t.Errorf("error should name the format: %v", err)
				}
				return
			}
			if buf.String() != tt.expected {
				t.Errorf("Render() = %q, want %q", buf.String(), tt.expected)
			}
		})
	}
}
