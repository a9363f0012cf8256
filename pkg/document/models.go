package document

import "github.com/lehigh-university-libraries/docgeo/pkg/providers"

// Token is a single recognized word in prepared-image pixel space.
type Token struct {
	Page       int                `json:"page" yaml:"page"`
	Text       string             `json:"text" yaml:"text"`
	X0         int                `json:"x0" yaml:"x0"`
	Y0         int                `json:"y0" yaml:"y0"`
	X1         int                `json:"x1" yaml:"x1"`
	Y1         int                `json:"y1" yaml:"y1"`
	Confidence int                `json:"confidence" yaml:"confidence"`
	Key        providers.GroupKey `json:"-" yaml:"-"`
}

// BoundingBox is an absolute pixel box
type BoundingBox struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Element is a line of tokens sharing one structural key
type Element struct {
	Page        int         `json:"page" yaml:"page"`
	Content     string      `json:"content" yaml:"content"`
	BoundingBox BoundingBox `json:"boundingBox" yaml:"boundingBox"`
}

// NormalizedBox is a box expressed as fractions of the page size
type NormalizedBox struct {
	Page int     `json:"page" yaml:"page"`
	X0   float64 `json:"x0" yaml:"x0"`
	Y0   float64 `json:"y0" yaml:"y0"`
	X1   float64 `json:"x1" yaml:"x1"`
	Y1   float64 `json:"y1" yaml:"y1"`
}

// Field is a name/value pair taken from a document-metadata object. Value
// and NormBox are nil when the source carries none.
type Field struct {
	Name    string         `json:"name" yaml:"name"`
	Value   *string        `json:"value" yaml:"value"`
	NormBox *NormalizedBox `json:"norm_box" yaml:"norm_box"`
}

// PageInfo describes one page as reported by the metadata source
type PageInfo struct {
	PageNumber int    `json:"page_number" yaml:"page_number"`
	Width      int    `json:"width" yaml:"width"`
	Height     int    `json:"height" yaml:"height"`
	Unit       string `json:"unit" yaml:"unit"`
}

// Vertex is one normalized polygon point. Missing coordinates decode as 0.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Normalized is the flattened form of a document-metadata object
type Normalized struct {
	Pages  []PageInfo `json:"pages" yaml:"pages"`
	Fields []Field    `json:"fields" yaml:"fields"`
}
