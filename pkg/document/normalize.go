package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
)

// PolygonToBox returns the min/max extent of vertices. An empty polygon is
// an *ocrerr.InputError.
func PolygonToBox(vertices []Vertex) (x0, y0, x1, y1 float64, err error) {
	if len(vertices) == 0 {
		return 0, 0, 0, 0, ocrerr.Input(0, nil, "empty polygon")
	}
	x0, y0 = vertices[0].X, vertices[0].Y
	x1, y1 = x0, y0
	for _, v := range vertices[1:] {
		x0 = math.Min(x0, v.X)
		y0 = math.Min(y0, v.Y)
		x1 = math.Max(x1, v.X)
		y1 = math.Max(y1, v.Y)
	}
	return x0, y0, x1, y1, nil
}

var metadataKeys = map[string]bool{
	"metadata":  true,
	"metaData":  true,
	"meta_data": true,
	"_metadata": true,
}

type member struct {
	key   string
	value json.RawMessage
}

// object is a JSON object that keeps its key order.
type object []member

func (o *object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected an object, got %s", kindOf(data))
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		*o = append(*o, member{key: key, value: raw})
	}
	_, err = dec.Token()
	return err
}

type metadataEnvelope struct {
	MetaDataMap struct {
		PageInfo *struct {
			PageNumber    *json.Number `json:"page_number"`
			PageNumberAlt *json.Number `json:"pageNumber"`
			Dimension     struct {
				Width  *json.Number `json:"width"`
				Height *json.Number `json:"height"`
				Unit   string       `json:"unit"`
			} `json:"dimension"`
		} `json:"pageInfo"`
	} `json:"metaDataMap"`
}

// valueKind is the classification of one property value.
type valueKind int

const (
	kindScalar valueKind = iota
	kindPolygon
	kindObject
)

// classified is a property value after the tagged-union parse step.
type classified struct {
	kind     valueKind
	value    *string
	vertices []Vertex
}

// Flatten reads a document-metadata object of the form
// {"documents":[{"properties":[{...}]}]} and returns its page descriptions
// and fields. Properties are visited in document order. Within one property
// object the metadata entry is read first, and fields take the page number
// of the last numbered metadata seen in their document (1 before any).
// A polygon without normalized vertices leaves the field's box nil.
func Flatten(raw []byte) (*Normalized, error) {
	var in struct {
		Documents *[]struct {
			Properties []object `json:"properties"`
		} `json:"documents"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, ocrerr.Input(0, err, "invalid document metadata")
	}
	if in.Documents == nil {
		return nil, ocrerr.Input(0, nil, "missing documents")
	}

	out := &Normalized{Pages: []PageInfo{}, Fields: []Field{}}
	for d, doc := range *in.Documents {
		page := 1
		for _, props := range doc.Properties {
			var fields []member
			for _, m := range props {
				if !metadataKeys[m.key] {
					fields = append(fields, m)
					continue
				}
				info, numbered, err := parseMetadata(m.value)
				if err != nil {
					return nil, ocrerr.Input(0, err, "document %d %s", d, m.key)
				}
				if info != nil {
					out.Pages = append(out.Pages, *info)
				}
				if numbered {
					page = info.PageNumber
				}
			}

			for _, m := range fields {
				c, err := classify(m.value)
				if err != nil {
					return nil, ocrerr.Input(0, err, "document %d field %q", d, m.key)
				}
				field, err := toField(m.key, c, page)
				if err != nil {
					return nil, ocrerr.Input(0, err, "document %d field %q", d, m.key)
				}
				out.Fields = append(out.Fields, field)
			}
		}
	}
	return out, nil
}

// parseMetadata returns the page description carried by a metadata entry,
// or nil when it has none. numbered reports whether a page number was given.
func parseMetadata(raw json.RawMessage) (info *PageInfo, numbered bool, err error) {
	if kindOf(raw) != "object" {
		return nil, false, fmt.Errorf("metadata must be an object, got %s", kindOf(raw))
	}
	var env metadataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, err
	}
	pi := env.MetaDataMap.PageInfo
	if pi == nil {
		return nil, false, nil
	}

	number := pi.PageNumber
	if number == nil {
		number = pi.PageNumberAlt
	}
	out := &PageInfo{Unit: pi.Dimension.Unit}
	for _, f := range []struct {
		name string
		n    *json.Number
		dst  *int
	}{
		{"page_number", number, &out.PageNumber},
		{"width", pi.Dimension.Width, &out.Width},
		{"height", pi.Dimension.Height, &out.Height},
	} {
		if f.n == nil {
			continue
		}
		v, err := integral(*f.n)
		if err != nil {
			return nil, false, fmt.Errorf("pageInfo %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return out, number != nil, nil
}

// integral accepts whole numbers only, including forms like 11.0.
func integral(n json.Number) (int, error) {
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s is not an integer", n)
	}
	return int(f), nil
}

// classify sorts a property value into scalar, object with a polygon, or
// object without one. Arrays are rejected.
func classify(raw json.RawMessage) (classified, error) {
	switch kindOf(raw) {
	case "array":
		return classified{}, fmt.Errorf("unsupported array value")
	case "object":
	default:
		return classified{kind: kindScalar, value: scalarString(raw)}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return classified{}, err
	}

	poly, ok := firstKey(obj, "bounding_poly", "boundingPoly")
	if !ok {
		c := classified{kind: kindObject}
		if v, ok := obj["value"]; ok {
			c.value = scalarString(v)
		} else {
			c.value = scalarString(raw)
		}
		return c, nil
	}

	var polyObj map[string]json.RawMessage
	if err := json.Unmarshal(poly, &polyObj); err != nil {
		return classified{}, fmt.Errorf("bounding polygon: %w", err)
	}
	c := classified{kind: kindObject}
	v, hasValue := obj["value"]
	if hasValue {
		c.value = scalarString(v)
	}
	rawVerts, ok := firstKey(polyObj, "normalized_vertices", "normalizedVertices")
	if !ok {
		if !hasValue {
			c.value = scalarString(raw)
		}
		return c, nil
	}
	if err := json.Unmarshal(rawVerts, &c.vertices); err != nil {
		return classified{}, fmt.Errorf("normalized vertices: %w", err)
	}
	c.kind = kindPolygon
	return c, nil
}

func toField(name string, c classified, page int) (Field, error) {
	f := Field{Name: name, Value: c.value}
	if c.kind != kindPolygon {
		return f, nil
	}

	x0, y0, x1, y1, err := PolygonToBox(c.vertices)
	if err != nil {
		return Field{}, err
	}
	box := &NormalizedBox{Page: page, X0: x0, Y0: y0, X1: x1, Y1: y1}
	if !inUnitRange(x0, y0, x1, y1) {
		slog.Warn("Normalized box outside [0,1]", "field", name, "page", page, "box", *box)
	}
	f.NormBox = box
	return f, nil
}

func inUnitRange(vals ...float64) bool {
	for _, v := range vals {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

func firstKey(obj map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// scalarString renders a JSON value as text: strings unquoted, null as nil,
// anything else as compact JSON.
func scalarString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return &s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		s = string(raw)
		return &s
	}
	s = buf.String()
	return &s
}

func kindOf(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "boolean"
	default:
		return "number"
	}
}
