package document

import (
	"strings"

	"github.com/lehigh-university-libraries/docgeo/pkg/providers"
)

type lineKey struct {
	page int
	key  providers.GroupKey
}

type line struct {
	page           int
	texts          []string
	x0, y0, x1, y1 int
}

// GroupTokens joins tokens that share a structural key into elements.
// Elements come out in the order their first token was seen; within an
// element, token order is kept. Tokens with blank text are ignored, so a
// group made only of them never becomes an element.
func GroupTokens(tokens []Token) []Element {
	index := make(map[lineKey]int)
	var lines []*line

	for _, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}

		k := lineKey{page: tok.Page, key: tok.Key}
		i, ok := index[k]
		if !ok {
			i = len(lines)
			index[k] = i
			lines = append(lines, &line{
				page: tok.Page,
				x0:   tok.X0,
				y0:   tok.Y0,
				x1:   tok.X1,
				y1:   tok.Y1,
			})
		}

		l := lines[i]
		l.texts = append(l.texts, text)
		l.x0 = min(l.x0, tok.X0)
		l.y0 = min(l.y0, tok.Y0)
		l.x1 = max(l.x1, tok.X1)
		l.y1 = max(l.y1, tok.Y1)
	}

	elements := make([]Element, 0, len(lines))
	for _, l := range lines {
		content := strings.TrimSpace(strings.Join(l.texts, " "))
		if content == "" {
			continue
		}
		elements = append(elements, Element{
			Page:    l.page,
			Content: content,
			BoundingBox: BoundingBox{
				X:      l.x0,
				Y:      l.y0,
				Width:  l.x1 - l.x0,
				Height: l.y1 - l.y0,
			},
		})
	}
	return elements
}
