// Package groundtruth appends labelled box/value records to one JSON Lines
// file per document.
package groundtruth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
)

// DefaultDir is where records go when no directory is configured.
const DefaultDir = "gt"

// Record is one labelled box on a document page
type Record struct {
	DocID string  `json:"docId"`
	Page  int     `json:"page"`
	X0    float64 `json:"x0"`
	Y0    float64 `json:"y0"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	Key   *string `json:"key"`
	Value *string `json:"value"`
}

// Validate reports a malformed record as an *ocrerr.InputError.
func (r Record) Validate() error {
	return validDocID(r.DocID, r.Page)
}

// ValidDocID reports whether id can name a ground truth file: a plain file
// name with no path separators or surrounding space.
func ValidDocID(id string) error {
	return validDocID(id, 0)
}

func validDocID(id string, page int) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ocrerr.Input(page, nil, "missing docId")
	}
	if trimmed != id || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return ocrerr.Input(page, nil, "invalid docId %q", id)
	}
	return nil
}

// Store appends records under a directory. It is safe for concurrent use.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating ground truth directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the file records for docID are appended to.
func (s *Store) Path(docID string) string {
	return filepath.Join(s.dir, docID+".jsonl")
}

// Append writes r as one line of <dir>/<docId>.jsonl.
func (s *Store) Append(r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding ground truth: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.Path(r.DocID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening ground truth file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(line); err != nil {
		return fmt.Errorf("writing ground truth: %w", err)
	}
	return nil
}
