package groundtruth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
)

func readLines(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("line %q is not JSON: %v", scanner.Text(), err)
		}
		records = append(records, r)
	}
	return records
}

func TestStore_Append(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gt")
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	key, value := "invoice_number", "A123"
	first := Record{DocID: "inv-001", Page: 1, X0: 0.2, Y0: 0.3, X1: 0.4, Y1: 0.35, Key: &key, Value: &value}
	second := Record{DocID: "inv-001", Page: 2, X0: 0.1, Y0: 0.1, X1: 0.2, Y1: 0.2}

	for _, r := range []Record{first, second} {
		if err := store.Append(r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	records := readLines(t, filepath.Join(dir, "inv-001.jsonl"))
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if *records[0].Key != key || *records[0].Value != value || records[0].X1 != 0.4 {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].Key != nil || records[1].Page != 2 {
		t.Errorf("second record = %+v", records[1])
	}
}

func TestStore_AppendConcurrent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := fmt.Sprintf("value-%d", i)
			if err := store.Append(Record{DocID: "doc", Page: 1, Value: &v}); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(readLines(t, store.Path("doc"))); got != 50 {
		t.Errorf("expected 50 lines, got %d", got)
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		docID   string
		wantErr bool
	}{
		{"plain", "inv-001", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"path separator", "../etc/passwd", true},
		{"backslash", `a\b`, true},
		{"dot", ".", true},
		{"padded", " doc ", true},
		{"parent", "..", true},
		{"nested parent", "../x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Record{DocID: tt.docID, Page: 3}.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && ocrerr.KindOf(err) != ocrerr.KindInput {
				t.Errorf("expected input error, got %T", err)
			}
			if idErr := ValidDocID(tt.docID); (idErr != nil) != tt.wantErr {
				t.Errorf("ValidDocID() error = %v, wantErr %v", idErr, tt.wantErr)
			}
		})
	}
}
