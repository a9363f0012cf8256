package groundtruth

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/docgeo/pkg/document"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name        string
		expected    string
		recognized  string
		wantCharSim float64
		wantWordAcc float64
		wantCorrect int
		wantSubs    int
		wantDels    int
		wantIns     int
	}{
		{
			name:        "identical ignoring case and spacing",
			expected:    "Invoice  A123",
			recognized:  "invoice a123",
			wantCharSim: 1,
			wantWordAcc: 1,
			wantCorrect: 2,
		},
		{
			name:        "one substituted word",
			expected:    "total 42.00",
			recognized:  "total 42.0O",
			wantCharSim: 1 - 1.0/11,
			wantWordAcc: 0.5,
			wantCorrect: 1,
			wantSubs:    1,
		},
		{
			name:        "missing word",
			expected:    "due date",
			recognized:  "due",
			wantCharSim: 3.0 / 8,
			wantWordAcc: 0.5,
			wantCorrect: 1,
			wantDels:    1,
		},
		{
			name:        "nothing recognized",
			expected:    "A123",
			recognized:  "",
			wantCharSim: 0,
			wantWordAcc: 0,
			wantDels:    1,
		},
		{
			name:        "both empty",
			wantCharSim: 1,
			wantWordAcc: 1,
		},
		{
			name:        "extra word with empty label",
			recognized:  "stray",
			wantCharSim: 0,
			wantWordAcc: 0,
			wantIns:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.expected, tt.recognized)
			if math.Abs(got.CharacterSimilarity-tt.wantCharSim) > 1e-9 {
				t.Errorf("CharacterSimilarity = %v, want %v", got.CharacterSimilarity, tt.wantCharSim)
			}
			if math.Abs(got.WordAccuracy-tt.wantWordAcc) > 1e-9 {
				t.Errorf("WordAccuracy = %v, want %v", got.WordAccuracy, tt.wantWordAcc)
			}
			if got.CorrectWords != tt.wantCorrect || got.Substitutions != tt.wantSubs ||
				got.Deletions != tt.wantDels || got.Insertions != tt.wantIns {
				t.Errorf("ops = correct %d subs %d dels %d ins %d, want %d %d %d %d",
					got.CorrectWords, got.Substitutions, got.Deletions, got.Insertions,
					tt.wantCorrect, tt.wantSubs, tt.wantDels, tt.wantIns)
			}
		})
	}
}

func TestScore(t *testing.T) {
	key, value := "invoice_number", "A123"
	other := "ignored"
	records := []Record{
		{DocID: "inv", Page: 1, X0: 0.5, Y0: 0, X1: 1, Y1: 0.5, Key: &key, Value: &value},
		{DocID: "inv", Page: 2, X0: 0, Y0: 0, X1: 1, Y1: 1, Value: &other},
		{DocID: "inv", Page: 1, X0: 0, Y0: 0, X1: 1, Y1: 1},
	}
	tokens := []document.Token{
		{Page: 1, Text: "INVOICE", X0: 10, Y0: 10, X1: 90, Y1: 30},
		{Page: 1, Text: "A123", X0: 120, Y0: 10, X1: 180, Y1: 30},
		{Page: 1, Text: "Total", X0: 120, Y0: 150, X1: 180, Y1: 170},
	}

	s := Score(records, 1, 200, 200, tokens)
	if len(s.Results) != 1 {
		t.Fatalf("expected 1 result, got %+v", s.Results)
	}
	got := s.Results[0]
	if got.Key != key || got.Page != 1 || got.Recognized != "A123" {
		t.Errorf("result = %+v", got)
	}
	if s.AverageCharacterSimilarity != 1 || s.AverageWordAccuracy != 1 {
		t.Errorf("averages = %v / %v, want 1 / 1", s.AverageCharacterSimilarity, s.AverageWordAccuracy)
	}

	empty := Score(records, 3, 200, 200, tokens)
	if empty.Results == nil || len(empty.Results) != 0 {
		t.Errorf("expected empty non-nil results, got %#v", empty.Results)
	}
}

func TestReadRecords(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	value := "A123"
	if err := store.Append(Record{DocID: "doc", Page: 1, X1: 1, Y1: 1, Value: &value}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(Record{DocID: "doc", Page: 2}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := ReadRecords(store.Path("doc"))
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	if len(records) != 2 || *records[0].Value != value || records[1].Page != 2 {
		t.Errorf("records = %+v", records)
	}

	bad := filepath.Join(dir, "bad.jsonl")
	if err := os.WriteFile(bad, []byte("{\"docId\":\"x\"}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadRecords(bad); err == nil {
		t.Error("expected error for malformed line")
	}
}
