package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/docgeo/pkg/groundtruth"
)

func TestPrintSummaryStats(t *testing.T) {
	var buf bytes.Buffer
	printSummaryStats(&buf, groundtruth.Summary{})
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty summary, got %q", buf.String())
	}

	s := groundtruth.Summary{
		Results: []groundtruth.Result{
			groundtruth.Compare("A123", "A123"),
			groundtruth.Compare("due date", "due"),
		},
		AverageCharacterSimilarity: 0.6875,
		AverageWordAccuracy:        0.75,
	}
	printSummaryStats(&buf, s)
	out := buf.String()
	for _, want := range []string{
		"Total Evaluations: 2",
		"Average Character Similarity: 0.688",
		"Average Word Accuracy: 0.750",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunEval_RejectsDocOutsideStore(t *testing.T) {
	for _, id := range []string{"../x", "..", "a/b", " doc"} {
		t.Run(id, func(t *testing.T) {
			old := evalDocID
			evalDocID = id
			t.Cleanup(func() { evalDocID = old })

			err := runEval(evalCmd, nil)
			if err == nil || !strings.Contains(err.Error(), "invalid docId") {
				t.Errorf("runEval() error = %v, want invalid docId", err)
			}
		})
	}
}
