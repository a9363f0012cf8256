package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lehigh-university-libraries/docgeo/internal/utils"
	"github.com/lehigh-university-libraries/docgeo/pkg/groundtruth"
	"github.com/lehigh-university-libraries/docgeo/pkg/pipeline"
	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score OCR tokens against labelled ground truth boxes",
	Long: `Run the page pipeline over --image and compare, for every ground truth
record of that page carrying a value, the labelled value with the text of the
tokens whose centre falls inside the record's box.

Records are read from --gt, or from <gt_dir>/<doc>.jsonl when --doc is given.`,
	RunE: runEval,
}

var (
	evalImage   string
	evalPage    int
	evalGTPath  string
	evalDocID   string
	evalFormat  string
	evalSummary bool
)

func init() {
	RootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalImage, "image", "", "Path to the page image (required)")
	evalCmd.Flags().IntVar(&evalPage, "page", 1, "Page number the image corresponds to")
	evalCmd.Flags().StringVar(&evalGTPath, "gt", "", "Ground truth JSON Lines file")
	evalCmd.Flags().StringVar(&evalDocID, "doc", "", "Document id to read from the ground truth directory")
	evalCmd.Flags().StringVar(&evalFormat, "format", "yaml", "Output format: json or yaml")
	evalCmd.Flags().BoolVar(&evalSummary, "summary", false, "Print averaged statistics after the results")

	err := evalCmd.MarkFlagRequired("image")
	if err != nil {
		slog.Error("Unable to mark image as required", "err", err)
		os.Exit(1)
	}
	evalCmd.MarkFlagsMutuallyExclusive("gt", "doc")
	evalCmd.MarkFlagsOneRequired("gt", "doc")
}

func runEval(cmd *cobra.Command, args []string) error {
	if evalDocID != "" {
		if err := groundtruth.ValidDocID(evalDocID); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(evalImage)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	path := evalGTPath
	if evalDocID != "" {
		store, err := groundtruth.NewStore(a.cfg.GroundTruthDir)
		if err != nil {
			return err
		}
		path = store.Path(evalDocID)
	}
	records, err := groundtruth.ReadRecords(path)
	if err != nil {
		return fmt.Errorf("reading ground truth: %w", err)
	}

	opts, err := a.options(a.cfg)
	if err != nil {
		return err
	}

	tp, err := pipeline.ProcessTokens(cmd.Context(), data, evalPage, opts)
	if err != nil {
		return err
	}

	summary := groundtruth.Score(records, evalPage, tp.Width, tp.Height, tp.Tokens)
	slog.Info("Evaluated page", "page", evalPage, "records", len(summary.Results))

	out := cmd.OutOrStdout()
	if err := utils.Render(out, summary, evalFormat); err != nil {
		return err
	}
	if evalSummary {
		printSummaryStats(out, summary)
	}
	return nil
}

func printSummaryStats(w io.Writer, s groundtruth.Summary) {
	if len(s.Results) == 0 {
		return
	}
	fmt.Fprintf(w, "\n=== SUMMARY STATISTICS ===\n")
	fmt.Fprintf(w, "Total Evaluations: %d\n", len(s.Results))
	fmt.Fprintf(w, "Average Character Similarity: %.3f\n", s.AverageCharacterSimilarity)
	fmt.Fprintf(w, "Average Word Accuracy: %.3f\n", s.AverageWordAccuracy)
}
