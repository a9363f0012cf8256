package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lehigh-university-libraries/docgeo/internal/utils"
	"github.com/lehigh-university-libraries/docgeo/pkg/pipeline"
	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Print the positioned word tokens of a page image",
	Long: `Prepare a page image (upscale to the target DPI, optional binarization),
run the configured OCR engine over it and print every word that passes the
confidence gate with its pixel box. Coordinates refer to the prepared image,
whose size is reported alongside the tokens.`,
	RunE: runTokens,
}

var (
	tokensImage  string
	tokensPage   int
	tokensFormat string
)

func init() {
	RootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&tokensImage, "image", "", "Path to the page image (required)")
	tokensCmd.Flags().IntVar(&tokensPage, "page", 1, "Page number to report")
	tokensCmd.Flags().StringVar(&tokensFormat, "format", "json", "Output format: json or yaml")

	err := tokensCmd.MarkFlagRequired("image")
	if err != nil {
		slog.Error("Unable to mark image as required", "err", err)
		os.Exit(1)
	}
}

func runTokens(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(tokensImage)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := a.options(a.cfg)
	if err != nil {
		return err
	}

	tp, err := pipeline.ProcessTokens(cmd.Context(), data, tokensPage, opts)
	if err != nil {
		return err
	}
	return utils.Render(cmd.OutOrStdout(), tp, tokensFormat)
}
