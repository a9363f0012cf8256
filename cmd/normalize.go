package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/lehigh-university-libraries/docgeo/internal/utils"
	"github.com/lehigh-university-libraries/docgeo/pkg/document"
	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Flatten a document-metadata JSON object into pages and fields",
	Long: `Read a {"documents":[{"properties":[...]}]} object and print its page
descriptions and fields. Fields carrying a normalized polygon get a
normalized box tagged with the page from the document's metadata.`,
	RunE: runNormalize,
}

var (
	normalizeInput  string
	normalizeFormat string
)

func init() {
	RootCmd.AddCommand(normalizeCmd)

	normalizeCmd.Flags().StringVar(&normalizeInput, "input", "-", "Path to the JSON document, - for stdin")
	normalizeCmd.Flags().StringVar(&normalizeFormat, "format", "json", "Output format: json or yaml")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if normalizeInput == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(normalizeInput)
	}
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	out, err := document.Flatten(data)
	if err != nil {
		return err
	}
	return utils.Render(cmd.OutOrStdout(), out, normalizeFormat)
}
