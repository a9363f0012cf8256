package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "docgeo",
	Short: "Positioned OCR tokens, line elements and normalized fields",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		ll, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}

		switch strings.ToUpper(ll) {
		case "DEBUG":
			level = slog.LevelDebug
		case "WARN":
			level = slog.LevelWarn
		case "ERROR":
			level = slog.LevelError
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		handler := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(handler)

		return nil
	},
}

func init() {
	ll := os.Getenv("LOG_LEVEL")
	if ll == "" {
		ll = "INFO"
	}
	RootCmd.PersistentFlags().String("log-level", ll, "The logging level for the command")
	RootCmd.PersistentFlags().String("config", os.Getenv("DOCGEO_CONFIG"), "Path to a YAML config file")
	RootCmd.PersistentFlags().String("engine", "", "OCR engine: tesseract, vision (overrides OCR_ENGINE)")
	RootCmd.PersistentFlags().String("lang", "", "Engine language code, e.g. eng or eng+deu (overrides OCR_LANG)")
	RootCmd.PersistentFlags().String("ocr-config", "", "Engine option string, e.g. \"--psm 6\" (overrides OCR_CONFIG)")
}
