package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/freight-cli/internal/detect"
	"github.com/sells-group/freight-cli/internal/model"
	"github.com/sells-group/freight-cli/internal/textlayer"
)

var (
	detectFile   string
	detectFormat string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect which company grammar matches a document",
	Long:  "Extracts the document's text layer and reports the matching grammar without touching the store. Useful when onboarding a new company layout.",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveFormat(detectFile, detectFormat)
		if err != nil {
			return err
		}

		r, err := initRegistry()
		if err != nil {
			return err
		}

		lines, err := textlayer.New(textlayer.Options{SheetIndex: cfg.Extract.SheetIndex}).
			Extract(context.Background(), model.SourceDocument{Path: detectFile, Format: format})
		if err != nil {
			return eris.Wrap(err, "extract text layer")
		}

		grammarID, known := detect.New(r).Detect(lines)

		out := map[string]any{
			"file":       detectFile,
			"format":     format,
			"lines":      len(lines),
			"grammar_id": grammarID,
			"known":      known,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectFile, "file", "", "path to the document (required)")
	detectCmd.Flags().StringVar(&detectFormat, "format", "", "container format (pdf, xlsx, xls); inferred from the file extension when omitted")
	_ = detectCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(detectCmd)
}
