package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/model"
	"github.com/sells-group/freight-cli/internal/quality"
)

var (
	processFile    string
	processCompany string
	processVoucher string
	processFormat  string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one uploaded document into normalized trips",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p, err := initProcessor(st)
		if err != nil {
			return err
		}

		format, err := resolveFormat(processFile, processFormat)
		if err != nil {
			return err
		}

		doc := model.SourceDocument{
			VoucherID: processVoucher,
			CompanyID: processCompany,
			Path:      processFile,
			Format:    format,
		}

		// Without an explicit voucher this is a fresh upload; with one it is
		// a re-run of an existing voucher.
		if doc.VoucherID == "" {
			v, err := st.CreateVoucher(ctx, doc)
			if err != nil {
				return eris.Wrap(err, "create voucher")
			}
			doc.VoucherID = v.ID
		}

		result, err := p.Process(ctx, doc)
		if err != nil {
			return eris.Wrap(err, "process voucher")
		}

		zap.L().Info("processing complete",
			zap.String("voucher_id", doc.VoucherID),
			zap.Int("trips", result.TripsProcessed),
			zap.Int("rejected", result.TripsRejected),
			zap.Float64("quality_score", result.QualityScore),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(newProcessOutput(result))
	},
}

// processOutput is the JSON document printed for one run: the extraction
// result plus the aggregate run summary.
type processOutput struct {
	*model.ExtractionResult
	Summary quality.Summary `json:"summary"`
}

func newProcessOutput(result *model.ExtractionResult) processOutput {
	unmatched := 0
	for _, d := range result.Diagnostics {
		if !d.Matched {
			unmatched++
		}
	}
	return processOutput{
		ExtractionResult: result,
		Summary:          quality.Summarize(result.Trips, result.TripsRejected, unmatched),
	}
}

func init() {
	processCmd.Flags().StringVar(&processFile, "file", "", "path to the uploaded document (required)")
	processCmd.Flags().StringVar(&processCompany, "company", "", "company ID the voucher belongs to (required)")
	processCmd.Flags().StringVar(&processVoucher, "voucher", "", "existing voucher ID to re-process")
	processCmd.Flags().StringVar(&processFormat, "format", "", "container format (pdf, xlsx, xls); inferred from the file extension when omitted")
	_ = processCmd.MarkFlagRequired("file")
	_ = processCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(processCmd)
}

// resolveFormat prefers the declared format over the file extension.
func resolveFormat(path, declared string) (model.ContainerFormat, error) {
	if declared != "" {
		return model.ParseContainerFormat(declared)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", eris.Errorf("cannot infer format of %s, pass --format", path)
	}
	return model.ParseContainerFormat(ext)
}
