package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/freight-cli/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"process", "batch", "detect", "vouchers", "company", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "freight-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestProcessCommand_Flags(t *testing.T) {
	require.NotNil(t, processCmd.Flags().Lookup("file"), "process command should have --file flag")
	require.NotNil(t, processCmd.Flags().Lookup("company"), "process command should have --company flag")
	require.NotNil(t, processCmd.Flags().Lookup("voucher"), "process command should have --voucher flag")
}

func TestNewProcessOutput_IncludesSummary(t *testing.T) {
	result := &model.ExtractionResult{
		VoucherID: "v1",
		Trips: []model.TripRecord{
			{CandidateRecord: model.CandidateRecord{WeightTons: 10}, TotalAmount: 190, ExtractionConfidence: 0.95},
			{CandidateRecord: model.CandidateRecord{WeightTons: -2}, TotalAmount: -38, ExtractionConfidence: 0.75},
		},
		TripsProcessed: 2,
		TripsRejected:  1,
		Diagnostics: []model.Diagnostic{
			{Line: 2, Matched: true},
			{Line: 3, Matched: false},
			{Line: 4, Matched: true},
		},
	}

	out := newProcessOutput(result)

	assert.Equal(t, 2, out.Summary.Accepted)
	assert.Equal(t, 1, out.Summary.Rejected)
	assert.Equal(t, 1, out.Summary.Unmatched)
	assert.InDelta(t, 0.85, out.Summary.MeanConfidence, 0.0001)
	assert.InDelta(t, 0.75, out.Summary.MinConfidence, 0.0001)
	assert.InDelta(t, 8.0, out.Summary.TotalWeight, 0.0001)
	assert.InDelta(t, 152.0, out.Summary.TotalAmount, 0.0001)
}

func TestBatchCommand_Flags(t *testing.T) {
	limit := batchCmd.Flags().Lookup("limit")
	require.NotNil(t, limit, "batch command should have --limit flag")
	assert.Equal(t, "100", limit.DefValue)

	status := batchCmd.Flags().Lookup("status")
	require.NotNil(t, status, "batch command should have --status flag")
	assert.Equal(t, "pending", status.DefValue)
}

func TestResolveFormat(t *testing.T) {
	f, err := resolveFormat("/data/may.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, model.FormatPDF, f)

	// Declared format wins over the extension.
	f, err = resolveFormat("/data/may.tmp", "xlsx")
	require.NoError(t, err)
	assert.Equal(t, model.FormatXLSX, f)

	_, err = resolveFormat("/data/may", "")
	require.Error(t, err)

	_, err = resolveFormat("/data/may.docx", "")
	require.Error(t, err)
}

func TestVouchersCommand_HasShowSubcommand(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range vouchersCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["show"], "vouchers command should have show subcommand")
}
