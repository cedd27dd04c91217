package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/freight-cli/internal/detect"
	"github.com/sells-group/freight-cli/internal/grammar"
	"github.com/sells-group/freight-cli/internal/model"
	"github.com/sells-group/freight-cli/internal/textlayer"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	r := grammar.NewRegistry()
	require.NoError(t, grammar.LoadBuiltins(r))
	return New(textlayer.New(textlayer.Options{}), detect.New(r), r)
}

func writeXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Trips")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "trips.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

var fleetsheetHeader = []string{
	"Trip Date", "Ticket", "Origin", "Destination", "Product",
	"Weight (t)", "Unit Rate", "Subtotal", "Plate", "Driver",
}

func TestRun_Fleetsheet(t *testing.T) {
	e := newEngine(t)
	path := writeXLSX(t, [][]string{
		fleetsheetHeader,
		{"2025-05-02", "90112", "DENVER", "PUEBLO", "AGGREGATE", "10.000", "20.00", "200.00", "CO5521B", "M REYES"},
		{"2025-05-03", "90113", "DENVER", "PUEBLO", "AGGREGATE", "12.500", "20.00", "250.00", "CO5521B", "M REYES"},
	})

	res, err := e.Run(context.Background(), model.SourceDocument{
		VoucherID: "v1", Path: path, Format: model.FormatXLSX,
	})
	require.NoError(t, err)
	assert.Equal(t, "fleetsheet", res.GrammarID)
	require.Len(t, res.Candidates, 2)
	// Source order preserved.
	assert.Equal(t, 2, res.Candidates[0].Line)
	assert.Equal(t, 3, res.Candidates[1].Line)
	assert.InDelta(t, 10.0, res.Candidates[0].WeightTons, 0.0001)
	assert.Equal(t, 0, res.Unmatched())
}

func TestRun_BadLineDoesNotAbort(t *testing.T) {
	e := newEngine(t)
	path := writeXLSX(t, [][]string{
		fleetsheetHeader,
		{"2025-05-02", "90112", "DENVER", "PUEBLO", "AGGREGATE", "10.000", "20.00", "200.00", "CO5521B", "M REYES"},
		{"", "", "stray note from accounting", "", "", "", "", "", "", ""},
	})

	res, err := e.Run(context.Background(), model.SourceDocument{Path: path, Format: model.FormatXLSX})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 1, res.Unmatched())

	// The unmatched diagnostic carries capped raw content for debugging.
	var unmatched *model.Diagnostic
	for i := range res.Diagnostics {
		if !res.Diagnostics[i].Matched {
			unmatched = &res.Diagnostics[i]
		}
	}
	require.NotNil(t, unmatched)
	assert.Equal(t, 3, unmatched.Line)
	assert.Contains(t, unmatched.Raw, "stray note")
}

func TestRun_UnknownFormatUsesFallback(t *testing.T) {
	e := newEngine(t)
	path := writeXLSX(t, [][]string{
		{"Some", "Unknown", "Layout"},
		{"1", "2", "3"},
	})

	res, err := e.Run(context.Background(), model.SourceDocument{Path: path, Format: model.FormatXLSX})
	require.NoError(t, err)
	assert.Equal(t, grammar.FallbackID, res.GrammarID)
	assert.Empty(t, res.Candidates)
	// Every data line is preserved as an unmatched diagnostic for review.
	assert.Equal(t, 2, res.Unmatched())
}

func TestRun_NoLinesIsEmptyDocument(t *testing.T) {
	e := newEngine(t)

	// A valid workbook whose sheet has no rows at all.
	path := writeXLSX(t, nil)

	_, err := e.Run(context.Background(), model.SourceDocument{
		VoucherID: "v1", Path: path, Format: model.FormatXLSX,
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrEmptyDocument))
}

func TestRun_TextLayerFailurePropagates(t *testing.T) {
	e := newEngine(t)
	_, err := e.Run(context.Background(), model.SourceDocument{
		Path: "/nonexistent.xlsx", Format: model.FormatXLSX,
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrUnreadableDocument))
}
