package detect

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/freight-cli/internal/grammar"
	"github.com/sells-group/freight-cli/internal/model"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	r := grammar.NewRegistry()
	require.NoError(t, grammar.LoadBuiltins(r))
	return New(r)
}

func textLines(texts ...string) []model.ExtractedLine {
	lines := make([]model.ExtractedLine, len(texts))
	for i, s := range texts {
		lines[i] = model.ExtractedLine{Number: i + 1, Text: s}
	}
	return lines
}

func TestDetect_Translog(t *testing.T) {
	d := newDetector(t)
	id, ok := d.Detect(textLines(
		"TRANSLOG TRANSPORTES LTDA",
		"CNPJ 12.345.678/0001-90",
		"DEMONSTRATIVO DE FRETES - PERIODO 01/05/2025 A 31/05/2025",
	))
	assert.True(t, ok)
	assert.Equal(t, "translog", id)
}

func TestDetect_Cargomax(t *testing.T) {
	d := newDetector(t)
	id, ok := d.Detect(textLines(
		"CARGOMAX FREIGHT SERVICES INC",
		"TRIP STATEMENT FOR PERIOD 2025-05-01 TO 2025-05-31",
	))
	assert.True(t, ok)
	assert.Equal(t, "cargomax", id)
}

func TestDetect_FleetsheetHeaderRow(t *testing.T) {
	d := newDetector(t)
	id, ok := d.Detect([]model.ExtractedLine{
		{Number: 1, Cells: []string{
			"Trip Date", "Ticket", "Origin", "Destination", "Product",
			"Weight (t)", "Unit Rate", "Subtotal", "Plate", "Driver",
		}},
	})
	assert.True(t, ok)
	assert.Equal(t, "fleetsheet", id)
}

func TestDetect_Unknown(t *testing.T) {
	d := newDetector(t)
	id, ok := d.Detect(textLines(
		"SOME OTHER CARRIER",
		"INVOICE 4411",
	))
	assert.False(t, ok)
	assert.Equal(t, grammar.FallbackID, id)
}

func TestDetect_PartialSignatureIsNotEnough(t *testing.T) {
	d := newDetector(t)
	// Only one of translog's two signature substrings present.
	_, ok := d.Detect(textLines("TRANSLOG TRANSPORTES LTDA"))
	assert.False(t, ok)
}

func TestDetect_SignatureOutsideHeaderWindow(t *testing.T) {
	d := newDetector(t)
	var texts []string
	for i := 0; i < 20; i++ {
		texts = append(texts, fmt.Sprintf("filler line %d", i))
	}
	texts = append(texts, "TRANSLOG TRANSPORTES LTDA", "DEMONSTRATIVO DE FRETES")
	_, ok := d.Detect(textLines(texts...))
	assert.False(t, ok)
}

func TestDetect_Empty(t *testing.T) {
	d := newDetector(t)
	id, ok := d.Detect(nil)
	assert.False(t, ok)
	assert.Equal(t, grammar.FallbackID, id)
}
