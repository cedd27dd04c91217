package textlayer

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/freight-cli/internal/model"
)

// extractXLSX reads one sheet of an XLSX workbook into cell rows.
func extractXLSX(path string, sheetIndex int) ([]model.ExtractedLine, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		// tealeg rejects anything that is not a zip-based workbook.
		return nil, eris.Wrapf(model.ErrFormatMismatch, "textlayer: open xlsx %s: %v", path, err)
	}

	if sheetIndex < 0 || sheetIndex >= len(f.Sheets) {
		return nil, eris.Wrapf(model.ErrUnreadableDocument,
			"textlayer: sheet index %d out of range (workbook has %d sheets)", sheetIndex, len(f.Sheets))
	}
	sheet := f.Sheets[sheetIndex]

	lines := make([]model.ExtractedLine, 0, len(sheet.Rows))
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		lines = append(lines, model.ExtractedLine{Number: i + 1, Cells: cells})
	}
	return lines, nil
}
