package textlayer

import (
	"github.com/extrame/xls"
	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-cli/internal/model"
)

// extractXLS reads one sheet of a legacy BIFF workbook into cell rows.
// Old exports predate the XML formats but still show up from smaller
// carriers.
func extractXLS(path string, sheetIndex int) ([]model.ExtractedLine, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, eris.Wrapf(model.ErrFormatMismatch, "textlayer: open xls %s: %v", path, err)
	}

	sheet := wb.GetSheet(sheetIndex)
	if sheet == nil {
		return nil, eris.Wrapf(model.ErrUnreadableDocument,
			"textlayer: xls sheet %d not found in %s", sheetIndex, path)
	}

	var lines []model.ExtractedLine
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		var cells []string
		for j := 0; j <= row.LastCol(); j++ {
			cells = append(cells, decodeLegacy(row.Col(j)))
		}
		lines = append(lines, model.ExtractedLine{Number: i + 1, Cells: cells})
	}
	return lines, nil
}
