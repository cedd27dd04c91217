package textlayer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/freight-cli/internal/model"
)

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Trips")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			cell := row.AddCell()
			cell.SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "trips.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestExtract_XLSX(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Trip Date", "Ticket", "Weight (t)"},
		{"2025-05-02", "90112", "10.000"},
	})

	e := New(Options{})
	lines, err := e.Extract(context.Background(), model.SourceDocument{
		VoucherID: "v1", Path: path, Format: model.FormatXLSX,
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].Number)
	assert.True(t, lines[0].IsRow())
	assert.Equal(t, []string{"Trip Date", "Ticket", "Weight (t)"}, lines[0].Cells)
	assert.Equal(t, []string{"2025-05-02", "90112", "10.000"}, lines[1].Cells)
}

func TestExtract_XLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, [][]string{{"a"}})
	e := New(Options{SheetIndex: 3})
	_, err := e.Extract(context.Background(), model.SourceDocument{Path: path, Format: model.FormatXLSX})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrUnreadableDocument))
}

func TestExtract_DeclaredXLSXButNotZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a workbook"), 0o644))

	e := New(Options{})
	_, err := e.Extract(context.Background(), model.SourceDocument{Path: path, Format: model.FormatXLSX})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrFormatMismatch))
}

func TestExtract_DeclaredPDFButNotPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("hello, not a pdf"), 0o644))

	e := New(Options{})
	_, err := e.Extract(context.Background(), model.SourceDocument{Path: path, Format: model.FormatPDF})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrFormatMismatch))
}

func TestExtract_DeclaredXLSButNotBIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.xls")
	require.NoError(t, os.WriteFile(path, []byte("csv,not,biff"), 0o644))

	e := New(Options{})
	_, err := e.Extract(context.Background(), model.SourceDocument{Path: path, Format: model.FormatXLS})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrFormatMismatch))
}

func TestExtract_MissingFile(t *testing.T) {
	e := New(Options{})
	_, err := e.Extract(context.Background(), model.SourceDocument{
		Path: "/nonexistent/file.pdf", Format: model.FormatPDF,
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrUnreadableDocument))
}

func TestExtract_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	e := New(Options{})
	_, err := e.Extract(context.Background(), model.SourceDocument{Path: path, Format: model.FormatPDF})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrUnreadableDocument))
}

func TestExtract_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := New(Options{})
	_, err := e.Extract(ctx, model.SourceDocument{Path: "x", Format: model.FormatPDF})
	assert.Error(t, err)
}

func TestStreamLines_Operators(t *testing.T) {
	stream := []byte("BT\n" +
		"(TRANSLOG TRANSPORTES LTDA) Tj\n" +
		"0 -14 Td\n" +
		"[(02/05/2025  48213) -100 (  SANTOS - CAMPINAS)] TJ\n" +
		"T*\n" +
		"(next line) '\n" +
		"ET\n")
	lines := streamLines(stream)
	require.Len(t, lines, 3)
	assert.Equal(t, "TRANSLOG TRANSPORTES LTDA", lines[0])
	assert.Equal(t, "02/05/2025  48213  SANTOS - CAMPINAS", lines[1])
	assert.Equal(t, "next line", lines[2])
}

func TestDecodePDFString_Escapes(t *testing.T) {
	assert.Equal(t, "a(b)c", decodePDFString([]byte(`a\(b\)c`)))
	assert.Equal(t, "tab\there", decodePDFString([]byte(`tab\there`)))
	// Octal escape: \040 is a space.
	assert.Equal(t, "a b", decodePDFString([]byte(`a\040b`)))
}

func TestStringLiterals_EscapedParens(t *testing.T) {
	lits := stringLiterals([]byte(`(one \(nested\)) (two) Tj`))
	require.Len(t, lits, 2)
	assert.Equal(t, `one \(nested\)`, string(lits[0]))
	assert.Equal(t, "two", string(lits[1]))
}

func TestDecodeLegacy(t *testing.T) {
	assert.Equal(t, "plain", decodeLegacy("plain"))
	// 0xC9 is É in Windows-1252 and invalid on its own in UTF-8.
	assert.Equal(t, "SÉ", decodeLegacy(string([]byte{'S', 0xC9})))
}
