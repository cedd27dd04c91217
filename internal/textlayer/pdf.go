package textlayer

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-cli/internal/model"
)

var pdfMagic = []byte("%PDF-")

// extractPDF reads every page's content stream and returns the text lines in
// page order. Line breaks follow the text-positioning operators encoded in
// the container; no further layout reconstruction is attempted.
func extractPDF(path string) ([]model.ExtractedLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(model.ErrUnreadableDocument, "textlayer: open %s: %v", path, err)
	}
	defer f.Close()

	magic := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, magic); err != nil || !bytes.Equal(magic, pdfMagic) {
		return nil, eris.Wrapf(model.ErrFormatMismatch, "textlayer: %s is not a PDF", path)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, eris.Wrapf(model.ErrUnreadableDocument, "textlayer: seek %s: %v", path, err)
	}

	conf := pdfmodel.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, eris.Wrapf(model.ErrUnreadableDocument, "textlayer: pdfcpu read %s: %v", path, err)
	}

	var lines []model.ExtractedLine
	n := 0
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		for _, text := range pageLines(pctx, pageNr) {
			n++
			lines = append(lines, model.ExtractedLine{Number: n, Text: text})
		}
	}
	return lines, nil
}

// pageLines extracts the text lines of a single page from its content stream.
func pageLines(pctx *pdfmodel.Context, pageNr int) []string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return nil
	}
	return streamLines(data)
}

// streamLines parses PDF content-stream operators into logical text lines.
// Tj/TJ append to the current line; the line-moving operators (', T*, Td/TD)
// terminate it.
func streamLines(data []byte) []string {
	var out []string
	var cur strings.Builder

	flush := func() {
		if text := strings.TrimSpace(decodeLegacy(cur.String())); text != "" {
			out = append(out, text)
		}
		cur.Reset()
	}

	for _, op := range bytes.Split(data, []byte{'\n'}) {
		op = bytes.TrimSpace(op)
		if len(op) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(op, []byte("Tj")), bytes.HasSuffix(op, []byte("TJ")):
			for _, lit := range stringLiterals(op) {
				cur.WriteString(decodePDFString(lit))
			}
		case bytes.HasSuffix(op, []byte("'")) && bytes.Contains(op, []byte("(")):
			// ' shows text on the next line.
			flush()
			for _, lit := range stringLiterals(op) {
				cur.WriteString(decodePDFString(lit))
			}
		case bytes.Equal(op, []byte("T*")),
			bytes.HasSuffix(op, []byte("Td")),
			bytes.HasSuffix(op, []byte("TD")):
			flush()
		case bytes.HasSuffix(op, []byte("ET")):
			flush()
		}
	}
	flush()
	return out
}

// stringLiterals returns the contents of every parenthesized PDF string
// literal on one operator line, honoring backslash escapes of parentheses.
func stringLiterals(op []byte) [][]byte {
	var lits [][]byte
	depth := 0
	start := -1
	for i := 0; i < len(op); i++ {
		c := op[i]
		if c == '\\' {
			i++
			continue
		}
		switch c {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 && start >= 0 {
				lits = append(lits, op[start:i])
				start = -1
			}
		}
	}
	return lits
}

// decodePDFString handles the basic PDF escape sequences, including octal
// byte escapes.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}
