// Package doctext recovers plain text from the binary document formats the
// fetch pipeline encounters. Best effort: regulatory PDFs are
// machine-generated and overwhelmingly use Flate-compressed text streams,
// which is the only encoding handled here. Anything below the density
// threshold is treated as a scanned document and routed to OCR instead
package doctext

import (
	"archive/zip"
	"bytes"
	"compress/zlib"
	"encoding/xml"
	"io"
	"strings"

	perr "regtruth/internal/platform/errors"
)

// ScannedDensityThreshold is the chars-per-page floor below which a PDF is
// considered image-only
const ScannedDensityThreshold = 200

// PDFResult is the outcome of a text-layer extraction attempt
type PDFResult struct {
	Text  string
	Pages int
}

// Scanned reports whether the text layer is too thin to be a real text PDF
func (r PDFResult) Scanned() bool {
	pages := r.Pages
	if pages < 1 {
		pages = 1
	}
	return len(r.Text)/pages < ScannedDensityThreshold
}

// ExtractPDF pulls the text layer out of a PDF body
func ExtractPDF(body []byte) (PDFResult, error) {
	if !bytes.HasPrefix(body, []byte("%PDF-")) {
		return PDFResult{}, perr.Contentf("not a pdf payload")
	}

	res := PDFResult{Pages: countPages(body)}

	var sb strings.Builder
	for _, stream := range rawStreams(body) {
		data := stream
		if r, err := zlib.NewReader(bytes.NewReader(stream)); err == nil {
			if inflated, err := io.ReadAll(io.LimitReader(r, 8<<20)); err == nil {
				data = inflated
			}
			r.Close()
		}
		extractTextOps(data, &sb)
	}
	res.Text = strings.TrimSpace(sb.String())
	return res, nil
}

// countPages counts /Type /Page objects, tolerating whitespace variants
func countPages(body []byte) int {
	n := 0
	for _, pat := range [][]byte{[]byte("/Type /Page"), []byte("/Type/Page")} {
		off := 0
		for {
			i := bytes.Index(body[off:], pat)
			if i < 0 {
				break
			}
			rest := body[off+i+len(pat):]
			// Exclude /Pages tree nodes
			if !bytes.HasPrefix(rest, []byte("s")) {
				n++
			}
			off += i + len(pat)
		}
	}
	return n
}

// rawStreams returns the byte ranges between stream/endstream keywords
func rawStreams(body []byte) [][]byte {
	var out [][]byte
	off := 0
	for {
		i := bytes.Index(body[off:], []byte("stream"))
		if i < 0 {
			return out
		}
		start := off + i + len("stream")
		// Keyword is followed by CRLF or LF
		if start < len(body) && body[start] == '\r' {
			start++
		}
		if start < len(body) && body[start] == '\n' {
			start++
		}
		j := bytes.Index(body[start:], []byte("endstream"))
		if j < 0 {
			return out
		}
		out = append(out, body[start:start+j])
		off = start + j + len("endstream")
	}
}

// extractTextOps walks a content stream for Tj/TJ show-text operators and
// appends the literal strings they carry
func extractTextOps(data []byte, sb *strings.Builder) {
	inText := false
	for i := 0; i < len(data); i++ {
		if !inText {
			if i+2 <= len(data) && data[i] == 'B' && i+1 < len(data) && data[i+1] == 'T' {
				inText = true
				i++
			}
			continue
		}
		switch data[i] {
		case 'E':
			if i+1 < len(data) && data[i+1] == 'T' {
				inText = false
				sb.WriteByte('\n')
				i++
			}
		case '(':
			str, next := pdfString(data, i)
			sb.WriteString(str)
			sb.WriteByte(' ')
			i = next
		}
	}
}

// pdfString decodes one parenthesized literal starting at data[i] == '('
// and returns the closing index
func pdfString(data []byte, i int) (string, int) {
	var sb strings.Builder
	depth := 0
	for ; i < len(data); i++ {
		c := data[i]
		switch c {
		case '\\':
			if i+1 < len(data) {
				i++
				switch data[i] {
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				case '(', ')', '\\':
					sb.WriteByte(data[i])
				}
			}
		case '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		default:
			if depth > 0 {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String(), i
}

// ExtractDOCX pulls the document text out of a DOCX archive
func ExtractDOCX(body []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", perr.Contentf("not a docx archive: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", perr.Contentf("docx document.xml unreadable: %v", err)
		}
		defer rc.Close()
		return flattenXML(rc)
	}
	return "", perr.Contentf("docx missing word/document.xml")
}

// flattenXML concatenates character data, inserting breaks at paragraph ends
func flattenXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", perr.Contentf("malformed docx xml: %v", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			if t.Name.Local == "p" {
				sb.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
