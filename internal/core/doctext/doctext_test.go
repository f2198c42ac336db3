package doctext

import (
	"archive/zip"
	"bytes"
	"compress/zlib"
	"strings"
	"testing"
)

func pdfWith(streams ...string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	b.WriteString("1 0 obj << /Type /Page >> endobj\n")
	for _, s := range streams {
		b.WriteString("2 0 obj << /Length 0 >>\nstream\n")
		b.WriteString(s)
		b.WriteString("\nendstream\nendobj\n")
	}
	b.WriteString("%%EOF")
	return b.Bytes()
}

func TestExtractPDFPlainStream(t *testing.T) {
	body := pdfWith("BT (Standard VAT rate is 25) Tj (percent) Tj ET")

	res, err := ExtractPDF(body)
	if err != nil {
		t.Fatalf("ExtractPDF: %v", err)
	}
	if res.Pages != 1 {
		t.Fatalf("pages = %d, want 1", res.Pages)
	}
	if !strings.Contains(res.Text, "Standard VAT rate is 25") {
		t.Fatalf("text = %q", res.Text)
	}
	if !strings.Contains(res.Text, "percent") {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestExtractPDFFlateStream(t *testing.T) {
	var z bytes.Buffer
	w := zlib.NewWriter(&z)
	w.Write([]byte("BT (Compressed regulation text) Tj ET"))
	w.Close()

	res, err := ExtractPDF(pdfWith(z.String()))
	if err != nil {
		t.Fatalf("ExtractPDF: %v", err)
	}
	if !strings.Contains(res.Text, "Compressed regulation text") {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestExtractPDFEscapes(t *testing.T) {
	res, err := ExtractPDF(pdfWith(`BT (rate \(reduced\): 13%) Tj ET`))
	if err != nil {
		t.Fatalf("ExtractPDF: %v", err)
	}
	if !strings.Contains(res.Text, "rate (reduced): 13%") {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestExtractPDFRejectsNonPDF(t *testing.T) {
	if _, err := ExtractPDF([]byte("<html></html>")); err == nil {
		t.Fatal("non-pdf payload must be rejected")
	}
}

func TestScannedDensity(t *testing.T) {
	thin := PDFResult{Text: strings.Repeat("x", 50), Pages: 1}
	if !thin.Scanned() {
		t.Fatal("50 chars on one page must classify as scanned")
	}

	dense := PDFResult{Text: strings.Repeat("x", 500), Pages: 1}
	if dense.Scanned() {
		t.Fatal("500 chars on one page must classify as text")
	}

	// Multi-page density: 500 chars over 5 pages is thin again
	multi := PDFResult{Text: strings.Repeat("x", 500), Pages: 5}
	if !multi.Scanned() {
		t.Fatal("100 chars/page must classify as scanned")
	}

	// Zero pages must not divide by zero
	zero := PDFResult{Text: strings.Repeat("x", 500), Pages: 0}
	if zero.Scanned() {
		t.Fatal("pageless result with dense text must classify as text")
	}
}

func docxWith(documentXML string) []byte {
	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	f, _ := zw.Create("word/document.xml")
	f.Write([]byte(documentXML))
	zw.Close()
	return b.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	body := docxWith(`<?xml version="1.0"?>
		<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
			<w:body>
				<w:p><w:r><w:t>Filing deadline is</w:t></w:r><w:r><w:t> 30 April</w:t></w:r></w:p>
				<w:p><w:r><w:t>Late filing penalty applies</w:t></w:r></w:p>
			</w:body>
		</w:document>`)

	text, err := ExtractDOCX(body)
	if err != nil {
		t.Fatalf("ExtractDOCX: %v", err)
	}
	if !strings.Contains(text, "Filing deadline is 30 April") {
		t.Fatalf("text = %q", text)
	}
	if !strings.Contains(text, "Late filing penalty applies") {
		t.Fatalf("text = %q", text)
	}
}

func TestExtractDOCXMissingDocument(t *testing.T) {
	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	f, _ := zw.Create("word/other.xml")
	f.Write([]byte("<x/>"))
	zw.Close()

	if _, err := ExtractDOCX(b.Bytes()); err == nil {
		t.Fatal("archive without document.xml must be rejected")
	}
}

func TestExtractDOCXNotAZip(t *testing.T) {
	if _, err := ExtractDOCX([]byte("plain text")); err == nil {
		t.Fatal("non-zip payload must be rejected")
	}
}
