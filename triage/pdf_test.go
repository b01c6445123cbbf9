package triage

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// buildTextPDF creates a valid single-page PDF with correct xref offsets and
// the given text in its content stream.
func buildTextPDF(text string) []byte {
	escaped := strings.ReplaceAll(text, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "(", `\(`)
	escaped = strings.ReplaceAll(escaped, ")", `\)`)

	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + escaped + ") Tj\nET"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")

	offsets[4] = b.Len()
	fmt.Fprintf(&b, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream)

	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xref := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)

	return []byte(b.String())
}

// buildImagePDF creates a PDF whose only content is an image XObject draw.
func buildImagePDF() []byte {
	imgData := "\xff\xd8\xff\xe0"
	drawStream := "q 100 0 0 100 72 692 cm /Im1 Do Q"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n")

	offsets[4] = b.Len()
	fmt.Fprintf(&b, "4 0 obj\n<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(imgData), imgData)

	offsets[5] = b.Len()
	fmt.Fprintf(&b, "5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(drawStream), drawStream)

	xref := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)

	return []byte(b.String())
}

func TestExtractPDF_Text(t *testing.T) {
	// WHAT: a text-bearing PDF yields its shown strings and page counts.
	path := writeFile(t, t.TempDir(), "doc.pdf", buildTextPDF("Hello from the triage tests"))

	content, err := extractPDF(path, 0)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if content.Pages != 1 || content.TextPages != 1 {
		t.Fatalf("pages = %d/%d, want 1/1", content.Pages, content.TextPages)
	}
	if !strings.Contains(content.Text, "Hello from the triage tests") {
		t.Fatalf("text = %q, want the shown string", content.Text)
	}
}

func TestExtractPDF_ImageOnly(t *testing.T) {
	// WHAT: a PDF with only an image XObject has no text and flags images.
	// WHY: downstream must know to recommend OCR instead of failing silently.
	path := writeFile(t, t.TempDir(), "scan.pdf", buildImagePDF())

	content, err := extractPDF(path, 0)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if content.Text != "" {
		t.Fatalf("text = %q, want empty", content.Text)
	}
	if !content.HasImages {
		t.Fatal("expected HasImages for image-only PDF")
	}
}

func TestTextProcessor_PDFWithoutTextLayer(t *testing.T) {
	// WHAT: extraction succeeds on image-only PDFs but warns about OCR.
	tp := newTextProcessor()
	path := writeFile(t, t.TempDir(), "scan.pdf", buildImagePDF())

	res := tp.Process(context.Background(), path, TypePDF)
	if !res.Success {
		t.Fatalf("errors: %v", res.Errors)
	}
	if !containsSubstring(res.Warnings, "no text layer") {
		t.Fatalf("warnings = %v, want OCR hint", res.Warnings)
	}
}

func TestExtractPDF_Corrupt(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.pdf", []byte("%PDF-1.4\ngarbage"))

	if _, err := extractPDF(path, 0); err == nil {
		t.Fatal("expected error for corrupt PDF")
	}
}

func TestDecodePDFLiteral(t *testing.T) {
	cases := []struct{ in, want string }{
		{`plain`, "plain"},
		{`a\(b\)c`, "a(b)c"},
		{`tab\there`, "tab\there"},
		{`oct\101l`, "octAl"},
		{`back\\slash`, `back\slash`},
	}
	for _, c := range cases {
		if got := decodePDFLiteral([]byte(c.in)); got != c.want {
			t.Errorf("decodePDFLiteral(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
