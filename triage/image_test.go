package triage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/hazyhaar/triage/langid"
)

// fakeOCR simulates tesseract: plain text on stdout, TSV when asked.
type fakeOCR struct {
	text string
	tsv  string
	err  error
	runs []string
}

func (f *fakeOCR) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.runs = append(f.runs, strings.Join(append([]string{name}, args...), " "))
	if f.err != nil {
		return nil, []byte("fake failure"), f.err
	}
	if args[len(args)-1] == "tsv" {
		return []byte(f.tsv), nil, nil
	}
	return []byte(f.text), nil, nil
}

func tsvRow(conf, word string) string {
	return strings.Join([]string{"5", "1", "1", "1", "1", "1", "0", "0", "10", "10", conf, word}, "\t")
}

func fakeTSV() string {
	header := strings.Join([]string{"level", "page_num", "block_num", "par_num",
		"line_num", "word_num", "left", "top", "width", "height", "conf", "text"}, "\t")
	return strings.Join([]string{
		header,
		tsvRow("90", "invoice"),
		tsvRow("80", "total"),
		tsvRow("-1", ""),
	}, "\n")
}

func TestImageProcessor_OCRSuccess(t *testing.T) {
	ocr := &fakeOCR{text: "Invoice total: 42 EUR\n\n\n\n", tsv: fakeTSV()}
	ip := NewImageProcessor(ocr, &langid.Static{Code: "eng", Confidence: 0.8}, []string{"eng"}, "basic", nil)
	path := writeFile(t, t.TempDir(), "scan.png", pngHeader)

	res := ip.Process(context.Background(), path, TypeImage)
	if !res.Success {
		t.Fatalf("errors: %v", res.Errors)
	}
	if res.ExtractedText != "Invoice total: 42 EUR" {
		t.Fatalf("text = %q", res.ExtractedText)
	}
	// (90 + 80) / 2 / 100, the -1 sentinel row is ignored.
	if conf := res.Metadata["ocr_confidence"]; conf != 0.85 {
		t.Fatalf("ocr_confidence = %v, want 0.85", conf)
	}
	if res.Metadata["language"] != "eng" {
		t.Fatalf("language = %v", res.Metadata["language"])
	}
	if len(ocr.runs) != 2 {
		t.Fatalf("runs = %v, want text + tsv", ocr.runs)
	}
}

func TestImageProcessor_OCRMissing(t *testing.T) {
	// WHAT: an absent OCR engine is a structured failure for the file.
	ocr := &fakeOCR{err: errors.New("executable file not found")}
	ip := NewImageProcessor(ocr, &langid.Static{}, nil, "basic", nil)
	path := writeFile(t, t.TempDir(), "scan.png", pngHeader)

	res := ip.Process(context.Background(), path, TypeImage)
	if res.Success {
		t.Fatal("expected failure")
	}
	if len(res.Errors) == 0 || !strings.Contains(res.Errors[0], "tesseract") {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestImageProcessor_LanguageFlag(t *testing.T) {
	ocr := &fakeOCR{text: "texte", tsv: fakeTSV()}
	ip := NewImageProcessor(ocr, &langid.Static{}, []string{"eng", "fra"}, "basic", nil)
	path := writeFile(t, t.TempDir(), "scan.png", pngHeader)

	ip.Process(context.Background(), path, TypeImage)
	if len(ocr.runs) == 0 || !strings.Contains(ocr.runs[0], "-l eng+fra") {
		t.Fatalf("runs = %v, want joined language flag", ocr.runs)
	}
}

func TestImageProcessor_EnhanceAuto(t *testing.T) {
	// WHAT: auto enhancement feeds tesseract a derived temp image and cleans
	// it up afterwards.
	ip := NewImageProcessor(&fakeOCR{text: "x", tsv: fakeTSV()}, &langid.Static{}, nil, "auto", nil)
	path := writePNG(t, t.TempDir(), "photo.png", checkerboard(16))

	derived, cleanup, warn := ip.enhance(path)
	if warn != "" {
		t.Fatalf("warn = %q", warn)
	}
	if derived == path {
		t.Fatal("auto enhancement should produce a new file")
	}
	if _, err := os.Stat(derived); err != nil {
		t.Fatalf("derived image missing: %v", err)
	}
	cleanup()
	if _, err := os.Stat(derived); err == nil {
		t.Fatal("cleanup left the temp image behind")
	}
}

func TestImageProcessor_EnhanceUndecodable(t *testing.T) {
	// WHAT: enhancement degrades to the original file when the image cannot
	// be decoded, with a warning rather than a failure.
	ip := NewImageProcessor(&fakeOCR{}, &langid.Static{}, nil, "contrast", nil)
	path := writeFile(t, t.TempDir(), "broken.png", []byte("not an image"))

	derived, cleanup, warn := ip.enhance(path)
	if derived != path {
		t.Fatal("undecodable image should pass through unchanged")
	}
	if cleanup != nil {
		t.Fatal("passthrough needs no cleanup")
	}
	if warn == "" {
		t.Fatal("expected a warning")
	}
}
