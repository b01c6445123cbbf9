package triage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// categoryOrder is the priority in which extension categories are consulted.
var categoryOrder = []string{"cad", "image", "pdf", "office", "text"}

// magicSig is a content signature mapped to a category and MIME type.
type magicSig struct {
	prefix []byte
	offset int
	ftype  FileType
	mime   string
}

var magicSigs = []magicSig{
	{prefix: []byte("%PDF-"), ftype: TypePDF, mime: "application/pdf"},
	{prefix: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, ftype: TypeImage, mime: "image/png"},
	{prefix: []byte{0xff, 0xd8, 0xff}, ftype: TypeImage, mime: "image/jpeg"},
	{prefix: []byte("GIF87a"), ftype: TypeImage, mime: "image/gif"},
	{prefix: []byte("GIF89a"), ftype: TypeImage, mime: "image/gif"},
	{prefix: []byte("BM"), ftype: TypeImage, mime: "image/bmp"},
	{prefix: []byte("II*\x00"), ftype: TypeImage, mime: "image/tiff"},
	{prefix: []byte("MM\x00*"), ftype: TypeImage, mime: "image/tiff"},
	{prefix: []byte("WEBP"), offset: 8, ftype: TypeImage, mime: "image/webp"},
	// DWG files open with an "AC10xx" version tag (AC1015 = 2000, AC1032 = 2018).
	{prefix: []byte("AC10"), ftype: TypeCAD, mime: "image/vnd.dwg"},
	// docx/odt are ZIP containers; plain .zip never enters the extension
	// table, so PK here means an office archive for our purposes.
	{prefix: []byte("PK\x03\x04"), ftype: TypeOffice, mime: "application/zip"},
	{prefix: []byte("{\\rtf"), ftype: TypeOffice, mime: "application/rtf"},
	// Legacy OLE compound documents (.doc and friends).
	{prefix: []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}, ftype: TypeOffice, mime: "application/msword"},
}

// extMIME refines the container MIME for well-known office extensions.
var extMIME = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"odt":  "application/vnd.oasis.opendocument.text",
	"rtf":  "application/rtf",
	"dwg":  "image/vnd.dwg",
	"dxf":  "image/vnd.dxf",
	"html": "text/html",
	"htm":  "text/html",
	"md":   "text/markdown",
	"csv":  "text/csv",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"webp": "image/webp",
}

// Detect classifies a file from its extension and the first bytes of content.
// It is pure and deterministic for a given byte stream; unreadable or empty
// files are a classification outcome (unknown, confidence 0), not an error.
func (p *Pipeline) Detect(path string) DetectionResult {
	extType := p.extensionType(path)

	head := make([]byte, 512)
	f, err := os.Open(path)
	if err != nil {
		return DetectionResult{Type: TypeUnknown, MIME: "", Confidence: 0}
	}
	n, _ := f.Read(head)
	f.Close()
	head = head[:n]
	if n == 0 {
		return DetectionResult{Type: TypeUnknown, MIME: "", Confidence: 0}
	}

	sniffType, sniffMIME := sniffContent(head)

	switch {
	case extType != TypeUnknown && extType == sniffType:
		return DetectionResult{Type: extType, MIME: p.mimeFor(path, sniffMIME), Confidence: 0.95}
	case extType != TypeUnknown && sniffType == TypeUnknown:
		return DetectionResult{Type: extType, MIME: p.mimeFor(path, ""), Confidence: 0.6}
	case extType == TypeUnknown && sniffType != TypeUnknown:
		return DetectionResult{Type: sniffType, MIME: sniffMIME, Confidence: 0.5}
	case extType != TypeUnknown && sniffType != TypeUnknown:
		// Extension and content disagree: content wins, low confidence.
		return DetectionResult{Type: sniffType, MIME: sniffMIME, Confidence: 0.5}
	default:
		return DetectionResult{Type: TypeUnknown, MIME: "", Confidence: 0}
	}
}

// extensionType maps the file extension through the configured category
// table, consulting categories in priority order.
func (p *Pipeline) extensionType(path string) FileType {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return TypeUnknown
	}
	for _, cat := range categoryOrder {
		for _, e := range p.cfg.Extensions[cat] {
			if e == ext {
				return FileType(cat)
			}
		}
	}
	return TypeUnknown
}

func (p *Pipeline) mimeFor(path, sniffed string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if m, ok := extMIME[ext]; ok {
		return m
	}
	if sniffed != "" {
		return sniffed
	}
	return "text/plain"
}

// sniffContent classifies the first bytes of a file against known magic
// signatures, then falls back to DXF and plain-text heuristics.
func sniffContent(head []byte) (FileType, string) {
	for _, sig := range magicSigs {
		end := sig.offset + len(sig.prefix)
		if len(head) >= end && bytes.Equal(head[sig.offset:end], sig.prefix) {
			return sig.ftype, sig.mime
		}
	}
	if looksLikeDXF(head) {
		return TypeCAD, "image/vnd.dxf"
	}
	if looksLikeText(head) {
		return TypeText, "text/plain"
	}
	return TypeUnknown, ""
}

// looksLikeDXF recognises the ASCII DXF tag stream: the file opens with a
// group code line (e.g. "0" or "999") followed by SECTION or a comment.
func looksLikeDXF(head []byte) bool {
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("999")) {
		return true
	}
	if !bytes.HasPrefix(trimmed, []byte("0")) {
		return false
	}
	return bytes.Contains(head, []byte("SECTION"))
}

// looksLikeText accepts content that is valid UTF-8 with a high printable
// ratio and no NUL bytes.
func looksLikeText(head []byte) bool {
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	if !utf8.Valid(head) {
		return false
	}
	printable := 0
	total := 0
	for _, r := range string(head) {
		total++
		if r == '\n' || r == '\r' || r == '\t' || r >= 0x20 {
			printable++
		}
	}
	return total > 0 && float64(printable)/float64(total) > 0.9
}

// SupportedExtensions returns the configured extension table, keyed by
// category in priority order.
func (p *Pipeline) SupportedExtensions() map[string][]string {
	out := make(map[string][]string, len(p.cfg.Extensions))
	for cat, exts := range p.cfg.Extensions {
		out[cat] = append([]string(nil), exts...)
	}
	return out
}
