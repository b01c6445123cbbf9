package triage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// pdfContent is the result of text extraction from a PDF.
type pdfContent struct {
	Text      string
	Pages     int
	TextPages int
	HasImages bool
}

// extractPDF pulls text out of a PDF via pdfcpu content streams, page by
// page. maxPages 0 means all pages.
func extractPDF(path string, maxPages int) (pdfContent, error) {
	f, err := os.Open(path)
	if err != nil {
		return pdfContent{}, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return pdfContent{}, fmt.Errorf("pdfcpu read: %w", err)
	}

	out := pdfContent{
		Pages:     ctx.PageCount,
		HasImages: pdfHasImageStreams(ctx),
	}

	last := ctx.PageCount
	if maxPages > 0 && maxPages < last {
		last = maxPages
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= last; pageNr++ {
		pageText := pdfPageText(ctx, pageNr)
		if pageText == "" {
			continue
		}
		out.TextPages++
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(pageText)
	}
	out.Text = sb.String()
	return out, nil
}

// pdfPageText extracts the text of a single page from its content stream.
func pdfPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return pdfStreamText(data)
}

// pdfHasImageStreams reports whether the document contains image XObjects.
func pdfHasImageStreams(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

// pdfTextDensity probes the first pages of a PDF and relates extracted
// character volume to an expected per-page count. Unreadable PDFs score 0.
func (p *Pipeline) pdfTextDensity(path string) float64 {
	const probePages = 3
	const expectedCharsPerPage = 1500.0

	content, err := extractPDF(path, probePages)
	if err != nil || content.Pages == 0 {
		return 0
	}
	probed := content.Pages
	if probed > probePages {
		probed = probePages
	}
	chars := float64(len([]rune(content.Text)))
	return clamp01(chars / (float64(probed) * expectedCharsPerPage))
}

// pdfLiteralRe matches PDF string literals in parentheses.
var pdfLiteralRe = regexp.MustCompile(`\(([^)]*)\)`)

// pdfStreamText scans PDF content-stream operators for shown text.
// Handles Tj, TJ, the ' shorthand, and positioning operators that imply
// whitespace.
func pdfStreamText(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return squeezeText(sb.String())
}

// decodePDFLiteral resolves basic PDF escape sequences, octal included.
func decodePDFLiteral(raw []byte) string {
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
				for j := 0; j < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; j++ {
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

// squeezeText collapses whitespace runs and drops non-printable runes.
func squeezeText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
