package triage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/hazyhaar/triage/langid"
)

// TextProcessor extracts text from plain-text, markdown, HTML, office, and
// PDF documents, tagging the result with a detected language.
type TextProcessor struct {
	lang langid.Detector
}

// NewTextProcessor returns a text extractor. The language detector is
// injected; construction is explicit, there is no lazy global model.
func NewTextProcessor(lang langid.Detector) *TextProcessor {
	return &TextProcessor{lang: lang}
}

func (t *TextProcessor) Name() string { return "TextProcessor" }

func (t *TextProcessor) CanHandle(ft FileType) bool {
	return ft == TypeText || ft == TypeOffice || ft == TypePDF
}

// Process extracts text for the concrete format behind the detected type.
// Failures never escape as errors; they become success=false results.
func (t *TextProcessor) Process(ctx context.Context, path string, ft FileType) ProcessingResult {
	start := time.Now()
	res := ProcessingResult{
		Metadata: map[string]any{"processor": t.Name()},
	}

	if err := ctx.Err(); err != nil {
		return failResult(res, start, fmt.Sprintf("cancelled before extraction: %v", err))
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	var (
		text string
		err  error
	)
	switch {
	case ft == TypePDF || ext == "pdf":
		var content pdfContent
		content, err = extractPDF(path, 0)
		if err == nil {
			text = content.Text
			res.Metadata["pages"] = content.Pages
			res.Metadata["text_pages"] = content.TextPages
			res.Metadata["has_images"] = content.HasImages
			if text == "" {
				res.Warnings = append(res.Warnings, "PDF has no text layer; consider OCR")
			}
		}
	case ext == "docx":
		var blocks int
		text, blocks, err = extractDocx(path)
		res.Metadata["paragraphs"] = blocks
	case ext == "odt":
		var blocks int
		text, blocks, err = extractODT(path)
		res.Metadata["paragraphs"] = blocks
	case ext == "html" || ext == "htm":
		var title string
		text, title, err = extractHTML(path)
		if title != "" {
			res.Metadata["title"] = title
		}
	case ext == "md" || ext == "markdown":
		text, err = extractMarkdown(path)
		if title := firstLine(text); title != "" {
			res.Metadata["title"] = title
		}
	default:
		text, err = extractPlainText(path)
	}

	if err != nil {
		return failResult(res, start, fmt.Sprintf("extract %s: %v", filepath.Base(path), err))
	}

	if code, conf := t.lang.Detect(text); code != "" {
		res.Metadata["language"] = code
		res.Metadata["language_confidence"] = conf
	}

	res.Success = true
	res.ExtractedText = text
	res.ProcessingTime = time.Since(start).Seconds()
	return res
}

func failResult(res ProcessingResult, start time.Time, msg string) ProcessingResult {
	res.Success = false
	res.Errors = append(res.Errors, msg)
	res.ProcessingTime = time.Since(start).Seconds()
	return res
}

// extractPlainText reads a text file and normalises line endings and
// interior whitespace runs, preserving line structure.
func extractPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// extractMarkdown strips ATX heading markers and keeps paragraph breaks.
func extractMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			trimmed = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			trimmed = strings.TrimSpace(strings.TrimRight(trimmed, "#"))
		}
		if trimmed == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(trimmed)
	}
	return sb.String(), nil
}

// firstLine returns the first non-empty line, capped at 200 runes.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > 200 {
			return string(runes[:200])
		}
		return line
	}
	return ""
}

// printableRatio is the share of printable runes in text; empty text counts
// as fully printable.
func printableRatio(text string) float64 {
	if text == "" {
		return 1
	}
	printable, total := 0, 0
	for _, r := range text {
		total++
		if r == '\n' || r == '\r' || r == '\t' {
			printable++
			continue
		}
		if unicode.IsPrint(r) && r != 0xFFFD && !(r >= 0xE000 && r <= 0xF8FF) {
			printable++
		}
	}
	return float64(printable) / float64(total)
}
