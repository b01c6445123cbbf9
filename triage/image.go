package triage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/time/rate"

	"github.com/hazyhaar/triage/langid"
)

// ImageProcessor runs OCR over images, optionally enhancing them first.
// The tesseract binary is invoked through an injectable Runner.
type ImageProcessor struct {
	runner      Runner
	lang        langid.Detector
	languages   []string // tesseract language set
	enhancement string   // auto|basic|contrast|scaled|denoised
	tesseract   string
	limiter     *rate.Limiter // nil = unlimited
}

// NewImageProcessor builds an OCR extractor. limiter may be nil.
func NewImageProcessor(runner Runner, lang langid.Detector, languages []string, enhancement string, limiter *rate.Limiter) *ImageProcessor {
	if runner == nil {
		runner = execRunner{}
	}
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &ImageProcessor{
		runner:      runner,
		lang:        lang,
		languages:   languages,
		enhancement: enhancement,
		tesseract:   "tesseract",
		limiter:     limiter,
	}
}

func (ip *ImageProcessor) Name() string { return "ImageProcessor" }

func (ip *ImageProcessor) CanHandle(ft FileType) bool { return ft == TypeImage }

// Process OCRs the image. A missing or timed-out OCR engine is a structured
// failure, never a panic; partial garbage is not silently accepted as text.
func (ip *ImageProcessor) Process(ctx context.Context, path string, _ FileType) ProcessingResult {
	start := time.Now()
	res := ProcessingResult{
		Metadata: map[string]any{
			"processor":   ip.Name(),
			"enhancement": ip.enhancement,
		},
	}

	ocrInput, cleanup, warn := ip.enhance(path)
	if warn != "" {
		res.Warnings = append(res.Warnings, warn)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if ip.limiter != nil {
		if err := ip.limiter.Wait(ctx); err != nil {
			return failResult(res, start, fmt.Sprintf("ocr rate wait: %v", err))
		}
	}

	text, err := ip.tesseractText(ctx, ocrInput)
	if err != nil {
		return failResult(res, start, fmt.Sprintf("ocr %s: %v", filepath.Base(path), err))
	}
	text = cleanOCRText(text)
	if ratio := printableRatio(text); ratio < 0.8 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("OCR output is %.0f%% printable, likely noise", ratio*100))
	}

	if conf, err := ip.tesseractConfidence(ctx, ocrInput); err == nil {
		res.Metadata["ocr_confidence"] = conf
	} else {
		res.Warnings = append(res.Warnings, fmt.Sprintf("ocr confidence unavailable: %v", err))
	}

	if code, conf := ip.lang.Detect(text); code != "" {
		res.Metadata["language"] = code
		res.Metadata["language_confidence"] = conf
	}

	res.Success = true
	res.ExtractedText = text
	res.ProcessingTime = time.Since(start).Seconds()
	return res
}

// enhance applies the configured pre-OCR enhancement and writes the result
// to a temp file. It returns the path to feed tesseract, a cleanup func, and
// a warning when enhancement was skipped. "basic" and undecodable images
// pass the original through.
func (ip *ImageProcessor) enhance(path string) (string, func(), string) {
	strategy := ip.enhancement
	if strategy == "" || strategy == "basic" {
		return path, nil, ""
	}

	img, err := imaging.Open(path)
	if err != nil {
		return path, nil, fmt.Sprintf("enhancement skipped, image not decodable: %v", err)
	}

	switch strategy {
	case "contrast":
		img = imaging.AdjustContrast(img, 20)
	case "scaled":
		img = imaging.Resize(img, img.Bounds().Dx()*2, 0, imaging.Lanczos)
	case "denoised":
		img = imaging.Blur(img, 0.7)
	case "auto":
		img = imaging.Grayscale(img)
		img = imaging.AdjustContrast(img, 15)
		img = imaging.Sharpen(img, 0.5)
	default:
		return path, nil, fmt.Sprintf("unknown enhancement strategy %q, using original", strategy)
	}

	tmp, err := os.CreateTemp("", "triage-ocr-*.png")
	if err != nil {
		return path, nil, fmt.Sprintf("enhancement skipped, temp file: %v", err)
	}
	tmp.Close()
	if err := imaging.Save(img, tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		return path, nil, fmt.Sprintf("enhancement skipped, save: %v", err)
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, ""
}

func (ip *ImageProcessor) tesseractText(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", strings.Join(ip.languages, "+")}
	out, errb, err := ip.runner.Run(ctx, ip.tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}

// tesseractConfidence runs tesseract in TSV mode and averages per-word
// confidences into [0,1].
func (ip *ImageProcessor) tesseractConfidence(ctx context.Context, path string) (float64, error) {
	args := []string{path, "stdout", "-l", strings.Join(ip.languages, "+"), "tsv"}
	out, _, err := ip.runner.Run(ctx, ip.tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract tsv: %w", err)
	}

	var sum float64
	var n int
	for i, line := range strings.Split(string(out), "\n") {
		if i == 0 || line == "" {
			continue // header
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[len(cols)-2]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("no word confidences in TSV output")
	}
	return sum / float64(n) / 100, nil
}

// cleanOCRText normalises line endings, strips trailing spaces, and
// collapses excessive blank lines in raw OCR output.
func cleanOCRText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blanks++
			if blanks > 2 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
