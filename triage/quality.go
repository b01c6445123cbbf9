package triage

import (
	"archive/zip"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"unicode"

	"github.com/dustin/go-humanize"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// densityProbeLimit bounds how much content the assessor reads when
// estimating text density. Assessment must stay cheap relative to extraction.
const densityProbeLimit = 256 * 1024

// Assess scores a file's content quality for its detected type and maps the
// overall score to a gate decision. The file type must not be unknown; the
// orchestrator never calls Assess for unknown files. Malformed content never
// raises an error: it yields a zero sub-score and an issue string.
func (p *Pipeline) Assess(path string, ftype FileType) QualityAssessment {
	qa := QualityAssessment{
		Issues:          []string{},
		Recommendations: []string{},
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	qa.FileSizeValid = size > 0 && size <= p.cfg.MaxFileSize
	if size == 0 {
		qa.Issues = append(qa.Issues, "file is empty")
		qa.Recommendations = append(qa.Recommendations, "re-upload the file; the stored copy has no content")
	} else if size > p.cfg.MaxFileSize {
		qa.Issues = append(qa.Issues, fmt.Sprintf("file exceeds maximum size (%s > %s)",
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(p.cfg.MaxFileSize))))
		qa.Recommendations = append(qa.Recommendations, "split the document or compress it below the configured limit")
	}

	sizeScore := 0.0
	if qa.FileSizeValid {
		sizeScore = 1.0
	}

	var contentScore float64
	var hasContentScore bool

	switch ftype {
	case TypeImage:
		score := p.imageSharpness(path, &qa)
		qa.ImageQuality = floatPtr(score)
		contentScore, hasContentScore = score, true
	case TypeText, TypePDF, TypeOffice:
		score := p.textDensity(path, ftype, &qa)
		qa.TextDensity = floatPtr(score)
		contentScore, hasContentScore = score, true
	case TypeCAD:
		// CAD content is opaque without conversion: size validity only.
	}

	if hasContentScore {
		qa.OverallScore = p.cfg.Weights.Content*contentScore + p.cfg.Weights.Size*sizeScore
	} else {
		qa.OverallScore = sizeScore
	}
	qa.OverallScore = clamp01(qa.OverallScore)

	switch {
	case qa.OverallScore >= p.cfg.Thresholds.Process:
		qa.Decision = DecisionProcess
	case qa.OverallScore >= p.cfg.Thresholds.Enhance:
		qa.Decision = DecisionEnhance
	default:
		qa.Decision = DecisionReject
	}
	return qa
}

// imageSharpness decodes the image and returns a variance-of-Laplacian proxy
// normalised to [0,1]. Undecodable images score 0.
func (p *Pipeline) imageSharpness(path string, qa *QualityAssessment) float64 {
	f, err := os.Open(path)
	if err != nil {
		qa.Issues = append(qa.Issues, "image is unreadable")
		qa.Recommendations = append(qa.Recommendations, "re-export the image in a standard format (PNG, JPEG, TIFF)")
		return 0
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		qa.Issues = append(qa.Issues, "image could not be decoded")
		qa.Recommendations = append(qa.Recommendations, "re-export the image in a standard format (PNG, JPEG, TIFF)")
		return 0
	}

	v := laplacianVariance(img)
	score := clamp01(v / p.cfg.SharpnessScale)
	if score < p.cfg.Thresholds.Enhance {
		qa.Issues = append(qa.Issues, "image sharpness below usable range")
		qa.Recommendations = append(qa.Recommendations, "increase scan resolution or re-scan with better focus")
	}
	return score
}

// laplacianVariance computes the variance of a 4-neighbour Laplacian over
// the grayscale image. Flat or blurred images have low variance; sharp edges
// raise it.
func laplacianVariance(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			gray[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := gray[(y-1)*w+x] + gray[(y+1)*w+x] + gray[y*w+x-1] + gray[y*w+x+1] - 4*gray[y*w+x]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// textDensity estimates extractable text volume relative to file size,
// clipped to [0,1]. The probe is intentionally lighter than full extraction.
func (p *Pipeline) textDensity(path string, ftype FileType, qa *QualityAssessment) float64 {
	var density float64
	switch ftype {
	case TypeText:
		density = plainTextDensity(path)
	case TypePDF:
		density = p.pdfTextDensity(path)
	case TypeOffice:
		density = officeTextDensity(path)
	}
	if density < p.cfg.Thresholds.Enhance {
		qa.Issues = append(qa.Issues, "little extractable text relative to document size")
		qa.Recommendations = append(qa.Recommendations, "run OCR or re-export the document with a text layer")
	}
	return density
}

// plainTextDensity is the printable-character ratio of a bounded sample.
func plainTextDensity(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, densityProbeLimit))
	if err != nil || len(data) == 0 {
		return 0
	}

	printable := 0
	total := 0
	for _, r := range string(data) {
		total++
		if r == '\n' || r == '\r' || r == '\t' {
			printable++
			continue
		}
		if unicode.IsPrint(r) && r != 0xFFFD {
			printable++
		}
	}
	if total == 0 {
		return 0
	}
	return clamp01(float64(printable) / float64(total))
}

// officeTextDensity reads the main XML part of a zip-based office document
// and relates its character-data volume to the archive size.
func officeTextDensity(path string) float64 {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return 0
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return 0
	}
	defer r.Close()

	var chars int64
	for _, f := range r.File {
		if f.Name != "word/document.xml" && f.Name != "content.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return 0
		}
		chars = countXMLCharData(io.LimitReader(rc, densityProbeLimit))
		rc.Close()
		break
	}

	// A tenth of the archive size as text is already a dense document.
	denom := float64(info.Size()) / 10
	if denom < 1 {
		denom = 1
	}
	return clamp01(float64(chars) / denom)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
