package triage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return writeFile(t, dir, name, buf.Bytes())
}

func checkerboard(size int) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestAssess_GoodTextFile(t *testing.T) {
	// WHAT: a dense plain-text file scores high and passes the gate.
	pipe := New(Config{})
	path := writeFile(t, t.TempDir(), "notes.txt",
		[]byte(strings.Repeat("All work and no play makes Jack a dull boy.\n", 50)))

	qa := pipe.Assess(path, TypeText)
	if !qa.FileSizeValid {
		t.Fatal("expected valid file size")
	}
	if qa.TextDensity == nil || *qa.TextDensity < 0.9 {
		t.Fatalf("text density = %v, want >= 0.9", qa.TextDensity)
	}
	if qa.Decision != DecisionProcess {
		t.Fatalf("decision = %s, want process (score %v)", qa.Decision, qa.OverallScore)
	}
}

func TestAssess_BinaryGarbageRejected(t *testing.T) {
	// WHAT: NUL-heavy content claiming to be text scores near zero and is
	// rejected with an actionable recommendation.
	pipe := New(Config{})
	path := writeFile(t, t.TempDir(), "junk.txt", bytes.Repeat([]byte{0x00}, 4096))

	qa := pipe.Assess(path, TypeText)
	if qa.Decision != DecisionReject {
		t.Fatalf("decision = %s, want reject (score %v)", qa.Decision, qa.OverallScore)
	}
	if len(qa.Issues) == 0 || len(qa.Recommendations) == 0 {
		t.Fatal("expected issues and recommendations on rejection")
	}
}

func TestAssess_EmptyFile(t *testing.T) {
	pipe := New(Config{})
	path := writeFile(t, t.TempDir(), "empty.txt", nil)

	qa := pipe.Assess(path, TypeText)
	if qa.FileSizeValid {
		t.Fatal("empty file must not have a valid size")
	}
	if qa.Decision != DecisionReject {
		t.Fatalf("decision = %s, want reject", qa.Decision)
	}
	if !containsSubstring(qa.Issues, "empty") {
		t.Fatalf("issues %v should mention emptiness", qa.Issues)
	}
}

func TestAssess_OversizedFile(t *testing.T) {
	// WHAT: files over the configured limit get a size issue naming both
	// sizes in human form.
	pipe := New(Config{MaxFileSize: 16})
	path := writeFile(t, t.TempDir(), "big.txt",
		[]byte("this file is comfortably over sixteen bytes"))

	qa := pipe.Assess(path, TypeText)
	if qa.FileSizeValid {
		t.Fatal("expected invalid file size")
	}
	if !containsSubstring(qa.Issues, "exceeds maximum size") {
		t.Fatalf("issues %v should mention the size limit", qa.Issues)
	}
}

func TestAssess_SharpImagePasses(t *testing.T) {
	// WHAT: high-frequency content has large Laplacian variance.
	// WHY: the sharpness gate must not reject crisp scans.
	pipe := New(Config{})
	path := writePNG(t, t.TempDir(), "sharp.png", checkerboard(32))

	qa := pipe.Assess(path, TypeImage)
	if qa.ImageQuality == nil || *qa.ImageQuality < 0.9 {
		t.Fatalf("image quality = %v, want >= 0.9", qa.ImageQuality)
	}
	if qa.Decision != DecisionProcess {
		t.Fatalf("decision = %s, want process", qa.Decision)
	}
}

func TestAssess_FlatImageRejected(t *testing.T) {
	// WHAT: a uniform image has zero Laplacian variance and fails the gate.
	pipe := New(Config{})
	path := writePNG(t, t.TempDir(), "flat.png",
		image.NewGray(image.Rect(0, 0, 16, 16)))

	qa := pipe.Assess(path, TypeImage)
	if qa.ImageQuality == nil || *qa.ImageQuality != 0 {
		t.Fatalf("image quality = %v, want 0", qa.ImageQuality)
	}
	if qa.Decision != DecisionReject {
		t.Fatalf("decision = %s, want reject", qa.Decision)
	}
	if !containsSubstring(qa.Recommendations, "scan resolution") {
		t.Fatalf("recommendations %v should suggest re-scanning", qa.Recommendations)
	}
}

func TestAssess_LowSharpnessRejectedDespiteValidSize(t *testing.T) {
	// WHAT: an image whose sharpness score is 0.15 with a valid size must
	// fall below the enhance threshold and be rejected without extraction.
	// WHY: size validity alone must never lift a near-unusable image into
	// the enhance band.
	img := checkerboard(16)
	scale := laplacianVariance(img) / 0.15
	pipe := New(Config{SharpnessScale: scale})
	path := writePNG(t, t.TempDir(), "faint.png", img)

	qa := pipe.Assess(path, TypeImage)
	if qa.ImageQuality == nil || *qa.ImageQuality < 0.14 || *qa.ImageQuality > 0.16 {
		t.Fatalf("image quality = %v, want ~0.15", qa.ImageQuality)
	}
	if !qa.FileSizeValid {
		t.Fatal("expected valid file size")
	}
	if qa.OverallScore >= 0.4 {
		t.Fatalf("overall score = %v, want < 0.4", qa.OverallScore)
	}
	if qa.Decision != DecisionReject {
		t.Fatalf("decision = %s, want reject", qa.Decision)
	}

	rec, _ := pipe.ProcessFile(context.Background(), path)
	if rec.Processing == nil || rec.Processing.Attempted {
		t.Fatalf("processing = %+v, want attempted=false", rec.Processing)
	}
}

func TestAssess_UndecodableImage(t *testing.T) {
	// WHAT: corrupt image bytes yield a zero score and an issue, not an error.
	pipe := New(Config{})
	path := writeFile(t, t.TempDir(), "corrupt.png", []byte("not an image at all"))

	qa := pipe.Assess(path, TypeImage)
	if qa.ImageQuality == nil || *qa.ImageQuality != 0 {
		t.Fatalf("image quality = %v, want 0", qa.ImageQuality)
	}
	if !containsSubstring(qa.Issues, "decoded") {
		t.Fatalf("issues %v should mention decode failure", qa.Issues)
	}
}

func TestAssess_CADSizeOnly(t *testing.T) {
	// WHAT: CAD content is opaque pre-conversion; size validity decides alone.
	pipe := New(Config{})
	path := writeFile(t, t.TempDir(), "plan.dwg", []byte("AC1032 binary payload"))

	qa := pipe.Assess(path, TypeCAD)
	if qa.ImageQuality != nil || qa.TextDensity != nil {
		t.Fatal("CAD assessment must not carry content sub-scores")
	}
	if qa.OverallScore != 1 || qa.Decision != DecisionProcess {
		t.Fatalf("got score %v decision %s, want 1/process", qa.OverallScore, qa.Decision)
	}
}

func TestAssess_OfficeDensity(t *testing.T) {
	// WHAT: a docx whose document.xml carries real text scores above the
	// reject band.
	pipe := New(Config{})
	dir := t.TempDir()
	body := strings.Repeat("<w:p><w:r><w:t>Quarterly results were strong.</w:t></w:r></w:p>", 40)
	path := buildDocx(t, dir, "report.docx",
		`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+body+`</w:body></w:document>`)

	qa := pipe.Assess(path, TypeOffice)
	if qa.TextDensity == nil || *qa.TextDensity == 0 {
		t.Fatalf("text density = %v, want > 0", qa.TextDensity)
	}
	if qa.Decision == DecisionReject {
		t.Fatalf("decision = reject (score %v), want process or enhance", qa.OverallScore)
	}
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestLaplacianVariance_TinyImage(t *testing.T) {
	if v := laplacianVariance(image.NewGray(image.Rect(0, 0, 2, 2))); v != 0 {
		t.Fatalf("variance of sub-3x3 image = %v, want 0", v)
	}
}
