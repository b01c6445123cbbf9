// Package langid classifies extracted text into a language code. Detection
// backends are constructed explicitly and injected into the extractors that
// need them; there is no process-wide lazy singleton.
package langid

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Detector classifies text into an ISO 639-3 language code with a
// confidence in [0,1]. Empty text yields ("", 0).
type Detector interface {
	Detect(text string) (code string, confidence float64)
}

// Trigram is the default detector, backed by whatlanggo's trigram profiles.
type Trigram struct {
	// MinChars is the minimum text length worth classifying; shorter
	// inputs return ("", 0) instead of a noisy guess.
	MinChars int
}

// New returns a Trigram detector with sane defaults.
func New() *Trigram {
	return &Trigram{MinChars: 20}
}

func (t *Trigram) Detect(text string) (string, float64) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < t.MinChars {
		return "", 0
	}
	info := whatlanggo.Detect(text)
	code := whatlanggo.LangToString(info.Lang)
	if code == "" {
		return "", 0
	}
	return code, info.Confidence
}

// Static is a fixed-answer detector for tests and for deployments that pin
// a single corpus language.
type Static struct {
	Code       string
	Confidence float64
}

func (s Static) Detect(text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return "", 0
	}
	return s.Code, s.Confidence
}
