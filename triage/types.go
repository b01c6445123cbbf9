// Package triage decides, per uploaded file, whether it can and should be
// processed and by what means: type detection, quality gating, routed
// extraction, and graceful degradation when the real extractor is missing.
package triage

// FileType is the closed category a file is classified into.
type FileType string

const (
	TypeCAD     FileType = "cad"
	TypeImage   FileType = "image"
	TypePDF     FileType = "pdf"
	TypeOffice  FileType = "office"
	TypeText    FileType = "text"
	TypeUnknown FileType = "unknown"
)

// Decision is the quality-gate outcome for a file.
type Decision string

const (
	DecisionProcess Decision = "process"
	DecisionEnhance Decision = "enhance"
	DecisionReject  Decision = "reject"
)

// DetectionResult is the outcome of type detection for one file.
// Confidence reflects agreement between extension and content sniffing;
// it is 0 when the file is unreadable or matches nothing.
type DetectionResult struct {
	Type       FileType `json:"type"`
	MIME       string   `json:"mime"`
	Confidence float64  `json:"confidence"`
}

// QualityAssessment is built once per file and never mutated afterwards.
type QualityAssessment struct {
	FileSizeValid   bool     `json:"file_size_valid"`
	ImageQuality    *float64 `json:"image_quality"`
	TextDensity     *float64 `json:"text_density"`
	OverallScore    float64  `json:"overall_score"`
	Decision        Decision `json:"decision"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// ProcessingResult is what an extractor returns. The orchestrator never edits
// extractor-produced fields, only wraps them into the final record.
type ProcessingResult struct {
	FileID         string         `json:"file_id"`
	Success        bool           `json:"success"`
	ExtractedText  string         `json:"extracted_text,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ProcessingTime float64        `json:"processing_time"`
	Errors         []string       `json:"errors,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// ProcessingSummary is the orchestration view of an extraction attempt as it
// appears in the per-file record.
type ProcessingSummary struct {
	Attempted         bool           `json:"attempted"`
	Processor         *string        `json:"processor"`
	EnhancementNeeded bool           `json:"enhancement_needed"`
	Success           *bool          `json:"success,omitempty"`
	TextChars         int            `json:"text_chars"`
	Metadata          map[string]any `json:"metadata"`
	TextPreview       string         `json:"text_preview"`
}

// Metrics carries per-file orchestration timing.
type Metrics struct {
	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

// FileRecord aggregates one file's detection, quality assessment, and
// extraction outcome. It is created when the file begins processing, written
// once, and never updated.
type FileRecord struct {
	File       string             `json:"file"`
	FileID     string             `json:"file_id"`
	Skipped    bool               `json:"skipped,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Detected   DetectionResult    `json:"detected"`
	Quality    *QualityAssessment `json:"quality,omitempty"`
	Processing *ProcessingSummary `json:"processing,omitempty"`
	Metrics    Metrics            `json:"metrics"`
	Errors     []string           `json:"errors"`
	Warnings   []string           `json:"warnings"`
}

func (r *FileRecord) succeeded() bool {
	return r.Processing != nil && r.Processing.Success != nil && *r.Processing.Success
}

// SkipReasonUnknownType marks files whose type could not be classified.
const SkipReasonUnknownType = "unsupported_or_unknown_type"

func boolPtr(b bool) *bool        { return &b }
func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
