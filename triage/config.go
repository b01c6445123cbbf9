package triage

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Weights tunes how sub-scores combine into the overall quality score.
// Content is the weight of the category-specific signal (sharpness for
// images, text density for documents); Size is the weight of size validity.
// For CAD files only size validity applies.
type Weights struct {
	Content float64 `yaml:"content" json:"content"`
	Size    float64 `yaml:"size" json:"size"`
}

// Thresholds maps the overall quality score to a Decision.
// score >= Process → process; score >= Enhance → enhance; else reject.
type Thresholds struct {
	Process float64 `yaml:"process" json:"process"`
	Enhance float64 `yaml:"enhance" json:"enhance"`
}

// Config configures the triage pipeline. All gating thresholds and limits
// live here rather than in code; zero values are filled by defaults().
type Config struct {
	// MaxFileSize is the maximum file size to process (default: 100 MB).
	MaxFileSize int64 `yaml:"max_file_size"`

	// Extensions maps a category to the extensions it claims, without dots.
	// Categories are matched in priority order: cad, image, pdf, office, text.
	Extensions map[string][]string `yaml:"extensions"`

	Thresholds Thresholds `yaml:"thresholds"`
	Weights    Weights    `yaml:"quality_weights"`

	// SharpnessScale divides the raw Laplacian variance before clipping to
	// [0,1]. Higher values make the sharpness score stricter.
	SharpnessScale float64 `yaml:"sharpness_scale"`

	// OCRLanguages is the tesseract language set (joined with "+").
	OCRLanguages []string `yaml:"ocr_languages"`

	// Enhancement selects the OCR pre-enhancement strategy:
	// auto, basic, contrast, scaled, denoised.
	Enhancement string `yaml:"enhancement"`

	// Converters is the CAD converter candidate order. Each entry is an
	// executable name probed on PATH, first match wins.
	Converters []string `yaml:"converters"`

	// FileTimeout bounds the processing of a single file, external tool
	// invocations included (default: 2 minutes).
	FileTimeout time.Duration `yaml:"file_timeout"`

	// Workers bounds the batch fan-out (default: 4).
	Workers int `yaml:"workers"`

	// ToolLaunchesPerSec rate-limits external tool launches (OCR, CAD
	// conversion) across the whole process. 0 disables the limit.
	ToolLaunchesPerSec float64 `yaml:"tool_launches_per_sec"`

	// Root, when set, confines externally supplied paths (MCP tool calls)
	// to this directory.
	Root string `yaml:"root"`

	// Logger for debug/error messages.
	Logger *slog.Logger `yaml:"-" json:"-"`
}

func defaultExtensions() map[string][]string {
	return map[string][]string{
		"cad":    {"dwg", "dxf", "dwf"},
		"image":  {"jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "webp"},
		"pdf":    {"pdf"},
		"office": {"docx", "odt", "doc", "rtf"},
		"text":   {"txt", "text", "md", "markdown", "html", "htm", "csv", "log"},
	}
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.Extensions == nil {
		c.Extensions = defaultExtensions()
	}
	if c.Thresholds.Process <= 0 {
		c.Thresholds.Process = 0.7
	}
	if c.Thresholds.Enhance <= 0 {
		c.Thresholds.Enhance = 0.4
	}
	// A near-zero content score must land below the enhance threshold even
	// when size validity contributes its full weight.
	if c.Weights.Content <= 0 {
		c.Weights.Content = 0.75
	}
	if c.Weights.Size <= 0 {
		c.Weights.Size = 0.25
	}
	if c.SharpnessScale <= 0 {
		c.SharpnessScale = 500
	}
	if len(c.OCRLanguages) == 0 {
		c.OCRLanguages = []string{"eng"}
	}
	if c.Enhancement == "" {
		c.Enhancement = "auto"
	}
	if len(c.Converters) == 0 {
		c.Converters = []string{"ODAFileConverter", "dwg2dxf", "TeighaFileConverter"}
	}
	if c.FileTimeout <= 0 {
		c.FileTimeout = 2 * time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// LoadConfig reads a YAML config file. Missing fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}
