package triage

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hazyhaar/triage/cadconv"
	"github.com/hazyhaar/triage/langid"
)

// Pipeline is the per-file triage orchestrator: detect, assess, route,
// extract. One Pipeline serves a whole batch and is safe for concurrent use.
type Pipeline struct {
	cfg      Config
	registry *Registry
	resolver *cadconv.Resolver
	limiter  *rate.Limiter
}

// New builds a pipeline with the default processor set wired from cfg.
func New(cfg Config) *Pipeline {
	cfg.defaults()

	var limiter *rate.Limiter
	if cfg.ToolLaunchesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ToolLaunchesPerSec), 1)
	}

	resolver := cadconv.NewResolver(
		cadconv.DefaultTools(cfg.Converters),
		cadconv.WithLogger(cfg.Logger),
	)

	lang := langid.New()

	p := &Pipeline{
		cfg:      cfg,
		resolver: resolver,
		limiter:  limiter,
	}
	p.registry = NewRegistry(
		NewCADProcessor(resolver, limiter),
		NewImageProcessor(nil, lang, cfg.OCRLanguages, cfg.Enhancement, limiter),
		NewTextProcessor(lang),
	)
	return p
}

// Registry exposes the processor routing table, mainly for tests and the
// formats listing.
func (p *Pipeline) Registry() *Registry { return p.registry }

// ProcessFile runs the full triage sequence for one file and returns its
// record plus the full extracted text. It never returns an error: every
// failure mode lands in the record so one bad file cannot sink a batch.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (rec FileRecord, text string) {
	start := time.Now()
	rec = FileRecord{
		File:     path,
		FileID:   uuid.NewString(),
		Errors:   []string{},
		Warnings: []string{},
	}
	defer func() {
		rec.Metrics.ProcessingTimeSec = time.Since(start).Seconds()
	}()

	rec.Detected = p.Detect(path)
	if rec.Detected.Type == TypeUnknown {
		rec.Skipped = true
		rec.Reason = SkipReasonUnknownType
		p.cfg.Logger.Debug("file skipped", "file", path, "reason", rec.Reason)
		return rec, ""
	}

	qa := p.Assess(path, rec.Detected.Type)
	rec.Quality = &qa

	if qa.Decision == DecisionReject {
		rec.Processing = &ProcessingSummary{
			Attempted: false,
			Metadata:  map[string]any{},
		}
		rec.Errors = append(rec.Errors, "Rejected by quality assessment")
		p.cfg.Logger.Info("file rejected", "file", path, "score", qa.OverallScore, "issues", qa.Issues)
		return rec, ""
	}

	proc, err := p.registry.For(rec.Detected.Type)
	if err != nil {
		rec.Processing = &ProcessingSummary{
			Attempted: false,
			Metadata:  map[string]any{},
		}
		rec.Errors = append(rec.Errors, err.Error())
		return rec, ""
	}

	fctx, cancel := context.WithTimeout(ctx, p.cfg.FileTimeout)
	defer cancel()

	result := p.runProcessor(fctx, proc, path, rec.Detected.Type)
	result.FileID = rec.FileID

	meta := result.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	rec.Processing = &ProcessingSummary{
		Attempted:         true,
		Processor:         strPtr(proc.Name()),
		EnhancementNeeded: qa.Decision == DecisionEnhance,
		Success:           boolPtr(result.Success),
		TextChars:         utf8.RuneCountInString(result.ExtractedText),
		Metadata:          meta,
		TextPreview:       preview(result.ExtractedText, 500),
	}
	rec.Errors = append(rec.Errors, result.Errors...)
	rec.Warnings = append(rec.Warnings, result.Warnings...)

	p.cfg.Logger.Debug("file processed",
		"file", path,
		"type", rec.Detected.Type,
		"processor", proc.Name(),
		"success", result.Success,
		"text_chars", rec.Processing.TextChars,
	)
	return rec, result.ExtractedText
}

// runProcessor invokes a processor with panic isolation. A panicking
// extractor produces a failed result for its file, nothing more.
func (p *Pipeline) runProcessor(ctx context.Context, proc Processor, path string, ft FileType) (result ProcessingResult) {
	defer func() {
		if r := recover(); r != nil {
			p.cfg.Logger.Error("processor panic", "processor", proc.Name(), "file", path, "panic", r)
			result = ProcessingResult{
				Success:  false,
				Metadata: map[string]any{"processor": proc.Name()},
				Errors:   []string{fmt.Sprintf("processor %s panicked: %v", proc.Name(), r)},
			}
		}
	}()
	return proc.Process(ctx, path, ft)
}

// preview truncates text to at most n runes for embedding in records.
func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
