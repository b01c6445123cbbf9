package triage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxReportExamples caps how many file names are listed per decision.
const maxReportExamples = 5

// Example is one named file illustrating a decision in the report.
type Example struct {
	File  string  `json:"file"`
	Score float64 `json:"score"`
}

// Report summarises a whole batch run.
type Report struct {
	TotalFiles        int                  `json:"total_files"`
	Skipped           int                  `json:"skipped"`
	Processed         int                  `json:"processed"`
	Failed            int                  `json:"failed"`
	Rejected          int                  `json:"rejected"`
	EnhancementNeeded int                  `json:"enhancement_needed"`
	WithErrors        int                  `json:"with_errors"`
	ByDecision        map[string]int       `json:"by_decision"`
	ByType            map[string]int       `json:"by_type"`
	Examples          map[string][]Example `json:"examples"`
}

// Aggregate folds per-file records into a batch report. Examples carry at
// most maxReportExamples files per decision, in record order.
func Aggregate(records []FileRecord) Report {
	rep := Report{
		TotalFiles: len(records),
		ByDecision: map[string]int{},
		ByType:     map[string]int{},
		Examples:   map[string][]Example{},
	}

	for _, rec := range records {
		if rec.Skipped {
			rep.Skipped++
			continue
		}
		rep.ByType[string(rec.Detected.Type)]++
		if len(rec.Errors) > 0 {
			rep.WithErrors++
		}

		if rec.Quality == nil {
			continue
		}
		decision := string(rec.Quality.Decision)
		rep.ByDecision[decision]++
		if len(rep.Examples[decision]) < maxReportExamples {
			rep.Examples[decision] = append(rep.Examples[decision], Example{
				File:  filepath.Base(rec.File),
				Score: rec.Quality.OverallScore,
			})
		}

		switch rec.Quality.Decision {
		case DecisionReject:
			rep.Rejected++
		case DecisionEnhance:
			rep.EnhancementNeeded++
		}
		if rec.Processing != nil && rec.Processing.Attempted {
			if rec.succeeded() {
				rep.Processed++
			} else {
				rep.Failed++
			}
		}
	}
	return rep
}

// LoadIndex reads a batch index.json and aggregates it into a report.
func LoadIndex(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read index %s: %w", path, err)
	}
	var records []FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return Report{}, fmt.Errorf("parse index %s: %w", path, err)
	}
	return Aggregate(records), nil
}

// Text renders the report for terminals.
func (r Report) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Files seen:          %d\n", r.TotalFiles)
	fmt.Fprintf(&sb, "Skipped (unknown):   %d\n", r.Skipped)
	fmt.Fprintf(&sb, "Processed OK:        %d\n", r.Processed)
	fmt.Fprintf(&sb, "Processing failed:   %d\n", r.Failed)
	fmt.Fprintf(&sb, "Rejected by quality: %d\n", r.Rejected)
	fmt.Fprintf(&sb, "Needing enhancement: %d\n", r.EnhancementNeeded)
	fmt.Fprintf(&sb, "With errors:         %d\n", r.WithErrors)

	if len(r.ByType) > 0 {
		sb.WriteString("\nBy type:\n")
		for _, k := range sortedKeys(r.ByType) {
			fmt.Fprintf(&sb, "  %-8s %d\n", k, r.ByType[k])
		}
	}
	if len(r.ByDecision) > 0 {
		sb.WriteString("\nBy decision:\n")
		for _, k := range sortedKeys(r.ByDecision) {
			fmt.Fprintf(&sb, "  %-8s %d\n", k, r.ByDecision[k])
			for _, ex := range r.Examples[k] {
				fmt.Fprintf(&sb, "    %s (%.2f)\n", ex.File, ex.Score)
			}
		}
	}
	return sb.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
