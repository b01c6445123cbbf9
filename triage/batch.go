package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// IndexFile is the name of the batch-level index written into the output
// directory.
const IndexFile = "index.json"

// Run triages every regular file in inputDir and writes per-file results
// plus an index into outDir. Per-file failures are isolated: they land in
// the file's record, never in the returned error. The only fatal conditions
// are an inaccessible input directory and an unwritable output directory.
// onRecord, when non-nil, is invoked for every completed record.
func (p *Pipeline) Run(ctx context.Context, inputDir, outDir string, onRecord func(FileRecord)) ([]FileRecord, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("input directory %s: %w", inputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input directory %s: not a directory", inputDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("output directory %s: %w", outDir, err)
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("input directory %s: %w", inputDir, err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(inputDir, e.Name()))
		}
	}
	sort.Strings(files)

	p.cfg.Logger.Info("batch started",
		"input", inputDir, "output", outDir, "files", len(files), "workers", p.cfg.Workers)

	// Stems are assigned from the sorted file list up front so collision
	// suffixes do not depend on goroutine completion order.
	seen := map[string]int{}
	stemByPath := make(map[string]string, len(files))
	for _, path := range files {
		stemByPath[path] = uniqueStem(seen, filepath.Base(path))
	}

	var (
		mu      sync.Mutex
		records []FileRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, path := range files {
		g.Go(func() error {
			// Cancellation stops new files; in-flight ones finish on their own.
			if gctx.Err() != nil {
				return nil
			}
			rec, text := p.ProcessFile(gctx, path)
			stem := stemByPath[path]

			mu.Lock()
			records = append(records, rec)
			mu.Unlock()

			if err := writeJSON(filepath.Join(outDir, stem+".json"), rec); err != nil {
				p.cfg.Logger.Error("write record", "file", path, "error", err)
			}
			if rec.succeeded() && text != "" {
				sidecar := filepath.Join(outDir, stem+".extracted.txt")
				if err := os.WriteFile(sidecar, []byte(text), 0o644); err != nil {
					p.cfg.Logger.Error("write sidecar", "file", path, "error", err)
				}
			}
			if onRecord != nil {
				onRecord(rec)
			}
			return nil
		})
	}
	g.Wait()

	sort.Slice(records, func(i, j int) bool { return records[i].File < records[j].File })
	if err := writeJSON(filepath.Join(outDir, IndexFile), records); err != nil {
		return records, fmt.Errorf("write index: %w", err)
	}

	p.cfg.Logger.Info("batch finished", "files", len(records))
	return records, nil
}

// uniqueStem derives an output stem from a file name, suffixing duplicates
// so "a.txt" and "a.md" do not clobber each other's records.
func uniqueStem(seen map[string]int, base string) string {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	seen[stem]++
	if n := seen[stem]; n > 1 {
		return fmt.Sprintf("%s-%d", stem, n)
	}
	return stem
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
