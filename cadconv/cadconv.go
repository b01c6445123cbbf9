// Package cadconv discovers and drives external CAD conversion tools
// (DWG→DXF). Discovery walks a fixed, ordered candidate list; the first tool
// present on the system wins and the result is cached for the process
// lifetime. Probing and invocation are injectable so tests can simulate any
// tool landscape without touching the real PATH.
package cadconv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoConverter is returned when none of the candidate tools is installed.
var ErrNoConverter = errors.New("cadconv: no CAD converter available on this system")

// LookFunc probes for an executable, exec.LookPath compatible.
type LookFunc func(name string) (string, error)

// RunFunc invokes a conversion tool, exec.CommandContext compatible.
type RunFunc func(ctx context.Context, name string, args ...string) error

// Tool is one converter candidate: a binary name plus its argument
// convention. Args receives the staged input file and the output directory.
type Tool struct {
	Name string
	Args func(input, outDir string) []string
}

// DefaultTools returns the built-in candidate list for the given executable
// names, in priority order. Unknown names get the common "input, outdir"
// convention.
func DefaultTools(names []string) []Tool {
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, Tool{Name: name, Args: argsFor(name)})
	}
	return tools
}

func argsFor(name string) func(input, outDir string) []string {
	switch name {
	case "ODAFileConverter", "TeighaFileConverter":
		// <inDir> <outDir> <outVersion> <outType> <recurse> <audit>
		return func(input, outDir string) []string {
			return []string{filepath.Dir(input), outDir, "ACAD2018", "DXF", "0", "1"}
		}
	case "dwg2dxf":
		return func(input, outDir string) []string {
			stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
			return []string{"-o", filepath.Join(outDir, stem+".dxf"), input}
		}
	default:
		return func(input, outDir string) []string {
			return []string{input, outDir}
		}
	}
}

// Resolver finds and invokes an installed CAD converter. Safe for concurrent
// use: the discovery result is computed once and read-only afterwards.
type Resolver struct {
	tools  []Tool
	look   LookFunc
	run    RunFunc
	logger *slog.Logger

	once  sync.Once
	tool  *Tool
	path  string
	probe error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLook overrides executable probing (tests).
func WithLook(look LookFunc) Option {
	return func(r *Resolver) { r.look = look }
}

// WithRun overrides tool invocation (tests).
func WithRun(run RunFunc) Option {
	return func(r *Resolver) { r.run = run }
}

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver builds a resolver over the given candidates, in order.
func NewResolver(tools []Tool, opts ...Option) *Resolver {
	r := &Resolver{
		tools: tools,
		look:  exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Find returns the first installed candidate tool. The probe runs once per
// process; later calls return the cached result.
func (r *Resolver) Find() (name, path string, err error) {
	r.once.Do(func() {
		for i := range r.tools {
			p, lookErr := r.look(r.tools[i].Name)
			if lookErr == nil {
				r.tool = &r.tools[i]
				r.path = p
				r.logger.Debug("cad converter found", "tool", r.tools[i].Name, "path", p)
				return
			}
		}
		r.probe = ErrNoConverter
	})
	if r.probe != nil {
		return "", "", r.probe
	}
	return r.tool.Name, r.path, nil
}

// Convert turns a DWG file into a DXF in outDir and returns the output path.
// All intermediate files are scoped to the call and removed on every exit
// path; only the final output survives.
func (r *Resolver) Convert(ctx context.Context, input, outDir string) (string, error) {
	name, _, err := r.Find()
	if err != nil {
		return "", err
	}

	// Stage the input in its own directory: some tools convert whole
	// folders, and staging keeps them away from sibling files.
	staging, err := os.MkdirTemp("", "cadconv-*")
	if err != nil {
		return "", fmt.Errorf("cadconv: staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	staged := filepath.Join(staging, filepath.Base(input))
	if err := copyFile(input, staged); err != nil {
		return "", fmt.Errorf("cadconv: stage input: %w", err)
	}

	workOut := filepath.Join(staging, "out")
	if err := os.Mkdir(workOut, 0o755); err != nil {
		return "", fmt.Errorf("cadconv: work dir: %w", err)
	}

	args := r.tool.Args(staged, workOut)
	if err := r.run(ctx, name, args...); err != nil {
		return "", fmt.Errorf("cadconv: %s: %w", name, err)
	}

	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	produced := filepath.Join(workOut, stem+".dxf")
	if _, err := os.Stat(produced); err != nil {
		// Tools differ slightly in output naming; accept any file that
		// shares the stem.
		produced, err = findByStem(workOut, stem)
		if err != nil {
			return "", fmt.Errorf("cadconv: %s produced no output for %s: %w", name, filepath.Base(input), err)
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("cadconv: output dir: %w", err)
	}
	final := filepath.Join(outDir, stem+".dxf")
	if err := copyFile(produced, final); err != nil {
		return "", fmt.Errorf("cadconv: move output: %w", err)
	}
	return final, nil
}

func findByStem(dir, stem string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := e.Name()
		if strings.HasPrefix(strings.ToLower(base), strings.ToLower(stem)) &&
			strings.EqualFold(filepath.Ext(base), ".dxf") {
			return filepath.Join(dir, base), nil
		}
	}
	return "", fmt.Errorf("no .dxf matching stem %q", stem)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
