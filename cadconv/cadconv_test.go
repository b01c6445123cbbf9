package cadconv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeInput(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("AC1032 payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFind_NoConverter(t *testing.T) {
	r := NewResolver(
		DefaultTools([]string{"ODAFileConverter", "dwg2dxf"}),
		WithLook(func(string) (string, error) { return "", errors.New("not found") }),
	)
	if _, _, err := r.Find(); !errors.Is(err, ErrNoConverter) {
		t.Fatalf("err = %v, want ErrNoConverter", err)
	}
}

func TestFind_PriorityOrder(t *testing.T) {
	// WHAT: the first installed candidate wins even when later ones exist.
	r := NewResolver(
		DefaultTools([]string{"ODAFileConverter", "dwg2dxf", "TeighaFileConverter"}),
		WithLook(func(name string) (string, error) {
			if name == "dwg2dxf" || name == "TeighaFileConverter" {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		}),
	)
	name, path, err := r.Find()
	if err != nil {
		t.Fatal(err)
	}
	if name != "dwg2dxf" || path != "/usr/bin/dwg2dxf" {
		t.Fatalf("got %s at %s, want dwg2dxf", name, path)
	}
}

func TestFind_ProbeCached(t *testing.T) {
	// WHAT: discovery runs once per process; repeat calls hit the cache.
	probes := 0
	r := NewResolver(
		DefaultTools([]string{"dwg2dxf"}),
		WithLook(func(name string) (string, error) {
			probes++
			return "/usr/bin/" + name, nil
		}),
	)
	for i := 0; i < 3; i++ {
		if _, _, err := r.Find(); err != nil {
			t.Fatal(err)
		}
	}
	if probes != 1 {
		t.Fatalf("probes = %d, want 1", probes)
	}
}

func TestConvert_WritesOutput(t *testing.T) {
	var gotName string
	r := NewResolver(
		DefaultTools([]string{"ODAFileConverter"}),
		WithLook(func(name string) (string, error) { return "/opt/" + name, nil }),
		WithRun(func(_ context.Context, name string, args ...string) error {
			gotName = name
			return os.WriteFile(filepath.Join(args[1], "plan.dxf"), []byte("0\nEOF\n"), 0o644)
		}),
	)

	input := writeInput(t, "plan.dwg")
	outDir := t.TempDir()
	out, err := r.Convert(context.Background(), input, outDir)
	if err != nil {
		t.Fatal(err)
	}
	if gotName != "ODAFileConverter" {
		t.Fatalf("ran %s, want ODAFileConverter", gotName)
	}
	if out != filepath.Join(outDir, "plan.dxf") {
		t.Fatalf("out = %s, want plan.dxf in outDir", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestConvert_StemFallbackNaming(t *testing.T) {
	// WHAT: tools that rename case or decorate the output are still matched
	// by stem.
	r := NewResolver(
		DefaultTools([]string{"dwg2dxf"}),
		WithLook(func(name string) (string, error) { return "/usr/bin/" + name, nil }),
		WithRun(func(_ context.Context, _ string, args ...string) error {
			// dwg2dxf convention: -o <output> <input>; write next to it
			// with different casing.
			outDir := filepath.Dir(args[1])
			return os.WriteFile(filepath.Join(outDir, "Plan.DXF"), []byte("0\nEOF\n"), 0o644)
		}),
	)

	input := writeInput(t, "plan.dwg")
	out, err := r.Convert(context.Background(), input, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(out) != "plan.dxf" {
		t.Fatalf("out = %s, want normalised plan.dxf", out)
	}
}

func TestConvert_ToolFailure(t *testing.T) {
	r := NewResolver(
		DefaultTools([]string{"dwg2dxf"}),
		WithLook(func(name string) (string, error) { return "/usr/bin/" + name, nil }),
		WithRun(func(context.Context, string, ...string) error {
			return errors.New("exit status 1")
		}),
	)

	if _, err := r.Convert(context.Background(), writeInput(t, "x.dwg"), t.TempDir()); err == nil {
		t.Fatal("expected error from failing tool")
	}
}

func TestConvert_NoOutputProduced(t *testing.T) {
	r := NewResolver(
		DefaultTools([]string{"dwg2dxf"}),
		WithLook(func(name string) (string, error) { return "/usr/bin/" + name, nil }),
		WithRun(func(context.Context, string, ...string) error { return nil }),
	)

	if _, err := r.Convert(context.Background(), writeInput(t, "x.dwg"), t.TempDir()); err == nil {
		t.Fatal("expected error when tool produces nothing")
	}
}
