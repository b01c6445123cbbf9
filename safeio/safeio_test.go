package safeio

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafePath_Valid(t *testing.T) {
	got, err := SafePath("/data", "uploads/doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/data", "uploads", "doc.pdf") {
		t.Fatalf("got %s", got)
	}
}

func TestSafePath_Traversal(t *testing.T) {
	cases := []string{
		"../etc/passwd",
		"a/../../etc/passwd",
		"..",
	}
	for _, c := range cases {
		if _, err := SafePath("/data", c); !errors.Is(err, ErrPathTraversal) {
			t.Errorf("SafePath(%q): err = %v, want ErrPathTraversal", c, err)
		}
	}
}

func TestSafePath_AbsoluteInputConfined(t *testing.T) {
	// WHAT: absolute user input is treated as relative to the base.
	got, err := SafePath("/data", "/etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, filepath.Clean("/data")+string(filepath.Separator)) {
		t.Fatalf("got %s, escaped base", got)
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 10)
	if err != nil || string(data) != "hello" {
		t.Fatalf("got %q, %v", data, err)
	}

	if _, err := LimitedReadAll(strings.NewReader("too many bytes"), 4); err == nil {
		t.Fatal("expected limit error")
	}
}
