package shell

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/bookmarkd/internal/outline"
	"github.com/dgallion1/bookmarkd/internal/session"
	"github.com/dgallion1/bookmarkd/internal/store"
)

func newShell() (*Shell, *bytes.Buffer) {
	rec := &store.Record{
		ID: "doc",
		Outline: &outline.Outline{
			Title:     "Sample",
			PageCount: 3,
			Bookmarks: []*outline.Bookmark{
				{Name: "A", Page: 1, Y: 10, Children: []*outline.Bookmark{
					{Name: "B", Page: 1, Y: 50},
				}},
				{Name: "C", Page: 2, Y: 20},
			},
		},
		Annotations: []outline.Placement{{ID: "n1", Page: 3, Y: 0, Subtype: "Highlight"}},
	}
	doc := session.Load(rec, slog.New(slog.NewJSONHandler(io.Discard, nil)), nil)
	var out bytes.Buffer
	return New(doc, &out), &out
}

func TestExec_Resolve(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"resolve 1 30", "page 1 y 30 -> A [p. 1, y 10]"},
		{"resolve 1 60", "page 1 y 60 -> B [p. 1, y 50]"},
		{"r 2 5", "page 2 y 5 -> B [p. 1, y 50]"},
		{"resolve 2 25", "page 2 y 25 -> C [p. 2, y 20]"},
		{"resolve 1 0", "page 1 y 0 -> (no parent)"},
	}
	for _, tt := range tests {
		sh, out := newShell()
		if err := sh.Exec(tt.line); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.line, err)
		}
		if got := strings.TrimSpace(out.String()); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.line, tt.want, got)
		}
	}
}

func TestExec_OutlineAndIndex(t *testing.T) {
	sh, out := newShell()
	sh.Exec("outline")
	if !strings.Contains(out.String(), "  B  [p. 1, y 50]\n") {
		t.Errorf("expected indented child, got:\n%s", out)
	}

	out.Reset()
	sh.Exec("index")
	for _, want := range []string{"page 1: 10 A | 50 B\n", "page 3: -\n", "3 indexed, 0 overwritten, 0 skipped"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected index output to contain %q, got:\n%s", want, out)
		}
	}

	out.Reset()
	if err := sh.Exec("page 2"); err != nil || out.String() != "page 2: 20 C\n" {
		t.Errorf("unexpected page output %q, err %v", out, err)
	}
	if err := sh.Exec("page 4"); err == nil {
		t.Error("expected error for page outside the document")
	}
}

func TestExec_Annotations(t *testing.T) {
	sh, out := newShell()
	sh.Exec("annotations")
	if got := out.String(); got != "n1 Highlight p. 3 y 0 -> C [p. 2, y 20]\n" {
		t.Errorf("unexpected annotations output %q", got)
	}
}

func TestExec_Errors(t *testing.T) {
	sh, _ := newShell()
	for _, line := range []string{"resolve", "resolve x 1", "resolve 1 y", "page", "frobnicate"} {
		if err := sh.Exec(line); err == nil {
			t.Errorf("%q: expected error", line)
		}
	}
	if err := sh.Exec("quit"); err != errQuit {
		t.Errorf("expected errQuit, got %v", err)
	}
	if err := sh.Exec("   "); err != nil {
		t.Errorf("expected blank line to be ignored, got %v", err)
	}
}

func TestRunScript(t *testing.T) {
	sh, out := newShell()
	script := "# comment\nresolve 2 25\nquit\nresolve 1 30\n"
	if err := sh.RunScript(strings.NewReader(script)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "page 2 y 25 -> C [p. 2, y 20]\n" {
		t.Errorf("expected script to stop at quit, got %q", got)
	}

	sh, _ = newShell()
	err := sh.RunScript(strings.NewReader("outline\nbogus\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected error on line 2, got %v", err)
	}
}
