package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestOpen_DocumentIDFromContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "My Report (final).csv")
	if err := os.WriteFile(path, []byte("A,1,10\nB,2,0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := open(context.Background(), path, 0, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{16}$`).MatchString(doc.ID) {
		t.Errorf("expected a 16 hex char id, got %q", doc.ID)
	}
	if doc.Filename != "My Report (final).csv" {
		t.Errorf("expected file name kept, got %q", doc.Filename)
	}
	if doc.ID != doc.ContentHash[:16] {
		t.Errorf("expected id %q to prefix content hash %q", doc.ID, doc.ContentHash)
	}
}
