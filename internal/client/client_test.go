package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/bookmarkd/internal/api"
	"github.com/dgallion1/bookmarkd/internal/config"
	"github.com/dgallion1/bookmarkd/internal/outline"
	"github.com/dgallion1/bookmarkd/internal/pipeline"
	"github.com/dgallion1/bookmarkd/internal/session"
	"github.com/dgallion1/bookmarkd/internal/store"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.APIKey = "k"

	st := store.NewMemoryStore(time.Hour)
	orch := pipeline.NewOrchestrator(cfg, session.NewRegistry(st, log, nil), st, log)
	ts := httptest.NewServer(api.NewServer(orch, api.NewHub(log), log, cfg))
	t.Cleanup(ts.Close)
	return ts
}

func sampleOutline() *outline.Outline {
	return &outline.Outline{
		Title:     "Sample",
		PageCount: 3,
		Bookmarks: []*outline.Bookmark{
			{Name: "A", Page: 1, Y: 10},
			{Name: "B", Page: 1, Y: 50},
			{Name: "C", Page: 2, Y: 20},
		},
	}
}

func TestClient_RoundTrip(t *testing.T) {
	ts := newServer(t)
	c := NewClient(ts.URL+"/", "k")
	defer c.Close()
	ctx := context.Background()

	summary, err := c.PutOutline(ctx, "doc-1", OutlineRequest{Outline: sampleOutline()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Bookmarks != 3 || summary.PageCount != 3 {
		t.Errorf("unexpected summary %+v", summary)
	}

	res, err := c.Resolve(ctx, "doc-1", 2, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Parent == nil || res.Parent.Name != "B" {
		t.Errorf("expected B, got %+v", res.Parent)
	}

	batch, err := c.AnnotationsChanged(ctx, "doc-1", []outline.Placement{{ID: "x", Page: 1, Y: 30}, {ID: "y", Page: 1, Y: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 2 || batch[0].Parent.Name != "A" || batch[1].Found {
		t.Errorf("unexpected resolutions %+v", batch)
	}

	if _, err := c.Document(ctx, "doc-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := c.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Document(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_Errors(t *testing.T) {
	ts := newServer(t)
	ctx := context.Background()

	bad := NewClient(ts.URL, "wrong")
	_, err := bad.Document(ctx, "doc-1")
	if err == nil || !strings.Contains(err.Error(), "status 401: invalid api key") {
		t.Errorf("expected 401 with api message, got %v", err)
	}

	c := NewClient(ts.URL, "k")
	o := sampleOutline()
	o.Bookmarks[0].Page = 7
	_, err = c.PutOutline(ctx, "doc-1", OutlineRequest{Outline: o})
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("expected 400 for invalid outline, got %v", err)
	}
}
