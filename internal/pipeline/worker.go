package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/bookmarkd/internal/parser"
	"github.com/dgallion1/bookmarkd/internal/session"
	"github.com/dgallion1/bookmarkd/internal/store"
)

// Worker processes a single document job.
type Worker struct {
	registry        *session.Registry
	log             *slog.Logger
	maxOutlineItems int
	backoff         func(attempt int) time.Duration
}

func NewWorker(registry *session.Registry, log *slog.Logger, maxOutlineItems int) *Worker {
	return &Worker{
		registry:        registry,
		log:             log,
		maxOutlineItems: maxOutlineItems,
		backoff:         Backoff,
	}
}

// Process parses the upload, loads the document and resolves the
// annotations it already carries.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, parser.Options{
		PageCount:       job.PageCount,
		MaxOutlineItems: w.maxOutlineItems,
	})
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	data := job.FileData()
	res, err := p.Parse(ctx, data, job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.releaseFileData()
	if job.Title != "" {
		res.Outline.Title = job.Title
	}
	if res.Outline.PageCount < 1 {
		job.AddError("document has no pages")
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetParsed(res.Outline.PageCount, res.Outline.Count(), res.Unresolved, len(res.Annotations))
	if res.Unresolved > 0 {
		log.Warn("outline items without a resolvable destination", "count", res.Unresolved)
	}

	// Phase 2: Index and persist
	job.SetStatus(StatusIndexing, "indexing")
	now := time.Now()
	rec := &store.Record{
		ID:          job.DocID,
		Filename:    job.Filename,
		ContentHash: ContentHashHex(data),
		Outline:     res.Outline,
		Annotations: res.Annotations,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var doc *session.Document
	err = withRetry(ctx, w.backoff, func() error {
		var lerr error
		doc, lerr = w.registry.Load(ctx, rec)
		if lerr != nil && IsRetryable(lerr) {
			log.Warn("retryable store error", "error", lerr)
		}
		return lerr
	})
	if err != nil {
		log.Error("load failed", "error", err)
		job.AddError(fmt.Sprintf("load: %s", err))
		job.SetStatus(StatusFailed, "indexing")
		return
	}

	parented := 0
	for _, r := range doc.ExistingAnnotations() {
		if r.Found {
			parented++
		}
	}
	job.SetIndexed(doc.Index().Stats().Indexed, parented)
	log.Info("document indexed",
		"bookmarks", res.Outline.Count(),
		"annotations", len(res.Annotations),
		"parented", parented,
	)
	job.SetStatus(StatusCompleted, "done")
}
