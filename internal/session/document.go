package session

import (
	"log/slog"
	"time"

	"github.com/dgallion1/bookmarkd/internal/outline"
	"github.com/dgallion1/bookmarkd/internal/store"
)

// Document is a loaded document together with the page index built from
// its outline. It is immutable after Load and shared by reference between
// event handlers.
type Document struct {
	ID          string
	Filename    string
	ContentHash string
	Outline     *outline.Outline
	Annotations []outline.Placement
	CreatedAt   time.Time
	LoadedAt    time.Time

	index *outline.PageIndex
	log   *slog.Logger
	stats *ResolveStats
}

// ParentRef identifies the bookmark an annotation belongs to.
type ParentRef struct {
	Name string  `json:"name"`
	Page int     `json:"page"`
	Y    float64 `json:"y"`
}

// Resolution is the answer to one annotation-changed event. Parent is nil
// and Found false when no bookmark precedes the annotation.
type Resolution struct {
	AnnotationID string     `json:"annotation_id"`
	Page         int        `json:"page"`
	Y            float64    `json:"y"`
	Parent       *ParentRef `json:"parent"`
	Found        bool       `json:"found"`
}

// Summary describes a loaded document.
type Summary struct {
	ID          string             `json:"doc_id"`
	Title       string             `json:"title"`
	Filename    string             `json:"filename,omitempty"`
	PageCount   int                `json:"page_count"`
	Bookmarks   int                `json:"bookmarks"`
	Annotations int                `json:"annotations"`
	Index       outline.BuildStats `json:"index"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Load is the document-loaded step: it builds the page index exactly once.
// stats may be nil.
func Load(rec *store.Record, log *slog.Logger, stats *ResolveStats) *Document {
	o := rec.Outline
	if o == nil {
		o = &outline.Outline{}
	}
	d := &Document{
		ID:          rec.ID,
		Filename:    rec.Filename,
		ContentHash: rec.ContentHash,
		Outline:     o,
		Annotations: rec.Annotations,
		CreatedAt:   rec.CreatedAt,
		LoadedAt:    time.Now(),
		index:       outline.BuildIndex(o),
		log:         log.With("doc_id", rec.ID),
		stats:       stats,
	}

	st := d.index.Stats()
	d.log.Info("document loaded",
		"pages", o.PageCount,
		"bookmarks", o.Count(),
		"indexed", st.Indexed,
		"annotations", len(rec.Annotations),
	)
	if st.Overwritten > 0 {
		d.log.Warn("bookmarks share a page position, later ones win", "overwritten", st.Overwritten)
	}
	if st.Skipped > 0 {
		d.log.Warn("bookmarks outside the document were not indexed", "skipped", st.Skipped)
	}
	return d
}

// Index returns the document's page index.
func (d *Document) Index() *outline.PageIndex {
	return d.index
}

// Resolve finds the parent bookmark of one placement.
func (d *Document) Resolve(p outline.Placement) Resolution {
	start := time.Now()
	b, ok := d.index.Resolve(p.Page, p.Y)
	if d.stats != nil {
		d.stats.Record(time.Since(start), ok)
	}

	res := Resolution{AnnotationID: p.ID, Page: p.Page, Y: p.Y, Found: ok}
	if ok {
		res.Parent = &ParentRef{Name: b.Name, Page: b.Page, Y: b.Y}
	}
	return res
}

// AnnotationsChanged is the annotation-changed handler: it resolves every
// event and logs the parent bookmark it found.
func (d *Document) AnnotationsChanged(events []outline.Placement) []Resolution {
	out := make([]Resolution, 0, len(events))
	for _, ev := range events {
		res := d.Resolve(ev)
		if res.Found {
			d.log.Info("annotation parent", "annotation_id", ev.ID, "page", ev.Page, "y", ev.Y, "parent", res.Parent.Name)
		} else {
			d.log.Info("annotation parent", "annotation_id", ev.ID, "page", ev.Page, "y", ev.Y, "parent", "none")
		}
		out = append(out, res)
	}
	return out
}

// ExistingAnnotations resolves the annotations that came with the document.
func (d *Document) ExistingAnnotations() []Resolution {
	out := make([]Resolution, 0, len(d.Annotations))
	for _, a := range d.Annotations {
		out = append(out, d.Resolve(a))
	}
	return out
}

// Summary returns the document's summary.
func (d *Document) Summary() Summary {
	return Summary{
		ID:          d.ID,
		Title:       d.Outline.Title,
		Filename:    d.Filename,
		PageCount:   d.Outline.PageCount,
		Bookmarks:   d.Outline.Count(),
		Annotations: len(d.Annotations),
		Index:       d.index.Stats(),
		CreatedAt:   d.CreatedAt,
	}
}
