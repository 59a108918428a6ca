package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dgallion1/bookmarkd/internal/outline"
	"github.com/dgallion1/bookmarkd/internal/report"
	"github.com/dgallion1/bookmarkd/internal/session"
	"github.com/dgallion1/bookmarkd/internal/store"
	"github.com/go-chi/chi/v5"
)

// outlineRequest is the body of PUT /outline: the outline a viewer read
// from its engine, plus any annotations the document already carries.
type outlineRequest struct {
	outline.Outline
	Annotations []outline.Placement `json:"annotations"`
}

type annotationsRequest struct {
	Events []outline.Placement `json:"events"`
}

type indexEntry struct {
	Y    float64 `json:"y"`
	Name string  `json:"name"`
}

type indexPage struct {
	Page      int          `json:"page"`
	Bookmarks []indexEntry `json:"bookmarks"`
}

// document looks up the document named in the URL, writing the error
// response if it cannot.
func (s *Server) document(w http.ResponseWriter, r *http.Request) (*session.Document, bool) {
	docID := chi.URLParam(r, "docID")
	doc, err := s.registry.Get(r.Context(), docID)
	if err != nil {
		s.storeError(w, err)
		return nil, false
	}
	return doc, true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	var unavailable *store.UnavailableError
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "document not found", http.StatusNotFound)
	case errors.As(err, &unavailable):
		s.log.Error("store unavailable", "error", err)
		jsonError(w, "document store unavailable", http.StatusServiceUnavailable)
	default:
		s.log.Error("store error", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

// handlePutOutline loads a document from an outline posted as JSON.
func (s *Server) handlePutOutline(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if !docIDPattern.MatchString(docID) {
		jsonError(w, "invalid doc_id", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	var req outlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid outline: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := outline.Validate(&req.Outline, s.cfg.MaxOutlineItems); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, a := range req.Annotations {
		if err := outline.ValidatePlacement(a, req.PageCount); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	now := time.Now()
	rec := &store.Record{
		ID:          docID,
		Outline:     &req.Outline,
		Annotations: req.Annotations,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	doc, err := s.registry.Load(r.Context(), rec)
	if err != nil {
		s.storeError(w, err)
		return
	}

	summary := doc.Summary()
	s.hub.Publish(docID, &wsMessage{Type: msgDocumentLoaded, Data: summary})
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.registry.List(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc.Summary())
}

// handleDeleteDocument tears the document down: the index is discarded and
// the stored record deleted.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.registry.Remove(r.Context(), docID); err != nil {
		s.storeError(w, err)
		return
	}
	s.hub.Publish(docID, &wsMessage{Type: msgDocumentRemoved})
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}

// handleIndex returns the page index, one entry per page including pages
// without bookmarks.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}
	ix := doc.Index()
	pages := make([]indexPage, 0, ix.PageCount())
	for p := 1; p <= ix.PageCount(); p++ {
		entries := ix.Page(p)
		page := indexPage{Page: p, Bookmarks: make([]indexEntry, 0, len(entries))}
		for _, e := range entries {
			page.Bookmarks = append(page.Bookmarks, indexEntry{Y: e.Y, Name: e.Bookmark.Name})
		}
		pages = append(pages, page)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":     doc.ID,
		"page_count": ix.PageCount(),
		"stats":      ix.Stats(),
		"pages":      pages,
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		jsonError(w, "page must be an integer", http.StatusBadRequest)
		return
	}
	y, err := strconv.ParseFloat(q.Get("y"), 64)
	if err != nil || math.IsNaN(y) || math.IsInf(y, 0) {
		jsonError(w, "y must be a finite number", http.StatusBadRequest)
		return
	}
	doc, ok := s.document(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc.Resolve(outline.Placement{ID: q.Get("id"), Page: page, Y: y}))
}

// handleAnnotations is the annotation-changed callback over HTTP. Events on
// pages outside the document resolve to no parent rather than failing.
func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	var req annotationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid events: "+err.Error(), http.StatusBadRequest)
		return
	}
	doc, ok := s.document(w, r)
	if !ok {
		return
	}

	res := doc.AnnotationsChanged(req.Events)
	s.hub.Publish(doc.ID, &wsMessage{Type: msgResolved, Data: res})
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": doc.ID, "resolutions": res})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc, ok := s.document(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, report.Build(doc), format); err != nil {
		s.log.Error("report failed", "doc_id", doc.ID, "format", format, "error", err)
		jsonError(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if format == report.FormatDOCX {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.ID+".docx"))
	}
	w.Write(buf.Bytes())
}
