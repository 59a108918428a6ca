package outline

import (
	"math"
	"sort"
)

// Entry is one bookmark position within a page.
type Entry struct {
	Y        float64   `json:"y"`
	Bookmark *Bookmark `json:"-"`
}

// BuildStats summarizes a BuildIndex run.
type BuildStats struct {
	Indexed     int `json:"indexed"`
	Overwritten int `json:"overwritten"` // bookmarks replaced by a later one at the same page and Y
	Skipped     int `json:"skipped"`     // page out of range or non-finite Y
}

// PageIndex maps every page of a document to its bookmarks ordered by Y.
// It is never modified after BuildIndex returns, so concurrent readers
// need no locking.
type PageIndex struct {
	pages [][]Entry // pages[p-1], sorted by Y ascending
	stats BuildStats
}

// BuildIndex flattens the outline into a PageIndex covering pages
// 1..o.PageCount. Bookmarks are visited in pre-order; when two share the
// exact same page and Y the later one wins.
func BuildIndex(o *Outline) *PageIndex {
	pageCount := 0
	var roots []*Bookmark
	if o != nil {
		pageCount = max(o.PageCount, 0)
		roots = o.Bookmarks
	}

	ix := &PageIndex{pages: make([][]Entry, pageCount)}
	byPage := make([]map[float64]*Bookmark, pageCount)

	Walk(roots, func(b *Bookmark, _ int) {
		if b.Page < 1 || b.Page > pageCount || math.IsNaN(b.Y) || math.IsInf(b.Y, 0) {
			ix.stats.Skipped++
			return
		}
		m := byPage[b.Page-1]
		if m == nil {
			m = make(map[float64]*Bookmark)
			byPage[b.Page-1] = m
		}
		if _, dup := m[b.Y]; dup {
			ix.stats.Overwritten++
		}
		m[b.Y] = b
	})

	for i, m := range byPage {
		if len(m) == 0 {
			continue
		}
		entries := make([]Entry, 0, len(m))
		for y, b := range m {
			entries = append(entries, Entry{Y: y, Bookmark: b})
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].Y < entries[b].Y })
		ix.pages[i] = entries
		ix.stats.Indexed += len(entries)
	}
	return ix
}

// PageCount returns the number of pages covered by the index.
func (ix *PageIndex) PageCount() int {
	return len(ix.pages)
}

// Stats returns the counters collected while building the index.
func (ix *PageIndex) Stats() BuildStats {
	return ix.stats
}

// Page returns the entries of page p ordered by Y. The result is empty for
// pages without bookmarks and nil for pages outside the document.
func (ix *PageIndex) Page(p int) []Entry {
	if p < 1 || p > len(ix.pages) {
		return nil
	}
	out := make([]Entry, len(ix.pages[p-1]))
	copy(out, ix.pages[p-1])
	return out
}

// Resolve returns the logical parent bookmark of an annotation at (page, y):
// the bookmark with the greatest Y <= y on that page, or, when the page has
// no bookmark at or above y, the last bookmark of the nearest preceding page
// that has any. It reports false when no bookmark precedes the position.
func (ix *PageIndex) Resolve(page int, y float64) (*Bookmark, bool) {
	if page < 1 || page > len(ix.pages) || math.IsNaN(y) {
		return nil, false
	}
	entries := ix.pages[page-1]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Y > y })
	if i == 0 {
		return ix.lastBefore(page)
	}
	return entries[i-1].Bookmark, true
}

// lastBefore returns the last bookmark of the nearest page before page
// that has at least one bookmark.
func (ix *PageIndex) lastBefore(page int) (*Bookmark, bool) {
	for p := page - 1; p >= 1; p-- {
		if entries := ix.pages[p-1]; len(entries) > 0 {
			return entries[len(entries)-1].Bookmark, true
		}
	}
	return nil, false
}
