package outline

// Outline is the bookmark tree of a loaded document.
type Outline struct {
	Title     string      `json:"title,omitempty"` // Document title (from metadata or filename)
	PageCount int         `json:"page_count"`
	Bookmarks []*Bookmark `json:"bookmarks"` // Root bookmarks in document order
}

// Bookmark is a named jump target in the outline. Y is in viewer space:
// 0 is the top edge of the page and values grow downward.
type Bookmark struct {
	Name     string      `json:"name"`
	Page     int         `json:"page"` // 1-indexed
	Y        float64     `json:"y"`
	Children []*Bookmark `json:"children,omitempty"`
}

// Placement is an annotation-changed event: where an annotation was
// created or moved to.
type Placement struct {
	ID       string  `json:"id"`
	Page     int     `json:"page"`
	Y        float64 `json:"y"`
	Subtype  string  `json:"subtype,omitempty"`
	Author   string  `json:"author,omitempty"`
	Contents string  `json:"contents,omitempty"`
}

// Walk visits bookmarks depth-first in pre-order: a bookmark is visited
// before its children, and its children before its next sibling.
func Walk(bookmarks []*Bookmark, fn func(b *Bookmark, depth int)) {
	var walk func(bms []*Bookmark, depth int)
	walk = func(bms []*Bookmark, depth int) {
		for _, b := range bms {
			if b == nil {
				continue
			}
			fn(b, depth)
			walk(b.Children, depth+1)
		}
	}
	walk(bookmarks, 0)
}

// Count returns the number of bookmarks in the tree.
func (o *Outline) Count() int {
	if o == nil {
		return 0
	}
	n := 0
	Walk(o.Bookmarks, func(*Bookmark, int) { n++ })
	return n
}
