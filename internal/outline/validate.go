package outline

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// ErrInvalid marks an outline or placement rejected by validation.
var ErrInvalid = errors.New("invalid outline")

const (
	MaxPageCount = 100000
	MaxDepth     = 64
	MaxNameLen   = 1024
)

// Validate checks an outline received from a client. maxItems bounds the
// total number of bookmarks; zero means no bound. Names are trimmed in place.
func Validate(o *Outline, maxItems int) error {
	if o == nil {
		return fmt.Errorf("%w: missing outline", ErrInvalid)
	}
	if o.PageCount < 1 || o.PageCount > MaxPageCount {
		return fmt.Errorf("%w: page_count %d out of range [1, %d]", ErrInvalid, o.PageCount, MaxPageCount)
	}

	if err := checkNil(o.Bookmarks, 0); err != nil {
		return err
	}

	var err error
	n := 0
	Walk(o.Bookmarks, func(b *Bookmark, depth int) {
		if err != nil {
			return
		}
		n++
		switch {
		case maxItems > 0 && n > maxItems:
			err = fmt.Errorf("%w: more than %d bookmarks", ErrInvalid, maxItems)
		case depth >= MaxDepth:
			err = fmt.Errorf("%w: bookmark %q nested deeper than %d", ErrInvalid, b.Name, MaxDepth)
		case b.Page < 1 || b.Page > o.PageCount:
			err = fmt.Errorf("%w: bookmark %q on page %d outside [1, %d]", ErrInvalid, b.Name, b.Page, o.PageCount)
		case math.IsNaN(b.Y) || math.IsInf(b.Y, 0):
			err = fmt.Errorf("%w: bookmark %q has non-finite y", ErrInvalid, b.Name)
		}
		b.Name = truncateName(strings.TrimSpace(b.Name))
	})
	return err
}

// checkNil rejects null entries, which Walk would silently skip.
func checkNil(bookmarks []*Bookmark, depth int) error {
	if depth >= MaxDepth && len(bookmarks) > 0 {
		return fmt.Errorf("%w: bookmarks nested deeper than %d", ErrInvalid, MaxDepth)
	}
	for i, b := range bookmarks {
		if b == nil {
			return fmt.Errorf("%w: bookmark %d at depth %d is null", ErrInvalid, i, depth)
		}
		if err := checkNil(b.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// truncateName cuts name to at most MaxNameLen bytes on a rune boundary.
func truncateName(name string) string {
	if len(name) <= MaxNameLen {
		return name
	}
	n := MaxNameLen
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}

// ValidatePlacement checks an annotation-changed event against a document
// of pageCount pages.
func ValidatePlacement(p Placement, pageCount int) error {
	if p.Page < 1 || p.Page > pageCount {
		return fmt.Errorf("%w: annotation %q on page %d outside [1, %d]", ErrInvalid, p.ID, p.Page, pageCount)
	}
	if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
		return fmt.Errorf("%w: annotation %q has non-finite y", ErrInvalid, p.ID)
	}
	return nil
}
