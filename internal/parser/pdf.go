package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/dgallion1/bookmarkd/internal/outline"
	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxOutlineItems = 65536

	maxOutlineDepth = 64
	maxTreeDepth    = 32
	maxRichText     = 64 << 10

	// US Letter height, used when a page has no usable MediaBox.
	defaultPageTop = 792
)

var (
	ErrNoPages         = errors.New("pdf has no pages")
	ErrOutlineTooLarge = errors.New("outline too large")
	ErrMalformed       = errors.New("malformed pdf")
)

// Annotation subtypes that are not user markup.
var skippedSubtypes = map[string]bool{
	"Link":   true,
	"Popup":  true,
	"Widget": true,
}

// PDFParser reads the outline and the existing markup annotations of a PDF.
// Coordinates are converted from PDF user space (origin bottom-left) into
// viewer space: Y is the distance below the top edge of the MediaBox.
type PDFParser struct {
	MaxOutlineItems int
}

func (p *PDFParser) Parse(ctx context.Context, data []byte, filename string) (*Result, error) {
	limit := p.MaxOutlineItems
	if limit <= 0 {
		limit = DefaultMaxOutlineItems
	}

	// The outline and the annotations are read through separate readers;
	// bytes.Reader is safe for concurrent ReadAt.
	var head *pdfDoc
	if err := safely(func() (err error) {
		head, err = openPDF(data)
		return err
	}); err != nil {
		return nil, err
	}
	if len(head.pages) == 0 {
		return nil, ErrNoPages
	}

	res := &Result{
		Outline: &outline.Outline{
			Title:     head.title(),
			PageCount: len(head.pages),
		},
	}
	if res.Outline.Title == "" {
		res.Outline.Title = titleFromFilename(filename)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return safely(func() error {
			w := &outlineWalker{doc: head, limit: limit}
			bms, err := w.read(gctx)
			if err != nil {
				return fmt.Errorf("read outline: %w", err)
			}
			res.Outline.Bookmarks = bms
			res.Unresolved = w.unresolved
			return nil
		})
	})
	g.Go(func() error {
		return safely(func() error {
			doc, err := openPDF(data)
			if err != nil {
				return err
			}
			annots, err := doc.annotations(gctx)
			if err != nil {
				return fmt.Errorf("read annotations: %w", err)
			}
			res.Annotations = annots
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// safely converts a panic inside the PDF library into ErrMalformed.
func safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrMalformed, p)
		}
	}()
	return fn()
}

// pdfDoc caches the page dictionaries and their top edges.
type pdfDoc struct {
	r     *pdflib.Reader
	pages []pdflib.Value
	tops  []float64
}

func openPDF(data []byte) (*pdfDoc, error) {
	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	d := &pdfDoc{r: r}
	n := r.NumPage()
	for i := 1; i <= n; i++ {
		v := r.Page(i).V
		d.pages = append(d.pages, v)
		d.tops = append(d.tops, pageTop(v))
	}
	return d, nil
}

func (d *pdfDoc) title() string {
	return strings.TrimSpace(d.r.Trailer().Key("Info").Key("Title").Text())
}

func (d *pdfDoc) catalog() pdflib.Value {
	return d.r.Trailer().Key("Root")
}

// pageNumber maps a destination's page operand to a 1-indexed page number,
// or 0 when it names no page of this document.
func (d *pdfDoc) pageNumber(v pdflib.Value) int {
	if v.Kind() == pdflib.Integer {
		// Some producers write a 0-based page index instead of a reference.
		if n := int(v.Int64()) + 1; n >= 1 && n <= len(d.pages) {
			return n
		}
		return 0
	}
	if v.Kind() != pdflib.Dict {
		return 0
	}
	// Value does not expose its object number. Values resolved from the same
	// indirect object carry the same reference, so deep equality identifies it.
	for i, pv := range d.pages {
		if reflect.DeepEqual(pv, v) {
			return i + 1
		}
	}
	return 0
}

// destination resolves an explicit or named destination to a page and a
// viewer-space Y. Destinations without a top coordinate point at Y = 0.
func (d *pdfDoc) destination(v pdflib.Value) (int, float64, bool) {
	switch v.Kind() {
	case pdflib.Name:
		v = d.named(v.Name())
	case pdflib.String:
		v = d.named(v.RawString())
	}
	if v.Kind() == pdflib.Dict {
		v = v.Key("D")
	}
	if v.Kind() != pdflib.Array || v.Len() == 0 {
		return 0, 0, false
	}
	page := d.pageNumber(v.Index(0))
	if page == 0 {
		return 0, 0, false
	}
	top, ok := destTop(v)
	if !ok {
		return page, 0, true
	}
	return page, d.tops[page-1] - top, true
}

func (d *pdfDoc) named(name string) pdflib.Value {
	root := d.catalog()
	if v := root.Key("Dests").Key(name); !v.IsNull() {
		return v
	}
	return lookupNameTree(root.Key("Names").Key("Dests"), name, 0)
}

// destTop returns the top operand of a destination array, if its view
// type has one.
func destTop(dest pdflib.Value) (float64, bool) {
	var v pdflib.Value
	switch dest.Index(1).Name() {
	case "XYZ":
		v = dest.Index(3)
	case "FitH", "FitBH":
		v = dest.Index(2)
	case "FitR":
		v = dest.Index(5)
	default:
		return 0, false
	}
	if k := v.Kind(); k != pdflib.Integer && k != pdflib.Real {
		return 0, false
	}
	return v.Float64(), true
}

func lookupNameTree(node pdflib.Value, name string, depth int) pdflib.Value {
	if node.Kind() != pdflib.Dict || depth > maxTreeDepth {
		return pdflib.Value{}
	}
	if names := node.Key("Names"); names.Kind() == pdflib.Array {
		for i := 0; i+1 < names.Len(); i += 2 {
			if names.Index(i).RawString() == name {
				return names.Index(i + 1)
			}
		}
	}
	kids := node.Key("Kids")
	for i := 0; i < kids.Len(); i++ {
		kid := kids.Index(i)
		if lim := kid.Key("Limits"); lim.Len() == 2 {
			if name < lim.Index(0).RawString() || name > lim.Index(1).RawString() {
				continue
			}
		}
		if v := lookupNameTree(kid, name, depth+1); !v.IsNull() {
			return v
		}
	}
	return pdflib.Value{}
}

// pageTop returns the top edge of the page's MediaBox, which may be
// inherited from an ancestor page tree node.
func pageTop(page pdflib.Value) float64 {
	v := page
	for i := 0; i < maxTreeDepth && v.Kind() == pdflib.Dict; i++ {
		if box := v.Key("MediaBox"); box.Kind() == pdflib.Array && box.Len() == 4 {
			return max(box.Index(1).Float64(), box.Index(3).Float64())
		}
		v = v.Key("Parent")
	}
	return defaultPageTop
}

// outlineWalker reads the /First /Next chains of the outline tree. The PDF
// library hides object numbers, so loops are caught by the item limit.
type outlineWalker struct {
	doc        *pdfDoc
	limit      int
	seen       int
	unresolved int
}

func (w *outlineWalker) read(ctx context.Context) ([]*outline.Bookmark, error) {
	root := w.doc.catalog().Key("Outlines")
	if root.Kind() != pdflib.Dict {
		return nil, nil
	}
	return w.children(ctx, root.Key("First"), 0)
}

func (w *outlineWalker) children(ctx context.Context, item pdflib.Value, depth int) ([]*outline.Bookmark, error) {
	if depth >= maxOutlineDepth {
		return nil, fmt.Errorf("outline nested deeper than %d", maxOutlineDepth)
	}
	var out []*outline.Bookmark
	for ; item.Kind() == pdflib.Dict; item = item.Key("Next") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w.seen++
		if w.seen > w.limit {
			return nil, fmt.Errorf("%w: more than %d items", ErrOutlineTooLarge, w.limit)
		}

		kids, err := w.children(ctx, item.Key("First"), depth+1)
		if err != nil {
			return nil, err
		}
		b := &outline.Bookmark{
			Name:     strings.TrimSpace(item.Key("Title").Text()),
			Children: kids,
		}
		page, y, ok := w.doc.destination(itemDest(item))
		switch {
		case ok:
			b.Page, b.Y = page, y
		case len(kids) > 0:
			// Container without a target: place it at its first child.
			b.Page, b.Y = kids[0].Page, kids[0].Y
		default:
			w.unresolved++
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func itemDest(item pdflib.Value) pdflib.Value {
	if d := item.Key("Dest"); !d.IsNull() {
		return d
	}
	if a := item.Key("A"); a.Key("S").Name() == "GoTo" {
		return a.Key("D")
	}
	return pdflib.Value{}
}

// annotations returns the markup annotations of every page as placements.
func (d *pdfDoc) annotations(ctx context.Context) ([]outline.Placement, error) {
	var out []outline.Placement
	for i, page := range d.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		annots := page.Key("Annots")
		for j := 0; j < annots.Len(); j++ {
			a := annots.Index(j)
			subtype := a.Key("Subtype").Name()
			if a.Kind() != pdflib.Dict || skippedSubtypes[subtype] {
				continue
			}
			rect := a.Key("Rect")
			if rect.Len() != 4 {
				continue
			}
			top := max(rect.Index(1).Float64(), rect.Index(3).Float64())

			id := a.Key("NM").Text()
			if id == "" {
				id = fmt.Sprintf("p%d-a%d", i+1, j)
			}
			out = append(out, outline.Placement{
				ID:       id,
				Page:     i + 1,
				Y:        d.tops[i] - top,
				Subtype:  subtype,
				Author:   strings.TrimSpace(a.Key("T").Text()),
				Contents: annotationText(a),
			})
		}
	}
	return out, nil
}

// annotationText prefers /Contents and falls back to the rich text in /RC.
func annotationText(a pdflib.Value) string {
	if s := strings.TrimSpace(a.Key("Contents").Text()); s != "" {
		return s
	}
	rc := a.Key("RC")
	switch rc.Kind() {
	case pdflib.String:
		return PlainText(rc.Text())
	case pdflib.Stream:
		rd := rc.Reader()
		defer rd.Close()
		body, err := io.ReadAll(io.LimitReader(rd, maxRichText))
		if err != nil {
			return ""
		}
		return PlainText(string(body))
	}
	return ""
}
