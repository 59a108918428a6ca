package outline

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// sampleOutline is the three-bookmark document used throughout the resolver tests:
// A and B on page 1, C on page 2.
func sampleOutline() *Outline {
	return &Outline{
		PageCount: 3,
		Bookmarks: []*Bookmark{
			{Name: "A", Page: 1, Y: 10},
			{Name: "B", Page: 1, Y: 50},
			{Name: "C", Page: 2, Y: 20},
		},
	}
}

func resolveName(t *testing.T, ix *PageIndex, page int, y float64) string {
	t.Helper()
	b, ok := ix.Resolve(page, y)
	if !ok {
		return ""
	}
	return b.Name
}

func TestResolve_SampleDocument(t *testing.T) {
	ix := BuildIndex(sampleOutline())

	tests := []struct {
		page int
		y    float64
		want string
	}{
		{1, 30, "A"},
		{1, 60, "B"},
		{2, 5, "B"},
		{2, 25, "C"},
		{3, 0, "C"},
		{3, 1000, "C"},
		{1, 10, "A"},
		{1, 50, "B"},
		{2, 20, "C"},
	}
	for _, tt := range tests {
		if got := resolveName(t, ix, tt.page, tt.y); got != tt.want {
			t.Errorf("Resolve(%d, %v): expected %q, got %q", tt.page, tt.y, tt.want, got)
		}
	}
}

func TestResolve_AboveFirstBookmarkOnFirstPage(t *testing.T) {
	ix := BuildIndex(sampleOutline())
	if b, ok := ix.Resolve(1, 5); ok {
		t.Errorf("expected no parent above the first bookmark, got %q", b.Name)
	}
}

func TestResolve_WalksBackOverEmptyPages(t *testing.T) {
	ix := BuildIndex(&Outline{
		PageCount: 6,
		Bookmarks: []*Bookmark{
			{Name: "Intro", Page: 1, Y: 0},
			{Name: "Intro end", Page: 1, Y: 700},
			{Name: "Later", Page: 5, Y: 300},
		},
	})

	if got := resolveName(t, ix, 4, 100); got != "Intro end" {
		t.Errorf("expected %q on empty page 4, got %q", "Intro end", got)
	}
	// Above the first bookmark of page 5 skips the empty pages 4..2 as well.
	if got := resolveName(t, ix, 5, 100); got != "Intro end" {
		t.Errorf("expected %q above first bookmark of page 5, got %q", "Intro end", got)
	}
	if got := resolveName(t, ix, 6, 0); got != "Later" {
		t.Errorf("expected %q on page 6, got %q", "Later", got)
	}
}

func TestResolve_NoBookmarks(t *testing.T) {
	ix := BuildIndex(&Outline{PageCount: 4})

	for p := 1; p <= 4; p++ {
		if entries := ix.Page(p); entries == nil || len(entries) != 0 {
			t.Errorf("page %d: expected empty non-nil entry, got %v", p, entries)
		}
		if b, ok := ix.Resolve(p, 100); ok {
			t.Errorf("page %d: expected no parent, got %q", p, b.Name)
		}
	}
}

func TestResolve_OutOfRangeInputs(t *testing.T) {
	ix := BuildIndex(sampleOutline())
	for _, page := range []int{0, -1, 4, 100} {
		if _, ok := ix.Resolve(page, 10); ok {
			t.Errorf("expected no parent for page %d", page)
		}
	}
	if _, ok := ix.Resolve(2, math.NaN()); ok {
		t.Error("expected no parent for NaN y")
	}
	if got := resolveName(t, ix, 2, math.Inf(1)); got != "C" {
		t.Errorf("expected %q for +Inf y, got %q", "C", got)
	}
}

func TestResolve_IsPure(t *testing.T) {
	ix := BuildIndex(sampleOutline())
	first, _ := ix.Resolve(2, 5)
	for range 10 {
		again, _ := ix.Resolve(2, 5)
		if again != first {
			t.Fatalf("expected the same bookmark on repeated calls, got %p and %p", first, again)
		}
	}
}

func TestBuildIndex_PreOrderLastWriteWins(t *testing.T) {
	// Parent and child share (page 2, y 40); the child is visited later and wins.
	// The sibling after the parent collides with both and wins over them.
	child := &Bookmark{Name: "child", Page: 2, Y: 40}
	parent := &Bookmark{Name: "parent", Page: 2, Y: 40, Children: []*Bookmark{child}}
	sibling := &Bookmark{Name: "sibling", Page: 2, Y: 40}

	ix := BuildIndex(&Outline{PageCount: 2, Bookmarks: []*Bookmark{parent}})
	if got := resolveName(t, ix, 2, 40); got != "child" {
		t.Errorf("expected later-visited child to win, got %q", got)
	}
	if ix.Stats().Overwritten != 1 {
		t.Errorf("expected 1 overwrite, got %d", ix.Stats().Overwritten)
	}

	ix = BuildIndex(&Outline{PageCount: 2, Bookmarks: []*Bookmark{parent, sibling}})
	if got := resolveName(t, ix, 2, 40); got != "sibling" {
		t.Errorf("expected later-visited sibling to win, got %q", got)
	}
	if n := len(ix.Page(2)); n != 1 {
		t.Errorf("expected 1 entry on page 2, got %d", n)
	}
}

func TestBuildIndex_SkipsUnindexableBookmarks(t *testing.T) {
	ix := BuildIndex(&Outline{
		PageCount: 2,
		Bookmarks: []*Bookmark{
			{Name: "ok", Page: 1, Y: 0},
			{Name: "zero", Page: 0, Y: 0},
			{Name: "past end", Page: 3, Y: 0},
			{Name: "nan", Page: 2, Y: math.NaN()},
		},
	})
	st := ix.Stats()
	if st.Indexed != 1 || st.Skipped != 3 {
		t.Errorf("expected 1 indexed and 3 skipped, got %+v", st)
	}
	if ix.PageCount() != 2 {
		t.Errorf("expected 2 pages, got %d", ix.PageCount())
	}
}

func TestBuildIndex_OrdersByY(t *testing.T) {
	ix := BuildIndex(&Outline{
		PageCount: 1,
		Bookmarks: []*Bookmark{
			{Name: "bottom", Page: 1, Y: 700, Children: []*Bookmark{
				{Name: "top", Page: 1, Y: 10},
			}},
			{Name: "middle", Page: 1, Y: 300},
		},
	})

	var got []string
	for _, e := range ix.Page(1) {
		got = append(got, e.Bookmark.Name)
	}
	want := []string{"top", "middle", "bottom"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("page 1 order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildIndex_Idempotent(t *testing.T) {
	o := sampleOutline()
	o.Bookmarks[0].Children = []*Bookmark{{Name: "A.1", Page: 1, Y: 20}}

	a, b := BuildIndex(o), BuildIndex(o)
	for p := 1; p <= o.PageCount; p++ {
		if diff := cmp.Diff(a.Page(p), b.Page(p)); diff != "" {
			t.Errorf("page %d differs between builds (-first +second):\n%s", p, diff)
		}
	}
	if a.Stats() != b.Stats() {
		t.Errorf("expected identical stats, got %+v and %+v", a.Stats(), b.Stats())
	}
}

func TestBuildIndex_NilOutline(t *testing.T) {
	ix := BuildIndex(nil)
	if ix.PageCount() != 0 {
		t.Errorf("expected 0 pages, got %d", ix.PageCount())
	}
	if _, ok := ix.Resolve(1, 0); ok {
		t.Error("expected no parent on empty index")
	}
}

func TestOutline_Count(t *testing.T) {
	o := sampleOutline()
	o.Bookmarks[2].Children = []*Bookmark{{Name: "C.1"}, {Name: "C.2"}}
	if o.Count() != 5 {
		t.Errorf("expected 5 bookmarks, got %d", o.Count())
	}
	var nilOutline *Outline
	if nilOutline.Count() != 0 {
		t.Error("expected 0 for nil outline")
	}
}
