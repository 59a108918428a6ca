package parser

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/bookmarkd/internal/outline"
	"github.com/google/go-cmp/cmp"
)

func parseCSV(t *testing.T, p *CSVParser, input string) *Result {
	t.Helper()
	res, err := p.Parse(context.Background(), []byte(input), "panel.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res
}

func TestCSVParser_NestedOutline(t *testing.T) {
	input := "name,page,y,depth\n" +
		"Intro,1,10,0\n" +
		"Background,1,300,1\n" +
		"Prior work,2,40,2\n" +
		"Method,3,0,0\n" +
		"\"Setup, part 1\",3,200,1\n"

	res := parseCSV(t, &CSVParser{}, input)
	want := &outline.Outline{
		Title:     "panel",
		PageCount: 3,
		Bookmarks: []*outline.Bookmark{
			{Name: "Intro", Page: 1, Y: 10, Children: []*outline.Bookmark{
				{Name: "Background", Page: 1, Y: 300, Children: []*outline.Bookmark{
					{Name: "Prior work", Page: 2, Y: 40},
				}},
			}},
			{Name: "Method", Page: 3, Y: 0, Children: []*outline.Bookmark{
				{Name: "Setup, part 1", Page: 3, Y: 200},
			}},
		},
	}
	if diff := cmp.Diff(want, res.Outline); diff != "" {
		t.Errorf("outline mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVParser_NoHeaderNoDepth(t *testing.T) {
	res := parseCSV(t, &CSVParser{PageCount: 10}, "A,1,10\nB,1,50\nC,2,20\n")
	if res.Outline.PageCount != 10 {
		t.Errorf("expected explicit page count 10, got %d", res.Outline.PageCount)
	}
	if len(res.Outline.Bookmarks) != 3 {
		t.Fatalf("expected 3 root bookmarks, got %d", len(res.Outline.Bookmarks))
	}
	ix := outline.BuildIndex(res.Outline)
	if b, ok := ix.Resolve(2, 5); !ok || b.Name != "B" {
		t.Errorf("expected fallback to %q, got %v", "B", b)
	}
}

func TestCSVParser_DepthSkipsLevel(t *testing.T) {
	p := &CSVParser{}
	if _, err := p.Parse(context.Background(), []byte("A,1,0,0\nB,1,5,2\n"), "bad.csv"); err == nil {
		t.Error("expected error when depth jumps from 0 to 2")
	}
}

func TestCSVParser_BadNumbers(t *testing.T) {
	p := &CSVParser{}
	for _, input := range []string{
		"A,1,0\nB,two,5\n",
		"A,1,zero\n",
		"A,1,0,-1\n",
		"A,1\n",
		"A,1,NaN\n",
		"A,1,Inf\n",
		"A,1,-Inf\n",
	} {
		if _, err := p.Parse(context.Background(), []byte(input), "bad.csv"); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestCSVParser_ItemLimit(t *testing.T) {
	p := &CSVParser{MaxOutlineItems: 2}
	if _, err := p.Parse(context.Background(), []byte("A,1,0\nB,1,5\nC,1,9\n"), "big.csv"); err == nil {
		t.Error("expected error past the item limit")
	}
	parseCSV(t, p, "A,1,0\nB,1,5\n")
}

func TestCSVParser_DepthLimit(t *testing.T) {
	var b strings.Builder
	for d := 0; d <= outline.MaxDepth; d++ {
		fmt.Fprintf(&b, "n%d,1,%d,%d\n", d, d, d)
	}
	p := &CSVParser{}
	if _, err := p.Parse(context.Background(), []byte(b.String()), "deep.csv"); err == nil {
		t.Errorf("expected error for depth %d", outline.MaxDepth)
	}
}

func TestCSVParser_Empty(t *testing.T) {
	res := parseCSV(t, &CSVParser{}, "")
	if res.Outline.PageCount != 0 || len(res.Outline.Bookmarks) != 0 {
		t.Errorf("expected empty outline, got %+v", res.Outline)
	}
}
