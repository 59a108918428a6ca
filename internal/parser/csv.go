package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dgallion1/bookmarkd/internal/outline"
)

// CSVParser reads a bookmark panel export: one row per bookmark with the
// columns name, page, y, depth, in outline pre-order. Depth 0 is a root.
// A header row is detected and skipped.
type CSVParser struct {
	// PageCount is used when non-zero; otherwise the highest page referenced.
	PageCount int
	// MaxOutlineItems bounds the number of rows; zero means DefaultMaxOutlineItems.
	MaxOutlineItems int
}

func (p *CSVParser) Parse(ctx context.Context, data []byte, filename string) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	limit := p.MaxOutlineItems
	if limit <= 0 {
		limit = DefaultMaxOutlineItems
	}

	o := &outline.Outline{Title: titleFromFilename(filename)}

	// stack[d] is the last bookmark seen at depth d.
	var stack []*outline.Bookmark
	maxPage := 0
	items := 0

	for i, row := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("csv line %d: expected name,page,y[,depth], got %d fields", i+1, len(row))
		}
		page, perr := strconv.Atoi(strings.TrimSpace(row[1]))
		if perr != nil && i == 0 {
			continue // header
		}
		if perr != nil {
			return nil, fmt.Errorf("csv line %d: page: %w", i+1, perr)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: y: %w", i+1, err)
		}
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, fmt.Errorf("csv line %d: y must be finite, got %q", i+1, row[2])
		}
		depth := 0
		if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
			depth, err = strconv.Atoi(strings.TrimSpace(row[3]))
			if err != nil || depth < 0 {
				return nil, fmt.Errorf("csv line %d: invalid depth %q", i+1, row[3])
			}
		}
		if depth >= outline.MaxDepth {
			return nil, fmt.Errorf("csv line %d: depth %d exceeds %d", i+1, depth, outline.MaxDepth-1)
		}
		if depth > len(stack) {
			return nil, fmt.Errorf("csv line %d: depth %d skips a level (previous depth %d)", i+1, depth, len(stack)-1)
		}

		if items++; items > limit {
			return nil, fmt.Errorf("csv line %d: more than %d bookmarks", i+1, limit)
		}

		b := &outline.Bookmark{Name: strings.TrimSpace(row[0]), Page: page, Y: y}
		if depth == 0 {
			o.Bookmarks = append(o.Bookmarks, b)
		} else {
			parent := stack[depth-1]
			parent.Children = append(parent.Children, b)
		}
		stack = append(stack[:depth], b)
		maxPage = max(maxPage, page)
	}

	o.PageCount = p.PageCount
	if o.PageCount == 0 {
		o.PageCount = maxPage
	}
	return &Result{Outline: o}, nil
}
