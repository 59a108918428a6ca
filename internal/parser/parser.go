package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/bookmarkd/internal/outline"
)

// Result is everything read from an uploaded document.
type Result struct {
	Outline     *outline.Outline
	Annotations []outline.Placement
	Unresolved  int // outline items dropped because their destination could not be resolved
}

// Parser converts raw document bytes into an outline.
type Parser interface {
	Parse(ctx context.Context, data []byte, filename string) (*Result, error)
}

// Options tune parsing for a single upload.
type Options struct {
	// PageCount overrides the page count for sources that do not carry one.
	PageCount int
	// MaxOutlineItems bounds the outline walk; zero means DefaultMaxOutlineItems.
	MaxOutlineItems int
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf": true,
	".csv": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{MaxOutlineItems: opts.MaxOutlineItems}, nil
	case ".csv":
		return &CSVParser{PageCount: opts.PageCount, MaxOutlineItems: opts.MaxOutlineItems}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}
