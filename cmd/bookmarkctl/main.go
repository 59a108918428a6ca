package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgallion1/bookmarkd/internal/client"
	"github.com/dgallion1/bookmarkd/internal/parser"
	"github.com/dgallion1/bookmarkd/internal/pipeline"
	"github.com/dgallion1/bookmarkd/internal/session"
	"github.com/dgallion1/bookmarkd/internal/shell"
	"github.com/dgallion1/bookmarkd/internal/store"
	"golang.org/x/term"
)

func main() {
	pages := flag.Int("pages", 0, "Page count for CSV outlines (default: highest bookmarked page)")
	maxItems := flag.Int("max-items", parser.DefaultMaxOutlineItems, "Maximum outline items to read from a PDF")
	history := flag.String("history", "", "Readline history file (default: ~/.bookmarkctl_history)")
	verbose := flag.Bool("v", false, "Log every resolution to stderr")
	push := flag.String("push", "", "Load the document into the bookmarkd server at this URL instead of opening a shell (key from BOOKMARKD_API_KEY)")
	docID := flag.String("doc", "", "Document ID for -push (default: first 16 hex chars of the content SHA-256)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] FILE.pdf|FILE.csv\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	doc, err := open(ctx, flag.Arg(0), *pages, *maxItems, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *push != "" {
		id := *docID
		if id == "" {
			id = doc.ID
		}
		if err := pushDocument(ctx, *push, id, doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	sh := shell.New(doc, os.Stdout)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		if err := sh.RunScript(os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	histFile := *history
	if histFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			histFile = filepath.Join(home, ".bookmarkctl_history")
		}
	}
	if err := sh.Run(ctx, shell.Config{HistoryFile: histFile}); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// pushDocument loads the parsed outline into a remote server.
func pushDocument(ctx context.Context, baseURL, docID string, doc *session.Document) error {
	c := client.NewClient(baseURL, os.Getenv("BOOKMARKD_API_KEY"))
	defer c.Close()

	summary, err := c.PutOutline(ctx, docID, client.OutlineRequest{
		Outline:     doc.Outline,
		Annotations: doc.Annotations,
	})
	if err != nil {
		return err
	}
	fmt.Printf("loaded %s: %d pages, %d bookmarks (%d indexed), %d annotations\n",
		summary.ID, summary.PageCount, summary.Bookmarks, summary.Index.Indexed, summary.Annotations)
	return nil
}

// open parses the file and loads it as a document.
func open(ctx context.Context, path string, pages, maxItems int, log *slog.Logger) (*session.Document, error) {
	p, err := parser.ForFile(path, parser.Options{PageCount: pages, MaxOutlineItems: maxItems})
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := p.Parse(ctx, data, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if res.Unresolved > 0 {
		log.Warn("outline items without a resolvable destination", "count", res.Unresolved)
	}

	now := time.Now()
	hash := pipeline.ContentHashHex(data)
	rec := &store.Record{
		ID:          hash[:16],
		Filename:    filepath.Base(path),
		ContentHash: hash,
		Outline:     res.Outline,
		Annotations: res.Annotations,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return session.Load(rec, log, nil), nil
}
