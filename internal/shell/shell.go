// Package shell is the interactive front end of bookmarkctl: it loads one
// document and answers outline, index and resolution queries against it.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dgallion1/bookmarkd/internal/outline"
	"github.com/dgallion1/bookmarkd/internal/report"
	"github.com/dgallion1/bookmarkd/internal/session"
)

var errQuit = errors.New("quit")

type Shell struct {
	doc *session.Document
	out io.Writer
	rl  *readline.Instance
}

type Config struct {
	HistoryFile string
}

// New returns a shell that writes to out. Call Run for an interactive
// session or RunScript to read commands from a stream.
func New(doc *session.Document, out io.Writer) *Shell {
	return &Shell{doc: doc, out: out}
}

// Run reads commands from the terminal until quit or EOF.
func (s *Shell) Run(ctx context.Context, cfg Config) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mbookmarks>\033[0m ",
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete:    completer(),
		Stdout:          s.out,
	})
	if err != nil {
		return err
	}
	s.rl = rl
	defer s.rl.Close()

	fmt.Fprintf(s.out, "%s: %d pages, %d bookmarks, %d annotations\n",
		s.doc.Outline.Title, s.doc.Outline.PageCount, s.doc.Outline.Count(), len(s.doc.Annotations))
	fmt.Fprintln(s.out, "Type help for commands.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := s.Exec(line); err != nil {
			if err == errQuit {
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// RunScript executes one command per line from r. It stops at the first
// failing command.
func (s *Shell) RunScript(r io.Reader) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		if err := s.Exec(sc.Text()); err != nil {
			if err == errQuit {
				return nil
			}
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}

// Exec runs a single command line.
func (s *Shell) Exec(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 || strings.HasPrefix(parts[0], "#") {
		return nil
	}

	switch cmd, args := strings.ToLower(parts[0]), parts[1:]; cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "h", "?":
		s.printHelp()
	case "outline":
		s.printOutline()
	case "index":
		s.printIndex()
	case "page":
		return s.printPage(args)
	case "resolve", "r":
		return s.resolve(args)
	case "annotations":
		s.printAnnotations()
	case "report":
		return report.Write(s.out, report.Build(s.doc), report.FormatMarkdown)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  outline          print the bookmark tree")
	fmt.Fprintln(s.out, "  index            print every page's bookmarks in position order")
	fmt.Fprintln(s.out, "  page N           print page N's bookmarks")
	fmt.Fprintln(s.out, "  resolve P Y      find the parent bookmark of a position")
	fmt.Fprintln(s.out, "  annotations      list the document's annotations with their parents")
	fmt.Fprintln(s.out, "  report           print the annotated outline as markdown")
	fmt.Fprintln(s.out, "  quit             leave")
}

func (s *Shell) printOutline() {
	if s.doc.Outline.Count() == 0 {
		fmt.Fprintln(s.out, "(no bookmarks)")
		return
	}
	outline.Walk(s.doc.Outline.Bookmarks, func(b *outline.Bookmark, depth int) {
		fmt.Fprintf(s.out, "%s%s  [p. %d, y %g]\n", strings.Repeat("  ", depth), b.Name, b.Page, b.Y)
	})
}

func (s *Shell) printIndex() {
	ix := s.doc.Index()
	for p := 1; p <= ix.PageCount(); p++ {
		s.writePage(p, ix.Page(p))
	}
	st := ix.Stats()
	fmt.Fprintf(s.out, "%d indexed, %d overwritten, %d skipped\n", st.Indexed, st.Overwritten, st.Skipped)
}

func (s *Shell) printPage(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: page N")
	}
	p, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("page must be an integer: %q", args[0])
	}
	entries := s.doc.Index().Page(p)
	if entries == nil {
		return fmt.Errorf("page %d outside [1, %d]", p, s.doc.Index().PageCount())
	}
	s.writePage(p, entries)
	return nil
}

func (s *Shell) writePage(p int, entries []outline.Entry) {
	if len(entries) == 0 {
		fmt.Fprintf(s.out, "page %d: -\n", p)
		return
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = fmt.Sprintf("%g %s", e.Y, e.Bookmark.Name)
	}
	fmt.Fprintf(s.out, "page %d: %s\n", p, strings.Join(names, " | "))
}

func (s *Shell) resolve(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: resolve PAGE Y")
	}
	p, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("page must be an integer: %q", args[0])
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("y must be a number: %q", args[1])
	}
	res := s.doc.AnnotationsChanged([]outline.Placement{{Page: p, Y: y}})[0]
	fmt.Fprintf(s.out, "page %d y %g -> %s\n", p, y, parentName(res))
	return nil
}

func (s *Shell) printAnnotations() {
	if len(s.doc.Annotations) == 0 {
		fmt.Fprintln(s.out, "(no annotations)")
		return
	}
	for i, res := range s.doc.ExistingAnnotations() {
		a := s.doc.Annotations[i]
		kind := a.Subtype
		if kind == "" {
			kind = "Note"
		}
		fmt.Fprintf(s.out, "%s %s p. %d y %g -> %s\n", a.ID, kind, a.Page, a.Y, parentName(res))
	}
}

func parentName(res session.Resolution) string {
	if !res.Found {
		return "(no parent)"
	}
	return fmt.Sprintf("%s [p. %d, y %g]", res.Parent.Name, res.Parent.Page, res.Parent.Y)
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("outline"),
		readline.PcItem("index"),
		readline.PcItem("page"),
		readline.PcItem("resolve"),
		readline.PcItem("annotations"),
		readline.PcItem("report"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
