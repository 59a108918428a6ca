package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/yuin/goldmark"
)

// Format is an output format for Write.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
)

// ParseFormat accepts md, markdown, html or docx. Empty means markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "docx":
		return FormatDOCX, nil
	}
	return "", fmt.Errorf("unsupported report format %q", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "text/markdown; charset=utf-8"
}

// Write renders the report in the given format.
func Write(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(r))
		return err
	case FormatHTML:
		return writeHTML(w, r)
	case FormatDOCX:
		return writeDOCX(w, r)
	}
	return fmt.Errorf("unsupported report format %q", f)
}

// Markdown renders the report as a nested list.
func Markdown(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(titleOf(r)))
	fmt.Fprintf(&b, "%d pages, %d annotations filed, %d without a bookmark.\n\n", r.PageCount, r.Annotated(), len(r.Unparented))

	if len(r.Roots) > 0 {
		b.WriteString("## Bookmarks\n\n")
		var walk func(ns []*Node, depth int)
		walk = func(ns []*Node, depth int) {
			indent := strings.Repeat("  ", depth)
			for _, n := range ns {
				fmt.Fprintf(&b, "%s- **%s** (p. %d)\n", indent, escapeMarkdown(n.Name), n.Page)
				for _, it := range n.Annotations {
					fmt.Fprintf(&b, "%s  - %s\n", indent, itemLine(it))
				}
				walk(n.Children, depth+1)
			}
		}
		walk(r.Roots, 0)
		b.WriteString("\n")
	}

	if len(r.Unparented) > 0 {
		b.WriteString("## Without a bookmark\n\n")
		for _, it := range r.Unparented {
			fmt.Fprintf(&b, "- %s\n", itemLine(it))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func itemLine(it Item) string {
	var b strings.Builder
	kind := it.Subtype
	if kind == "" {
		kind = "Note"
	}
	fmt.Fprintf(&b, "_%s_ p. %d", escapeMarkdown(kind), it.Page)
	if it.Author != "" {
		fmt.Fprintf(&b, " by %s", escapeMarkdown(it.Author))
	}
	if it.Contents != "" {
		fmt.Fprintf(&b, ": %s", escapeMarkdown(it.Contents))
	}
	return b.String()
}

func writeHTML(w io.Writer, r *Report) error {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(r)), &body); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(titleOf(r)), body.Bytes())
	return err
}

func writeDOCX(w io.Writer, r *Report) error {
	d := docx.New().WithDefaultTheme()
	d.AddParagraph().Style("Title").AddText(oneLine(titleOf(r))).Bold().Size("36")
	d.AddParagraph().AddText(fmt.Sprintf("%d pages, %d annotations filed, %d without a bookmark.",
		r.PageCount, r.Annotated(), len(r.Unparented)))

	var walk func(ns []*Node, depth int)
	walk = func(ns []*Node, depth int) {
		for _, n := range ns {
			level := min(depth+1, 6)
			p := d.AddParagraph().Style("Heading" + strconv.Itoa(level))
			p.AddText(oneLine(n.Name)).Bold()
			p.AddText(fmt.Sprintf(" (p. %d)", n.Page))
			for _, it := range n.Annotations {
				addItem(d, it)
			}
			walk(n.Children, depth+1)
		}
	}
	walk(r.Roots, 0)

	if len(r.Unparented) > 0 {
		d.AddParagraph().Style("Heading1").AddText("Without a bookmark").Bold()
		for _, it := range r.Unparented {
			addItem(d, it)
		}
	}

	if _, err := d.WriteTo(w); err != nil {
		return fmt.Errorf("render docx: %w", err)
	}
	return nil
}

func addItem(d *docx.Docx, it Item) {
	kind := it.Subtype
	if kind == "" {
		kind = "Note"
	}
	p := d.AddParagraph()
	p.AddText(oneLine(kind)).Bold()
	header := fmt.Sprintf(" p. %d", it.Page)
	if it.Author != "" {
		header += " by " + oneLine(it.Author)
	}
	p.AddText(header).Color("808080")
	if c := oneLine(it.Contents); c != "" {
		p.AddText(": " + c)
	}
}

func titleOf(r *Report) string {
	if r.Title != "" {
		return r.Title
	}
	if r.DocID != "" {
		return r.DocID
	}
	return "Untitled"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`,
	`[`, `\[`, `]`, `\]`, `<`, `\<`, `>`, `\>`, `#`, `\#`,
)

// escapeMarkdown also collapses s onto one line so it cannot break the list.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(oneLine(s))
}
