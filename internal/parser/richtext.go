package parser

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText reduces annotation rich text (the XHTML body of /RC) to plain
// text. Block elements start a new line; runs of whitespace collapse.
func PlainText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return strings.TrimSpace(markup)
	}

	var lines []string
	var current strings.Builder

	flushLine := func() {
		if t := strings.Join(strings.Fields(current.String()), " "); t != "" {
			lines = append(lines, t)
		}
		current.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			current.WriteString(n.Data)
			current.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head":
				return
			case "br":
				flushLine()
				return
			}
		}

		block := n.Type == html.ElementNode && isBlock(n.Data)
		if block {
			flushLine()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flushLine()
		}
	}
	walk(doc)
	flushLine()

	return strings.Join(lines, "\n")
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
		return true
	}
	return false
}
