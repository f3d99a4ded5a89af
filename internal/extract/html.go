package extract

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skippedElements hold no visible text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Noscript: true,
	atom.Template: true,
}

// blockElements start a new line in the extracted text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Blockquote: true, atom.Pre: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Dd: true, atom.Dt: true,
	atom.Header: true, atom.Footer: true, atom.Title: true,
}

// extractHTML returns the visible text of an HTML document, one line per block element.
func extractHTML(content []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	var b strings.Builder
	walkHTML(doc, &b)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}

func walkHTML(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.Map(flattenSpace, n.Data))
		return
	case html.ElementNode:
		if skippedElements[n.DataAtom] {
			return
		}
		if blockElements[n.DataAtom] {
			b.WriteByte('\n')
			defer b.WriteByte('\n')
		}
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, b)
	}
}

// flattenSpace keeps line structure to block elements only.
func flattenSpace(r rune) rune {
	switch r {
	case '\n', '\r', '\t', '\f':
		return ' '
	}
	return r
}
