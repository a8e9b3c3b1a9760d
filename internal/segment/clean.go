package segment

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockAtoms insert a line break during text extraction.
var blockAtoms = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Hr:         true,
}

// footnoteClasses are class tokens publishers commonly put on footnote
// bodies and reference markers.
var footnoteClasses = map[string]bool{
	"footnote":  true,
	"footnotes": true,
	"endnote":   true,
	"endnotes":  true,
	"rearnote":  true,
	"noteref":   true,
}

// cleanText extracts the narrative text from a content document, dropping
// footnote bodies and inline citation markers. Block elements produce line
// breaks and runs of blank lines collapse to one.
func cleanText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
			if isFootnoteNode(n) || isCitationMarker(n) {
				return
			}
			if blockAtoms[n.DataAtom] {
				sb.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockAtoms[n.DataAtom] {
			sb.WriteByte('\n')
		}
	}
	walk(doc)

	return collapseBlankLines(sb.String()), nil
}

// isFootnoteNode reports whether the element is a footnote or endnote body:
// epub:type footnote/rearnote/endnote (typically on <aside>), or a footnote
// class token.
func isFootnoteNode(n *html.Node) bool {
	epubType := nodeAttr(n, "epub:type")
	for _, t := range strings.Fields(epubType) {
		switch t {
		case "footnote", "footnotes", "rearnote", "rearnotes", "endnote", "endnotes":
			return true
		}
	}
	for _, c := range strings.Fields(nodeAttr(n, "class")) {
		if footnoteClasses[strings.ToLower(c)] {
			return true
		}
	}
	return false
}

// isCitationMarker reports whether the element is an inline reference marker:
// a noteref link, or a <sup> wrapping a link to a footnote anchor.
func isCitationMarker(n *html.Node) bool {
	if n.DataAtom == atom.A {
		if strings.Contains(nodeAttr(n, "epub:type"), "noteref") {
			return true
		}
	}
	if n.DataAtom == atom.Sup {
		if a := findChildElement(n, atom.A); a != nil {
			href := strings.ToLower(nodeAttr(a, "href"))
			if strings.Contains(href, "#fn") || strings.Contains(href, "#note") ||
				strings.Contains(href, "footnote") {
				return true
			}
		}
	}
	return false
}

// collapseBlankLines trims each line and collapses consecutive blank lines.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
