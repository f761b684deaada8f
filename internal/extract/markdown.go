// Package extract turns captured response HTML into the fields of a
// ConversationRecord: markdown text with inline citation links preserved,
// the ordered citation list, web-search results from the expandable panel,
// the response language, and the conversation id from the page location.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	negativeMarker = regexp.MustCompile(`^-\s*(\d+)$`)
	multiNewline   = regexp.MustCompile(`\n{3,}`)
	multiSpace     = regexp.MustCompile(`[ \t]+`)
)

// Markdown converts response HTML to markdown. Links become [text](url),
// headings/lists/paragraphs keep their structure, everything else is
// flattened to its text. Citation markers that render as "-6" (an invisible
// dash plus the index) are normalized to "6".
func Markdown(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return strings.TrimSpace(htmlStr)
	}

	var b strings.Builder
	renderNode(&b, doc)

	out := b.String()
	out = multiSpace.ReplaceAllString(out, " ")
	out = multiNewline.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return
		case atom.A:
			renderAnchor(b, n)
			return
		case atom.Br:
			b.WriteString("\n")
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			depth := int(n.Data[1] - '0')
			b.WriteString("\n\n" + strings.Repeat("#", depth) + " ")
			renderChildren(b, n)
			b.WriteString("\n\n")
			return
		case atom.Li:
			b.WriteString("\n- ")
			renderChildren(b, n)
			return
		case atom.Ul, atom.Ol:
			b.WriteString("\n")
			renderChildren(b, n)
			b.WriteString("\n")
			return
		case atom.P, atom.Div:
			renderChildren(b, n)
			b.WriteString("\n\n")
			return
		}
	}
	renderChildren(b, n)
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

func renderAnchor(b *strings.Builder, n *html.Node) {
	var inner strings.Builder
	renderChildren(&inner, n)
	text := strings.TrimSpace(inner.String())
	text = negativeMarker.ReplaceAllString(text, "$1")

	href := attrValue(n, "href")
	if !strings.HasPrefix(href, "http") {
		b.WriteString(text)
		return
	}
	if text == "" {
		text = "link"
	}
	b.WriteString("[" + text + "](" + href + ")")
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
