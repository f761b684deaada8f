package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"chatharvest/internal/types"
)

const maxSearchResults = 20

// Citations returns the citation links found in response HTML, in document
// order, deduplicated, http(s) only. selector defaults to any anchor with
// an href.
func Citations(htmlStr, selector string) []string {
	if selector == "" {
		selector = "a[href]"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.HasPrefix(href, "http") {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		out = append(out, href)
	})
	return out
}

// SearchResults parses a web-search panel's HTML into (link, title, snippet)
// tuples. Selector lists are tried in order; titles fall back to the item's
// leading text when the site has no dedicated title element.
func SearchResults(panelHTML string, itemSels, titleSels, snippetSels []string) []types.WebSearchResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(panelHTML))
	if err != nil {
		return nil
	}

	items := firstMatch(doc, itemSels)
	if items == nil {
		items = doc.Find("a[href]")
	}

	var out []types.WebSearchResult
	items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
		href, ok := item.Attr("href")
		if !ok || !strings.HasPrefix(href, "http") {
			return true
		}

		title := selText(item, titleSels)
		if title == "" {
			title = truncate(strings.TrimSpace(item.Text()), 160)
		}
		out = append(out, types.WebSearchResult{
			Href:    href,
			Title:   title,
			Snippet: selText(item, snippetSels),
		})
		return len(out) < maxSearchResults
	})
	return out
}

func firstMatch(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, s := range selectors {
		if sel := doc.Find(s); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

func selText(item *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		if sel := item.Find(s); sel.Length() > 0 {
			if text := strings.TrimSpace(sel.First().Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
