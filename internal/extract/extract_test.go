package extract

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"chatharvest/internal/types"
)

func TestMarkdownParagraphsAndLinks(t *testing.T) {
	in := `<div><p>AI is a field of computer science.</p>` +
		`<p>See the <a href="https://example.com/overview">overview</a> for more.</p></div>`

	got := Markdown(in)
	if !strings.Contains(got, "AI is a field of computer science.") {
		t.Errorf("missing paragraph text in:\n%s", got)
	}
	if !strings.Contains(got, "[overview](https://example.com/overview)") {
		t.Errorf("link not rendered in:\n%s", got)
	}
}

func TestMarkdownCitationMarkerNormalization(t *testing.T) {
	// Some sites render citation superscripts as a hidden dash plus the
	// index, which extracts as "-6".
	in := `<p>Claimed fact<a href="https://example.com/src">- 6</a>.</p>`
	got := Markdown(in)

	if !strings.Contains(got, "[6](https://example.com/src)") {
		t.Errorf("citation marker not normalized:\n%s", got)
	}
	if strings.Contains(got, "-6") || strings.Contains(got, "- 6") {
		t.Errorf("raw marker leaked through:\n%s", got)
	}
}

func TestMarkdownNonHTTPAnchorFlattens(t *testing.T) {
	got := Markdown(`<p>Go to <a href="/settings">settings</a> now.</p>`)
	if strings.Contains(got, "](") {
		t.Errorf("relative link should flatten to text:\n%s", got)
	}
	if !strings.Contains(got, "settings") {
		t.Errorf("anchor text lost:\n%s", got)
	}
}

func TestMarkdownStructure(t *testing.T) {
	in := `<h2>Summary</h2><ul><li>first</li><li>second</li></ul><script>alert(1)</script>`
	got := Markdown(in)

	if !strings.Contains(got, "## Summary") {
		t.Errorf("heading not rendered:\n%s", got)
	}
	if !strings.Contains(got, "- first") || !strings.Contains(got, "- second") {
		t.Errorf("list items not rendered:\n%s", got)
	}
	if strings.Contains(got, "alert") {
		t.Errorf("script content leaked:\n%s", got)
	}
}

func TestCitationsOrderedAndDeduplicated(t *testing.T) {
	in := `<div>
		<a href="https://a.example.com/1">one</a>
		<a href="https://b.example.com/2">two</a>
		<a href="https://a.example.com/1">one again</a>
		<a href="/relative">skip</a>
	</div>`

	got := Citations(in, "")
	want := []string{"https://a.example.com/1", "https://b.example.com/2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("citations mismatch (-want +got):\n%s", diff)
	}
}

func TestCitationsCustomSelector(t *testing.T) {
	in := `<div>
		<a href="https://plain.example.com">plain</a>
		<a href="https://cited.example.com" target="_blank">cited</a>
	</div>`

	got := Citations(in, `a[href][target="_blank"]`)
	want := []string{"https://cited.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("citations mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchResults(t *testing.T) {
	in := `<div class="panel">
		<a class="card" href="https://news.example.com/a">
			<div class="card-title">Result A</div>
			<div class="card-snippet">Snippet for A</div>
		</a>
		<a class="card" href="https://news.example.com/b">
			<div class="card-title">Result B</div>
		</a>
	</div>`

	got := SearchResults(in,
		[]string{"a.card"},
		[]string{"div.card-title"},
		[]string{"div.card-snippet"})

	want := []types.WebSearchResult{
		{Href: "https://news.example.com/a", Title: "Result A", Snippet: "Snippet for A"},
		{Href: "https://news.example.com/b", Title: "Result B"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchResultsTitleFallback(t *testing.T) {
	in := `<div><a href="https://example.com/x">  Bare link text  </a></div>`
	got := SearchResults(in, []string{"a[href]"}, nil, nil)

	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Title != "Bare link text" {
		t.Errorf("title fallback = %q", got[0].Title)
	}
}

func TestLanguage(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Artificial intelligence is a field.", types.LangEnglish},
		{"人工智能是计算机科学的一个分支。", types.LangChinese},
		{"AI (人工智能) overview", types.LangChinese},
		{"12345 !!!", types.LangUnknown},
		{"", types.LangUnknown},
	}
	for _, tc := range cases {
		if got := Language(tc.text); got != tc.want {
			t.Errorf("Language(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestConversationID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://chat.deepseek.com/a/chat/s/1f3c9b2e-7d41-4a0b", "1f3c9b2e-7d41-4a0b"},
		{"https://kimi.moonshot.cn/chat/cn1234567890abcdef?from=home", "cn1234567890abcdef"},
		{"https://www.doubao.com/chat/987654321012345", "987654321012345"},
		{"https://example.com/c/short", "short"},
		{"https://example.com", ""},
	}
	for _, tc := range cases {
		if got := ConversationID(tc.url); got != tc.want {
			t.Errorf("ConversationID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
