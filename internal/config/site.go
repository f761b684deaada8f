package config

// SiteProfile describes one chat site: where it lives and how to find its UI
// affordances. Locator fields are ordered fallback lists tried in sequence;
// the first visible match wins. Profiles are configuration, not code — a
// YAML file can override any of them when a site ships a redesign.
type SiteProfile struct {
	Name    string `yaml:"name"`
	HomeURL string `yaml:"home_url"`

	// LoginURLPatterns mark locations that indicate an unauthenticated
	// state; the chat UI is not "ready" while the URL matches one.
	LoginURLPatterns []string `yaml:"login_url_patterns"`

	ChatInput        []string `yaml:"chat_input"`
	SendButton       []string `yaml:"send_button"`
	StopButton       []string `yaml:"stop_button"`
	AssistantMessage []string `yaml:"assistant_message"`
	NewConversation  []string `yaml:"new_conversation"`
	ContentContainer []string `yaml:"content_container"` // rich content inside a message
	ModelLabel       []string `yaml:"model_label"`

	// Online/web-search toggle. OnlineSelectedClasses are class-name
	// substrings that mark the toggle as enabled.
	OnlineToggle          []string `yaml:"online_toggle"`
	OnlineSelectedClasses []string `yaml:"online_selected_classes"`

	// Web-search results panel.
	WebSearchButton    []string `yaml:"web_search_button"`
	SearchPanel        []string `yaml:"search_panel"`
	SearchResultItem   []string `yaml:"search_result_item"`
	SearchResultTitle  []string `yaml:"search_result_title"`
	SearchResultSnippet []string `yaml:"search_result_snippet"`

	// CitationSelector matches citation anchors inside the response content.
	CitationSelector string `yaml:"citation_selector"`

	// SubmitViaEnter sends the prompt with the Enter key instead of
	// clicking the send button.
	SubmitViaEnter bool `yaml:"submit_via_enter"`

	// HoverCitations triggers hover events over citation markers before
	// extraction; Kimi only materializes hrefs on hover.
	HoverCitations bool `yaml:"hover_citations"`
}

// builtinSites returns profiles for the sites supported out of the box.
// Selector lists prefer stable attributes first and hash classes last.
func builtinSites() map[string]SiteProfile {
	return map[string]SiteProfile{
		"deepseek": {
			Name:             "DEEPSEEK",
			HomeURL:          "https://chat.deepseek.com/",
			LoginURLPatterns: []string{"/sign_in", "/login"},
			ChatInput: []string{
				"textarea[placeholder*='DeepSeek']",
				"textarea[placeholder*='消息']",
				"textarea.ds-scroll-area",
				"textarea._27c9245",
				"textarea",
			},
			SendButton: []string{
				"button.f79352dc",
				`button[aria-disabled="false"]:has(svg)`,
			},
			StopButton: []string{
				`button[aria-label*="停止"]`,
				`button:has(svg[name="stop"])`,
			},
			AssistantMessage: []string{
				"div.ds-message._63c77b1",
				"div.ds-message",
				`div[class*="ds-message"]`,
			},
			NewConversation: []string{
				`div._5a8ac7a`,
				`button:has(svg)`,
				`a[href="/"]`,
			},
			ContentContainer: []string{
				`div[class*="markdown"]`,
				`div[class*="content"]`,
				`div[class*="message-body"]`,
			},
			ModelLabel: []string{
				`div[class*="model"]`,
			},
			OnlineToggle:          []string{`button.ds-toggle-button`},
			OnlineSelectedClasses: []string{"ds-toggle-button--selected", "selected", "active"},
			WebSearchButton:       []string{"div._74c0879"},
			SearchPanel: []string{
				"div._519be07 div.dc433409",
				"div.dc433409",
				`div[class*="scrollable"]`,
			},
			SearchResultItem:    []string{"a._24fe229", "a[href]"},
			SearchResultTitle:   []string{"div.search-view-card__title"},
			SearchResultSnippet: []string{"div.search-view-card__snippet"},
			CitationSelector:    `a[href][target="_blank"]`,
			SubmitViaEnter:      true,
		},
		"kimi": {
			Name:             "KIMI",
			HomeURL:          "https://kimi.moonshot.cn/chat",
			LoginURLPatterns: []string{"/login", "/sign_in"},
			ChatInput: []string{
				`div.chat-content-container div[role='textbox']`,
				`div[role="textbox"]`,
				`div[contenteditable="true"]`,
				"textarea",
			},
			SendButton: []string{
				`button[aria-label*="发送"]`,
				`button[aria-label*="Send"]`,
				`button[data-testid="send"]`,
			},
			StopButton: []string{
				`div.send-button svg[name="stop"]`,
			},
			AssistantMessage: []string{
				`[data-role="assistant"]`,
				`div[class*="assistant"]`,
				`[data-testid="assistant-message"]`,
			},
			NewConversation: []string{
				`button[data-testid="new-chat"]`,
				`a[href="/chat"]`,
			},
			ContentContainer: []string{
				`div[class*="markdown"]`,
				`div[class*="content"]`,
			},
			CitationSelector: "a[href]",
			SubmitViaEnter:   true,
			HoverCitations:   true,
		},
		"doubao": {
			Name:             "DOUBAO",
			HomeURL:          "https://www.doubao.com/chat/",
			LoginURLPatterns: []string{"/login"},
			ChatInput: []string{
				`textarea[data-testid="chat_input_input"]`,
				"textarea[placeholder*='发送']",
				"textarea",
			},
			SendButton: []string{
				`button[aria-disabled="false"][id="flow-end-msg-send"]`,
			},
			StopButton: []string{
				`div[data-testid="chat_input_local_break_button"]:not(.hidden)`,
			},
			AssistantMessage: []string{
				`div[data-role='assistant']`,
				`article[role='article'][data-author-role='assistant']`,
			},
			NewConversation: []string{
				`button[data-testid="create_conversation_button"]`,
				`a[href="/chat/"]`,
			},
			ContentContainer: []string{
				`div[class*="markdown"]`,
				`div[class*="content"]`,
			},
			WebSearchButton: []string{`div[data-testid="search-reference-ui"]`},
			SearchPanel: []string{
				`aside[data-testid='samantha_layout_right_side'] div.scroll-H09izL`,
				`div[data-testid='canvas_panel_container'] div.scroll-H09izL`,
			},
			SearchResultItem: []string{"a[href]"},
			CitationSelector: `a[href^="http"]`,
		},
	}
}
