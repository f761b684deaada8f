// Package types holds the shared data model for chatharvest: the records
// appended to the ledger, the prompt tasks loaded from input files, and the
// shard assignment handed to each worker.
package types

import "fmt"

// Status values for a ConversationRecord.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Language values detected for a response.
const (
	LangChinese = "zh"
	LangEnglish = "en"
	LangUnknown = "unknown"
)

// WebSearchResult is one entry from a site's expandable search-results panel.
type WebSearchResult struct {
	Href    string `json:"href"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ConversationRecord captures one prompt/response exchange. Records are
// append-only: re-processing a prompt in a later run appends a new record,
// it never mutates an old one. Identity for dedup is (task, prompt text);
// ConversationID is informational.
type ConversationRecord struct {
	WebsiteName      string            `json:"website_name"`
	ConversationID   string            `json:"conversation_id"`
	ItemURL          string            `json:"item_url"`
	ModelName        string            `json:"model_name,omitempty"`
	ModeOnline       string            `json:"mode_online"`
	PromptText       string            `json:"prompt_text"`
	ResponseText     string            `json:"response_text"`
	Citations        []string          `json:"citations,omitempty"`
	WebSearchResults []WebSearchResult `json:"web_search_results,omitempty"`
	ResponseLanguage string            `json:"response_language"`
	LatencyMs        int64             `json:"latency_ms"`
	Status           string            `json:"status"`
	ErrorMessage     string            `json:"error_message,omitempty"`
}

// PromptTask is an ordered list of prompts loaded from one
// <task>_input_prompts.txt file. Immutable once loaded.
type PromptTask struct {
	Name    string
	Prompts []string
}

// ShardAssignment identifies the slice of the workload owned by one worker.
// Invariant: 0 <= Index < Count.
type ShardAssignment struct {
	Index int
	Count int
}

// Qualifier returns a filename suffix for shard-scoped output files, or ""
// for the single-shard case.
func (s ShardAssignment) Qualifier() string {
	if s.Count <= 1 {
		return ""
	}
	return fmt.Sprintf(".shard%d-%d", s.Index, s.Count)
}
