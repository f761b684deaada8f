// Package ledger persists conversation outcomes. The ledger is an
// append-only NDJSON file per (site, task): one flush per processed prompt,
// never rewritten in place. On startup it is read in full to build the
// resume set, so a crash loses at most the in-flight record. A markdown
// transcript mirrors the same records for human reading; it is rendering
// only, never a source of truth.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chatharvest/internal/logging"
	"chatharvest/internal/types"
)

// Ledger appends ConversationRecords for one (site, task) pair.
type Ledger struct {
	site string
	task string

	path           string
	transcriptPath string

	f  *os.File
	tf *os.File
}

// Open creates (or reopens for append) the ledger and transcript files for
// a site+task. qualifier is a filename suffix used to keep shard-bound
// workers on disjoint files; "" for the single-shard case.
func Open(dir, site, task, qualifier string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	base := fmt.Sprintf("%s_conversations_%s", strings.ToLower(site), task)
	l := &Ledger{
		site:           site,
		task:           task,
		path:           filepath.Join(dir, base+".ndjson"+qualifier),
		transcriptPath: filepath.Join(dir, base+".md"+qualifier),
	}

	var err error
	l.f, err = os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	l.tf, err = os.OpenFile(l.transcriptPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.f.Close()
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	return l, nil
}

// Path returns the NDJSON ledger path.
func (l *Ledger) Path() string { return l.path }

// TranscriptPath returns the markdown transcript path.
func (l *Ledger) TranscriptPath() string { return l.transcriptPath }

// Append writes one record to the ledger and its transcript block, syncing
// the ledger before returning so completed work survives a crash.
func (l *Ledger) Append(rec types.ConversationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := l.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	// Transcript write failures are logged, not fatal: the ledger already
	// holds the record.
	if _, err := l.tf.WriteString(renderTranscript(rec)); err != nil {
		logging.LedgerWarn("transcript write failed: %v", err)
	}
	return nil
}

// Close closes both files.
func (l *Ledger) Close() error {
	terr := l.tf.Close()
	if err := l.f.Close(); err != nil {
		return err
	}
	return terr
}

// Completed reads the ledger and returns the set of prompt texts that have
// a prior status=ok record. Prompts that previously failed are absent, so
// they are retried on the next run. Malformed lines are skipped with a
// warning; corruption never aborts startup.
func (l *Ledger) Completed() map[string]struct{} {
	return CompletedSet(l.path)
}

// CompletedSet builds the resume set from an NDJSON ledger file. A missing
// file yields an empty set.
func CompletedSet(path string) map[string]struct{} {
	done := make(map[string]struct{})

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.LedgerWarn("cannot read ledger %s: %v", path, err)
		}
		return done
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec types.ConversationRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			logging.LedgerWarn("skipping malformed ledger line %s:%d: %v", path, lineNo, err)
			continue
		}
		if rec.Status == types.StatusOK && rec.PromptText != "" {
			done[rec.PromptText] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		logging.LedgerWarn("stopped reading ledger %s at line %d: %v", path, lineNo, err)
	}
	return done
}

// Filter returns the prompts that have no status=ok entry yet, preserving
// order.
func Filter(prompts []string, done map[string]struct{}) []string {
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		if _, ok := done[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// renderTranscript formats one record as a human-readable markdown block.
func renderTranscript(rec types.ConversationRecord) string {
	var b strings.Builder

	convID := rec.ConversationID
	if convID == "" {
		convID = "unknown"
	}
	fmt.Fprintf(&b, "# Conversation %s\n\n", convID)
	fmt.Fprintf(&b, "- **Website**: %s\n", rec.WebsiteName)
	fmt.Fprintf(&b, "- **URL**: %s\n", rec.ItemURL)
	fmt.Fprintf(&b, "- **Model**: %s\n", rec.ModelName)
	fmt.Fprintf(&b, "- **Online Mode**: %s\n", rec.ModeOnline)
	fmt.Fprintf(&b, "- **Language**: %s\n", rec.ResponseLanguage)
	fmt.Fprintf(&b, "- **Latency**: %d ms\n", rec.LatencyMs)
	fmt.Fprintf(&b, "- **Status**: %s\n", rec.Status)
	if rec.ErrorMessage != "" {
		fmt.Fprintf(&b, "- **Error**: %s\n", rec.ErrorMessage)
	}

	fmt.Fprintf(&b, "\n## Prompt\n\n%s\n\n", strings.TrimSpace(rec.PromptText))
	fmt.Fprintf(&b, "## Response\n\n%s\n\n", strings.TrimSpace(rec.ResponseText))

	if len(rec.Citations) > 0 {
		b.WriteString("## Citations\n\n")
		for i, href := range rec.Citations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, href)
		}
		b.WriteString("\n")
	}

	if len(rec.WebSearchResults) > 0 {
		b.WriteString("## Web Search Results\n\n")
		for i, r := range rec.WebSearchResults {
			title := r.Title
			if title == "" {
				title = "Search Result"
			}
			fmt.Fprintf(&b, "### %d. %s\n\n", i+1, title)
			if r.Href != "" {
				fmt.Fprintf(&b, "- **URL**: %s\n", r.Href)
			}
			if r.Snippet != "" {
				fmt.Fprintf(&b, "- **Snippet**: %s\n", r.Snippet)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("---\n\n")
	return b.String()
}
