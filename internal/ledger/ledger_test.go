package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatharvest/internal/types"
)

func okRecord(prompt string) types.ConversationRecord {
	return types.ConversationRecord{
		WebsiteName:      "TESTSITE",
		ConversationID:   "conv-1234567890",
		ItemURL:          "https://chat.example.com/chat/conv-1234567890",
		ModeOnline:       "off",
		PromptText:       prompt,
		ResponseText:     "a response",
		ResponseLanguage: types.LangEnglish,
		LatencyMs:        1200,
		Status:           types.StatusOK,
	}
}

func TestAppendAndResume(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir, "TESTSITE", "taskA", "")
	require.NoError(t, err)

	require.NoError(t, l.Append(okRecord("prompt one")))

	failed := okRecord("prompt two")
	failed.Status = types.StatusError
	failed.ResponseText = ""
	failed.ErrorMessage = "completion detection timed out"
	require.NoError(t, l.Append(failed))
	require.NoError(t, l.Close())

	// A fresh open sees only the ok prompt as done; the failed one is
	// eligible for retry.
	l2, err := Open(dir, "TESTSITE", "taskA", "")
	require.NoError(t, err)
	defer l2.Close()

	done := l2.Completed()
	assert.Contains(t, done, "prompt one")
	assert.NotContains(t, done, "prompt two")

	pending := Filter([]string{"prompt one", "prompt two", "prompt three"}, done)
	assert.Equal(t, []string{"prompt two", "prompt three"}, pending)
}

func TestReopenAppendsInsteadOfTruncating(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir, "TESTSITE", "taskA", "")
	require.NoError(t, err)
	require.NoError(t, l.Append(okRecord("first")))
	require.NoError(t, l.Close())

	sizeBefore := fileSize(t, l.Path())

	l2, err := Open(dir, "TESTSITE", "taskA", "")
	require.NoError(t, err)
	require.NoError(t, l2.Append(okRecord("second")))
	require.NoError(t, l2.Close())

	assert.Greater(t, fileSize(t, l2.Path()), sizeBefore)

	done := CompletedSet(l2.Path())
	assert.Len(t, done, 2)
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func TestMalformedLinesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "testsite_conversations_taskA.ndjson")

	content := strings.Join([]string{
		`{"prompt_text":"good one","status":"ok","website_name":"TESTSITE"}`,
		`{"this is not json`,
		``,
		`{"prompt_text":"good two","status":"ok","website_name":"TESTSITE"}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	done := CompletedSet(path)
	assert.Contains(t, done, "good one")
	assert.Contains(t, done, "good two")
	assert.Len(t, done, 2)
}

func TestCompletedSetMissingFile(t *testing.T) {
	done := CompletedSet(filepath.Join(t.TempDir(), "nope.ndjson"))
	assert.Empty(t, done)
}

func TestShardQualifierKeepsFilesDisjoint(t *testing.T) {
	dir := t.TempDir()

	l0, err := Open(dir, "TESTSITE", "taskA", ".shard0-2")
	require.NoError(t, err)
	l1, err := Open(dir, "TESTSITE", "taskA", ".shard1-2")
	require.NoError(t, err)

	require.NoError(t, l0.Append(okRecord("even prompt")))
	require.NoError(t, l1.Append(okRecord("odd prompt")))
	require.NoError(t, l0.Close())
	require.NoError(t, l1.Close())

	assert.NotEqual(t, l0.Path(), l1.Path())
	assert.Contains(t, l0.Path(), ".ndjson.shard0-2")

	assert.Contains(t, CompletedSet(l0.Path()), "even prompt")
	assert.NotContains(t, CompletedSet(l0.Path()), "odd prompt")
}

func TestTranscriptRendering(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir, "TESTSITE", "taskA", "")
	require.NoError(t, err)

	rec := okRecord("what is ai")
	rec.Citations = []string{"https://example.com/src"}
	rec.WebSearchResults = []types.WebSearchResult{
		{Href: "https://news.example.com/a", Title: "Result A", Snippet: "About A"},
	}
	require.NoError(t, l.Append(rec))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.TranscriptPath())
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# Conversation conv-1234567890")
	assert.Contains(t, text, "## Prompt\n\nwhat is ai")
	assert.Contains(t, text, "## Response\n\na response")
	assert.Contains(t, text, "1. https://example.com/src")
	assert.Contains(t, text, "### 1. Result A")
	assert.Contains(t, text, "- **Snippet**: About A")
}
