package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatharvest/internal/config"
	"chatharvest/internal/ledger"
	"chatharvest/internal/types"
)

// fakeSurface scripts a chat page that answers instantly and never shows a
// stop affordance, so the detector resolves through text stability.
type fakeSurface struct {
	url          string
	responseText string
	responseHTML string
	modelLabel   string

	typed     []string
	enterHits int
	clicked   [][]string

	typeErrs   []error // popped per Type call
	noMessages bool    // reply node absent even when text reads back
}

func (s *fakeSurface) Navigate(ctx context.Context, url string) error {
	s.url = url
	return nil
}
func (s *fakeSurface) Reload(ctx context.Context) error { return nil }
func (s *fakeSurface) URL() string                      { return s.url }

func (s *fakeSurface) Visible(locators []string) bool { return false }

func (s *fakeSurface) Count(locators []string) int {
	if s.noMessages || s.responseText == "" {
		return 0
	}
	return 1
}

func (s *fakeSurface) Click(ctx context.Context, locators []string) error {
	s.clicked = append(s.clicked, locators)
	return nil
}

func (s *fakeSurface) Type(ctx context.Context, locators []string, text string) error {
	if len(s.typeErrs) > 0 {
		err := s.typeErrs[0]
		s.typeErrs = s.typeErrs[1:]
		if err != nil {
			return err
		}
	}
	s.typed = append(s.typed, text)
	return nil
}

func (s *fakeSurface) PressEnter(ctx context.Context) error {
	s.enterHits++
	// Submitting navigates into the conversation.
	s.url = "https://chat.example.com/chat/s/conv1234567890"
	return nil
}

func (s *fakeSurface) Text(locators []string) (string, error) { return s.modelLabel, nil }
func (s *fakeSurface) LastText(locators []string) (string, error) {
	return s.responseText, nil
}
func (s *fakeSurface) LastHTML(locators []string) (string, error) {
	return s.responseHTML, nil
}
func (s *fakeSurface) Attribute(locators []string, name string) (string, bool, error) {
	return "", false, nil
}
func (s *fakeSurface) Eval(ctx context.Context, js string) error        { return nil }
func (s *fakeSurface) Cookies(ctx context.Context) ([]byte, error)      { return []byte("[]"), nil }
func (s *fakeSurface) SetCookies(ctx context.Context, d []byte) error   { return nil }
func (s *fakeSurface) StorageSnapshot(ctx context.Context) ([]byte, error) {
	return []byte("{}"), nil
}
func (s *fakeSurface) RestoreStorage(ctx context.Context, d []byte) error { return nil }

func testProfile() config.SiteProfile {
	return config.SiteProfile{
		Name:             "TESTSITE",
		HomeURL:          "https://chat.example.com/",
		ChatInput:        []string{"textarea"},
		AssistantMessage: []string{"div.msg"},
		ContentContainer: []string{"div.content"},
		ModelLabel:       []string{"div.model"},
		CitationSelector: "a[href]",
		SubmitViaEnter:   true,
	}
}

// fastTiming keeps real-clock detector runs in the low milliseconds.
func fastTiming() config.TimingConfig {
	return config.TimingConfig{
		PollTickMs:      1,
		StableTicks:     2,
		IdleTimeoutSec:  1,
		StartGraceSec:   1,
		SoftStopSec:     60,
		OverallSec:      5,
		HumanDelayMinMs: 1,
		HumanDelayMaxMs: 2,
	}
}

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	led, err := ledger.Open(t.TempDir(), "TESTSITE", "taskA", "")
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })
	return led
}

func TestHarvestSuccess(t *testing.T) {
	surface := &fakeSurface{
		responseText: "Artificial intelligence is the simulation of human intelligence.",
		responseHTML: `<div><p>Artificial intelligence is the simulation of human intelligence.</p>` +
			`<p>See the <a href="https://example.com/ai">overview</a>.</p></div>`,
		modelLabel: "TestModel-V1",
	}
	d := New(surface, testProfile(), fastTiming(), openTestLedger(t))

	rec := d.Harvest(context.Background(), "What is AI?")

	assert.Equal(t, types.StatusOK, rec.Status)
	assert.Empty(t, rec.ErrorMessage)
	assert.Equal(t, "TESTSITE", rec.WebsiteName)
	assert.Equal(t, "What is AI?", rec.PromptText)
	assert.Contains(t, rec.ResponseText, "[overview](https://example.com/ai)")
	assert.Equal(t, []string{"https://example.com/ai"}, rec.Citations)
	assert.Equal(t, types.LangEnglish, rec.ResponseLanguage)
	assert.Equal(t, "TestModel-V1", rec.ModelName)
	assert.Equal(t, "conv1234567890", rec.ConversationID)
	assert.Equal(t, "https://chat.example.com/chat/s/conv1234567890", rec.ItemURL)
	assert.Greater(t, rec.LatencyMs, int64(0))

	// The prompt reached the page exactly once, via the input and Enter.
	assert.Equal(t, []string{"What is AI?"}, surface.typed)
	assert.Equal(t, 1, surface.enterHits)
}

func TestHarvestEmptyResponseIsError(t *testing.T) {
	surface := &fakeSurface{responseText: "", responseHTML: ""}
	d := New(surface, testProfile(), fastTiming(), openTestLedger(t))

	rec := d.Harvest(context.Background(), "anything")

	assert.Equal(t, types.StatusError, rec.Status)
	assert.Equal(t, "no response text captured", rec.ErrorMessage)
	assert.Equal(t, "anything", rec.PromptText)
}

func TestHarvestMissingReplyNodeIsError(t *testing.T) {
	surface := &fakeSurface{
		responseText: "ghost text from a removed node",
		responseHTML: "<p>ghost text from a removed node</p>",
		noMessages:   true,
	}
	d := New(surface, testProfile(), fastTiming(), openTestLedger(t))

	rec := d.Harvest(context.Background(), "anything")

	assert.Equal(t, types.StatusError, rec.Status)
	assert.Equal(t, "no response text captured", rec.ErrorMessage)
}

func TestRunIsolatesFailures(t *testing.T) {
	surface := &fakeSurface{
		responseText: "A perfectly fine answer.",
		responseHTML: "<p>A perfectly fine answer.</p>",
		typeErrs:     []error{assert.AnError},
	}
	led := openTestLedger(t)
	d := New(surface, testProfile(), fastTiming(), led)

	ok, failed, err := d.Run(context.Background(), []string{"bad prompt", "good prompt"})
	require.NoError(t, err)

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)

	// The failed prompt stays pending for the next run; the good one does not.
	done := led.Completed()
	assert.Contains(t, done, "good prompt")
	assert.NotContains(t, done, "bad prompt")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	surface := &fakeSurface{responseText: "answer", responseHTML: "<p>answer</p>"}
	d := New(surface, testProfile(), fastTiming(), openTestLedger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, failed, err := d.Run(ctx, []string{"one", "two"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ok)
	assert.Zero(t, failed)
}
