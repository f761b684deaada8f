// Package driver runs the per-prompt harvest loop: open a fresh
// conversation, submit the prompt, wait for the reply to finish, extract the
// structured record, and append it to the ledger. Every prompt is isolated;
// one failure produces an error record and the loop moves on.
package driver

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"chatharvest/internal/browser"
	"chatharvest/internal/config"
	"chatharvest/internal/detector"
	"chatharvest/internal/extract"
	"chatharvest/internal/ledger"
	"chatharvest/internal/logging"
	"chatharvest/internal/types"
)

// Driver processes prompts against one site through one browser surface.
type Driver struct {
	surface browser.Surface
	profile config.SiteProfile
	timing  config.TimingConfig
	led     *ledger.Ledger

	rng *rand.Rand
}

// New creates a driver bound to an open ledger.
func New(surface browser.Surface, profile config.SiteProfile, timing config.TimingConfig, led *ledger.Ledger) *Driver {
	return &Driver{
		surface: surface,
		profile: profile,
		timing:  timing,
		led:     led,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run processes the prompts in order, appending one record per prompt. It
// returns the ok/failed counts; the only error it returns itself is a
// context cancellation or a ledger write failure, both of which stop the run.
func (d *Driver) Run(ctx context.Context, prompts []string) (ok, failed int, err error) {
	for i, prompt := range prompts {
		if ctx.Err() != nil {
			return ok, failed, ctx.Err()
		}

		logging.Driver("prompt %d/%d: %s", i+1, len(prompts), preview(prompt))
		rec := d.Harvest(ctx, prompt)

		if appendErr := d.led.Append(rec); appendErr != nil {
			// A ledger that cannot be written makes further progress
			// unrecordable, so stop rather than silently losing work.
			return ok, failed, fmt.Errorf("record prompt %d: %w", i+1, appendErr)
		}

		if rec.Status == types.StatusOK {
			ok++
			logging.Driver("prompt %d done in %d ms (%d chars)", i+1, rec.LatencyMs, len(rec.ResponseText))
		} else {
			failed++
			logging.DriverWarn("prompt %d failed: %s", i+1, rec.ErrorMessage)
		}
	}
	return ok, failed, nil
}

// Harvest runs one full prompt/response exchange and returns its record.
// Never returns an error: failures, including panics from the automation
// layer, become status=error records.
func (d *Driver) Harvest(ctx context.Context, prompt string) (rec types.ConversationRecord) {
	timer := logging.StartTimer(logging.CategoryDriver, "harvest prompt")
	defer timer.Stop()

	start := time.Now()
	rec = types.ConversationRecord{
		WebsiteName:      d.profile.Name,
		ModeOnline:       "off",
		PromptText:       prompt,
		ResponseLanguage: types.LangUnknown,
		Status:           types.StatusError,
	}
	defer func() {
		if r := recover(); r != nil {
			rec.Status = types.StatusError
			rec.ErrorMessage = fmt.Sprintf("panic: %v", r)
		}
		rec.LatencyMs = time.Since(start).Milliseconds()
	}()

	if err := d.newConversation(ctx); err != nil {
		rec.ErrorMessage = fmt.Sprintf("new conversation: %v", err)
		return rec
	}
	d.humanDelay(ctx)

	if len(d.profile.OnlineToggle) > 0 {
		rec.ModeOnline = d.ensureOnline(ctx)
	}

	if err := d.submit(ctx, prompt); err != nil {
		rec.ErrorMessage = fmt.Sprintf("submit: %v", err)
		return rec
	}

	res, err := d.awaitReply(ctx)
	if err != nil {
		rec.ResponseText = res.Text
		rec.ErrorMessage = err.Error()
		return rec
	}
	// A stale read can report text while the reply node is already gone;
	// require both before trusting the capture.
	if d.surface.Count(d.profile.AssistantMessage) == 0 || strings.TrimSpace(res.Text) == "" {
		rec.ErrorMessage = "no response text captured"
		return rec
	}

	d.populate(ctx, &rec, res.Text)
	rec.Status = types.StatusOK
	return rec
}

// newConversation opens a clean chat. The dedicated button is preferred;
// navigating home is the fallback and also resets a wedged page.
func (d *Driver) newConversation(ctx context.Context) error {
	if len(d.profile.NewConversation) > 0 {
		if err := d.surface.Click(ctx, d.profile.NewConversation); err == nil {
			return nil
		}
	}
	return d.surface.Navigate(ctx, d.profile.HomeURL)
}

// ensureOnline enables the web-search/online toggle when it is not already
// selected. Returns "on" or "off" for the record.
func (d *Driver) ensureOnline(ctx context.Context) string {
	if d.onlineSelected() {
		return "on"
	}
	if err := d.surface.Click(ctx, d.profile.OnlineToggle); err != nil {
		logging.DriverWarn("online toggle click failed: %v", err)
		return "off"
	}
	d.humanDelay(ctx)
	if d.onlineSelected() {
		return "on"
	}
	return "off"
}

func (d *Driver) onlineSelected() bool {
	class, ok, err := d.surface.Attribute(d.profile.OnlineToggle, "class")
	if err != nil || !ok {
		return false
	}
	for _, marker := range d.profile.OnlineSelectedClasses {
		if marker != "" && strings.Contains(class, marker) {
			return true
		}
	}
	return false
}

// submit types the prompt and fires the site's submit action.
func (d *Driver) submit(ctx context.Context, prompt string) error {
	if err := d.surface.Type(ctx, d.profile.ChatInput, prompt); err != nil {
		return err
	}
	d.humanDelay(ctx)

	if d.profile.SubmitViaEnter {
		return d.surface.PressEnter(ctx)
	}
	if err := d.surface.Click(ctx, d.profile.SendButton); err != nil {
		// Some sites swap the send button out mid-animation; Enter is the
		// universal fallback.
		return d.surface.PressEnter(ctx)
	}
	return nil
}

// awaitReply drives the completion detector over the live page.
func (d *Driver) awaitReply(ctx context.Context) (detector.Result, error) {
	det := detector.New(
		&surfaceProbe{surface: d.surface, profile: d.profile},
		detector.Config{
			PollTick:    d.timing.PollTick(),
			StableTicks: d.timing.StableTicks,
			IdleTimeout: d.timing.IdleTimeout(),
			StartGrace:  d.timing.StartGrace(),
			SoftStop:    d.timing.SoftStop(),
			Overall:     d.timing.Overall(),
		},
		detector.WithForceStop(func() {
			if err := d.surface.Click(ctx, d.profile.StopButton); err != nil {
				logging.DriverWarn("forced stop click failed: %v", err)
			}
		}),
	)
	return det.Wait(ctx)
}

// populate fills the content-derived fields of a record once the reply has
// settled. Extraction failures degrade to the plain detector text.
func (d *Driver) populate(ctx context.Context, rec *types.ConversationRecord, plainText string) {
	rec.ItemURL = d.surface.URL()
	rec.ConversationID = extract.ConversationID(rec.ItemURL)

	if d.profile.HoverCitations {
		d.revealCitations(ctx)
	}

	rec.ResponseText = plainText
	html, err := d.contentHTML()
	if err == nil && html != "" {
		if md := extract.Markdown(html); strings.TrimSpace(md) != "" {
			rec.ResponseText = md
		}
		rec.Citations = extract.Citations(html, d.profile.CitationSelector)
	}
	rec.ResponseLanguage = extract.Language(rec.ResponseText)

	if len(d.profile.ModelLabel) > 0 {
		if label, err := d.surface.Text(d.profile.ModelLabel); err == nil {
			rec.ModelName = strings.TrimSpace(label)
		}
	}

	if rec.ModeOnline == "on" && len(d.profile.WebSearchButton) > 0 {
		rec.WebSearchResults = d.searchResults(ctx)
	}
}

// contentHTML returns the rich content of the newest reply, preferring the
// dedicated content container over the whole message node.
func (d *Driver) contentHTML() (string, error) {
	if len(d.profile.ContentContainer) > 0 {
		if html, err := d.surface.LastHTML(d.profile.ContentContainer); err == nil {
			return html, nil
		}
	}
	return d.surface.LastHTML(d.profile.AssistantMessage)
}

// revealCitations fires hover events over citation anchors. Some sites only
// materialize the href on hover.
func (d *Driver) revealCitations(ctx context.Context) {
	sel := d.profile.CitationSelector
	if sel == "" {
		sel = "a[href]"
	}
	js := fmt.Sprintf(`() => {
		document.querySelectorAll(%q).forEach((el) => {
			el.dispatchEvent(new MouseEvent("mouseover", { bubbles: true }));
		});
	}`, sel)
	if err := d.surface.Eval(ctx, js); err != nil {
		logging.DriverWarn("citation hover failed: %v", err)
	}
}

// searchResults expands the web-search panel and parses its entries.
func (d *Driver) searchResults(ctx context.Context) []types.WebSearchResult {
	if !d.surface.Visible(d.profile.WebSearchButton) {
		return nil
	}
	if err := d.surface.Click(ctx, d.profile.WebSearchButton); err != nil {
		logging.DriverWarn("search panel click failed: %v", err)
		return nil
	}
	d.humanDelay(ctx)

	panelHTML, err := d.surface.LastHTML(d.profile.SearchPanel)
	if err != nil {
		logging.DriverWarn("search panel read failed: %v", err)
		return nil
	}
	return extract.SearchResults(panelHTML,
		d.profile.SearchResultItem,
		d.profile.SearchResultTitle,
		d.profile.SearchResultSnippet)
}

// humanDelay sleeps a uniform random interval between UI actions.
func (d *Driver) humanDelay(ctx context.Context) {
	min, max := d.timing.HumanDelayMin(), d.timing.HumanDelayMax()
	delay := min
	if max > min {
		delay = min + time.Duration(d.rng.Int63n(int64(max-min)))
	}
	if delay <= 0 {
		return
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// surfaceProbe adapts a browser surface to the detector's sampling interface.
type surfaceProbe struct {
	surface browser.Surface
	profile config.SiteProfile
}

func (p *surfaceProbe) StopVisible() bool {
	return p.surface.Visible(p.profile.StopButton)
}

func (p *surfaceProbe) ResponseText() string {
	text, err := p.surface.LastText(p.profile.AssistantMessage)
	if err != nil {
		return ""
	}
	return text
}

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > 60 {
		return string(runes[:60]) + "..."
	}
	return s
}
