package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"chatharvest/internal/config"
	"chatharvest/internal/logging"
)

// Engine is the rod-backed Surface implementation. One Engine owns one
// browser process bound to one user-data (profile) directory; profiles are
// never shared across workers, which is what makes multi-process fan-out
// safe without locking.
type Engine struct {
	cfg        config.BrowserConfig
	profileDir string

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// NewEngine creates an engine bound to a profile directory.
func NewEngine(cfg config.BrowserConfig, profileDir string) *Engine {
	return &Engine{cfg: cfg, profileDir: profileDir}
}

// Start launches the browser and opens the working page.
func (e *Engine) Start(ctx context.Context) error {
	l := launcher.New().
		Headless(e.cfg.Headless).
		UserDataDir(e.profileDir).
		Leakless(true)
	if e.cfg.Bin != "" {
		l = l.Bin(e.cfg.Bin)
	}
	for _, rawFlag := range e.cfg.Launch {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	e.launcher = l

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	e.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	e.page = page

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             e.cfg.ViewportWidth,
		Height:            e.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.Get(logging.CategoryBrowser).Warn("failed to set viewport: %v", err)
	}

	logging.Browser("browser started (profile: %s, headless: %v)", e.profileDir, e.cfg.Headless)
	return nil
}

// Close shuts the browser down. The profile directory is left intact so
// the session survives across runs.
func (e *Engine) Close() error {
	var err error
	if e.browser != nil {
		err = e.browser.Close()
		e.browser = nil
		e.page = nil
	}
	if e.launcher != nil {
		e.launcher.Kill()
		e.launcher = nil
	}
	return err
}

// Navigate loads a URL and waits for the load event.
func (e *Engine) Navigate(ctx context.Context, url string) error {
	p := e.page.Context(ctx).Timeout(e.cfg.NavigationTimeout())
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	logging.BrowserDebug("navigated to %s", url)
	return nil
}

// Reload reloads the current page.
func (e *Engine) Reload(ctx context.Context) error {
	p := e.page.Context(ctx).Timeout(e.cfg.NavigationTimeout())
	if err := p.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return p.WaitLoad()
}

// URL returns the current location.
func (e *Engine) URL() string {
	info, err := e.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// first returns the first visible element among the locator list. Lookups
// never wait: the caller polls.
func (e *Engine) first(locators []string) (*rod.Element, error) {
	for _, sel := range locators {
		els, err := e.page.Elements(sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			if vis, verr := el.Visible(); verr == nil && vis {
				return el, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: tried %d locators", ErrLocatorExhausted, len(locators))
}

// last returns the final match of the first locator that matches anything.
func (e *Engine) last(locators []string) (*rod.Element, error) {
	for _, sel := range locators {
		els, err := e.page.Elements(sel)
		if err != nil || len(els) == 0 {
			continue
		}
		return els[len(els)-1], nil
	}
	return nil, fmt.Errorf("%w: tried %d locators", ErrLocatorExhausted, len(locators))
}

// Visible reports whether any locator matches a visible element.
func (e *Engine) Visible(locators []string) bool {
	_, err := e.first(locators)
	return err == nil
}

// Count returns how many elements the first matching locator finds.
func (e *Engine) Count(locators []string) int {
	for _, sel := range locators {
		els, err := e.page.Elements(sel)
		if err != nil || len(els) == 0 {
			continue
		}
		return len(els)
	}
	return 0
}

// Click clicks the first visible match.
func (e *Engine) Click(ctx context.Context, locators []string) error {
	el, err := e.first(locators)
	if err != nil {
		return err
	}
	return el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

// Type clicks the first visible match and types text into it.
func (e *Engine) Type(ctx context.Context, locators []string, text string) error {
	el, err := e.first(locators)
	if err != nil {
		return err
	}
	el = el.Context(ctx)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("focus input: %w", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type text: %w", err)
	}
	return nil
}

// PressEnter sends the Enter key to the page.
func (e *Engine) PressEnter(ctx context.Context) error {
	return e.page.Context(ctx).Keyboard.Press(input.Enter)
}

// Text returns the visible text of the first match.
func (e *Engine) Text(locators []string) (string, error) {
	el, err := e.first(locators)
	if err != nil {
		return "", err
	}
	return el.Text()
}

// LastText returns the text of the last match.
func (e *Engine) LastText(locators []string) (string, error) {
	el, err := e.last(locators)
	if err != nil {
		return "", err
	}
	return el.Text()
}

// LastHTML returns the HTML of the last match.
func (e *Engine) LastHTML(locators []string) (string, error) {
	el, err := e.last(locators)
	if err != nil {
		return "", err
	}
	return el.HTML()
}

// Attribute returns an attribute of the first visible match.
func (e *Engine) Attribute(locators []string, name string) (string, bool, error) {
	el, err := e.first(locators)
	if err != nil {
		return "", false, err
	}
	val, err := el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if val == nil {
		return "", false, nil
	}
	return *val, true, nil
}

// Eval runs a page-side JS function.
func (e *Engine) Eval(ctx context.Context, js string) error {
	_, err := e.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		ByValue:      true,
		AwaitPromise: true,
	})
	return err
}

// Cookies returns the cookie jar as JSON.
func (e *Engine) Cookies(ctx context.Context) ([]byte, error) {
	cookies, err := e.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}
	return json.MarshalIndent(cookies, "", "  ")
}

// SetCookies restores a cookie jar saved by Cookies.
func (e *Engine) SetCookies(ctx context.Context, data []byte) error {
	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("decode cookie blob: %w", err)
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
			Priority: c.Priority,
		})
	}
	if len(params) == 0 {
		return nil
	}
	return e.page.Context(ctx).SetCookies(params)
}

// StorageSnapshot captures local and session storage as one JSON blob.
func (e *Engine) StorageSnapshot(ctx context.Context) ([]byte, error) {
	res, err := e.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `() => {
			const dump = (store) => {
				const out = {};
				try {
					for (const key of Object.keys(store)) out[key] = store.getItem(key);
				} catch (e) {}
				return out;
			};
			return { localStorage: dump(localStorage), sessionStorage: dump(sessionStorage) };
		}`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot storage: %w", err)
	}
	return res.Value.MarshalJSON()
}

// RestoreStorage writes a blob captured by StorageSnapshot back into the
// page's local and session storage.
func (e *Engine) RestoreStorage(ctx context.Context, data []byte) error {
	_, err := e.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `(blob) => {
			try {
				const data = JSON.parse(blob || "{}");
				Object.entries(data.localStorage || {}).forEach(([k, v]) => localStorage.setItem(k, v));
				Object.entries(data.sessionStorage || {}).forEach(([k, v]) => sessionStorage.setItem(k, v));
			} catch (e) {}
		}`,
		JSArgs:       []interface{}{string(data)},
		ByValue:      true,
		AwaitPromise: true,
		UserGesture:  true,
	})
	if err != nil {
		return fmt.Errorf("restore storage: %w", err)
	}
	return nil
}
