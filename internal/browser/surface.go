// Package browser wraps the automation engine behind a small capability
// surface: navigation, ordered-locator element lookup, text read/write,
// clicks, and cookie/storage persistence. The session manager and the
// conversation driver only ever see Surface, so tests can script a fake
// page and the engine can be swapped without touching the pipeline.
package browser

import (
	"context"
	"errors"
)

// ErrLocatorExhausted is returned when every locator in a fallback list
// failed to match a visible element. Recovered per prompt by the driver.
var ErrLocatorExhausted = errors.New("no locator matched a visible element")

// Surface is the capability surface consumed by the core. Locator
// arguments are ordered fallback lists of CSS selectors: each is tried in
// sequence and the first visible match wins.
type Surface interface {
	// Navigate loads a URL and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Reload reloads the current page.
	Reload(ctx context.Context) error
	// URL returns the current location.
	URL() string

	// Visible reports whether any locator matches a visible element.
	Visible(locators []string) bool
	// Count returns the number of elements matched by the first locator
	// that matches anything.
	Count(locators []string) int
	// Click clicks the first visible match.
	Click(ctx context.Context, locators []string) error
	// Type clicks the first visible match and types text into it.
	Type(ctx context.Context, locators []string, text string) error
	// PressEnter sends the Enter key to the page.
	PressEnter(ctx context.Context) error

	// Text returns the visible text of the first match.
	Text(locators []string) (string, error)
	// LastText returns the visible text of the last match (the newest
	// message in a chat transcript).
	LastText(locators []string) (string, error)
	// LastHTML returns the inner HTML of the last match.
	LastHTML(locators []string) (string, error)
	// Attribute returns an attribute of the first visible match; ok=false
	// when the attribute is absent.
	Attribute(locators []string, name string) (value string, ok bool, err error)

	// Eval runs a page-side JS function (no arguments, discarded result).
	Eval(ctx context.Context, js string) error

	// Cookies returns the cookie jar as a JSON blob; SetCookies restores
	// one. StorageSnapshot/RestoreStorage do the same for local/session
	// storage. Blob formats are stable across runs.
	Cookies(ctx context.Context) ([]byte, error)
	SetCookies(ctx context.Context, data []byte) error
	StorageSnapshot(ctx context.Context) ([]byte, error)
	RestoreStorage(ctx context.Context, data []byte) error
}
