// Package session manages authenticated browser state for one site: cookie
// and storage blobs on disk, restoration at startup, and a bounded wait for
// manual login when restoration does not produce a ready chat UI.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatharvest/internal/browser"
	"chatharvest/internal/config"
	"chatharvest/internal/logging"
)

// AcquireError marks a failure to obtain an authenticated session. Fatal for
// the whole run: nothing can be harvested without one.
type AcquireError struct {
	Site string
	Err  error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire %s session: %v", e.Site, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// Manager restores and persists one site's session state.
type Manager struct {
	surface browser.Surface
	profile config.SiteProfile
	timing  config.TimingConfig

	cookiePath  string
	storagePath string
}

// NewManager creates a manager. stateDir holds the per-site blobs.
func NewManager(surface browser.Surface, profile config.SiteProfile, timing config.TimingConfig, stateDir string) *Manager {
	site := strings.ToLower(profile.Name)
	return &Manager{
		surface:     surface,
		profile:     profile,
		timing:      timing,
		cookiePath:  filepath.Join(stateDir, site+"_cookies.json"),
		storagePath: filepath.Join(stateDir, site+"_storage.json"),
	}
}

// Acquire produces a ready chat UI: restore saved state, navigate home, and
// if that is not enough, wait for a manual login up to the configured bound.
// Fresh state is persisted once the UI is ready.
func (m *Manager) Acquire(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategorySession, "session acquire")
	defer timer.Stop()

	restored := m.restore(ctx)

	if err := m.surface.Navigate(ctx, m.profile.HomeURL); err != nil {
		return &AcquireError{Site: m.profile.Name, Err: err}
	}

	if restored {
		// Storage restoration only takes effect once the origin is loaded,
		// so restore again in-origin and reload.
		if data, err := os.ReadFile(m.storagePath); err == nil {
			if err := m.surface.RestoreStorage(ctx, data); err != nil {
				logging.SessionDebug("in-origin storage restore failed: %v", err)
			}
			if err := m.surface.Reload(ctx); err != nil {
				return &AcquireError{Site: m.profile.Name, Err: err}
			}
		}
	}

	if m.chatReady() {
		logging.Session("session restored for %s", m.profile.Name)
		return m.Persist(ctx)
	}

	logging.Session("no valid session for %s, waiting up to %v for manual login",
		m.profile.Name, m.timing.LoginWait())

	deadline := time.Now().Add(m.timing.LoginWait())
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return &AcquireError{Site: m.profile.Name, Err: ctx.Err()}
		case <-time.After(m.timing.LoginPoll()):
		}
		if m.chatReady() {
			logging.Session("login detected for %s", m.profile.Name)
			return m.Persist(ctx)
		}
	}

	return &AcquireError{
		Site: m.profile.Name,
		Err:  fmt.Errorf("login not completed within %v", m.timing.LoginWait()),
	}
}

// Persist saves the current cookie jar and storage blobs. Called after login
// and again at the end of a run so refreshed tokens survive.
func (m *Manager) Persist(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(m.cookiePath), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	cookies, err := m.surface.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}
	if err := os.WriteFile(m.cookiePath, cookies, 0600); err != nil {
		return fmt.Errorf("write cookie blob: %w", err)
	}

	storage, err := m.surface.StorageSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot storage: %w", err)
	}
	if err := os.WriteFile(m.storagePath, storage, 0600); err != nil {
		return fmt.Errorf("write storage blob: %w", err)
	}

	logging.SessionDebug("persisted session state to %s", filepath.Dir(m.cookiePath))
	return nil
}

// restore loads saved blobs into the browser before navigation. Returns true
// if any state was applied.
func (m *Manager) restore(ctx context.Context) bool {
	applied := false

	if data, err := os.ReadFile(m.cookiePath); err == nil {
		if err := m.surface.SetCookies(ctx, data); err != nil {
			logging.Get(logging.CategorySession).Warn("cookie restore failed: %v", err)
		} else {
			applied = true
			logging.SessionDebug("restored cookies from %s", m.cookiePath)
		}
	}
	if _, err := os.Stat(m.storagePath); err == nil {
		applied = true
	}
	return applied
}

// chatReady reports whether the chat input is visible and the location is
// not a login page.
func (m *Manager) chatReady() bool {
	url := m.surface.URL()
	for _, pattern := range m.profile.LoginURLPatterns {
		if pattern != "" && strings.Contains(url, pattern) {
			return false
		}
	}
	return m.surface.Visible(m.profile.ChatInput)
}
