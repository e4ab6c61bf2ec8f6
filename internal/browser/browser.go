package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"tenderscan/internal/scraper"
)

const profilePrefix = "tenderscan-profile-"

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	// ProfileRoot holds the throwaway per-session profile directories.
	ProfileRoot string
	// CookiesPath points at an exported cookies.json; when set, cookies are
	// injected into every new session so marketplaces see a logged-in user.
	CookiesPath  string
	ExtraHeaders map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "ru-RU,ru;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Moscow",
		Locale:         "ru-RU",
		ProfileRoot:    os.TempDir(),
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Encoding": "gzip, deflate, br",
			"DNT":             "1",
		},
	}
}

// Browser wraps the playwright driver. Each item gets its own persistent
// context with a throwaway profile directory, created by NewSession and torn
// down by the returned cleanup; the driver process itself is shared across
// the whole run.
type Browser struct {
	pw     *playwright.Playwright
	opts   *Options
	logger *slog.Logger
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	b := &Browser{
		pw:     pw,
		opts:   opts,
		logger: slog.Default().With("component", "browser"),
	}
	b.CleanStaleProfiles()
	return b, nil
}

// NewSession launches a fresh persistent context in its own profile
// directory. The cleanup closes the context and removes the profile; it must
// be called exactly once per session.
func (b *Browser) NewSession(ctx context.Context) (scraper.Session, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	profileDir := filepath.Join(b.opts.ProfileRoot, profilePrefix+uuid.NewString())

	browserCtx, err := b.pw.Chromium.LaunchPersistentContext(profileDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless:  playwright.Bool(b.opts.Headless),
			UserAgent: playwright.String(b.opts.UserAgent),
			Locale:    playwright.String(b.opts.Locale),
			TimezoneId: playwright.String(b.opts.TimezoneID),
			Viewport: &playwright.Size{
				Width:  b.opts.ViewportWidth,
				Height: b.opts.ViewportHeight,
			},
			ExtraHttpHeaders: b.opts.ExtraHeaders,
			Args: []string{
				"--disable-blink-features=AutomationControlled",
				"--disable-dev-shm-usage",
				"--no-sandbox",
				"--disable-setuid-sandbox",
			},
		})
	if err != nil {
		os.RemoveAll(profileDir)
		return nil, nil, fmt.Errorf("failed to launch browser context: %w", err)
	}

	cleanup := func() {
		if err := browserCtx.Close(); err != nil {
			b.logger.Warn("failed to close browser context", "error", err)
		}
		if err := os.RemoveAll(profileDir); err != nil {
			b.logger.Warn("failed to remove profile dir", "dir", profileDir, "error", err)
		}
	}

	if b.opts.CookiesPath != "" {
		if err := b.injectCookies(browserCtx); err != nil {
			b.logger.Warn("cookie injection failed, continuing unauthenticated", "error", err)
		}
	}

	page, err := b.currentPage(browserCtx)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return newSession(page, b.logger), cleanup, nil
}

func (b *Browser) currentPage(browserCtx playwright.BrowserContext) (playwright.Page, error) {
	if pages := browserCtx.Pages(); len(pages) > 0 {
		return pages[0], nil
	}
	page, err := browserCtx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return page, nil
}

type cookieRecord struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

func (b *Browser) injectCookies(browserCtx playwright.BrowserContext) error {
	data, err := os.ReadFile(b.opts.CookiesPath)
	if err != nil {
		return fmt.Errorf("failed to read cookies file: %w", err)
	}

	var records []cookieRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse cookies file: %w", err)
	}

	cookies := make([]playwright.OptionalCookie, 0, len(records))
	for _, r := range records {
		if r.Name == "" || r.Domain == "" {
			continue
		}
		c := playwright.OptionalCookie{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   playwright.String(r.Domain),
			Path:     playwright.String(orDefault(r.Path, "/")),
			HttpOnly: playwright.Bool(r.HTTPOnly),
			Secure:   playwright.Bool(r.Secure),
		}
		if r.Expires > 0 {
			c.Expires = playwright.Float(r.Expires)
		}
		cookies = append(cookies, c)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("no usable cookies in %s", b.opts.CookiesPath)
	}

	if err := browserCtx.AddCookies(cookies); err != nil {
		return fmt.Errorf("failed to add cookies: %w", err)
	}
	b.logger.Info("session cookies injected", "count", len(cookies))
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// CleanStaleProfiles removes profile directories left behind by crashed
// prior runs.
func (b *Browser) CleanStaleProfiles() {
	entries, err := os.ReadDir(b.opts.ProfileRoot)
	if err != nil {
		return
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), profilePrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(b.opts.ProfileRoot, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		b.logger.Info("stale profiles removed", "count", removed)
	}
}

func (b *Browser) Close() error {
	if b.pw == nil {
		return nil
	}
	if err := b.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}
