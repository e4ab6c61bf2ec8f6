package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"tenderscan/internal/scraper"
)

const navigateRetries = 3

// session adapts one playwright page to the scraping interfaces. All lookup
// failures surface as errors or empty values; the page itself is owned by the
// Browser's cleanup, not by the session.
type session struct {
	page   playwright.Page
	logger *slog.Logger
}

func newSession(page playwright.Page, logger *slog.Logger) *session {
	return &session{
		page:   page,
		logger: logger.With("component", "session"),
	}
}

func (s *session) Navigate(ctx context.Context, url string) error {
	var lastErr error
	for attempt := 0; attempt < navigateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			s.logger.Info("retrying navigation", "attempt", attempt+1, "url", url)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}

		_, err := s.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		})
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Warn("navigation failed", "url", url, "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("failed after %d attempts: %w", navigateRetries, lastErr)
}

func (s *session) Elements(selector string) ([]scraper.Element, error) {
	handles, err := s.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("selector query failed: %w", err)
	}
	out := make([]scraper.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &element{handle: h})
	}
	return out, nil
}

func (s *session) Evaluate(script string) (any, error) {
	result, err := s.page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}
	return result, nil
}

func (s *session) Content() (string, error) {
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

func (s *session) CurrentURL() string {
	return s.page.URL()
}

type element struct {
	handle playwright.ElementHandle
}

func (e *element) Visible() bool {
	visible, err := e.handle.IsVisible()
	return err == nil && visible
}

func (e *element) Enabled() bool {
	enabled, err := e.handle.IsEnabled()
	return err == nil && enabled
}

func (e *element) Text() string {
	text, err := e.handle.TextContent()
	if err != nil {
		return ""
	}
	return text
}

func (e *element) Attribute(name string) string {
	val, err := e.handle.GetAttribute(name)
	if err != nil {
		return ""
	}
	return val
}

func (e *element) Click() error {
	return e.handle.Click()
}

func (e *element) Fill(value string) error {
	return e.handle.Fill(value)
}

func (e *element) Press(key string) error {
	return e.handle.Press(key)
}
