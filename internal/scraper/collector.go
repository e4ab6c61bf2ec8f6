package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"tenderscan/internal/models"
	"tenderscan/internal/parser"
)

// Collector turns a normalized query into a ranked candidate set for one
// marketplace. Every failure mode degrades to an empty list: the item then
// simply ends up with no offer.
type Collector struct {
	market      *Marketplace
	logger      *slog.Logger
	maxRetries  int
	retryDelay  time.Duration
	waitTimeout time.Duration
	maxRaw      int
	maxSelected int
}

func NewCollector(m *Marketplace, logger *slog.Logger) *Collector {
	return &Collector{
		market:      m,
		logger:      logger.With("component", "collector", "market", m.Label),
		maxRetries:  3,
		retryDelay:  2 * time.Second,
		waitTimeout: 10 * time.Second,
		maxRaw:      40,
		maxSelected: 5,
	}
}

// Collect performs one search and gathers up to maxSelected candidates.
func (c *Collector) Collect(ctx context.Context, s Session, query string) []models.Candidate {
	if query == "" {
		return nil
	}

	if err := c.openResults(ctx, s, query); err != nil {
		c.logger.Warn("search failed", "query", query, "error", err)
		return nil
	}

	if c.blocked(s) {
		c.logger.Warn("results page blocked", "query", query)
		return nil
	}

	raw := c.gatherLinks(s, query)
	if len(raw) == 0 {
		c.logger.Warn("no product links found", "query", query)
		return nil
	}

	selected := SelectCandidates(raw, c.maxSelected)
	c.logger.Info("candidates collected", "query", query, "raw", len(raw), "selected", len(selected))
	return selected
}

// openResults tries the interactive search path with retries, then falls back
// to direct navigation to the templated results URL.
func (c *Collector) openResults(ctx context.Context, s Session, query string) error {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			c.logger.Debug("retrying search", "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		if err := c.searchInteractive(ctx, s, query); err != nil {
			lastErr = err
			continue
		}
		if err := c.waitForResults(ctx, s); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	c.logger.Debug("interactive search failed, navigating directly", "error", lastErr)
	return c.navigateDirect(ctx, s, query)
}

func (c *Collector) searchInteractive(ctx context.Context, s Session, query string) error {
	onResults := strings.Contains(s.CurrentURL(), c.market.ResultsURLMarker)
	if !onResults {
		if err := s.Navigate(ctx, c.market.HomeURL); err != nil {
			return fmt.Errorf("failed to open marketplace: %w", err)
		}
	}

	input := c.findSearchInput(s)
	if input == nil {
		return ErrNoSearchInput
	}

	// On a results view the existing query is replaced in place; on the home
	// page this is the plain input-then-submit sequence.
	if !onResults {
		if err := input.Click(); err != nil {
			return fmt.Errorf("failed to focus search input: %w", err)
		}
	}
	if err := input.Fill(query); err != nil {
		return fmt.Errorf("failed to fill search input: %w", err)
	}
	if err := input.Press("Enter"); err != nil {
		return fmt.Errorf("failed to submit search: %w", err)
	}
	return nil
}

// findSearchInput walks the ordered selector strategies and returns the first
// visible, enabled input.
func (c *Collector) findSearchInput(s Session) Element {
	for _, selector := range c.market.SearchInputSelectors {
		elements, err := s.Elements(selector)
		if err != nil {
			continue
		}
		for _, el := range elements {
			if el.Visible() && el.Enabled() {
				return el
			}
		}
	}
	return nil
}

func (c *Collector) navigateDirect(ctx context.Context, s Session, query string) error {
	target := fmt.Sprintf(c.market.SearchURLFormat, url.QueryEscape(query))
	if err := s.Navigate(ctx, target); err != nil {
		return fmt.Errorf("direct search navigation failed: %w", err)
	}
	if !strings.Contains(s.CurrentURL(), c.market.ResultsURLMarker) {
		return ErrNoResults
	}
	return nil
}

// waitForResults polls for product links until the timeout elapses.
func (c *Collector) waitForResults(ctx context.Context, s Session) error {
	deadline := time.Now().Add(c.waitTimeout)
	for {
		for _, selector := range c.market.LinkSelectors {
			elements, err := s.Elements(selector)
			if err == nil && len(elements) > 0 {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return ErrNoResults
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// gatherLinks collects a deduplicated candidate set from the live DOM, falling
// back to static HTML parsing when element queries come up empty.
func (c *Collector) gatherLinks(s Session, query string) []models.Candidate {
	seen := make(map[string]struct{})
	var out []models.Candidate

	add := func(href, title string) {
		if len(out) >= c.maxRaw {
			return
		}
		href = c.absolutize(parser.StripQuery(href))
		if href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		out = append(out, models.Candidate{
			Title:     title,
			DetailURL: href,
			Relevance: RelevanceScore(query, title),
		})
	}

	for _, selector := range c.market.LinkSelectors {
		elements, err := s.Elements(selector)
		if err != nil {
			continue
		}
		for _, el := range elements {
			if len(out) >= c.maxRaw {
				break
			}
			href := el.Attribute("href")
			if href == "" || !strings.Contains(href, c.market.LinkPattern) {
				continue
			}
			title := strings.TrimSpace(el.Text())
			if title == "" {
				title = strings.TrimSpace(el.Attribute("title"))
			}
			if title == "" {
				title = strings.TrimSpace(el.Attribute("aria-label"))
			}
			add(href, title)
		}
		if len(out) > 0 {
			break
		}
	}

	if len(out) == 0 {
		html, err := s.Content()
		if err != nil {
			return nil
		}
		links, err := parser.ExtractLinks(html, c.market.LinkSelectors, c.market.LinkPattern)
		if err != nil {
			return nil
		}
		for _, l := range links {
			add(l.URL, l.Title)
		}
	}

	return out
}

func (c *Collector) absolutize(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return strings.TrimSuffix(c.market.HomeURL, "/") + href
	}
	return href
}

func (c *Collector) blocked(s Session) bool {
	if len(c.market.BlockMarkers) == 0 {
		return false
	}
	html, err := s.Content()
	if err != nil {
		return false
	}
	for _, marker := range c.market.BlockMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

// SelectCandidates keeps every candidate sharing the maximum relevance score,
// capped at max. A zero max score means no relevance signal at all; the first
// max candidates are then taken in encountered order.
func SelectCandidates(raw []models.Candidate, max int) []models.Candidate {
	if len(raw) == 0 {
		return nil
	}

	best := 0
	for _, cand := range raw {
		if cand.Relevance > best {
			best = cand.Relevance
		}
	}

	var out []models.Candidate
	if best == 0 {
		for _, cand := range raw {
			if len(out) >= max {
				break
			}
			out = append(out, cand)
		}
		return out
	}

	for _, cand := range raw {
		if cand.Relevance != best {
			continue
		}
		if len(out) >= max {
			break
		}
		out = append(out, cand)
	}
	return out
}
