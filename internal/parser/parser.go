package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one product reference lifted from a results page.
type Link struct {
	URL   string
	Title string
}

// ExtractLinks pulls product links out of static results-page HTML using an
// ordered list of selector strategies. It is the fallback for pages where live
// element queries came up empty. urlPattern filters hrefs to product detail
// pages; the query string is stripped from every URL.
func ExtractLinks(html string, selectors []string, urlPattern string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var links []Link
	seen := make(map[string]struct{})

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || !strings.Contains(href, urlPattern) {
				return
			}
			href = StripQuery(href)
			if _, dup := seen[href]; dup {
				return
			}
			title := strings.TrimSpace(s.Text())
			if title == "" {
				title, _ = s.Attr("title")
				title = strings.TrimSpace(title)
			}
			if title == "" {
				title, _ = s.Attr("aria-label")
				title = strings.TrimSpace(title)
			}
			seen[href] = struct{}{}
			links = append(links, Link{URL: href, Title: title})
		})
		if len(links) > 0 {
			break
		}
	}

	return links, nil
}

// ExtractPriceText finds the first price-looking text in static detail-page
// HTML: the first selector whose first non-empty match contains the currency
// marker wins.
func ExtractPriceText(html string, selectors []string, currency string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	for _, selector := range selectors {
		var found string
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text != "" && strings.Contains(text, currency) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}

	return "", false
}

// StripQuery removes the query string from a URL. Candidate sets are keyed by
// the stripped form.
func StripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
