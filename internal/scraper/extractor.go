package scraper

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"tenderscan/internal/models"
	"tenderscan/internal/parser"
)

// nbsp separates thousands groups in displayed prices.
const nbsp = " "

// Extractor pulls 1-2 typed prices off a rendered detail page. It never fails
// upward: a page with no findable price yields a quote with empty fields and an
// infinite amount, which min-selection then ignores.
type Extractor struct {
	market *Marketplace
	markup float64
	logger *slog.Logger
}

// NewExtractor builds an extractor. markup is the business-price multiplier
// applied when the site does not expose a separate VAT-inclusive price.
func NewExtractor(m *Marketplace, markup float64, logger *slog.Logger) *Extractor {
	return &Extractor{
		market: m,
		markup: markup,
		logger: logger.With("component", "extractor", "market", m.Label),
	}
}

// Extract navigates to the candidate URL and runs the selector strategies.
func (e *Extractor) Extract(ctx context.Context, s Session, detailURL string) models.PriceQuote {
	quote := models.PriceQuote{Amount: math.Inf(1), SourceURL: detailURL}

	if err := s.Navigate(ctx, detailURL); err != nil {
		e.logger.Warn("failed to open detail page", "url", detailURL, "error", err)
		return quote
	}

	text, ok := e.priceByElements(s)
	if !ok {
		text, ok = e.priceByHTML(s)
	}
	if !ok {
		text, ok = e.priceByScript(s)
	}
	if !ok {
		e.logger.Debug("price not found", "url", detailURL)
		return quote
	}

	amount, ok := DigitsValue(text)
	if !ok {
		return quote
	}

	quote.Amount = float64(amount)
	quote.Display = FormatPrice(amount)

	if business, ok := e.businessByElements(s); ok {
		quote.BusinessDisplay = business
	} else {
		// Derived business price: an explicit markup fallback, not a scraped
		// value.
		quote.BusinessDisplay = FormatPrice(int64(math.Round(float64(amount) * e.markup)))
	}

	return quote
}

// priceByElements runs the ordered selector strategies against the live DOM:
// first element with non-empty text carrying the currency marker wins.
func (e *Extractor) priceByElements(s Session) (string, bool) {
	for _, selector := range e.market.PriceSelectors {
		elements, err := s.Elements(selector)
		if err != nil {
			continue
		}
		for _, el := range elements {
			text := strings.TrimSpace(el.Text())
			if text != "" && strings.Contains(text, CurrencyMarker) {
				return text, true
			}
		}
	}
	return "", false
}

func (e *Extractor) priceByHTML(s Session) (string, bool) {
	html, err := s.Content()
	if err != nil {
		return "", false
	}
	return parser.ExtractPriceText(html, e.market.PriceSelectors, CurrencyMarker)
}

// priceByScript inspects computed DOM state directly, which catches
// client-rendered variants the selectors miss.
func (e *Extractor) priceByScript(s Session) (string, bool) {
	if e.market.PriceScript == "" {
		return "", false
	}
	result, err := s.Evaluate(e.market.PriceScript)
	if err != nil {
		return "", false
	}
	text, ok := result.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	return strings.TrimSpace(text), true
}

func (e *Extractor) businessByElements(s Session) (string, bool) {
	for _, selector := range e.market.BusinessSelectors {
		elements, err := s.Elements(selector)
		if err != nil {
			continue
		}
		for _, el := range elements {
			text := strings.TrimSpace(el.Text())
			if text == "" || !strings.Contains(text, CurrencyMarker) {
				continue
			}
			if n, ok := DigitsValue(text); ok {
				return FormatPrice(n), true
			}
		}
	}
	return "", false
}

// DigitsValue strips every non-digit rune and parses what remains as an
// integer amount.
func DigitsValue(s string) (int64, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatPrice renders an integer amount as "42 512 ₽" with a non-breaking
// thousands separator.
func FormatPrice(n int64) string {
	digits := strconv.FormatInt(n, 10)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	return strings.Join(groups, nbsp) + " " + CurrencyMarker
}

// ParsePriceValue parses a locale-formatted decimal price string. Whitespace
// (including non-breaking spaces) is dropped, a comma decimal separator
// becomes a dot, and when several dots remain only the last survives as the
// decimal point. Unparsable input yields +Inf, never zero: zero would out-rank
// real prices in min-selection.
func ParsePriceValue(s string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			return r
		default:
			return -1
		}
	}, s)
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	if n := strings.Count(cleaned, "."); n > 1 {
		last := strings.LastIndexByte(cleaned, '.')
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return math.Inf(1)
	}
	return v
}
