package scraper

import (
	"tenderscan/internal/models"
)

// BestOffer reduces the quotes gathered for one item, in candidate order, to a
// single offer: minimum finite amount, ties broken by first-encountered order.
// When no quote has a finite amount the first quote's raw fields are kept so a
// link survives even without a usable price. Deterministic for a fixed input.
func BestOffer(quotes []models.PriceQuote) models.OfferResult {
	if len(quotes) == 0 {
		return models.OfferResult{}
	}

	best := -1
	for i, q := range quotes {
		if !q.Finite() {
			continue
		}
		if best < 0 || q.Amount < quotes[best].Amount {
			best = i
		}
	}

	if best < 0 {
		best = 0
	}

	return models.OfferResult{
		Price:         quotes[best].Display,
		BusinessPrice: quotes[best].BusinessDisplay,
		Link:          quotes[best].SourceURL,
	}
}
