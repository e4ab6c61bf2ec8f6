package scraper

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderscan/internal/models"
)

func fastFinderOptions() FinderOptions {
	return FinderOptions{
		VisitDelayMin: time.Millisecond,
		VisitDelayMax: 2 * time.Millisecond,
		RetryDelay:    time.Millisecond,
		WaitTimeout:   50 * time.Millisecond,
	}
}

func TestFindOffer(t *testing.T) {
	m := testMarket()
	m.PriceSelectors = []string{"span.price"}

	s := &fakeSession{
		elements: map[string][]Element{
			m.SearchInputSelectors[0]: {&fakeElement{visible: true, enabled: true}},
			m.LinkSelectors[0]: {
				productLink("1", "кабель ввгнг медный"),
			},
			"span.price": {&fakeElement{visible: true, enabled: true, text: "1 500 ₽"}},
		},
	}

	finder := NewFinder(m, fastFinderOptions(), slog.Default())
	offer := finder.FindOffer(context.Background(), s, models.Item{Name: "кабель ввгнг", Position: 1})

	require.True(t, offer.Found())
	assert.Equal(t, "1 500 ₽", offer.Price)
	// No business selector on this market: the business price is derived.
	assert.Equal(t, "1 830 ₽", offer.BusinessPrice)
	assert.Equal(t, "https://market.test/product/1", offer.Link)
}

func TestFindOfferNoCandidates(t *testing.T) {
	m := testMarket()
	s := &fakeSession{elements: map[string][]Element{}}

	finder := NewFinder(m, fastFinderOptions(), slog.Default())
	offer := finder.FindOffer(context.Background(), s, models.Item{Name: "кабель", Position: 1})

	assert.False(t, offer.Found())
	assert.Equal(t, "", offer.Link)
}

func TestFindOfferKeepsLinkWithoutPrice(t *testing.T) {
	m := testMarket()
	m.PriceSelectors = []string{"span.price"}

	// Candidate pages expose no price anywhere, so the first candidate's link
	// survives with empty price fields.
	s := &fakeSession{
		elements: map[string][]Element{
			m.SearchInputSelectors[0]: {&fakeElement{visible: true, enabled: true}},
			m.LinkSelectors[0]: {
				productLink("7", "кабель ввгнг"),
			},
		},
		evalValue: "",
	}

	finder := NewFinder(m, fastFinderOptions(), slog.Default())
	offer := finder.FindOffer(context.Background(), s, models.Item{Name: "кабель ввгнг", Position: 1})

	assert.False(t, offer.Found())
	assert.Equal(t, "https://market.test/product/7", offer.Link)
}
