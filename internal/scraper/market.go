package scraper

// Marketplace bundles the extraction rules for one search engine: where to
// search, how to recognize result pages, and the ordered selector strategies
// for product links and prices. New marketplaces add a constructor here rather
// than branching on a mode string elsewhere.
type Marketplace struct {
	Label            string
	HomeURL          string
	SearchURLFormat  string // fmt template taking the url-encoded query
	ResultsURLMarker string // substring of the current URL on a results view

	SearchInputSelectors []string
	LinkSelectors        []string
	LinkPattern          string // substring identifying product detail URLs

	PriceSelectors []string
	PriceScript    string // page-script fallback for client-rendered variants

	// BusinessSelectors locate a separately exposed VAT-inclusive price. When
	// they yield nothing the business price is derived from the base amount.
	BusinessSelectors []string

	BlockMarkers []string
}

const CurrencyMarker = "₽"

func YandexMarket() *Marketplace {
	return &Marketplace{
		Label:            "Яндекс Маркет",
		HomeURL:          "https://market.yandex.ru/",
		SearchURLFormat:  "https://market.yandex.ru/search?text=%s",
		ResultsURLMarker: "search",
		SearchInputSelectors: []string{
			`input[name="text"]`,
			`input[data-auto="search-input"]`,
			`input[placeholder*="искать" i]`,
			`input[placeholder*="поиск" i]`,
			`.search-input input`,
			`.header-search input`,
			`[data-zone="search"] input`,
			`input.n-search__input`,
			`input[type="search"]`,
		},
		LinkSelectors: []string{
			`a[data-auto="snippet-link"]`,
			`a[data-zone-name="title"]`,
			`a[href*="/product--"]`,
		},
		LinkPattern: "/product",
		PriceSelectors: []string{
			`span.ds-text_color_price-term`,
			`div[data-auto="mainPrice"] span`,
			`span.price`,
		},
		PriceScript: yandexPriceScript,
		BusinessSelectors: []string{
			`div[data-auto="b2b-price"] span`,
		},
		BlockMarkers: []string{
			"Подтвердите, что запросы отправляли вы",
			"Access denied",
		},
	}
}

func Ozon() *Marketplace {
	return &Marketplace{
		Label:            "Ozon",
		HomeURL:          "https://www.ozon.ru",
		SearchURLFormat:  "https://www.ozon.ru/search/?text=%s",
		ResultsURLMarker: "search",
		SearchInputSelectors: []string{
			`input[name="text"]`,
			`input[placeholder*="Искать" i]`,
			`[data-widget="searchBar"] input`,
		},
		LinkSelectors: []string{
			`a[href*="/product/"]`,
		},
		LinkPattern: "/product/",
		PriceSelectors: []string{
			// Price without the Ozon card comes first; the generic headline
			// classes are kept for older page variants.
			`span.pdp_b7f.tsHeadline500Medium`,
			`div[data-widget="webPrice"] span.tsHeadline500Medium`,
			`span.tsHeadline500Medium`,
			`span.tsHeadline600Large`,
		},
		PriceScript: ozonPriceScript,
		BlockMarkers: []string{
			"Доступ ограничен",
			"Access denied",
			"403 Forbidden",
			"419 Too Many Requests",
		},
	}
}

const ozonPriceScript = `() => {
	const el = document.querySelector('span.pdp_b7f.tsHeadline500Medium');
	if (el) {
		return el.textContent.trim();
	}
	const widget = document.querySelector('div[data-widget="webPrice"]');
	if (widget) {
		const spans = widget.querySelectorAll('span.tsHeadline500Medium, span.tsHeadline600Large');
		if (spans.length > 0) {
			return spans[spans.length - 1].textContent.trim();
		}
	}
	return '';
}`

const yandexPriceScript = `() => {
	const main = document.querySelector('div[data-auto="mainPrice"]');
	if (main) {
		return main.textContent.trim();
	}
	const term = document.querySelector('span.ds-text_color_price-term');
	if (term) {
		return term.textContent.trim();
	}
	return '';
}`
