package scraper

import (
	"context"
	"log/slog"
	"time"

	"tenderscan/internal/models"
	"tenderscan/internal/ratelimit"
)

// Finder is the per-item pipeline for one marketplace: search, visit the
// ranked candidates, extract a quote from each, and keep the cheapest.
type Finder struct {
	market    *Marketplace
	collector *Collector
	extractor *Extractor
	limiter   ratelimit.Limiter
	logger    *slog.Logger
}

// FinderOptions tune the pipeline. Zero values fall back to defaults.
type FinderOptions struct {
	BusinessMarkup float64
	VisitDelayMin  time.Duration
	VisitDelayMax  time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	WaitTimeout    time.Duration
	MaxCandidates  int
}

func NewFinder(m *Marketplace, opts FinderOptions, logger *slog.Logger) *Finder {
	if opts.BusinessMarkup <= 0 {
		opts.BusinessMarkup = 1.22
	}
	if opts.VisitDelayMin <= 0 {
		opts.VisitDelayMin = 1 * time.Second
	}
	if opts.VisitDelayMax < opts.VisitDelayMin {
		opts.VisitDelayMax = opts.VisitDelayMin
	}

	collector := NewCollector(m, logger)
	if opts.MaxRetries > 0 {
		collector.maxRetries = opts.MaxRetries
	}
	if opts.RetryDelay > 0 {
		collector.retryDelay = opts.RetryDelay
	}
	if opts.WaitTimeout > 0 {
		collector.waitTimeout = opts.WaitTimeout
	}
	if opts.MaxCandidates > 0 {
		collector.maxSelected = opts.MaxCandidates
	}

	return &Finder{
		market:    m,
		collector: collector,
		extractor: NewExtractor(m, opts.BusinessMarkup, logger),
		limiter:   ratelimit.New(opts.VisitDelayMin, opts.VisitDelayMax),
		logger:    logger.With("component", "finder", "market", m.Label),
	}
}

func (f *Finder) Label() string {
	return f.market.Label
}

// FindOffer runs the full pipeline for one item. Cancellation abandons the
// remaining candidates and returns the best quote collected so far.
func (f *Finder) FindOffer(ctx context.Context, s Session, item models.Item) models.OfferResult {
	query := NormalizeQuery(item.Name)

	candidates := f.collector.Collect(ctx, s, query)
	if len(candidates) == 0 {
		return models.OfferResult{}
	}

	quotes := make([]models.PriceQuote, 0, len(candidates))
	for i, cand := range candidates {
		if ctx.Err() != nil {
			f.logger.Info("cancelled, keeping partial quotes", "visited", i, "of", len(candidates))
			break
		}
		if err := f.limiter.Wait(ctx); err != nil {
			break
		}

		quote := f.extractor.Extract(ctx, s, cand.DetailURL)
		quotes = append(quotes, quote)
		if quote.Found() {
			f.logger.Debug("quote extracted", "url", cand.DetailURL, "price", quote.Display)
		}
	}

	offer := BestOffer(quotes)
	if offer.Found() {
		f.logger.Info("best offer selected", "position", item.Position, "price", offer.Price)
	} else {
		f.logger.Info("no offer found", "position", item.Position)
	}
	return offer
}
