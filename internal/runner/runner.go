package runner

import (
	"context"
	"log/slog"

	"tenderscan/internal/models"
	"tenderscan/internal/scraper"
)

// OfferFinder produces the best offer for one item within a live session.
type OfferFinder interface {
	Label() string
	FindOffer(ctx context.Context, s scraper.Session, item models.Item) models.OfferResult
}

// SessionProvider hands out a fresh browser session per item. The returned
// cleanup tears the session and its profile directory down; it must be called
// exactly once.
type SessionProvider interface {
	NewSession(ctx context.Context) (scraper.Session, func(), error)
}

// Options tune one run. CheckpointEvery of zero disables periodic
// checkpoints; the final checkpoint still fires.
type Options struct {
	CheckpointEvery int
	// Checkpoint receives a snapshot of everything completed so far.
	Checkpoint func(models.ResultTable) error
	// RecordOffer persists a single finished item, cached or scraped.
	RecordOffer func(position int, name string, res models.OfferResult) error
	// Resume holds offers completed by a prior run, keyed by position; those
	// items are carried over without a session.
	Resume models.ResultTable
}

// Coordinator owns the sequential item loop: one browser session per item,
// strictly in spreadsheet order, with an in-memory cache keyed by normalized
// name so duplicate items cost one scrape. Cancellation stops before the next
// item and returns whatever completed.
type Coordinator struct {
	provider SessionProvider
	opts     Options
	logger   *slog.Logger
}

func New(provider SessionProvider, opts Options, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		provider: provider,
		opts:     opts,
		logger:   logger.With("component", "runner"),
	}
}

// Run processes every item against one marketplace and returns the result
// table. The table always holds an entry per processed item, found or not, so
// the merge engine and the journal see the same picture.
func (c *Coordinator) Run(ctx context.Context, finder OfferFinder, items []models.Item) models.ResultTable {
	table := make(models.ResultTable, len(items))
	cache := make(map[string]models.OfferResult)
	sinceCheckpoint := 0

	c.logger.Info("run started", "market", finder.Label(), "items", len(items), "resumed", len(c.opts.Resume))

	for _, item := range items {
		if ctx.Err() != nil {
			c.logger.Warn("run cancelled", "completed", len(table), "of", len(items))
			break
		}

		res, source := c.resolve(ctx, finder, cache, item)
		table.Set(item.Position, res)
		cache[scraper.NormalizeQuery(item.Name)] = res
		c.logger.Info("item finished",
			"position", item.Position, "source", source, "found", res.Found())

		c.record(item, res)

		sinceCheckpoint++
		if c.opts.CheckpointEvery > 0 && sinceCheckpoint >= c.opts.CheckpointEvery {
			c.checkpoint(table)
			sinceCheckpoint = 0
		}
	}

	if sinceCheckpoint > 0 {
		c.checkpoint(table)
	}

	c.logger.Info("run finished",
		"market", finder.Label(), "completed", len(table), "found", table.FoundCount())
	return table
}

func (c *Coordinator) resolve(ctx context.Context, finder OfferFinder, cache map[string]models.OfferResult, item models.Item) (models.OfferResult, string) {
	if prior, ok := c.opts.Resume[item.Position]; ok {
		return prior, "journal"
	}
	if cached, ok := cache[scraper.NormalizeQuery(item.Name)]; ok {
		return cached, "cache"
	}

	session, cleanup, err := c.provider.NewSession(ctx)
	if err != nil {
		c.logger.Error("failed to open session", "position", item.Position, "error", err)
		return models.OfferResult{}, "error"
	}
	defer cleanup()

	return finder.FindOffer(ctx, session, item), "scrape"
}

func (c *Coordinator) record(item models.Item, res models.OfferResult) {
	if c.opts.RecordOffer == nil {
		return
	}
	if err := c.opts.RecordOffer(item.Position, item.Name, res); err != nil {
		c.logger.Error("failed to journal offer", "position", item.Position, "error", err)
	}
}

func (c *Coordinator) checkpoint(table models.ResultTable) {
	if c.opts.Checkpoint == nil {
		return
	}
	if err := c.opts.Checkpoint(table.Snapshot()); err != nil {
		c.logger.Error("checkpoint failed", "error", err)
	}
}
