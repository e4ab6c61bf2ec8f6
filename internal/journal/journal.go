package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tenderscan/internal/models"
)

// ErrNoPriorRun means no earlier run exists for the given input and label.
var ErrNoPriorRun = errors.New("no prior run recorded")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	input_path TEXT NOT NULL,
	label      TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS offers (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	position       INTEGER NOT NULL,
	name           TEXT NOT NULL,
	price          TEXT NOT NULL,
	business_price TEXT NOT NULL,
	link           TEXT NOT NULL,
	recorded_at    TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_runs_input ON runs(input_path, label, started_at);
`

// Journal persists per-item offers as they complete, so an interrupted run
// can resume without re-scraping finished items. One file per user, embedded
// sqlite, no server.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path and applies the schema.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// The driver is embedded and single-writer; one connection avoids
	// SQLITE_BUSY on interleaved writes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun registers a new run and returns its id.
func (j *Journal) StartRun(ctx context.Context, inputPath, label string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, label, started_at) VALUES (?, ?, ?, ?)`,
		id, inputPath, label, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}

// RecordOffer upserts one finished item. Items with no offer are recorded
// too: resume must not re-scrape an item that legitimately found nothing.
func (j *Journal) RecordOffer(ctx context.Context, runID string, position int, name string, res models.OfferResult) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO offers (run_id, position, name, price, business_price, link, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, position) DO UPDATE SET
		 	name = excluded.name,
		 	price = excluded.price,
		 	business_price = excluded.business_price,
		 	link = excluded.link,
		 	recorded_at = excluded.recorded_at`,
		runID, position, name, res.Price, res.BusinessPrice, res.Link, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record offer: %w", err)
	}
	return nil
}

// CompletedOffers returns the offers of the most recent run for the given
// input and label, keyed by item position.
func (j *Journal) CompletedOffers(ctx context.Context, inputPath, label string) (models.ResultTable, error) {
	var runID string
	err := j.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE input_path = ? AND label = ? ORDER BY started_at DESC LIMIT 1`,
		inputPath, label).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPriorRun
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up prior run: %w", err)
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT position, price, business_price, link FROM offers WHERE run_id = ? ORDER BY position`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior offers: %w", err)
	}
	defer rows.Close()

	table := make(models.ResultTable)
	for rows.Next() {
		var (
			pos int
			res models.OfferResult
		)
		if err := rows.Scan(&pos, &res.Price, &res.BusinessPrice, &res.Link); err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		table.Set(pos, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read offers: %w", err)
	}
	return table, nil
}
