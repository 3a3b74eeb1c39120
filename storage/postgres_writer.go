package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"bilbasen-scraper/models"
	"bilbasen-scraper/utils"
)

const listingBatchSize = 50

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresWriter mirrors each run into scrape_runs and snapshot_listings.
type PostgresWriter struct {
	db *sql.DB
}

var _ ListingSink = (*PostgresWriter)(nil)

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scrape_runs (
			run_id         UUID        PRIMARY KEY,
			scraped_at     TIMESTAMPTZ NOT NULL,
			total_listings INTEGER     NOT NULL,
			declared_total INTEGER,
			filters        JSONB       NOT NULL,
			brands         TEXT[]      NOT NULL DEFAULT '{}',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS snapshot_listings (
			run_id   UUID    NOT NULL REFERENCES scrape_runs(run_id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			make     TEXT    NOT NULL DEFAULT '',
			price    NUMERIC(12,2),
			city     TEXT    NOT NULL DEFAULT '',
			payload  JSONB   NOT NULL,
			PRIMARY KEY (run_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_snapshot_listings_make  ON snapshot_listings(make);
		CREATE INDEX IF NOT EXISTS idx_snapshot_listings_price ON snapshot_listings(price);
	`)
	return err
}

// WriteListings stores the run and all of its listings in one transaction.
func (pw *PostgresWriter) WriteListings(ctx context.Context, snap *models.Snapshot) error {
	run, err := runInsert(snap)
	if err != nil {
		return err
	}

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := execBuilder(ctx, tx, run); err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}
	for i, b := range listingInserts(snap.RunID, snap.Listings, listingBatchSize) {
		if err := execBuilder(ctx, tx, b); err != nil {
			return fmt.Errorf("postgres: insert listings batch %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func execBuilder(ctx context.Context, tx *sql.Tx, b sq.InsertBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// runInsert builds the scrape_runs row for snap.
func runInsert(snap *models.Snapshot) (sq.InsertBuilder, error) {
	filters, err := json.Marshal(snap.Filters)
	if err != nil {
		return sq.InsertBuilder{}, fmt.Errorf("postgres: encode filters: %w", err)
	}
	return psql.Insert("scrape_runs").
		Columns("run_id", "scraped_at", "total_listings", "declared_total", "filters", "brands").
		Values(snap.RunID, snap.ScrapedAt, snap.TotalListings, snap.DeclaredTotal, string(filters), pq.StringArray(brands(snap.Listings))), nil
}

// listingInserts splits listings into multi-row inserts of at most size rows.
func listingInserts(runID string, listings []models.Listing, size int) []sq.InsertBuilder {
	var out []sq.InsertBuilder
	for start := 0; start < len(listings); start += size {
		end := min(start+size, len(listings))
		b := psql.Insert("snapshot_listings").Columns("run_id", "position", "make", "price", "city", "payload")
		for i, l := range listings[start:end] {
			var price any
			if p := l.Price(); p > 0 {
				price = p
			}
			payload, _ := l.MarshalJSON()
			b = b.Values(runID, start+i, l.Make(), price, l.City(), string(payload))
		}
		out = append(out, b)
	}
	return out
}

// brands lists distinct non-empty makes in first-seen order.
func brands(listings []models.Listing) []string {
	set := utils.NewOrderedSet()
	for _, l := range listings {
		if m := l.Make(); m != "" {
			set.Add(m)
		}
	}
	return set.Values()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
