package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"bilbasen-scraper/models"
)

var csvHeader = []string{
	"make", "model", "variant", "price", "city", "first_registration", "mileage", "uri",
}

// CSVWriter exports a flat table of listings, one row per car.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var _ ListingSink = (*CSVWriter)(nil)

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteListings appends every listing of snap.
func (c *CSVWriter) WriteListings(ctx context.Context, snap *models.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range snap.Listings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.writer.Write(csvRow(l)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

func csvRow(l models.Listing) []string {
	price := ""
	if p := l.Price(); p > 0 {
		price = strconv.FormatFloat(p, 'f', -1, 64)
	}
	return []string{
		l.Make(),
		l.Model(),
		l.Variant(),
		price,
		l.City(),
		l.FirstRegistration(),
		l.Mileage(),
		l.URI(),
	}
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
