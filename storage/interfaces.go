package storage

import (
	"context"

	"bilbasen-scraper/models"
)

// SnapshotWriter persists the primary run artifact and returns where it went.
type SnapshotWriter interface {
	Write(snap *models.Snapshot, filename string) (string, error)
}

// ListingSink is a secondary destination for a written snapshot.
type ListingSink interface {
	WriteListings(ctx context.Context, snap *models.Snapshot) error
	Close() error
}
