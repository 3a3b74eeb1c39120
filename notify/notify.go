// Package notify announces written snapshots to downstream consumers.
package notify

import (
	"context"

	"bilbasen-scraper/models"
)

// Notifier is told about every snapshot that lands on disk.
type Notifier interface {
	SnapshotWritten(ctx context.Context, ev models.SnapshotWritten) error
	Close() error
}

// Nop does nothing. Used when no broker is configured.
type Nop struct{}

func (Nop) SnapshotWritten(context.Context, models.SnapshotWritten) error { return nil }
func (Nop) Close() error                                                 { return nil }
