package models

import "time"

// Snapshot is the persisted artifact of one run. The report generators read it.
type Snapshot struct {
	RunID         string            `json:"run_id"`
	ScrapedAt     time.Time         `json:"scraped_at"`
	TotalListings int               `json:"total_listings"`
	DeclaredTotal *int              `json:"declared_total"`
	Filters       FilterDescription `json:"filters"`
	Listings      []Listing         `json:"listings"`
}

// NewSnapshot assembles a snapshot from the collected listings.
func NewSnapshot(runID string, at time.Time, filters FilterDescription, listings []Listing, declaredTotal *int) *Snapshot {
	if listings == nil {
		listings = []Listing{}
	}
	return &Snapshot{
		RunID:         runID,
		ScrapedAt:     at,
		TotalListings: len(listings),
		DeclaredTotal: declaredTotal,
		Filters:       filters,
		Listings:      listings,
	}
}

// SnapshotWritten is announced after a snapshot lands on disk.
type SnapshotWritten struct {
	RunID         string    `json:"run_id"`
	Path          string    `json:"path"`
	TotalListings int       `json:"total_listings"`
	ScrapedAt     time.Time `json:"scraped_at"`
}
