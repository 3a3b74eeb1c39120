package scraper

import (
	"bilbasen-scraper/models"
	"bilbasen-scraper/utils"
)

// StopReason says why the fetch loop ended.
type StopReason string

const (
	StopNone         StopReason = ""
	StopFetchError   StopReason = "fetch_error"
	StopEmptyPage    StopReason = "empty_page"
	StopMaxPages     StopReason = "max_pages"
	StopCollectedAll StopReason = "collected_all"
	StopCancelled    StopReason = "cancelled"
)

// RunState is the aggregate of one fetch run. The loop owns it exclusively.
type RunState struct {
	// Listings in page-arrival order, then within-page order.
	Listings []models.Listing
	// DeclaredTotal is set from the first page that reports one and never changed.
	DeclaredTotal *int
	Brands        *utils.OrderedSet
	// MinPrice and MaxPrice cover positive prices only; valid when HasPrice.
	MinPrice float64
	MaxPrice float64
	HasPrice bool

	// Page is the cursor of the current (or last attempted) page, starting at 1.
	Page int
	// Attempts counts FetchPage calls.
	Attempts int

	Stop StopReason
	// Err is the error that ended the run, if any.
	Err error
}

// NewRunState returns the state before the first page.
func NewRunState() *RunState {
	return &RunState{
		Listings: []models.Listing{},
		Brands:   utils.NewOrderedSet(),
		Page:     1,
	}
}

// RecordTotal stores n if no total is known yet and reports whether it did.
func (s *RunState) RecordTotal(n int) bool {
	if s.DeclaredTotal != nil {
		return false
	}
	s.DeclaredTotal = &n
	return true
}

// Observe appends a page of listings and folds them into the brand set and price bounds.
func (s *RunState) Observe(page []models.Listing) {
	s.Listings = append(s.Listings, page...)
	for _, l := range page {
		brand := l.Make()
		if brand == "" {
			brand = "Unknown"
		}
		s.Brands.Add(brand)

		price := l.Price()
		if price <= 0 {
			continue
		}
		if !s.HasPrice {
			s.MinPrice, s.MaxPrice, s.HasPrice = price, price, true
			continue
		}
		if price < s.MinPrice {
			s.MinPrice = price
		}
		if price > s.MaxPrice {
			s.MaxPrice = price
		}
	}
}

// Complete reports whether the declared total has been reached.
// A declared total of zero never completes the run.
func (s *RunState) Complete() bool {
	return s.DeclaredTotal != nil && *s.DeclaredTotal > 0 && len(s.Listings) >= *s.DeclaredTotal
}

// Count is the number of listings collected so far.
func (s *RunState) Count() int { return len(s.Listings) }

func (s *RunState) finish(reason StopReason, err error) {
	s.Stop = reason
	s.Err = err
}
