package models

// Count is one bucket of a grouped tally.
type Count struct {
	Key   string
	Count int
}

// RunSummary holds the end-of-run aggregates over the final listing set.
type RunSummary struct {
	TotalCars int

	// HasPrice is false when no listing carried a positive price.
	HasPrice bool
	MinPrice float64
	MaxPrice float64

	// Makes and Locations are ordered by count descending, ties by first appearance.
	Makes     []Count
	Locations []Count
	// RegistrationYears is ordered by year ascending.
	RegistrationYears []Count
}

// CountOf returns the tally for key, or 0.
func CountOf(counts []Count, key string) int {
	for _, c := range counts {
		if c.Key == key {
			return c.Count
		}
	}
	return 0
}
