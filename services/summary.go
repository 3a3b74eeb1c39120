package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"bilbasen-scraper/models"
	"bilbasen-scraper/scraper"
	"bilbasen-scraper/utils"
)

const unknown = "Unknown"

type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

// tally counts keys and remembers the order in which they first appeared.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally { return &tally{counts: make(map[string]int)} }

func (t *tally) add(key string) {
	if _, seen := t.counts[key]; !seen {
		t.order = append(t.order, key)
	}
	t.counts[key]++
}

// byCount orders by count descending; ties keep first-seen order.
func (t *tally) byCount() []models.Count {
	out := t.list()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func (t *tally) byKey() []models.Count {
	out := t.list()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (t *tally) list() []models.Count {
	out := make([]models.Count, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, models.Count{Key: k, Count: t.counts[k]})
	}
	return out
}

// Generate reduces the listing set in a single pass.
func (s *SummaryService) Generate(listings []models.Listing) *models.RunSummary {
	report := &models.RunSummary{TotalCars: len(listings)}

	makes, cities, years := newTally(), newTally(), newTally()
	for _, l := range listings {
		makes.add(orUnknown(l.Make()))
		cities.add(orUnknown(l.City()))

		if price := l.Price(); price > 0 {
			if !report.HasPrice {
				report.MinPrice, report.MaxPrice, report.HasPrice = price, price, true
			} else {
				report.MinPrice = min(report.MinPrice, price)
				report.MaxPrice = max(report.MaxPrice, price)
			}
		}

		if reg := l.FirstRegistration(); reg != "" {
			years.add(RegistrationYear(reg))
		}
	}

	report.Makes = makes.byCount()
	report.Locations = cities.byCount()
	report.RegistrationYears = years.byKey()

	s.logger.Debug("[summary] %d listings, %d makes, %d cities, %d registration years",
		report.TotalCars, len(report.Makes), len(report.Locations), len(report.RegistrationYears))
	return report
}

// RegistrationYear takes the part after the last "/" of a display date such
// as "3/2024"; strings without "/" are returned as they are.
func RegistrationYear(display string) string {
	if i := strings.LastIndex(display, "/"); i >= 0 {
		return display[i+1:]
	}
	return display
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

const topN = 5

func (s *SummaryService) Print(w io.Writer, r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  SCRAPING SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "  Total cars scraped : \033[1m%d\033[0m\n", r.TotalCars)
	fmt.Fprintf(w, "  Price range        : \033[1;32m%s\033[0m\n\n",
		scraper.FormatPriceRange(r.HasPrice, r.MinPrice, r.MaxPrice))

	printCounts(w, "Top car makes", thin, top(r.Makes, topN))
	printCounts(w, "Top locations", thin, top(r.Locations, topN))
	printCounts(w, "Registration years", thin, r.RegistrationYears)

	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(w io.Writer, title, rule string, counts []models.Count) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", rule)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}
	for _, c := range counts {
		fmt.Fprintf(w, "  %-30s %d\n", truncate(c.Key, 28), c.Count)
	}
	fmt.Fprintln(w)
}

func top(counts []models.Count, n int) []models.Count {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
