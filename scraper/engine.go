package scraper

import (
	"context"
	"fmt"
	"strings"

	"bilbasen-scraper/models"
	"bilbasen-scraper/utils"
)

// Fetcher retrieves one page of search results. Implementations return
// *models.FetchError or *models.ParseError on failure and never retry.
type Fetcher interface {
	FetchPage(ctx context.Context, page int) (*models.SearchPage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, page int) (*models.SearchPage, error)

func (f FetcherFunc) FetchPage(ctx context.Context, page int) (*models.SearchPage, error) {
	return f(ctx, page)
}

// Engine drives the page-by-page fetch loop, one request at a time.
type Engine struct {
	fetcher Fetcher
	delay   utils.Delay
	logger  *utils.Logger
}

// NewEngine creates an Engine. A nil delay means no pause between pages.
func NewEngine(fetcher Fetcher, delay utils.Delay, logger *utils.Logger) *Engine {
	if delay == nil {
		delay = utils.NoDelay{}
	}
	if logger == nil {
		logger = utils.Discard()
	}
	return &Engine{fetcher: fetcher, delay: delay, logger: logger}
}

// Run fetches pages starting at 1 until one of the stop conditions holds:
// a failed fetch, an empty page, maxPages reached (maxPages <= 0 is unbounded),
// or the declared total collected. Cancelling ctx stops the loop as well.
// Listings gathered before the stop are always kept in the returned state.
func (e *Engine) Run(ctx context.Context, maxPages int) *RunState {
	s := NewRunState()
	e.logger.Info("[engine] Starting to scrape Bilbasen...")

	for {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("[engine] Cancelled before page %d: %v", s.Page, err)
			s.finish(StopCancelled, err)
			break
		}

		e.logger.Info("[engine] Fetching page %d...", s.Page)
		s.Attempts++
		page, err := e.fetcher.FetchPage(ctx, s.Page)
		if err != nil {
			e.logger.Error("[engine] Failed to fetch page %d, stopping: %v", s.Page, err)
			s.finish(StopFetchError, err)
			break
		}

		if total, ok := page.DeclaredTotal(); ok && s.RecordTotal(total) {
			e.logger.Info("[engine] Total items found: %d", total)
		}

		if len(page.Listings) == 0 {
			e.logger.Info("[engine] No more listings found, stopping.")
			s.finish(StopEmptyPage, nil)
			break
		}

		s.Observe(page.Listings)
		e.logProgress(s, page.Listings)

		if maxPages > 0 && s.Page >= maxPages {
			e.logger.Info("[engine] Reached maximum pages limit (%d)", maxPages)
			s.finish(StopMaxPages, nil)
			break
		}
		if s.Complete() {
			e.logger.Info("[engine] Collected all available listings")
			s.finish(StopCollectedAll, nil)
			break
		}

		s.Page++
		if err := e.delay.Wait(ctx); err != nil {
			e.logger.Warn("[engine] Cancelled while waiting for page %d: %v", s.Page, err)
			s.finish(StopCancelled, err)
			break
		}
	}

	e.logger.Info("[engine] Scrape complete — %d listings over %d requests (%s)",
		s.Count(), s.Attempts, s.Stop)
	return s
}

func (e *Engine) logProgress(s *RunState, page []models.Listing) {
	e.logger.Info("[engine] Collected %d listings from page %d (Total: %d)", len(page), s.Page, s.Count())
	e.logger.Info("[engine] First car on this page: %s", page[0].Title())
	e.logger.Info("[engine] Current price range: %s", FormatPriceRange(s.HasPrice, s.MinPrice, s.MaxPrice))
	e.logger.Info("[engine] Unique brands so far: [%s]", strings.Join(s.Brands.Sorted(), ", "))
}

// FormatPriceRange renders "250,000 - 300,000 kr", or "N/A" without data.
func FormatPriceRange(ok bool, lo, hi float64) string {
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%s - %s kr", models.GroupThousands(int(lo)), models.GroupThousands(int(hi)))
}
