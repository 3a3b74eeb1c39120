package bilbasen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"bilbasen-scraper/models"
	"bilbasen-scraper/scraper"
	"bilbasen-scraper/utils"
)

// BrowserClient issues the search request from inside a headless Chrome page
// on the site origin, so the call carries the cookies a real visitor gets.
type BrowserClient struct {
	endpoint string
	origin   string
	filters  models.FilterPayload
	timeout  time.Duration
	logger   *utils.Logger

	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	opened      bool
}

var _ scraper.Fetcher = (*BrowserClient)(nil)

// BrowserOptions configures NewBrowserClient.
type BrowserOptions struct {
	Endpoint  string
	Origin    string
	Timeout   time.Duration
	ChromeBin string
}

// NewBrowserClient starts a headless browser allocator. Chrome itself is
// launched lazily by the first FetchPage. Call Close when done.
func NewBrowserClient(opts BrowserOptions, filters models.FilterPayload, logger *utils.Logger) (*BrowserClient, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Origin == "" {
		opts.Origin = DefaultOrigin
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	chromeBin := findChromeBinary(opts.ChromeBin)
	logger.Info("[browser] Using browser binary: %s", orDefault(chromeBin, "chromedp default"))

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &BrowserClient{
		endpoint:    opts.Endpoint,
		origin:      opts.Origin,
		filters:     filters,
		timeout:     opts.Timeout,
		logger:      logger,
		browserCtx:  tabCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
	}, nil
}

type browserResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// FetchPage runs fetch() for one page inside the browser tab.
func (b *BrowserClient) FetchPage(ctx context.Context, page int) (*models.SearchPage, error) {
	if !b.opened {
		// The first Run starts Chrome and ties its lifetime to that context.
		if err := chromedp.Run(b.browserCtx); err != nil {
			return nil, &models.FetchError{Page: page, Err: fmt.Errorf("start browser: %w", err)}
		}
	}

	runCtx, cancel := context.WithTimeout(b.browserCtx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if !b.opened {
		if err := chromedp.Run(runCtx, chromedp.Navigate(b.origin)); err != nil {
			return nil, &models.FetchError{Page: page, Err: fmt.Errorf("open %s: %w", b.origin, err)}
		}
		b.opened = true
		b.logger.Debug("[browser] Opened %s", b.origin)
	}

	body, err := b.filters.RequestBody(page)
	if err != nil {
		return nil, &models.FetchError{Page: page, Err: err}
	}
	script, err := buildFetchScript(b.endpoint, body)
	if err != nil {
		return nil, &models.FetchError{Page: page, Err: err}
	}

	var resp browserResponse
	err = chromedp.Run(runCtx, chromedp.Evaluate(script, &resp, awaitPromise))
	if err != nil {
		return nil, &models.FetchError{Page: page, Err: fmt.Errorf("chromedp evaluate: %w", err)}
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, &models.FetchError{Page: page, Err: fmt.Errorf("HTTP %d from %s", resp.Status, b.endpoint)}
	}
	return decodePage(page, []byte(resp.Body))
}

// Close shuts the browser down.
func (b *BrowserClient) Close() error {
	b.cancelTab()
	b.cancelAlloc()
	return nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

const fetchScript = `(async () => {
	const res = await fetch(%s, {
		method: "POST",
		credentials: "include",
		headers: {"Content-Type": "application/json", "Accept": "*/*"},
		body: %s
	});
	return {status: res.status, body: await res.text()};
})()`

// buildFetchScript embeds the endpoint and request body as JS string literals.
func buildFetchScript(endpoint string, body []byte) (string, error) {
	ep, err := json.Marshal(endpoint)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(string(body))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(fetchScript, ep, payload), nil
}

// findChromeBinary locates Chrome/Chromium, preferring an explicit path.
func findChromeBinary(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
