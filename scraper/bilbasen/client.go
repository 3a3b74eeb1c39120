package bilbasen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bilbasen-scraper/models"
	"bilbasen-scraper/scraper"
)

const (
	DefaultEndpoint = "https://www.bilbasen.dk/api/search/by-request"
	DefaultOrigin   = "https://www.bilbasen.dk"

	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15"
	maxBodyBytes = 32 << 20
)

// Client fetches search pages over plain HTTP.
type Client struct {
	endpoint string
	origin   string
	filters  models.FilterPayload
	http     *http.Client
	tracer   trace.Tracer
}

var _ scraper.Fetcher = (*Client)(nil)

// NewClient validates the filters and returns a Client. A nil httpClient gets
// a standard transport with a 30 s timeout.
func NewClient(endpoint, origin string, filters models.FilterPayload, httpClient *http.Client) (*Client, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if origin == "" {
		origin = DefaultOrigin
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		endpoint: endpoint,
		origin:   origin,
		filters:  filters,
		http:     httpClient,
		tracer:   otel.Tracer("bilbasen-scraper/scraper/bilbasen"),
	}, nil
}

// FetchPage posts the filter payload for one page and decodes the response.
func (c *Client) FetchPage(ctx context.Context, page int) (*models.SearchPage, error) {
	ctx, span := c.tracer.Start(ctx, "bilbasen.fetch_page", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()

	result, err := c.fetch(ctx, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("listings", len(result.Listings)))
	return result, nil
}

func (c *Client) fetch(ctx context.Context, page int) (*models.SearchPage, error) {
	body, err := c.filters.RequestBody(page)
	if err != nil {
		return nil, &models.FetchError{Page: page, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &models.FetchError{Page: page, Err: fmt.Errorf("build request: %w", err)}
	}
	setBrowserHeaders(req, c.origin)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.FetchError{Page: page, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &models.FetchError{Page: page, Err: fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.endpoint)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &models.FetchError{Page: page, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(data) > maxBodyBytes {
		return nil, &models.ParseError{Page: page, Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}
	return decodePage(page, data)
}

func setBrowserHeaders(req *http.Request, origin string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", origin+"/brugt/bil")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Dest", "empty")
}

var errNotObject = errors.New("response is not a JSON object")

// decodePage turns a response body into a SearchPage.
func decodePage(page int, data []byte) (*models.SearchPage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &models.ParseError{Page: page, Err: errNotObject}
	}
	var result models.SearchPage
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, &models.ParseError{Page: page, Err: err}
	}
	return &result, nil
}
