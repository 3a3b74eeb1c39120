package bilbasen

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tls2 "github.com/refraction-networking/utls"

	"bilbasen-scraper/config"
	"bilbasen-scraper/models"
)

func testFilters() models.FilterPayload {
	return config.DefaultFilters()
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, "https://www.bilbasen.dk", testFilters(), srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchPageSendsPayloadAndHeaders(t *testing.T) {
	var mu sync.Mutex
	var got struct {
		method  string
		ctype   string
		origin  string
		ua      string
		payload map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		got.method = r.Method
		got.ctype = r.Header.Get("Content-Type")
		got.origin = r.Header.Get("Origin")
		got.ua = r.Header.Get("User-Agent")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got.payload)
		w.Write([]byte(`{"listings":[{"make":"Mercedes","price":{"price":289900}}],"pulse":{"object":{"numItems":1}}}`))
	}))
	defer srv.Close()

	page, err := newTestClient(t, srv).FetchPage(context.Background(), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.method != http.MethodPost || got.ctype != "application/json" {
		t.Errorf("request: %s %s", got.method, got.ctype)
	}
	if got.origin != "https://www.bilbasen.dk" || !strings.Contains(got.ua, "Mozilla/5.0") {
		t.Errorf("browser headers missing: origin=%q ua=%q", got.origin, got.ua)
	}
	if got.payload["page"] != float64(4) || got.payload["pageSize"] != float64(30) {
		t.Errorf("payload page fields: %v / %v", got.payload["page"], got.payload["pageSize"])
	}
	if _, ok := got.payload["selectedFilters"].(map[string]any)["FuelType"]; !ok {
		t.Errorf("selectedFilters missing FuelType: %v", got.payload["selectedFilters"])
	}

	if len(page.Listings) != 1 || page.Listings[0].Make() != "Mercedes" {
		t.Errorf("listings: %+v", page.Listings)
	}
	if n, ok := page.DeclaredTotal(); !ok || n != 1 {
		t.Errorf("declared total: %d %v", n, ok)
	}
}

func TestFetchPageNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).FetchPage(context.Background(), 2)
	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want FetchError, got %T %v", err, err)
	}
	if fe.Page != 2 || !strings.Contains(fe.Error(), "429") {
		t.Errorf("unexpected error: %v", fe)
	}
}

func TestFetchPageMalformedBody(t *testing.T) {
	for _, body := range []string{`<html>blocked</html>`, `{"listings":`, ``, `[]`, `{"listings":[42]}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		_, err := newTestClient(t, srv).FetchPage(context.Background(), 1)
		var pe *models.ParseError
		if !errors.As(err, &pe) || pe.Page != 1 {
			t.Errorf("body %q: want ParseError, got %T %v", body, err, err)
		}
		srv.Close()
	}
}

func TestFetchPageTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.FetchPage(context.Background(), 3)
	var fe *models.FetchError
	if !errors.As(err, &fe) || fe.Page != 3 {
		t.Fatalf("want FetchError for page 3, got %v", err)
	}
}

func TestFetchPageTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	hc := srv.Client()
	hc.Timeout = 50 * time.Millisecond
	c, err := NewClient(srv.URL, "", testFilters(), hc)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.FetchPage(context.Background(), 1)
	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want FetchError on timeout, got %v", err)
	}
}

func TestNewClientRejectsInvalidFilters(t *testing.T) {
	if _, err := NewClient("", "", models.FilterPayload{}, nil); err == nil {
		t.Error("page size 0 should be rejected")
	}
}

func TestNewHTTPClient(t *testing.T) {
	for _, mode := range []string{"", config.TransportStandard, config.TransportChromeTLS} {
		hc, err := NewHTTPClient(mode, 0)
		if err != nil {
			t.Errorf("mode %q: %v", mode, err)
			continue
		}
		if hc.Timeout != 30*time.Second {
			t.Errorf("mode %q: timeout %v", mode, hc.Timeout)
		}
	}
	if _, err := NewHTTPClient("carrier-pigeon", time.Second); err == nil {
		t.Error("unknown transport should fail")
	}
}

func TestChromeTransportHandshake(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"listings":[]}`))
	}))
	defer srv.Close()

	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())
	hc := &http.Client{Timeout: 5 * time.Second, Transport: newChromeTransport(&tls2.Config{RootCAs: roots})}

	c, err := NewClient(srv.URL, "", testFilters(), hc)
	if err != nil {
		t.Fatal(err)
	}
	page, err := c.FetchPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("fetch over chrome TLS: %v", err)
	}
	if len(page.Listings) != 0 || hits.Load() != 1 {
		t.Errorf("unexpected result: %d listings, %d hits", len(page.Listings), hits.Load())
	}
}

func TestBuildFetchScriptQuotesBody(t *testing.T) {
	script, err := buildFetchScript("https://example.test/api", []byte(`{"a":"</script>\"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(script, `fetch("https://example.test/api"`) {
		t.Errorf("endpoint not embedded: %s", script)
	}
	if !strings.Contains(script, `body: "{\"a\":\"\u003c/script\u003e\\\"x\"}"`) {
		t.Errorf("body not embedded as a JS string literal: %s", script)
	}
}

func TestFindChromeBinaryPrefersExplicit(t *testing.T) {
	if got := findChromeBinary("/opt/custom/chrome"); got != "/opt/custom/chrome" {
		t.Errorf("got %q", got)
	}
}
