package bilbasen

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	tls2 "github.com/refraction-networking/utls"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bilbasen-scraper/config"
)

const defaultTimeout = 30 * time.Second

// NewHTTPClient builds the client used by Client for the given transport mode.
// The timeout bounds each request; zero means 30 s.
func NewHTTPClient(mode string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var base http.RoundTripper
	switch mode {
	case "", config.TransportStandard:
		base = http.DefaultTransport.(*http.Transport).Clone()
	case config.TransportChromeTLS:
		base = newChromeTransport(&tls2.Config{})
	default:
		return nil, fmt.Errorf("bilbasen: unknown transport %q", mode)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(base),
	}, nil
}

// newChromeTransport sends requests over TLS connections whose ClientHello
// matches Chrome. tmpl supplies roots and other settings; ServerName is filled per dial.
func newChromeTransport(tmpl *tls2.Config) *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, tmpl, network, addr)
		},
		// http.Transport cannot speak h2 over a utls conn, so ALPN offers http/1.1 only
		ForceAttemptHTTP2:   false,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

func dialChromeTLS(ctx context.Context, dialer *net.Dialer, tmpl *tls2.Config, network, addr string) (net.Conn, error) {
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		rawConn.Close()
		return nil, err
	}
	cfg := tmpl.Clone()
	cfg.ServerName = host

	spec, err := tls2.UTLSIdToSpec(tls2.HelloChrome_Auto)
	if err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("chrome tls: spec: %w", err)
	}
	offerHTTP1Only(&spec)

	tlsConn := tls2.UClient(rawConn, cfg, tls2.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("chrome tls: apply preset: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func offerHTTP1Only(spec *tls2.ClientHelloSpec) {
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls2.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
}
