package youtube

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

const (
	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	siteOrigin       = "https://www.youtube.com"

	dialTimeout     = 15 * time.Second
	idleConnTimeout = 90 * time.Second
)

// browserHeaders are added to every outbound request that does not set them.
var browserHeaders = map[string]string{
	"User-Agent":      desktopUserAgent,
	"Referer":         siteOrigin + "/",
	"Origin":          siteOrigin,
	"Accept-Language": "en-US,en;q=0.9",
}

// headerTransport fills in browser headers without overriding ones the
// library already chose.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// NewTransport returns the outbound transport. With fingerprint set, TLS
// handshakes present a Chrome ClientHello.
func NewTransport(fingerprint bool) http.RoundTripper {
	var base http.RoundTripper
	if fingerprint {
		base = newFingerprintTransport()
	} else {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &headerTransport{base: base, headers: browserHeaders}
}

var errNotH2 = errors.New("server did not negotiate h2")

// fingerprintTransport tries HTTP/2 first and remembers hosts that only
// speak HTTP/1.1.
type fingerprintTransport struct {
	h2      *http2.Transport
	h1      *http.Transport
	h1Hosts sync.Map
}

func newFingerprintTransport() *fingerprintTransport {
	return &fingerprintTransport{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialChrome(ctx, network, addr, nil)
			},
			ReadIdleTimeout: 30 * time.Second,
		},
		h1: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialChrome(ctx, network, addr, []string{"http/1.1"})
			},
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     idleConnTimeout,
		},
	}
}

func (t *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	if _, ok := t.h1Hosts.Load(req.URL.Host); ok {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Context().Err() != nil {
		return nil, err
	}
	if errors.Is(err, errNotH2) {
		t.h1Hosts.Store(req.URL.Host, struct{}{})
	}

	retry, rerr := rewind(req)
	if rerr != nil {
		return nil, err
	}
	return t.h1.RoundTrip(retry)
}

// rewind returns a copy of req whose body can be sent again.
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("replay request body: %w", err)
	}
	out := req.Clone(req.Context())
	out.Body = body
	return out, nil
}

// chromeSpec returns Chrome 120's ClientHello. A non-nil alpn replaces the
// advertised protocols.
func chromeSpec(alpn []string) (utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(utls.HelloChrome_120)
	if err != nil {
		return spec, fmt.Errorf("chrome client hello: %w", err)
	}
	if alpn == nil {
		return spec, nil
	}
	for _, ext := range spec.Extensions {
		if a, ok := ext.(*utls.ALPNExtension); ok {
			a.AlpnProtocols = alpn
		}
	}
	return spec, nil
}

// dialChrome opens a TLS connection with a Chrome fingerprint. With a nil
// alpn the connection must negotiate h2.
func dialChrome(ctx context.Context, network, addr string, alpn []string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	spec, err := chromeSpec(alpn)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	tlsConn := utls.UClient(conn, &utls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}, utls.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply client hello: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	if alpn == nil && tlsConn.ConnectionState().NegotiatedProtocol != http2.NextProtoTLS {
		tlsConn.Close()
		return nil, errNotH2
	}
	return tlsConn, nil
}
