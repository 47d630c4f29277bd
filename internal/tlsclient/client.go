// Package tlsclient builds short-lived HTTPS clients that honour a TLS
// protocol and cipher-suite allow-list.
package tlsclient

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nickromney-org/release-notifier/pkg/types"
)

// DefaultTimeout is the connect and read timeout used when none is given
const DefaultTimeout = 10 * time.Second

// maxRedirects matches net/http's own limit
const maxRedirects = 10

// ErrNotHTTPS is returned for requests whose URL scheme is not https
var ErrNotHTTPS = errors.New("only https URLs are supported")

// Factory builds Clients. The zero value uses the system trust store.
type Factory struct {
	// RootCAs replaces the system certificate pool when set
	RootCAs *x509.CertPool
}

// Client is a single-connection HTTPS client. It must be closed after use.
type Client struct {
	HTTP      *http.Client
	transport *http.Transport
}

// Build creates a fresh client for one logical operation. Nothing is shared
// between clients.
func (f Factory) Build(policy TLSPolicy, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tlsConfig := policy.TLSConfig()
	tlsConfig.RootCAs = f.RootCAs

	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, timeout: timeout}, nil
		},
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxConnsPerHost:       1,
		MaxIdleConns:          1,
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       timeout,
	}

	return &Client{
		HTTP: &http.Client{
			Transport:     &httpsOnly{next: transport},
			CheckRedirect: checkRedirect,
		},
		transport: transport,
	}
}

// Do sends the request. Transport level failures are returned as
// *types.TransportError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &types.TransportError{URL: req.URL.String(), Err: err}
	}
	return resp, nil
}

// Close releases the client's connection. It is safe to call more than once.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// checkRedirect follows redirects for safe methods only, so a form POST sees
// the redirect status itself
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > 0 {
		switch via[0].Method {
		case http.MethodGet, http.MethodHead:
		default:
			return http.ErrUseLastResponse
		}
	}
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

type httpsOnly struct {
	next *http.Transport
}

func (t *httpsOnly) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("%w: %s", ErrNotHTTPS, req.URL.Redacted())
	}
	return t.next.RoundTrip(req)
}

func (t *httpsOnly) CloseIdleConnections() {
	t.next.CloseIdleConnections()
}

// deadlineConn applies the read timeout to every read, like a socket timeout
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}
