package resilience

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/abhisek/examgen/internal/llm"
)

// Transport names carried on request contexts.
const (
	TransportPrimary = "primary"
	TransportBypass  = "bypass"
)

const (
	DefaultPrimaryTimeout = 20 * time.Second
	DefaultBypassTimeout  = 45 * time.Second
)

// Transport is an http.RoundTripper with a name and a per-attempt budget.
type Transport interface {
	http.RoundTripper
	Name() string
	Timeout() time.Duration
}

// PrimaryTransport is the process's ordinary HTTP path. Whatever sits in
// Inner (proxies, instrumentation, test recorders) is used as is.
type PrimaryTransport struct {
	inner   http.RoundTripper
	timeout time.Duration
}

// NewPrimaryTransport wraps rt, or http.DefaultTransport when rt is nil.
func NewPrimaryTransport(rt http.RoundTripper, timeout time.Duration) *PrimaryTransport {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if timeout <= 0 {
		timeout = DefaultPrimaryTimeout
	}
	return &PrimaryTransport{inner: rt, timeout: timeout}
}

// NewInstrumentedTransport wraps rt with OpenTelemetry client spans.
func NewInstrumentedTransport(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return otelhttp.NewTransport(rt)
}

func (t *PrimaryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.inner.RoundTrip(req)
}

func (t *PrimaryTransport) Name() string           { return TransportPrimary }
func (t *PrimaryTransport) Timeout() time.Duration { return t.timeout }

// Inner returns the wrapped round tripper.
func (t *PrimaryTransport) Inner() http.RoundTripper { return t.inner }

// restrictedHeaders are owned by the connection layer. The bypass transport
// drops them rather than failing the request.
var restrictedHeaders = map[string]bool{
	"Host":              true,
	"Content-Length":    true,
	"Connection":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Keep-Alive":        true,
	"Te":                true,
	"Trailer":           true,
}

func isRestrictedHeader(key string) bool {
	key = http.CanonicalHeaderKey(key)
	return restrictedHeaders[key] || strings.HasPrefix(key, "Proxy-")
}

// BypassTransport talks to the network directly: its own connection pool,
// no environment proxy, HTTP/1.1 only. It shares nothing with
// http.DefaultTransport, so replacing or wrapping that does not affect it.
type BypassTransport struct {
	rt      http.RoundTripper
	timeout time.Duration
}

// NewBypassTransport builds a fresh low-level transport.
func NewBypassTransport(timeout time.Duration) *BypassTransport {
	if timeout <= 0 {
		timeout = DefaultBypassTimeout
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &BypassTransport{
		rt: &http.Transport{
			Proxy:                 nil,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          4,
			IdleConnTimeout:       30 * time.Second,
			ForceAttemptHTTP2:     false,
			TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
		},
		timeout: timeout,
	}
}

func (t *BypassTransport) Name() string           { return TransportBypass }
func (t *BypassTransport) Timeout() time.Duration { return t.timeout }

// RoundTrip sends req with a hard deadline. A response without a status,
// or a 2xx response with an empty body, is reported as
// *llm.ErrTransportBlocked.
func (t *BypassTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)

	out := req.Clone(ctx)
	out.Header = make(http.Header, len(req.Header))
	for key, values := range req.Header {
		if isRestrictedHeader(key) {
			continue
		}
		for _, v := range values {
			out.Header.Add(key, v)
		}
	}

	resp, err := t.rt.RoundTrip(out)
	if err != nil {
		cancel()
		return nil, err
	}

	if resp.StatusCode == 0 {
		resp.Body.Close()
		cancel()
		return nil, &llm.ErrTransportBlocked{Reason: "response carried no status"}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		empty, body, err := peekEmpty(resp)
		if err != nil {
			resp.Body.Close()
			cancel()
			return nil, err
		}
		if empty {
			resp.Body.Close()
			cancel()
			return nil, &llm.ErrTransportBlocked{StatusCode: resp.StatusCode, Reason: "empty response body"}
		}
		resp.Body = body
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func peekEmpty(resp *http.Response) (bool, io.ReadCloser, error) {
	if resp.Body == nil || resp.Body == http.NoBody || resp.ContentLength == 0 {
		return true, resp.Body, nil
	}
	br := bufio.NewReader(resp.Body)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return true, resp.Body, nil
		}
		return false, nil, err
	}
	return false, readCloser{Reader: br, Closer: resp.Body}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// Router is the single RoundTripper handed to every provider SDK. Each
// request goes through the transport named on its context (see
// llm.WithTransport); unnamed requests use the primary transport.
type Router struct {
	primary Transport
	bypass  Transport
}

// NewRouter creates a router. bypass may be nil.
func NewRouter(primary, bypass Transport) *Router {
	return &Router{primary: primary, bypass: bypass}
}

func (r *Router) RoundTrip(req *http.Request) (*http.Response, error) {
	if r.bypass != nil && llm.TransportFrom(req.Context()) == TransportBypass {
		return r.bypass.RoundTrip(req)
	}
	return r.primary.RoundTrip(req)
}

// Client returns an *http.Client using the router. Deadlines come from the
// per-attempt context, so the client itself has no timeout.
func (r *Router) Client() *http.Client {
	return &http.Client{Transport: r}
}
