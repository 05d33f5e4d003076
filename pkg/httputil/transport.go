package httputil

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"

	"github.com/matzehuels/modmarket/pkg/buildinfo"
	"github.com/matzehuels/modmarket/pkg/observability"
	"github.com/matzehuels/modmarket/pkg/settings"
)

const (
	// DefaultTimeout bounds every marketplace request.
	DefaultTimeout = 30 * time.Second

	// MaxRedirects is the number of redirects followed before giving up.
	MaxRedirects = 10
)

// Options describes the transport for one outbound call.
type Options struct {
	ValidateSSL bool
	CABundle    string // PEM file; ignored when ValidateSSL is false
	Proxy       settings.Proxy
	Timeout     time.Duration // zero means DefaultTimeout
	UserAgent   string        // zero means buildinfo.UserAgent()
}

// LoadOptions reads the proxy settings from store and combines them with
// the TLS options from configuration.
func LoadOptions(ctx context.Context, store settings.Store, validateSSL bool, caBundle string) (Options, error) {
	proxy, err := settings.LoadProxy(ctx, store)
	if err != nil {
		return Options{}, err
	}
	return Options{
		ValidateSSL: validateSSL,
		CABundle:    caBundle,
		Proxy:       proxy,
	}, nil
}

// NewClient builds an HTTP client from opts. It fails only when the CA
// bundle cannot be read or holds no certificates. Every client owns its
// transport, so callers close idle connections when they are done with it.
func NewClient(opts Options) (*http.Client, error) {
	tc, err := tlsConfig(opts)
	if err != nil {
		return nil, err
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = tc
	base.Proxy = nil
	if pf := ProxyFunc(opts.Proxy); pf != nil {
		base.Proxy = func(r *http.Request) (*url.URL, error) { return pf(r.URL) }
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = buildinfo.UserAgent()
	}

	return &http.Client{
		Transport:     &hookTransport{base: base, userAgent: ua},
		Timeout:       timeout,
		CheckRedirect: checkRedirect,
	}, nil
}

func tlsConfig(opts Options) (*tls.Config, error) {
	if !opts.ValidateSSL {
		return &tls.Config{InsecureSkipVerify: true}, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.CABundle == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(opts.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA bundle %s contains no certificates", opts.CABundle)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// ProxyFunc returns the proxy selector for p, or nil when the proxy is
// disabled or has no server. Stored fields of a disabled proxy are ignored.
func ProxyFunc(p settings.Proxy) func(*url.URL) (*url.URL, error) {
	u := ProxyURL(p)
	if u == nil {
		return nil
	}
	cfg := httpproxy.Config{
		HTTPProxy:  u.String(),
		HTTPSProxy: u.String(),
		NoProxy:    p.NoProxy,
	}
	return cfg.ProxyFunc()
}

// ProxyURL renders p as http://[user:pass@]server[:port], or nil when p
// is disabled.
func ProxyURL(p settings.Proxy) *url.URL {
	server := strings.TrimSpace(p.Server)
	if !p.Enabled || server == "" {
		return nil
	}

	u := &url.URL{Scheme: "http", Host: server}
	if strings.Contains(server, "://") {
		parsed, err := url.Parse(server)
		if err != nil || parsed.Host == "" {
			return nil
		}
		u = &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	}
	if p.Port > 0 && u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(p.Port))
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	return u
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
	}
	if len(via) >= MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", MaxRedirects)
	}
	return nil
}

// hookTransport sets the User-Agent and reports requests to the HTTP hooks.
type hookTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *hookTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path

	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(ctx)
		req.Header.Set("User-Agent", t.userAgent)
	}

	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, err
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))
	return resp, nil
}

// CloseIdleConnections lets [http.Client.CloseIdleConnections] reach the
// wrapped transport.
func (t *hookTransport) CloseIdleConnections() {
	if ci, ok := t.base.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}
