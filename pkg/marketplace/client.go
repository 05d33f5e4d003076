package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/modmarket/pkg/cache"
	errs "github.com/matzehuels/modmarket/pkg/errors"
	"github.com/matzehuels/modmarket/pkg/httputil"
	"github.com/matzehuels/modmarket/pkg/observability"
	"github.com/matzehuels/modmarket/pkg/settings"
)

// CatalogCacheKey is the cache key holding the module list.
const CatalogCacheKey = "onlineModuleManager_modules"

// maxBodySize caps marketplace JSON responses.
const maxBodySize = 16 << 20

// Config holds the static client configuration.
type Config struct {
	BaseURL     string // marketplace API root, e.g. https://marketplace.example.com/api/v1/
	AppVersion  string // host application version sent with every request
	ValidateSSL bool
	CABundle    string
	Timeout     time.Duration // zero means httputil.DefaultTimeout
	Clock       cache.Clock   // zero means time.Now
}

// Client talks to the marketplace API.
//
// The module list is kept in the shared cache for the cache/expireTime
// setting and in a private snapshot for the same duration. Module info and
// the platform version are always fetched live.
//
// All methods are safe for concurrent use.
type Client struct {
	Settings settings.Store
	Cache    cache.Cache
	Logger   *log.Logger

	cfg   Config
	now   cache.Clock
	group singleflight.Group

	mu        sync.Mutex
	snapshot  Catalog
	snapUntil time.Time // zero means no expiry
}

// NewClient creates a client. A nil cache disables shared caching and a
// nil logger falls back to log.Default().
func NewClient(cfg Config, store settings.Store, c cache.Cache, logger *log.Logger) (*Client, error) {
	if err := errs.ValidateURL(cfg.BaseURL); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid marketplace URL")
	}
	if store == nil {
		return nil, errs.New(errs.ErrCodeInvalidInput, "settings store is required")
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Client{
		Settings: store,
		Cache:    c,
		Logger:   logger,
		cfg:      cfg,
		now:      now,
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// FetchCatalog returns all modules on the marketplace, keyed by id.
//
// Lookup order is the private snapshot, then the shared cache, then the
// network. Concurrent callers share a single download; a caller whose ctx
// ends stops waiting without failing the others.
//
// Returns:
//   - [errs.ErrCodeNetwork] on transport failure or a non-2xx response
//   - [errs.ErrCodeDecode] if the body is not a valid module list
func (c *Client) FetchCatalog(ctx context.Context) (Catalog, error) {
	if cat, ok := c.currentSnapshot(); ok {
		return cat, nil
	}

	// The shared load outlives any single caller; each caller still stops
	// waiting when its own context ends. The HTTP timeout bounds the load.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(CatalogCacheKey, func() (any, error) {
		if cat, ok := c.currentSnapshot(); ok {
			return cat, nil
		}
		return c.loadCatalog(shared)
	})
	select {
	case <-ctx.Done():
		return nil, errs.Wrap(errs.ErrCodeNetwork, ctx.Err(), "could not fetch module list online")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Catalog), nil
	}
}

func (c *Client) currentSnapshot() (Catalog, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return nil, false
	}
	if !c.snapUntil.IsZero() && !c.now().Before(c.snapUntil) {
		c.snapshot = nil
		return nil, false
	}
	return c.snapshot, true
}

// storeSnapshot keeps cat in memory until the given instant. A zero until
// never expires.
func (c *Client) storeSnapshot(cat Catalog, until time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = cat
	c.snapUntil = until
}

// cachedCatalog is the payload stored under [CatalogCacheKey]. ExpiresAt
// lets a client that reads the entry late keep its in-memory copy no longer
// than the entry itself lives.
type cachedCatalog struct {
	ExpiresAt time.Time       `json:"expiresAt,omitzero"`
	Modules   json.RawMessage `json:"modules"`
}

// decodeCachedCatalog parses a cache entry. known is false for entries that
// carry no expiry, such as a bare module list written by an older client.
func decodeCachedCatalog(data []byte) (cat Catalog, expiresAt time.Time, known bool, err error) {
	var env cachedCatalog
	if json.Unmarshal(data, &env) == nil && env.Modules != nil {
		cat, err = decodeCatalog(env.Modules)
		return cat, env.ExpiresAt, true, err
	}
	cat, err = decodeCatalog(data)
	return cat, time.Time{}, false, err
}

func (c *Client) loadCatalog(ctx context.Context) (Catalog, error) {
	ttl, err := settings.CacheExpiry(ctx, c.Settings)
	if err != nil {
		c.Logger.Warn("using default cache expiry", "err", err)
		ttl = settings.DefaultCacheExpiry
	}
	hooks := observability.Cache()
	now := c.now()

	data, hit, err := c.Cache.Get(ctx, CatalogCacheKey)
	if err != nil {
		c.Logger.Warn("catalog cache read failed", "err", err)
	}
	if err == nil && hit {
		cat, expiresAt, known, err := decodeCachedCatalog(data)
		switch {
		case err != nil:
			c.Logger.Warn("discarding unreadable catalog cache entry")
		case known && !expiresAt.IsZero() && !now.Before(expiresAt):
			c.Logger.Debug("catalog cache entry outlived its expiry", "expiresAt", expiresAt)
		default:
			hooks.OnCacheHit(ctx, "catalog")
			if known {
				c.storeSnapshot(cat, snapshotDeadline(now, ttl, expiresAt))
			}
			return cat, nil
		}
	}
	hooks.OnCacheMiss(ctx, "catalog")

	params, err := c.params(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, "list", params)
	if err != nil {
		return nil, errs.Wrap(errs.GetCode(err), err, "could not fetch module list online")
	}
	cat, err := decodeCatalog(body)
	if err != nil {
		return nil, err
	}

	until := snapshotDeadline(now, ttl, time.Time{})
	if modules, err := json.Marshal(cat); err == nil {
		encoded, _ := json.Marshal(cachedCatalog{ExpiresAt: until, Modules: modules})
		if err := c.Cache.Set(ctx, CatalogCacheKey, encoded, ttl); err != nil {
			c.Logger.Warn("catalog cache write failed", "err", err)
		} else {
			hooks.OnCacheSet(ctx, "catalog", len(encoded))
		}
	}
	c.storeSnapshot(cat, until)

	c.Logger.Debug("fetched module list", "modules", len(cat), "ttl", ttl)
	return cat, nil
}

// snapshotDeadline is now+ttl, capped at the cache entry's own expiry when
// one is known. A zero result never expires.
func snapshotDeadline(now time.Time, ttl time.Duration, entryExpiry time.Time) time.Time {
	var until time.Time
	if ttl > 0 {
		until = now.Add(ttl)
	}
	if !entryExpiry.IsZero() && (until.IsZero() || entryExpiry.Before(until)) {
		until = entryExpiry
	}
	return until
}

// FetchModuleInfo fetches the full descriptor of one module, including the
// download URL of its latest compatible release. It never uses the cache.
func (c *Client) FetchModuleInfo(ctx context.Context, id string) (*Module, error) {
	params, err := c.params(ctx)
	if err != nil {
		return nil, err
	}
	params.Set("id", id)

	body, err := c.get(ctx, "info", params)
	if err != nil {
		return nil, errs.Wrap(errs.GetCode(err), err, "could not get module info online")
	}
	return decodeModule(id, body)
}

// FetchLatestPlatformVersion returns the newest released version of the
// host application. Failures are logged once and yield "".
func (c *Client) FetchLatestPlatformVersion(ctx context.Context) string {
	v, err := c.fetchLatestPlatformVersion(ctx)
	if err != nil {
		c.Logger.Error("could not get latest platform version", "err", err)
		return ""
	}
	return v
}

func (c *Client) fetchLatestPlatformVersion(ctx context.Context) (string, error) {
	params, err := c.params(ctx)
	if err != nil {
		return "", err
	}
	body, err := c.get(ctx, "getLatestVersion", params)
	if err != nil {
		return "", err
	}
	var resp struct {
		LatestVersion string `json:"latestVersion"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errs.Wrap(errs.ErrCodeDecode, err, "invalid latest version response")
	}
	return resp.LatestVersion, nil
}

// Flush drops the private snapshot and the shared cache entry so the next
// FetchCatalog goes to the network.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.snapshot = nil
	c.snapUntil = time.Time{}
	c.mu.Unlock()

	if err := c.Cache.Delete(ctx, CatalogCacheKey); err != nil {
		return fmt.Errorf("flush catalog cache: %w", err)
	}
	return nil
}

// HTTPClient builds the HTTP client for one call from the current proxy
// settings. The installer uses it for downloads. Each call returns a client
// with its own transport; call CloseIdleConnections when done.
func (c *Client) HTTPClient(ctx context.Context) (*http.Client, error) {
	opts, err := httputil.LoadOptions(ctx, c.Settings, c.cfg.ValidateSSL, c.cfg.CABundle)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "could not load proxy settings")
	}
	opts.Timeout = c.cfg.Timeout
	hc, err := httputil.NewClient(opts)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "could not configure transport")
	}
	return hc, nil
}

func (c *Client) params(ctx context.Context) (url.Values, error) {
	installID, err := settings.InstallationID(ctx, c.Settings)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "could not read installation id")
	}
	return url.Values{
		"version":   {c.cfg.AppVersion},
		"installId": {installID},
	}, nil
}

func (c *Client) endpoint(name string, params url.Values) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + name + "?" + params.Encode()
}

func (c *Client) get(ctx context.Context, name string, params url.Values) ([]byte, error) {
	hc, err := c.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	defer hc.CloseIdleConnections()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(name, params), nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "build %s request", name)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "%s request failed", name)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.New(errs.ErrCodeNetwork, "%s returned status %d", name, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "read %s response", name)
	}
	return body, nil
}
