// Package settings reads runtime configuration from the host application's
// settings store.
//
// Values are addressed by namespace and key, mirroring how the host keeps
// them ("admin"/"installationId", "proxy"/"server", "cache"/"expireTime").
// Nothing here caches values: every accessor goes back to the [Store], so a
// change made by an operator takes effect on the next outbound request.
//
// Backends:
//   - [FileStore]: a TOML file with one table per namespace
//   - [MemoryStore]: in-process map, for tests and embedding
//   - [MongoStore]: a MongoDB collection shared with the host application
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Namespaces and keys used by the marketplace client.
const (
	NamespaceAdmin = "admin"
	NamespaceProxy = "proxy"
	NamespaceCache = "cache"

	KeyInstallationID = "installationId"
	KeyExpireTime     = "expireTime"

	KeyProxyEnabled  = "enabled"
	KeyProxyServer   = "server"
	KeyProxyPort     = "port"
	KeyProxyUser     = "user"
	KeyProxyPassword = "pass"
	KeyProxyNoProxy  = "noproxy"
)

// DefaultCacheExpiry applies when cache/expireTime is unset or invalid.
const DefaultCacheExpiry = time.Hour

// Store is the settings collaborator.
type Store interface {
	// Get returns the value and whether it was set.
	Get(ctx context.Context, namespace, key string) (string, bool, error)

	// Set stores a value, creating the namespace if needed.
	Set(ctx context.Context, namespace, key, value string) error
}

// Proxy holds outbound proxy settings.
type Proxy struct {
	Enabled  bool
	Server   string
	Port     int
	User     string
	Password string
	NoProxy  string // comma-separated hosts, domains, or CIDRs
}

// LoadProxy reads the proxy namespace. Fields are read even when the proxy
// is disabled; the transport decides whether to apply them.
func LoadProxy(ctx context.Context, s Store) (Proxy, error) {
	var p Proxy
	var err error

	get := func(key string) string {
		if err != nil {
			return ""
		}
		var v string
		v, _, err = s.Get(ctx, NamespaceProxy, key)
		return strings.TrimSpace(v)
	}

	p.Enabled = parseBool(get(KeyProxyEnabled))
	p.Server = get(KeyProxyServer)
	port := get(KeyProxyPort)
	p.User = get(KeyProxyUser)
	p.Password = get(KeyProxyPassword)
	p.NoProxy = get(KeyProxyNoProxy)
	if err != nil {
		return Proxy{}, fmt.Errorf("read proxy settings: %w", err)
	}

	if port != "" {
		n, convErr := strconv.Atoi(port)
		if convErr != nil {
			return Proxy{}, fmt.Errorf("invalid proxy port %q: %w", port, convErr)
		}
		p.Port = n
	}
	return p, nil
}

// InstallationID returns the installation id, generating and persisting a
// new UUID on first use.
func InstallationID(ctx context.Context, s Store) (string, error) {
	id, ok, err := s.Get(ctx, NamespaceAdmin, KeyInstallationID)
	if err != nil {
		return "", fmt.Errorf("read installation id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := s.Set(ctx, NamespaceAdmin, KeyInstallationID, id); err != nil {
		return "", fmt.Errorf("store installation id: %w", err)
	}
	return id, nil
}

// CacheExpiry returns cache/expireTime (seconds) as a duration.
func CacheExpiry(ctx context.Context, s Store) (time.Duration, error) {
	v, ok, err := s.Get(ctx, NamespaceCache, KeyExpireTime)
	if err != nil {
		return 0, fmt.Errorf("read cache expiry: %w", err)
	}
	if !ok || strings.TrimSpace(v) == "" {
		return DefaultCacheExpiry, nil
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return DefaultCacheExpiry, nil
	}
	return time.Duration(secs) * time.Second, nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
