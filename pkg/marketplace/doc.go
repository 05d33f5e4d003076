// Package marketplace is the client for the remote module catalog.
//
// # Overview
//
// The marketplace exposes three JSON endpoints under a base URL:
//
//   - list: every module, keyed by id
//   - info: one module, including the download URL of its latest
//     compatible release
//   - getLatestVersion: the newest release of the host application
//
// Each request carries the host application version and the installation
// id as query parameters.
//
// # Caching
//
// [Client.FetchCatalog] stores the module list in a [cache.Cache] under
// [CatalogCacheKey] for the duration configured in the settings store
// (cache/expireTime, in seconds). The client also keeps a private snapshot
// so repeated calls during one operation do not touch the cache. The cache
// entry records its own expiry, and a snapshot built from it never outlives
// that entry.
// [Client.FetchModuleInfo] is never cached.
//
// # Errors
//
// Transport failures and non-2xx responses carry
// [errors.ErrCodeNetwork]; malformed bodies carry [errors.ErrCodeDecode].
// [Client.FetchLatestPlatformVersion] never fails: it logs and returns "".
//
//	client, err := marketplace.NewClient(cfg, store, cache.NewMemoryCache(), logger)
//	catalog, err := client.FetchCatalog(ctx)
//	info, err := client.FetchModuleInfo(ctx, "calendar")
//
// [cache.Cache]: github.com/matzehuels/modmarket/pkg/cache.Cache
// [errors.ErrCodeNetwork]: github.com/matzehuels/modmarket/pkg/errors.ErrCodeNetwork
// [errors.ErrCodeDecode]: github.com/matzehuels/modmarket/pkg/errors.ErrCodeDecode
package marketplace
