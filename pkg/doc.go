// Package pkg provides the libraries behind modmarket, a client for online
// module marketplaces.
//
// # Overview
//
// A host application keeps its modules in one directory, one folder per
// module. modmarket asks a marketplace which modules exist, which release
// of each is compatible with the running application version, downloads
// that release as a zip archive and unpacks it into the modules directory.
//
// The packages are organized by concern:
//
//  1. [marketplace] - Remote catalog client (module list, module info, platform version)
//  2. [installer] - Download, extract and bootstrap modules
//  3. [updates] - Compare installed modules against the catalog
//  4. [registry] - Installed module descriptors and lifecycle hooks
//  5. [cache], [settings], [httputil] - Storage and transport infrastructure
//  6. [errors], [version], [observability], [buildinfo] - Cross-cutting support
//
// # Data Flow
//
//	marketplace API
//	       ↓
//	[marketplace] Client (cached module list, live module info)
//	       ↓
//	[installer] Installer (scratch dir → zip → modules dir)
//	       ↓
//	[registry] DirRegistry (module.toml, autostart.toml, hooks)
//
// [updates] sits beside the installer: it reads the cached module list and
// the registry and reports installed modules that have a newer compatible
// release.
//
// # Quick Start
//
//	store := settings.NewFileStore("/etc/app/settings.toml")
//	client, err := marketplace.NewClient(marketplace.Config{
//	    BaseURL:     "https://marketplace.example.com/api/v1/",
//	    AppVersion:  "1.2.0",
//	    ValidateSSL: true,
//	}, store, cache.NewMemoryCache(), nil)
//	if err != nil {
//	    return err
//	}
//
//	reg := registry.NewDirRegistry("/var/www/app/protected/modules", nil)
//	inst := installer.New(installer.Config{
//	    ModulesDir: "/var/www/app/protected/modules",
//	    RuntimeDir: "/var/www/app/protected/runtime",
//	}, client, reg, nil)
//
//	if err := inst.Install(ctx, "calendar"); err != nil {
//	    switch errors.GetCode(err) {
//	    case errors.ErrCodeAlreadyInstalled:
//	        // use Update instead
//	    case errors.ErrCodeNoCompatibleVersion:
//	        // tell the administrator to upgrade the application
//	    }
//	}
//
// # Caching
//
// Only the module list is cached. Its lifetime comes from the
// cache/expireTime setting and defaults to one hour. [cache] provides file,
// memory, Redis and null backends; [cache.Scoped] separates installations
// that share one Redis. Module info and the platform version are always
// fetched live.
//
// # Settings
//
// Runtime settings (installation id, proxy, cache lifetime) are read from a
// [settings.Store] on every request so administrators can change them
// without a restart. Backends are a TOML file and MongoDB.
//
// # Errors
//
// Every failure the installer can report carries an [errors.Code], so
// callers branch on the code instead of matching message text. Hook errors
// raised by a module's install or update procedure are returned unchanged.
//
// [marketplace]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/marketplace
// [installer]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/installer
// [updates]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/updates
// [registry]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/registry
// [cache]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/cache
// [cache.Scoped]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/cache#Scoped
// [settings]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/settings
// [settings.Store]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/settings#Store
// [httputil]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/httputil
// [errors]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/errors
// [errors.Code]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/errors#Code
// [version]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/version
// [observability]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/buildinfo
package pkg
