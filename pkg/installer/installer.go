// Package installer downloads marketplace modules and places them in the
// modules directory.
//
// # Install
//
// [Installer.Install] checks its preconditions before touching anything:
// the modules directory must be writable and the module folder must not
// exist. It then resolves the latest compatible release, downloads the
// archive into <runtime>/module_downloads, and extracts it into the modules
// directory. A module that ships autostart.toml has its install hook run
// right away.
//
// # Update
//
// [Installer.Update] removes the module folder and installs again. There
// is no backup: if the reinstall fails the folder stays absent and the
// caller sees the install error.
//
// # Errors
//
// Every failure carries a distinct code from pkg/errors so the admin
// surface can show the message verbatim:
//
//	NOT_WRITABLE, ALREADY_INSTALLED, NO_COMPATIBLE_VERSION, SCRATCH_DIR,
//	DOWNLOAD_FAILED, DOWNLOAD_MISSING, EXTRACTION_FAILED
package installer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/modmarket/pkg/errors"
	"github.com/matzehuels/modmarket/pkg/marketplace"
	"github.com/matzehuels/modmarket/pkg/observability"
	"github.com/matzehuels/modmarket/pkg/registry"
)

// DownloadDir is the scratch folder under the runtime directory.
const DownloadDir = "module_downloads"

// Catalog resolves module releases and provides the download transport.
type Catalog interface {
	FetchModuleInfo(ctx context.Context, id string) (*marketplace.Module, error)
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// Registry is the installed-module collaborator.
type Registry interface {
	RemoveFolder(id string) error
	Flush()
	Install(ctx context.Context, id string) error
	Update(ctx context.Context, id string) error
}

// Config locates the directories the installer works in.
type Config struct {
	ModulesDir string
	RuntimeDir string
}

// Installer installs and updates modules.
type Installer struct {
	Catalog  Catalog
	Registry Registry
	Logger   *log.Logger

	modulesDir string
	runtimeDir string
}

// New creates an installer. A nil logger falls back to log.Default().
func New(cfg Config, catalog Catalog, reg Registry, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.Default()
	}
	return &Installer{
		Catalog:    catalog,
		Registry:   reg,
		Logger:     logger,
		modulesDir: cfg.ModulesDir,
		runtimeDir: cfg.RuntimeDir,
	}
}

// ModulesDir returns the directory modules are extracted into.
func (i *Installer) ModulesDir() string { return i.modulesDir }

// ScratchDir returns the download folder.
func (i *Installer) ScratchDir() string { return filepath.Join(i.runtimeDir, DownloadDir) }

// Install installs the latest compatible release of module id.
func (i *Installer) Install(ctx context.Context, id string) (err error) {
	hooks := observability.Install()
	hooks.OnInstallStart(ctx, id)
	start := time.Now()
	defer func() { hooks.OnInstallComplete(ctx, id, time.Since(start), err) }()

	return i.install(ctx, id)
}

func (i *Installer) install(ctx context.Context, id string) error {
	if err := errs.ValidateModuleID(id); err != nil {
		return err
	}
	if err := checkWritable(i.modulesDir); err != nil {
		return errs.Wrap(errs.ErrCodeNotWritable, err, "module directory %s is not writable", i.modulesDir)
	}
	target := filepath.Join(i.modulesDir, id)
	if _, err := os.Lstat(target); err == nil {
		return errs.New(errs.ErrCodeAlreadyInstalled, "module directory for module %s already exists", id)
	}

	info, err := i.Catalog.FetchModuleInfo(ctx, id)
	if err != nil {
		return err
	}
	release := info.LatestCompatibleVersion
	if release == nil || release.DownloadURL == "" {
		return errs.New(errs.ErrCodeNoCompatibleVersion, "no compatible module version found")
	}

	scratch := i.ScratchDir()
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return errs.Wrap(errs.ErrCodeScratchDir, err, "could not create module download folder")
	}

	archive := filepath.Join(scratch, archiveName(id, release.DownloadURL))
	i.Logger.Info("downloading module", "module", id, "version", release.Version)
	if err := i.download(ctx, release.DownloadURL, archive); err != nil {
		return errs.New(errs.ErrCodeDownloadFailed, "module download failed (%v)", err)
	}
	if _, err := os.Stat(archive); err != nil {
		return errs.Wrap(errs.ErrCodeDownloadMissing, err, "download of module failed")
	}
	defer os.Remove(archive)

	n, err := extract(archive, i.modulesDir)
	if err != nil {
		return errs.Wrap(errs.ErrCodeExtractionFailed, err, "could not extract module")
	}
	i.Logger.Info("extracted module", "module", id, "files", n)

	i.Registry.Flush()

	if _, err := os.Stat(filepath.Join(target, registry.AutostartFile)); err == nil {
		return i.Registry.Install(ctx, id)
	}
	return nil
}

// Update replaces module id with its latest compatible release and runs
// its update hook.
func (i *Installer) Update(ctx context.Context, id string) (err error) {
	hooks := observability.Install()
	hooks.OnUpdateStart(ctx, id)
	start := time.Now()
	defer func() { hooks.OnUpdateComplete(ctx, id, time.Since(start), err) }()

	if err := errs.ValidateModuleID(id); err != nil {
		return err
	}
	if err := i.Registry.RemoveFolder(id); err != nil {
		return err
	}
	if err := i.Install(ctx, id); err != nil {
		i.Logger.Error("reinstall failed, module folder removed", "module", id, "err", err)
		return err
	}
	return i.Registry.Update(ctx, id)
}

func (i *Installer) download(ctx context.Context, rawURL, dst string) error {
	hc, err := i.Catalog.HTTPClient(ctx)
	if err != nil {
		return err
	}
	defer hc.CloseIdleConnections()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(resp.Status)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// archiveName is the last path element of the download URL, or <id>.zip
// when the URL has none.
func archiveName(id, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != ".." {
			return base
		}
	}
	return id + ".zip"
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".modmarket-write-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
