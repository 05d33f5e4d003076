package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/modmarket/internal/config"
	errs "github.com/matzehuels/modmarket/pkg/errors"
	"github.com/matzehuels/modmarket/pkg/registry"
)

// market is a fake marketplace serving list, info and archive downloads.
type market struct {
	srv *httptest.Server

	mu       sync.Mutex
	versions map[string]string
	archives map[string][]byte
}

func newMarket(t *testing.T) *market {
	t.Helper()
	m := &market{versions: map[string]string{}, archives: map[string][]byte{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/list", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		list := map[string]any{}
		for id, v := range m.versions {
			list[id] = map[string]any{"id": id, "name": id, "latestVersion": v, "latestCompatibleVersion": v}
		}
		_ = json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		m.mu.Lock()
		v, ok := m.versions[id]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"id": %q, "name": %q, "latestVersion": %q, "latestCompatibleVersion": {"version": %q, "downloadUrl": "%s/dl/%s-%s.zip"}}`,
			id, id, v, v, m.srv.URL, id, v)
	})
	mux.HandleFunc("/api/getLatestVersion", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"latestVersion": "1.3.0"}`)
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		data, ok := m.archives[strings.TrimPrefix(r.URL.Path, "/dl/")]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})
	m.srv = httptest.NewServer(mux)
	t.Cleanup(m.srv.Close)
	return m
}

// publish releases version of id with a minimal module descriptor.
func (m *market) publish(t *testing.T, id, version string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(id + "/" + registry.DescriptorFile)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(w, "id = %q\nversion = %q\n", id, version)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[id] = version
	m.archives[fmt.Sprintf("%s-%s.zip", id, version)] = buf.Bytes()
}

// writeTestConfig writes a config pointing at url with all state under a
// temp dir and returns its path.
func writeTestConfig(t *testing.T, url string, edit func(*config.Config)) (string, config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Marketplace.URL = url
	cfg.Paths.Modules = filepath.Join(root, "modules")
	cfg.Paths.Runtime = filepath.Join(root, "runtime")
	cfg.Cache.Dir = filepath.Join(root, "cache")
	cfg.Settings.File = filepath.Join(root, "settings.toml")
	if edit != nil {
		edit(&cfg)
	}
	if err := os.MkdirAll(cfg.Paths.Modules, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, "config.toml")
	if err := config.Write(path, cfg, false); err != nil {
		t.Fatal(err)
	}
	return path, cfg
}

// execute runs the CLI with args and returns the log output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var logs bytes.Buffer
	c := New(&logs, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return logs.String(), err
}

func installedVersion(t *testing.T, modulesDir, id string) string {
	t.Helper()
	var m registry.Module
	if _, err := toml.DecodeFile(filepath.Join(modulesDir, id, registry.DescriptorFile), &m); err != nil {
		t.Fatalf("read descriptor of %s: %v", id, err)
	}
	return m.Version
}

func TestInstallThenUpdateAll(t *testing.T) {
	m := newMarket(t)
	m.publish(t, "calendar", "1.4.0")
	m.publish(t, "tasks", "2.0.0")
	path, cfg := writeTestConfig(t, m.srv.URL+"/api/", nil)

	if _, err := execute(t, "--config", path, "install", "calendar", "tasks"); err != nil {
		t.Fatalf("install: %v", err)
	}
	if v := installedVersion(t, cfg.Paths.Modules, "calendar"); v != "1.4.0" {
		t.Errorf("calendar version = %q", v)
	}

	m.publish(t, "calendar", "1.5.0")
	// The module list is cached on disk; drop it so the new release shows.
	if _, err := execute(t, "--config", path, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if _, err := execute(t, "--config", path, "update", "--all"); err != nil {
		t.Fatalf("update --all: %v", err)
	}

	if v := installedVersion(t, cfg.Paths.Modules, "calendar"); v != "1.5.0" {
		t.Errorf("calendar version after update = %q, want 1.5.0", v)
	}
	if v := installedVersion(t, cfg.Paths.Modules, "tasks"); v != "2.0.0" {
		t.Errorf("tasks version = %q, want unchanged", v)
	}
}

func TestInstallReportsFailures(t *testing.T) {
	m := newMarket(t)
	m.publish(t, "calendar", "1.4.0")
	path, cfg := writeTestConfig(t, m.srv.URL+"/api/", nil)

	_, err := execute(t, "--config", path, "install", "calendar", "ghost")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 modules failed") {
		t.Fatalf("error = %v", err)
	}
	if installedVersion(t, cfg.Paths.Modules, "calendar") != "1.4.0" {
		t.Error("successful install should not be rolled back by a later failure")
	}
}

func TestUpdateArgs(t *testing.T) {
	m := newMarket(t)
	path, _ := writeTestConfig(t, m.srv.URL+"/api/", nil)

	for _, args := range [][]string{
		{"update"},
		{"update", "--all", "calendar"},
	} {
		_, err := execute(t, append([]string{"--config", path}, args...)...)
		if !errs.Is(err, errs.ErrCodeInvalidInput) {
			t.Errorf("%v: error = %v, want INVALID_INPUT", args, err)
		}
	}
}

func TestLatestSoftFails(t *testing.T) {
	m := newMarket(t)
	url := m.srv.URL + "/api/"
	m.srv.Close()
	path, _ := writeTestConfig(t, url, nil)

	logs, err := execute(t, "--config", path, "latest")
	if err != nil {
		t.Fatalf("latest should not fail: %v", err)
	}
	if !strings.Contains(logs, "could not get latest platform version") {
		t.Errorf("expected one diagnostic, got:\n%s", logs)
	}
}

func TestInstalledListsUnregisteredHooks(t *testing.T) {
	path, cfg := writeTestConfig(t, "https://marketplace.invalid/api/", nil)
	writeModule := func(id, body string) {
		dir := filepath.Join(cfg.Paths.Modules, id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, registry.DescriptorFile), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeModule("calendar", "version = \"1.4.0\"\n[hooks]\ninstall = \"calendar.migrate\"\n")
	writeModule("tasks", "version = \"2.0.0\"\n[hooks]\ninstall = \"clitest.tasks.migrate\"\n")

	// The hook table is process-wide; the name is unique to this test.
	registry.RegisterHook("clitest.tasks.migrate", func(context.Context, *registry.Module) error { return nil })

	var out bytes.Buffer
	root := New(io.Discard, LogInfo).RootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", path, "installed"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q, want one line per module", out.String())
	}
	if !strings.Contains(lines[0], "unregistered hook calendar.migrate") {
		t.Errorf("calendar line = %q, want the missing hook", lines[0])
	}
	if strings.Contains(lines[1], "unregistered") {
		t.Errorf("tasks line = %q, its hook is registered", lines[1])
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modmarket", "config.toml")

	if _, err := execute(t, "--config", path, "config", "init"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", path, "config", "init"); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, err := execute(t, "--config", path, "config", "init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
	if _, err := config.Load(path); err != nil {
		t.Errorf("written config does not load: %v", err)
	}
}

func TestOpenCacheBackends(t *testing.T) {
	tests := []struct {
		backend string
		prefix  string
		want    string
	}{
		{config.CacheNone, "", "*cache.NullCache"},
		{config.CacheMemory, "", "*cache.MemoryCache"},
		{config.CacheFile, "", "*cache.FileCache"},
		{config.CacheMemory, "site-a", "*cache.ScopedCache"},
	}
	for _, tt := range tests {
		t.Run(tt.backend+tt.prefix, func(t *testing.T) {
			c, err := openCache(context.Background(), config.Cache{
				Backend: tt.backend,
				Dir:     t.TempDir(),
				Prefix:  tt.prefix,
			})
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()
			if got := fmt.Sprintf("%T", c); got != tt.want {
				t.Errorf("openCache(%q) = %s, want %s", tt.backend, got, tt.want)
			}
		})
	}
}
