package registry

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	errs "github.com/matzehuels/modmarket/pkg/errors"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newRegistry(t *testing.T) (*DirRegistry, string) {
	t.Helper()
	dir := t.TempDir()
	return NewDirRegistry(dir, log.New(&bytes.Buffer{})), dir
}

func TestModule(t *testing.T) {
	r, dir := newRegistry(t)
	writeFile(t, filepath.Join(dir, "calendar", DescriptorFile), `
id = "calendar"
name = "Calendar"
version = "1.3.9"

[hooks]
install = "calendar.install"
`)

	if !r.Has("calendar") {
		t.Fatal("Has(calendar) = false")
	}
	m, err := r.Module("calendar")
	if err != nil {
		t.Fatal(err)
	}
	want := &Module{
		ID: "calendar", Name: "Calendar", Version: "1.3.9",
		Hooks: HookNames{Install: "calendar.install"},
		Dir:   filepath.Join(dir, "calendar"),
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("Module() mismatch (-want +got):\n%s", diff)
	}
}

func TestModule_Errors(t *testing.T) {
	r, dir := newRegistry(t)
	writeFile(t, filepath.Join(dir, "broken", DescriptorFile), "version = [")
	writeFile(t, filepath.Join(dir, "liar", DescriptorFile), `id = "other"`)

	tests := []struct {
		id   string
		code errs.Code
	}{
		{"missing", errs.ErrCodeModuleNotInstalled},
		{"broken", errs.ErrCodeInternal},
		{"liar", errs.ErrCodeInternal},
		{"../etc", errs.ErrCodeInvalidModuleID},
	}
	for _, tt := range tests {
		if _, err := r.Module(tt.id); !errs.Is(err, tt.code) {
			t.Errorf("Module(%q) error = %v, want %s", tt.id, err, tt.code)
		}
	}
	if r.Has("../etc") || r.Has("missing") {
		t.Error("Has should be false for invalid or missing modules")
	}
}

func TestFlushReloadsDescriptors(t *testing.T) {
	r, dir := newRegistry(t)
	path := filepath.Join(dir, "calendar", DescriptorFile)
	writeFile(t, path, `version = "1.0.0"`)

	m, _ := r.Module("calendar")
	writeFile(t, path, `version = "2.0.0"`)
	if again, _ := r.Module("calendar"); again.Version != m.Version {
		t.Error("descriptor should stay cached until Flush")
	}

	r.Flush()
	if m, _ := r.Module("calendar"); m.Version != "2.0.0" {
		t.Errorf("after Flush version = %s, want 2.0.0", m.Version)
	}
}

func TestList(t *testing.T) {
	r, dir := newRegistry(t)
	writeFile(t, filepath.Join(dir, "tasks", DescriptorFile), `version = "2.0.0"`)
	writeFile(t, filepath.Join(dir, "calendar", DescriptorFile), `version = "1.0.0"`)
	writeFile(t, filepath.Join(dir, "broken", DescriptorFile), "=")
	writeFile(t, filepath.Join(dir, "no-descriptor", "README"), "hi")
	writeFile(t, filepath.Join(dir, "stray.txt"), "x")

	mods, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, m := range mods {
		ids = append(ids, m.ID)
	}
	if diff := cmp.Diff([]string{"calendar", "tasks"}, ids); diff != "" {
		t.Errorf("List() ids (-want +got):\n%s", diff)
	}

	empty := NewDirRegistry(filepath.Join(dir, "nope"), nil)
	if mods, err := empty.List(); err != nil || len(mods) != 0 {
		t.Errorf("List() on missing dir = %v, %v", mods, err)
	}
}

func TestRemoveFolder(t *testing.T) {
	r, dir := newRegistry(t)
	writeFile(t, filepath.Join(dir, "calendar", DescriptorFile), `version = "1.0.0"`)
	writeFile(t, filepath.Join(dir, "calendar", "assets", "x.js"), "x")
	_, _ = r.Module("calendar")

	if err := r.RemoveFolder("calendar"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "calendar")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("folder still present: %v", err)
	}
	if _, err := r.Module("calendar"); !errs.Is(err, errs.ErrCodeModuleNotInstalled) {
		t.Errorf("Module after removal = %v", err)
	}
	if err := r.RemoveFolder("calendar"); err != nil {
		t.Errorf("removing a missing folder should succeed: %v", err)
	}
	if err := r.RemoveFolder(".."); !errs.Is(err, errs.ErrCodeInvalidModuleID) {
		t.Errorf("RemoveFolder(..) = %v", err)
	}
}

func TestHooks(t *testing.T) {
	var calls []string
	record := func(label string) HookFunc {
		return func(ctx context.Context, m *Module) error {
			calls = append(calls, label+":"+m.ID)
			return nil
		}
	}
	RegisterHook("test.install", record("install"))
	RegisterHook("test.update", record("update"))
	RegisterHook("test.bootstrap", record("bootstrap"))
	defer func() {
		for _, n := range []string{"test.install", "test.update", "test.bootstrap", "test.fail"} {
			unregisterHook(n)
		}
	}()

	r, dir := newRegistry(t)
	writeFile(t, filepath.Join(dir, "calendar", DescriptorFile), `
version = "1.0.0"
[hooks]
install = "test.install"
update = "test.update"
`)
	writeFile(t, filepath.Join(dir, "plain", DescriptorFile), `version = "1.0.0"`)
	ctx := context.Background()

	if err := r.Install(ctx, "calendar"); err != nil {
		t.Fatal(err)
	}
	if err := r.Update(ctx, "calendar"); err != nil {
		t.Fatal(err)
	}
	if err := r.Install(ctx, "plain"); err != nil {
		t.Errorf("module without hooks: %v", err)
	}

	writeFile(t, filepath.Join(dir, "calendar", AutostartFile), `
[hooks]
install = "test.bootstrap"
`)
	if !r.HasAutostart("calendar") || r.HasAutostart("plain") {
		t.Error("HasAutostart mismatch")
	}
	if err := r.Install(ctx, "calendar"); err != nil {
		t.Fatal(err)
	}

	want := []string{"install:calendar", "update:calendar", "bootstrap:calendar"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("hook calls (-want +got):\n%s", diff)
	}

	boom := errors.New("migration failed")
	RegisterHook("test.fail", func(context.Context, *Module) error { return boom })
	writeFile(t, filepath.Join(dir, "calendar", AutostartFile), "[hooks]\ninstall = \"test.fail\"\n")
	if err := r.Install(ctx, "calendar"); err != boom {
		t.Errorf("hook error should propagate unchanged, got %v", err)
	}

	writeFile(t, filepath.Join(dir, "calendar", AutostartFile), "[hooks]\ninstall = \"nope\"\n")
	if err := r.Install(ctx, "calendar"); !errs.Is(err, errs.ErrCodeInternal) {
		t.Errorf("unknown hook error = %v", err)
	}
}

func TestMissingHooks(t *testing.T) {
	RegisterHook("test.present", func(context.Context, *Module) error { return nil })
	defer unregisterHook("test.present")

	r, dir := newRegistry(t)
	writeFile(t, filepath.Join(dir, "calendar", DescriptorFile), `
[hooks]
install = "test.present"
update = "test.absent"
`)
	writeFile(t, filepath.Join(dir, "wiki", DescriptorFile), `
[hooks]
install = "test.gone"
update = "test.gone"
`)
	writeFile(t, filepath.Join(dir, "plain", DescriptorFile), `version = "1.0.0"`)

	tests := []struct {
		id   string
		want []string
	}{
		{"calendar", []string{"test.absent"}},
		{"wiki", []string{"test.gone"}},
		{"plain", nil},
	}
	for _, tt := range tests {
		got, err := r.MissingHooks(tt.id)
		if err != nil {
			t.Fatalf("MissingHooks(%s): %v", tt.id, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("MissingHooks(%s) (-want +got):\n%s", tt.id, diff)
		}
	}

	// autostart.toml overrides the descriptor.
	writeFile(t, filepath.Join(dir, "calendar", AutostartFile), "[hooks]\nupdate = \"test.present\"\n")
	if got, err := r.MissingHooks("calendar"); err != nil || len(got) != 0 {
		t.Errorf("MissingHooks with override = %v, %v; want none", got, err)
	}
}

func TestRegisterHook(t *testing.T) {
	RegisterHook("", func(context.Context, *Module) error { return nil })
	RegisterHook("test.nil", nil)
	if _, ok := LookupHook(""); ok {
		t.Error("empty name should not register")
	}
	if _, ok := LookupHook("test.nil"); ok {
		t.Error("nil hook should not register")
	}

	RegisterHook("test.listed", func(context.Context, *Module) error { return nil })
	defer unregisterHook("test.listed")
	found := false
	for _, n := range Hooks() {
		found = found || n == "test.listed"
	}
	if !found {
		t.Errorf("Hooks() = %v, missing test.listed", Hooks())
	}
}
