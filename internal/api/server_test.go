package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/modmarket/pkg/errors"
	"github.com/matzehuels/modmarket/pkg/marketplace"
)

type fakeCatalog struct {
	catalog marketplace.Catalog
	err     error
	latest  string
	flushed int
}

func (f *fakeCatalog) FetchCatalog(context.Context) (marketplace.Catalog, error) {
	return f.catalog, f.err
}

func (f *fakeCatalog) FetchModuleInfo(_ context.Context, id string) (*marketplace.Module, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.catalog[id]
	if !ok {
		return nil, errs.New(errs.ErrCodeNetwork, "info returned status 404")
	}
	return &m, nil
}

func (f *fakeCatalog) FetchLatestPlatformVersion(context.Context) string { return f.latest }

func (f *fakeCatalog) Flush(context.Context) error {
	f.flushed++
	return nil
}

type fakeInstaller struct {
	err   error
	calls []string
}

func (f *fakeInstaller) Install(_ context.Context, id string) error {
	f.calls = append(f.calls, "install "+id)
	return f.err
}

func (f *fakeInstaller) Update(_ context.Context, id string) error {
	f.calls = append(f.calls, "update "+id)
	return f.err
}

type fakeUpdates map[string]marketplace.Module

func (f fakeUpdates) ListAvailableUpdates(context.Context) (map[string]marketplace.Module, error) {
	return f, nil
}

func newTestServer(cat *fakeCatalog, inst *fakeInstaller, upd fakeUpdates) http.Handler {
	return New(cat, inst, upd, log.New(&bytes.Buffer{})).Handler()
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func catalog() marketplace.Catalog {
	return marketplace.Catalog{
		"tasks":    {ID: "tasks", Name: "Tasks", LatestVersion: "2.0.0"},
		"calendar": {ID: "calendar", Name: "Calendar", LatestVersion: "1.4.0", LatestCompatibleVersion: &marketplace.Release{Version: "1.4.0"}},
	}
}

func TestListModules(t *testing.T) {
	h := newTestServer(&fakeCatalog{catalog: catalog()}, &fakeInstaller{}, nil)
	rec := do(t, h, http.MethodGet, "/modules")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var body struct {
		Modules []marketplace.Module `json:"modules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Modules) != 2 || body.Modules[0].ID != "calendar" || body.Modules[1].ID != "tasks" {
		t.Errorf("modules = %+v, want sorted calendar, tasks", body.Modules)
	}
	if body.Modules[0].CompatibleVersion() != "1.4.0" {
		t.Errorf("compatible version lost in encoding: %+v", body.Modules[0])
	}
}

func TestModuleInfo(t *testing.T) {
	h := newTestServer(&fakeCatalog{catalog: catalog()}, &fakeInstaller{}, nil)

	rec := do(t, h, http.MethodGet, "/modules/calendar")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var m marketplace.Module
	_ = json.Unmarshal(rec.Body.Bytes(), &m)
	if m.Name != "Calendar" {
		t.Errorf("module = %+v", m)
	}

	rec = do(t, h, http.MethodGet, "/modules/bad..id")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", rec.Code)
	}
}

func TestInstallAndUpdate(t *testing.T) {
	inst := &fakeInstaller{}
	h := newTestServer(&fakeCatalog{catalog: catalog()}, inst, nil)

	if rec := do(t, h, http.MethodPost, "/modules/calendar/install"); rec.Code != http.StatusCreated {
		t.Errorf("install status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/modules/calendar/update"); rec.Code != http.StatusOK {
		t.Errorf("update status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/modules/calendar/install"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET install status = %d, want 405", rec.Code)
	}
	if len(inst.calls) != 2 || inst.calls[0] != "install calendar" || inst.calls[1] != "update calendar" {
		t.Errorf("calls = %v", inst.calls)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   errs.Code
	}{
		{errs.New(errs.ErrCodeAlreadyInstalled, "module directory for module calendar already exists"), http.StatusConflict, errs.ErrCodeAlreadyInstalled},
		{errs.New(errs.ErrCodeNoCompatibleVersion, "no compatible module version found"), http.StatusUnprocessableEntity, errs.ErrCodeNoCompatibleVersion},
		{errs.New(errs.ErrCodeNotWritable, "module directory is not writable"), http.StatusInternalServerError, errs.ErrCodeNotWritable},
		{errs.New(errs.ErrCodeDownloadFailed, "module download failed"), http.StatusBadGateway, errs.ErrCodeDownloadFailed},
		{errs.New(errs.ErrCodeExtractionFailed, "could not extract module"), http.StatusInternalServerError, errs.ErrCodeExtractionFailed},
		{errs.New(errs.ErrCodeInvalidModuleID, "invalid module id"), http.StatusBadRequest, errs.ErrCodeInvalidModuleID},
		{errors.New("hook exploded"), http.StatusInternalServerError, errs.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			h := newTestServer(&fakeCatalog{catalog: catalog()}, &fakeInstaller{err: tt.err}, nil)
			rec := do(t, h, http.MethodPost, "/modules/calendar/install")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.code || body.Message != errs.UserMessage(tt.err) {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestUpdatesLatestAndFlush(t *testing.T) {
	cat := &fakeCatalog{catalog: catalog(), latest: "1.3.0"}
	upd := fakeUpdates{"calendar": catalog()["calendar"]}
	h := newTestServer(cat, &fakeInstaller{}, upd)

	rec := do(t, h, http.MethodGet, "/updates")
	var updates struct {
		Updates []marketplace.Module `json:"updates"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &updates)
	if rec.Code != http.StatusOK || len(updates.Updates) != 1 || updates.Updates[0].ID != "calendar" {
		t.Errorf("updates = %d %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/platform/latest")
	var latest map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &latest)
	if latest["latestVersion"] != "1.3.0" {
		t.Errorf("latest = %s", rec.Body)
	}

	rec = do(t, h, http.MethodPost, "/cache/flush")
	if rec.Code != http.StatusNoContent || cat.flushed != 1 {
		t.Errorf("flush status = %d, flushed = %d", rec.Code, cat.flushed)
	}
}

func TestCatalogFailure(t *testing.T) {
	h := newTestServer(&fakeCatalog{err: errs.New(errs.ErrCodeNetwork, "could not fetch module list online")}, &fakeInstaller{}, nil)
	rec := do(t, h, http.MethodGet, "/modules")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
