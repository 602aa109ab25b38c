package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"givekiosk/settings"
)

func catalogServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/catalog/donations" || r.URL.Query().Get("organization_id") != "org_1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchWritesCache(t *testing.T) {
	t.Parallel()

	srv := catalogServer(t, `{"items":[
		{"id":"A","name":"Meal\tfor one","amount":"10"},
		{"id":"B","name":"Week of groceries","amount":"75.50"},
		{"id":"","name":"no id","amount":"5"},
		{"id":"C","name":"bad","amount":"lots"}
	]}`)
	cache := filepath.Join(t.TempDir(), "cache", "catalog.txt")

	var updated []Item
	m := New(srv.URL, cache, nil)
	m.SetUpdateCallback(func(items []Item) { updated = items })

	if err := m.Fetch(context.Background(), "org_1"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(updated) != 2 {
		t.Errorf("Expected update callback with 2 items, got %v", updated)
	}

	it, ok := m.Lookup("A")
	if !ok || it.Name != "Meal for one" || it.Amount != "10" {
		t.Errorf("Unexpected lookup %+v %v", it, ok)
	}
	if _, ok := m.Lookup("C"); ok {
		t.Error("Item with a bad amount should be skipped")
	}

	reloaded := New("", cache, nil)
	if err := reloaded.LoadFromFile(); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	items := reloaded.Items()
	if len(items) != 2 || items[1].ID != "B" || items[1].Amount != "75.50" || items[1].Name != "Week of groceries" {
		t.Errorf("Unexpected cached items %+v", items)
	}
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	srv := catalogServer(t, `not json`)
	m := New(srv.URL, "", nil)

	if err := m.Fetch(context.Background(), ""); !errors.Is(err, ErrNoOrganization) {
		t.Errorf("Expected ErrNoOrganization, got %v", err)
	}
	if err := m.Fetch(context.Background(), "org_1"); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("Expected decode error, got %v", err)
	}
	if err := m.Fetch(context.Background(), "unknown"); err == nil {
		t.Error("Expected error for 404")
	}
}

func TestLoadMissingCache(t *testing.T) {
	t.Parallel()

	m := New("", filepath.Join(t.TempDir(), "none.txt"), nil)
	if err := m.LoadFromFile(); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if len(m.Items()) != 0 {
		t.Error("Expected empty catalog")
	}
}

func TestSyncPresetsCapped(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString(`{"items":[`)
	for i := 1; i <= 8; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id":"I%d","name":"Gift %d","amount":"%d"}`, i, i, i*5)
	}
	b.WriteString(`]}`)
	srv := catalogServer(t, b.String())

	m := New(srv.URL, "", nil)
	if err := m.Fetch(context.Background(), "org_1"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("settings.Open failed: %v", err)
	}
	defer store.Close()

	if err := m.SyncPresets(store); err != nil {
		t.Fatalf("SyncPresets failed: %v", err)
	}
	presets := store.Kiosk().Presets
	if len(presets) != settings.MaxPresets {
		t.Fatalf("Expected %d presets, got %d", settings.MaxPresets, len(presets))
	}
	if presets[0].CatalogItemID != "I1" || presets[0].Amount != "5" || presets[5].CatalogItemID != "I6" {
		t.Errorf("Unexpected presets %+v", presets)
	}
}

func TestSyncPresetsEmptyCatalogKeepsPresets(t *testing.T) {
	t.Parallel()

	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("settings.Open failed: %v", err)
	}
	defer store.Close()
	before := store.Kiosk().Presets

	if err := New("", "", nil).SyncPresets(store); err != nil {
		t.Fatalf("SyncPresets failed: %v", err)
	}
	if len(store.Kiosk().Presets) != len(before) {
		t.Error("Empty catalog should not clear presets")
	}
}

func TestSyncPresetsUnchangedSkipsWrite(t *testing.T) {
	t.Parallel()

	srv := catalogServer(t, `{"items":[{"id":"I1","name":"Gift","amount":"15"}]}`)
	m := New(srv.URL, "", nil)
	if err := m.Fetch(context.Background(), "org_1"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("settings.Open failed: %v", err)
	}
	defer store.Close()

	var changes int32
	store.OnChange(func(settings.Settings) { atomic.AddInt32(&changes, 1) })

	for i := 0; i < 2; i++ {
		if err := m.SyncPresets(store); err != nil {
			t.Fatalf("SyncPresets failed: %v", err)
		}
	}
	if n := atomic.LoadInt32(&changes); n != 1 {
		t.Errorf("Expected one settings change, got %d", n)
	}
}
