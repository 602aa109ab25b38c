package catalog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"givekiosk/settings"
)

var ErrNoOrganization = errors.New("organization id not configured")

// Item is a donation amount defined in the merchant's catalog.
type Item struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type listResponse struct {
	Items []Item `json:"items"`
}

// Manager keeps the catalog items and their on-disk cache.
type Manager struct {
	mu         sync.RWMutex
	items      []Item
	httpClient *http.Client
	baseURL    string
	cacheFile  string
	onUpdate   func([]Item)
}

// New creates a catalog manager. httpClient may be nil.
func New(baseURL, cacheFile string, httpClient *http.Client) *Manager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Manager{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cacheFile:  cacheFile,
	}
}

// SetUpdateCallback sets a callback to be called after a fetch.
func (m *Manager) SetUpdateCallback(fn func([]Item)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Lookup finds an item by catalog id.
func (m *Manager) Lookup(id string) (Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, it := range m.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Items returns a copy of the catalog.
func (m *Manager) Items() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Item(nil), m.items...)
}

// Fetch downloads the donation items for orgID and rewrites the cache.
func (m *Manager) Fetch(ctx context.Context, orgID string) error {
	if orgID == "" {
		return ErrNoOrganization
	}

	u := fmt.Sprintf("%s/api/catalog/donations?organization_id=%s", m.baseURL, url.QueryEscape(orgID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned %d", resp.StatusCode)
	}

	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}

	items := make([]Item, 0, len(list.Items))
	for _, it := range list.Items {
		if it.ID == "" {
			continue
		}
		if _, err := decimal.NewFromString(it.Amount); err != nil {
			log.Printf("Catalog: skipping %s with amount %q", it.ID, it.Amount)
			continue
		}
		it.Name = strings.NewReplacer("\t", " ", "\n", " ").Replace(it.Name)
		items = append(items, it)
	}

	m.mu.Lock()
	m.items = items
	onUpdate := m.onUpdate
	err = m.writeCacheLocked()
	m.mu.Unlock()
	if err != nil {
		return err
	}

	log.Printf("Catalog: %d donation items", len(items))
	if onUpdate != nil {
		onUpdate(append([]Item(nil), items...))
	}
	return nil
}

// writeCacheLocked writes one item per line: id, amount and name,
// tab-separated.
func (m *Manager) writeCacheLocked() error {
	if m.cacheFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.cacheFile), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp := m.cacheFile + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	w := bufio.NewWriter(file)
	for _, it := range m.items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.ID, it.Amount, it.Name)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("write cache: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmp, m.cacheFile); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// LoadFromFile loads the catalog from the cache file. A missing file
// leaves the catalog empty.
func (m *Manager) LoadFromFile() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cacheFile == "" {
		return nil
	}
	file, err := os.Open(m.cacheFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open cache file: %w", err)
	}
	defer file.Close()

	m.items = m.items[:0]
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), "\t", 3)
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		it := Item{ID: parts[0], Amount: parts[1]}
		if len(parts) == 3 {
			it.Name = parts[2]
		}
		m.items = append(m.items, it)
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Catalog: warning reading cache file: %v", err)
	}
	return nil
}

// Presets converts the catalog into preset buttons, at most
// settings.MaxPresets, in catalog order.
func (m *Manager) Presets() []settings.Preset {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]settings.Preset, 0, settings.MaxPresets)
	for _, it := range m.items {
		if len(out) == settings.MaxPresets {
			break
		}
		out = append(out, settings.Preset{Amount: it.Amount, CatalogItemID: it.ID})
	}
	return out
}

// SyncPresets replaces the kiosk presets with the catalog items. An empty
// catalog, or one that already matches, leaves the presets alone.
func (m *Manager) SyncPresets(store *settings.Store) error {
	presets := m.Presets()
	if len(presets) == 0 || slices.Equal(presets, store.Kiosk().Presets) {
		return nil
	}
	if len(m.Items()) > settings.MaxPresets {
		log.Printf("Catalog: only the first %d items become presets", settings.MaxPresets)
	}
	if err := store.SetPresets(presets); err != nil {
		return fmt.Errorf("sync presets: %w", err)
	}
	return nil
}
