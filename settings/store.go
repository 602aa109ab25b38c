package settings

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultSaveDelay is how long Update waits for further edits before
// writing the file.
const DefaultSaveDelay = time.Second

// Store owns the persisted settings file.
//
// Reads are served from memory. Every successful Update schedules a
// debounced write; Save and Flush write immediately.
type Store struct {
	mu        sync.RWMutex
	path      string
	cur       Settings
	saveDelay time.Duration
	saveTimer *time.Timer
	listeners []func(Settings)
}

// Open loads the settings file at path, falling back to Defaults if it
// does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{
		path:      path,
		cur:       Defaults(),
		saveDelay: DefaultSaveDelay,
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetSaveDelay changes the auto-save debounce period.
func (s *Store) SetSaveDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveDelay = d
}

// OnChange registers fn to be called after every applied change or reload.
func (s *Store) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load (re)reads the settings file. A missing file leaves the defaults.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("Settings: %s not found, using defaults", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	loaded := Defaults()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("validate settings: %w", err)
	}

	s.mu.Lock()
	s.cur = loaded
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, loaded)
	return nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.clone()
}

// Organization returns the current organization profile.
func (s *Store) Organization() Organization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Organization
}

// Kiosk returns a copy of the current kiosk settings.
func (s *Store) Kiosk() Kiosk {
	return s.Get().Kiosk
}

// Update applies fn to a copy of the settings. The copy replaces the
// current settings only if fn succeeds and the result validates.
func (s *Store) Update(fn func(*Settings) error) error {
	s.mu.Lock()
	next := s.cur.clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cur = next
	s.scheduleSaveLocked()
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, next.clone())
	return nil
}

// SetOrganization replaces the organization profile.
func (s *Store) SetOrganization(o Organization) error {
	return s.Update(func(st *Settings) error {
		st.Organization = o
		return nil
	})
}

// SetKiosk replaces the kiosk settings.
func (s *Store) SetKiosk(k Kiosk) error {
	return s.Update(func(st *Settings) error {
		st.Kiosk = k
		return nil
	})
}

// AddPreset appends a preset.
func (s *Store) AddPreset(p Preset) error {
	return s.Update(func(st *Settings) error {
		if len(st.Kiosk.Presets) >= MaxPresets {
			return ErrTooManyPresets
		}
		st.Kiosk.Presets = append(st.Kiosk.Presets, p)
		return nil
	})
}

// UpdatePreset replaces the preset at index i.
func (s *Store) UpdatePreset(i int, p Preset) error {
	return s.Update(func(st *Settings) error {
		if i < 0 || i >= len(st.Kiosk.Presets) {
			return ErrPresetIndex
		}
		st.Kiosk.Presets[i] = p
		return nil
	})
}

// RemovePreset deletes the preset at index i.
func (s *Store) RemovePreset(i int) error {
	return s.Update(func(st *Settings) error {
		if i < 0 || i >= len(st.Kiosk.Presets) {
			return ErrPresetIndex
		}
		st.Kiosk.Presets = append(st.Kiosk.Presets[:i], st.Kiosk.Presets[i+1:]...)
		return nil
	})
}

// SetPresets replaces the whole preset list.
func (s *Store) SetPresets(presets []Preset) error {
	return s.Update(func(st *Settings) error {
		st.Kiosk.Presets = append([]Preset(nil), presets...)
		return nil
	})
}

// Save writes the current settings now.
func (s *Store) Save() error {
	s.mu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	cur := s.cur.clone()
	s.mu.Unlock()

	return s.write(cur)
}

// Flush writes pending changes, if any.
func (s *Store) Flush() error {
	s.mu.Lock()
	pending := s.saveTimer != nil
	s.mu.Unlock()
	if !pending {
		return nil
	}
	return s.Save()
}

// Close flushes pending changes.
func (s *Store) Close() error {
	return s.Flush()
}

func (s *Store) scheduleSaveLocked() {
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(s.saveDelay, func() {
		if err := s.Flush(); err != nil {
			log.Printf("Settings: auto-save: %v", err)
		}
	})
}

// write replaces the settings file atomically.
func (s *Store) write(st Settings) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename settings file: %w", err)
	}
	return nil
}

func (s *Store) notify(listeners []func(Settings), st Settings) {
	for _, fn := range listeners {
		fn(st)
	}
}

// Equal reports whether two settings values encode identically.
func Equal(a, b Settings) bool {
	ea, err1 := yaml.Marshal(a)
	eb, err2 := yaml.Marshal(b)
	return err1 == nil && err2 == nil && bytes.Equal(ea, eb)
}
