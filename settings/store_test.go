package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	k := s.Kiosk()
	if len(k.Presets) != 4 {
		t.Errorf("Expected 4 default presets, got %d", len(k.Presets))
	}
	if !k.HomePageEnabled {
		t.Error("Expected home page enabled by default")
	}
	if k.IdleTimeout() != 15*time.Second {
		t.Errorf("Expected 15s idle timeout, got %v", k.IdleTimeout())
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	org := Organization{ID: "org_1", Name: "Food Bank", TaxID: "12-345", ReceiptMessage: "Thank you"}
	if err := s.SetOrganization(org); err != nil {
		t.Fatalf("SetOrganization failed: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.Organization() != org {
		t.Errorf("Expected %+v, got %+v", org, reopened.Organization())
	}
	if !Equal(s.Get(), reopened.Get()) {
		t.Error("Expected reloaded settings to equal saved settings")
	}
}

func TestPresetCap(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.AddPreset(Preset{Amount: "5"}); err != nil {
		t.Fatalf("AddPreset 5 failed: %v", err)
	}
	if err := s.AddPreset(Preset{Amount: "250", CatalogItemID: "ITEM"}); err != nil {
		t.Fatalf("AddPreset 250 failed: %v", err)
	}
	err = s.AddPreset(Preset{Amount: "500"})
	if !errors.Is(err, ErrTooManyPresets) {
		t.Fatalf("Expected ErrTooManyPresets, got %v", err)
	}
	if n := len(s.Kiosk().Presets); n != MaxPresets {
		t.Errorf("Expected %d presets, got %d", MaxPresets, n)
	}

	err = s.SetPresets(make([]Preset, MaxPresets+1))
	if !errors.Is(err, ErrTooManyPresets) {
		t.Errorf("Expected ErrTooManyPresets from SetPresets, got %v", err)
	}
}

func TestUpdateAndRemovePreset(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.UpdatePreset(1, Preset{Amount: "30"}); err != nil {
		t.Fatalf("UpdatePreset failed: %v", err)
	}
	if got := s.Kiosk().Presets[1].Amount; got != "30" {
		t.Errorf("Expected preset 1 to be 30, got %s", got)
	}

	if err := s.RemovePreset(0); err != nil {
		t.Fatalf("RemovePreset failed: %v", err)
	}
	presets := s.Kiosk().Presets
	if len(presets) != 3 || presets[0].Amount != "30" {
		t.Errorf("Unexpected presets after remove: %+v", presets)
	}

	if err := s.RemovePreset(7); !errors.Is(err, ErrPresetIndex) {
		t.Errorf("Expected ErrPresetIndex, got %v", err)
	}
	if err := s.UpdatePreset(0, Preset{Amount: "abc"}); err == nil {
		t.Error("Expected error for non-numeric preset")
	}
}

func TestValidateRanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"fine tune high", func(s *Settings) { s.Kiosk.Layout.FineTune = 51 }},
		{"fine tune low", func(s *Settings) { s.Kiosk.Layout.FineTune = -51 }},
		{"bad position", func(s *Settings) { s.Kiosk.Layout.Position = "left" }},
		{"zoom", func(s *Settings) { s.Kiosk.Layout.Zoom = 0.5 }},
		{"pan", func(s *Settings) { s.Kiosk.Layout.PanX = 2 }},
		{"max below min", func(s *Settings) { s.Kiosk.MinAmount = "50"; s.Kiosk.MaxAmount = "10" }},
		{"zero min", func(s *Settings) { s.Kiosk.MinAmount = "0" }},
		{"negative preset", func(s *Settings) { s.Kiosk.Presets[0].Amount = "-5" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	s := Defaults()
	s.Kiosk.Layout.FineTune = -50
	if err := s.Validate(); err != nil {
		t.Errorf("Expected -50 to be accepted, got %v", err)
	}
}

func TestRejectedUpdateLeavesState(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	before := s.Get()

	err = s.Update(func(st *Settings) error {
		st.Kiosk.Layout.FineTune = 99
		return nil
	})
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !Equal(before, s.Get()) {
		t.Error("Rejected update must not change settings")
	}
}

func TestAutoSaveDebounced(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.SetSaveDelay(20 * time.Millisecond)

	for _, name := range []string{"A", "B", "C"} {
		if err := s.SetOrganization(Organization{Name: name}); err != nil {
			t.Fatalf("SetOrganization failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("auto-save never wrote the settings file")
		}
		time.Sleep(10 * time.Millisecond)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if got := reopened.Organization().Name; got != "C" {
		t.Errorf("Expected last write C, got %q", got)
	}
}

func TestOnChangeCalled(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var got Settings
	s.OnChange(func(st Settings) { got = st })

	if err := s.SetOrganization(Organization{Name: "Shelter"}); err != nil {
		t.Fatalf("SetOrganization failed: %v", err)
	}
	if got.Organization.Name != "Shelter" {
		t.Errorf("Expected listener to see Shelter, got %q", got.Organization.Name)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}
