package video

import "testing"

func TestPanelCoord(t *testing.T) {
	// panel is 4x2
	tests := []struct {
		rotation     int
		x, y         int
		wantX, wantY int
	}{
		{0, 1, 1, 1, 1},
		{180, 0, 0, 3, 1},
		{90, 0, 0, 3, 0},
		{90, 1, 3, 0, 1},
		{270, 0, 0, 0, 1},
		{270, 1, 3, 3, 0},
	}
	for _, tt := range tests {
		x, y := panelCoord(tt.x, tt.y, 4, 2, tt.rotation)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("rotation %d: (%d,%d) -> (%d,%d), want (%d,%d)",
				tt.rotation, tt.x, tt.y, x, y, tt.wantX, tt.wantY)
		}
	}
}

func TestLogicalSize(t *testing.T) {
	if w, h := logicalSize(800, 480, 90); w != 480 || h != 800 {
		t.Errorf("90 degrees: %dx%d", w, h)
	}
	if w, h := logicalSize(800, 480, 180); w != 800 || h != 480 {
		t.Errorf("180 degrees: %dx%d", w, h)
	}
}

func TestHeadlessSize(t *testing.T) {
	if w, h := (Config{}).HeadlessSize(); w != 800 || h != 480 {
		t.Errorf("Default size %dx%d", w, h)
	}
}
