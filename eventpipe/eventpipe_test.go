package eventpipe

import (
	"testing"

	"givekiosk/keypad"
	"givekiosk/video/screen"
)

func TestParseLineEvents(t *testing.T) {
	tests := []struct {
		line string
		typ  screen.EventType
		key  keypad.Key
	}{
		{"key 5", screen.EventKey, '5'},
		{"key enter", screen.EventKey, keypad.KeyEnter},
		{"KEY *", screen.EventKey, keypad.KeyDelete},
		{"key esc", screen.EventKey, keypad.KeyEscape},
		{"rotary press", screen.EventRotaryPress, 0},
		{"rotary long", screen.EventRotaryLongPress, 0},
	}

	for _, tt := range tests {
		cmd, err := parseLine(tt.line)
		if err != nil {
			t.Fatalf("parseLine(%q): %v", tt.line, err)
		}
		if len(cmd.Events) != 1 || cmd.Events[0].Type != tt.typ {
			t.Fatalf("parseLine(%q) = %+v", tt.line, cmd)
		}
		if tt.typ == screen.EventKey && cmd.Events[0].Key().Key != tt.key {
			t.Errorf("parseLine(%q) key = %v, want %v", tt.line, cmd.Events[0].Key().Key, tt.key)
		}
	}
}

func TestParseLineRotaryAndButton(t *testing.T) {
	cmd, err := parseLine("rotary -1")
	if err != nil {
		t.Fatal(err)
	}
	if r := cmd.Events[0].Rotary(); r == nil || r.Delta != -1 {
		t.Errorf("Rotary data %+v", r)
	}

	cmd, err = parseLine("button cancel")
	if err != nil {
		t.Fatal(err)
	}
	if b := cmd.Events[0].Button(); b == nil || b.ID != screen.ButtonCancel {
		t.Errorf("Button data %+v", b)
	}
}

func TestParseLineType(t *testing.T) {
	cmd, err := parseLine("type  ann@example.org")
	if err != nil {
		t.Fatal(err)
	}
	var got []rune
	for _, e := range cmd.Events {
		got = append(got, rune(e.Key().Key))
	}
	if string(got) != "ann@example.org" {
		t.Errorf("Typed %q", string(got))
	}
}

func TestParseLineActions(t *testing.T) {
	tests := []struct {
		line, action, arg string
	}{
		{"pay ok", "pay", "ok"},
		{"pay FAIL", "pay", "fail"},
		{"reader off", "reader", "off"},
		{"email donor@example.org", "email", "donor@example.org"},
		{"screen home", "screen", "home"},
		{"reset", "reset", ""},
	}
	for _, tt := range tests {
		cmd, err := parseLine(tt.line)
		if err != nil {
			t.Fatalf("parseLine(%q): %v", tt.line, err)
		}
		if cmd.Action != tt.action || cmd.Arg != tt.arg || len(cmd.Events) != 0 {
			t.Errorf("parseLine(%q) = %+v", tt.line, cmd)
		}
	}
}

func TestParseLineErrors(t *testing.T) {
	for _, line := range []string{"", "key", "key ab", "rotary x", "button blue", "pay maybe", "email", "launch"} {
		if _, err := parseLine(line); err == nil {
			t.Errorf("parseLine(%q) should fail", line)
		}
	}
}

func TestDispatch(t *testing.T) {
	var events int
	var action string
	ep := &EventPipe{handlers: Handlers{
		OnEvent:  func(screen.Event) { events++ },
		OnAction: func(a, arg string) { action = a + ":" + arg },
	}}
	cmd, _ := parseLine("type 123")
	ep.dispatch(cmd)
	cmd, _ = parseLine("pay ok")
	ep.dispatch(cmd)

	if events != 3 || action != "pay:ok" {
		t.Errorf("events=%d action=%q", events, action)
	}
}
