package eventpipe

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"

	"givekiosk/keypad"
	"givekiosk/video/screen"
)

// Config holds configuration for the event pipe.
type Config struct {
	Path string `yaml:"path"` // Path to named pipe (e.g., "/tmp/givekiosk-events")
}

// Command is one parsed line: input events for the current screen, or a
// named action for the application.
type Command struct {
	Events []screen.Event
	Action string
	Arg    string
}

// Handlers holds callback functions for pipe commands.
type Handlers struct {
	OnEvent  func(screen.Event)
	OnAction func(action, arg string)
}

// EventPipe listens for events on a named pipe.
type EventPipe struct {
	path     string
	handlers Handlers
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new EventPipe. Returns nil if path is empty.
func New(cfg Config, handlers Handlers) (*EventPipe, error) {
	if cfg.Path == "" {
		return nil, nil
	}

	// Remove existing pipe if it exists
	os.Remove(cfg.Path)

	// Create the named pipe
	if err := syscall.Mkfifo(cfg.Path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPipe{
		path:     cfg.Path,
		handlers: handlers,
		ctx:      ctx,
		cancel:   cancel,
	}

	return ep, nil
}

// Start begins listening for events on the pipe.
// This should be called as a goroutine.
func (ep *EventPipe) Start() {
	log.Printf("Event pipe listening on %s", ep.path)

	for {
		select {
		case <-ep.ctx.Done():
			return
		default:
		}

		// Open pipe for reading (blocks until writer connects)
		// We open in non-blocking mode first, then switch to blocking
		// This allows us to check for context cancellation
		file, err := os.OpenFile(ep.path, os.O_RDONLY, 0)
		if err != nil {
			if ep.ctx.Err() != nil {
				return
			}
			log.Printf("Event pipe open error: %v", err)
			continue
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			select {
			case <-ep.ctx.Done():
				file.Close()
				return
			default:
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			cmd, err := parseLine(line)
			if err != nil {
				log.Printf("Event pipe parse error: %v", err)
				continue
			}
			ep.dispatch(cmd)
		}

		file.Close()
		// Writer closed the pipe, loop back to wait for next writer
	}
}

func (ep *EventPipe) dispatch(cmd Command) {
	if ep.handlers.OnEvent != nil {
		for _, event := range cmd.Events {
			ep.handlers.OnEvent(event)
		}
	}
	if cmd.Action != "" && ep.handlers.OnAction != nil {
		ep.handlers.OnAction(cmd.Action, cmd.Arg)
	}
}

// Close stops the event pipe listener and removes the pipe.
func (ep *EventPipe) Close() error {
	ep.cancel()
	return os.Remove(ep.path)
}

// parseLine parses a command line into a Command.
// Command format:
//
//	key <k>                         - Key press: a character, enter, delete or escape
//	type <text>                     - One key press per character
//	rotary <delta>                  - Rotary turn (+1 or -1)
//	rotary press                    - Rotary button press
//	rotary long                     - Rotary button long press
//	button <confirm|cancel>         - Push button press
//	pay <ok|fail>                   - Complete the simulated card payment
//	reader <on|off>                 - Connect or disconnect the simulated reader
//	email <address>                 - Replace the receipt email
//	reset                           - Return the session to idle
//	screen <name>                   - Switch to screen (home, select, auth, etc.)
func parseLine(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	cmd := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "key":
		if arg == "" {
			return Command{}, fmt.Errorf("key requires a key")
		}
		k, err := parseKey(arg)
		if err != nil {
			return Command{}, err
		}
		return Command{Events: []screen.Event{keyEvent(k)}}, nil

	case "type":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), parts[0]))
		if text == "" {
			return Command{}, fmt.Errorf("type requires text")
		}
		var events []screen.Event
		for _, r := range text {
			events = append(events, keyEvent(keypad.Key(r)))
		}
		return Command{Events: events}, nil

	case "rotary":
		if arg == "" {
			return Command{}, fmt.Errorf("rotary requires delta, 'press' or 'long'")
		}
		switch strings.ToLower(arg) {
		case "press":
			return Command{Events: []screen.Event{{Type: screen.EventRotaryPress}}}, nil
		case "long":
			return Command{Events: []screen.Event{{Type: screen.EventRotaryLongPress}}}, nil
		}
		delta, err := strconv.Atoi(arg)
		if err != nil {
			return Command{}, fmt.Errorf("invalid rotary delta: %s", arg)
		}
		return Command{Events: []screen.Event{{
			Type: screen.EventRotaryTurn,
			Data: screen.RotaryData{Delta: delta},
		}}}, nil

	case "button":
		id, err := parseButton(arg)
		if err != nil {
			return Command{}, err
		}
		return Command{Events: []screen.Event{{
			Type: screen.EventButton,
			Data: screen.ButtonData{ID: id},
		}}}, nil

	case "pay", "reader":
		v := strings.ToLower(arg)
		ok := map[string]bool{"ok": true, "on": true, "1": true, "fail": false, "off": false, "0": false}
		if _, valid := ok[v]; !valid {
			return Command{}, fmt.Errorf("%s requires on/ok or off/fail", cmd)
		}
		return Command{Action: cmd, Arg: v}, nil

	case "email", "screen":
		if arg == "" {
			return Command{}, fmt.Errorf("%s requires an argument", cmd)
		}
		return Command{Action: cmd, Arg: arg}, nil

	case "reset":
		return Command{Action: cmd}, nil

	default:
		return Command{}, fmt.Errorf("unknown command: %s", cmd)
	}
}

func keyEvent(k keypad.Key) screen.Event {
	return screen.Event{Type: screen.EventKey, Data: screen.KeyData{Key: k}}
}

// parseKey converts a key name to a Key.
func parseKey(name string) (keypad.Key, error) {
	switch strings.ToLower(name) {
	case "enter", "ok", "#":
		return keypad.KeyEnter, nil
	case "delete", "del", "backspace", "*":
		return keypad.KeyDelete, nil
	case "escape", "esc":
		return keypad.KeyEscape, nil
	}
	r := []rune(name)
	if len(r) != 1 {
		return keypad.KeyNone, fmt.Errorf("unknown key: %s", name)
	}
	return keypad.Key(r[0]), nil
}

// parseButton converts a button name to ButtonID.
func parseButton(name string) (screen.ButtonID, error) {
	switch strings.ToLower(name) {
	case "confirm", "green", "1":
		return screen.ButtonConfirm, nil
	case "cancel", "red", "2":
		return screen.ButtonCancel, nil
	default:
		return 0, fmt.Errorf("unknown button: %s", name)
	}
}
