package screen

import (
	"givekiosk/donation"
	"givekiosk/keypad"
)

// Event types that screens can receive
type EventType int

const (
	EventKey EventType = iota // Keypad or keyboard key
	EventRotaryTurn
	EventRotaryPress
	EventRotaryLongPress  // Rotary button held past the long press time
	EventButton           // Illuminated push button
	EventSession          // Donation session changed
	EventShake            // Amount rejected, shake the keypad
	EventMQTTConnected    // MQTT broker connected/reconnected
	EventMQTTDisconnected // MQTT broker disconnected
)

// ButtonID identifies a push button.
type ButtonID int

const (
	ButtonConfirm ButtonID = iota
	ButtonCancel
)

// Event is the base event structure. Type-specific data is in the Data field.
type Event struct {
	Type EventType
	Data any // KeyData, RotaryData, ButtonData or donation.Snapshot
}

// KeyData contains data for key events.
type KeyData struct {
	Key keypad.Key
}

// RotaryData contains data for rotary encoder events.
type RotaryData struct {
	Delta int // +1 for CW, -1 for CCW (for turn events)
}

// ButtonData contains data for button events.
type ButtonData struct {
	ID ButtonID
}

// Key returns the KeyData from the event, or nil if not a key event.
func (e Event) Key() *KeyData {
	if data, ok := e.Data.(KeyData); ok {
		return &data
	}
	return nil
}

// Rotary returns the RotaryData from the event, or nil if not a rotary event.
func (e Event) Rotary() *RotaryData {
	if data, ok := e.Data.(RotaryData); ok {
		return &data
	}
	return nil
}

// Button returns the ButtonData from the event, or nil if not a button event.
func (e Event) Button() *ButtonData {
	if data, ok := e.Data.(ButtonData); ok {
		return &data
	}
	return nil
}

// Session returns the snapshot carried by an EventSession, or nil.
func (e Event) Session() *donation.Snapshot {
	if data, ok := e.Data.(donation.Snapshot); ok {
		return &data
	}
	return nil
}

// Screen is the interface that all screens must implement.
type Screen interface {
	// Init is called when entering this screen.
	// The manager is provided so screens can switch to other screens.
	Init(mgr *Manager)

	// Update redraws the screen. Called after Init and whenever
	// the screen needs to refresh its display.
	Update()

	// HandleEvent processes an input event.
	// Returns true if the event was handled.
	HandleEvent(event Event) bool

	// Exit is called when leaving this screen.
	// Use for cleanup of screen-specific resources.
	Exit()

	// Name returns the screen name for debugging/logging.
	Name() string
}

// ScreenID identifies a screen type.
type ScreenID int

const (
	ScreenNone ScreenID = iota
	ScreenHome
	ScreenSelectAmount
	ScreenProcessing
	ScreenReceiptPrompt
	ScreenEmailEntry
	ScreenThankYou
	ScreenAuthRequired
	ScreenUnavailable
	ScreenShutdown
)

func (id ScreenID) String() string {
	switch id {
	case ScreenHome:
		return "Home"
	case ScreenSelectAmount:
		return "SelectAmount"
	case ScreenProcessing:
		return "Processing"
	case ScreenReceiptPrompt:
		return "ReceiptPrompt"
	case ScreenEmailEntry:
		return "EmailEntry"
	case ScreenThankYou:
		return "ThankYou"
	case ScreenAuthRequired:
		return "AuthRequired"
	case ScreenUnavailable:
		return "Unavailable"
	case ScreenShutdown:
		return "Shutdown"
	default:
		return "None"
	}
}
