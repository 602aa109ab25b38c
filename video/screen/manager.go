package screen

import (
	"image"
	"log"
	"sync"
	"time"

	"github.com/fogleman/gg"
)

// DefaultFont is used when no font is configured.
const DefaultFont = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// TimerID uniquely identifies a timer.
type TimerID uint64

// TimerCallback is called when a timer fires.
// The screen parameter is the screen that was current when the timer was set.
type TimerCallback func(screen Screen)

// screenTimer holds timer state.
type screenTimer struct {
	id       TimerID
	timer    *time.Timer
	screen   Screen
	callback TimerCallback
}

// Manager manages screen state and transitions.
//
// # Mutex (mu) Usage
//
// The mutex protects: current, screens, timers, nextTimerID, mqttConnected.
//
// IMPORTANT: Screen callbacks (Init, Update, Exit, HandleEvent) may be called
// in two contexts:
//   - With mutex HELD: Exit() is called from SwitchTo() while holding the lock
//   - With mutex RELEASED: Init(), Update(), HandleEvent() are called after releasing
//
// Rules for Screen implementations:
//   - NEVER call ClearTimeout() from Exit() - causes deadlock (mutex already held)
//   - The manager clears all timers for a screen BEFORE calling Exit()
//   - To stop a recurring timer, just set your timerID field to 0 in Exit()
//   - Timer callbacks check if timer still exists before running user callback
//
// Rules for timer callbacks:
//   - Callbacks run with mutex RELEASED (safe to call SetTimeout, etc.)
//   - With a dispatcher set, callbacks run on the dispatcher's goroutine
//   - Check your screen's timerID field to detect if Exit() was called
//   - Do NOT call Current() to check if screen is active (acquires mutex,
//     potential deadlock if SwitchTo is waiting)
//
// Thread safety:
//   - SetTimeout, ClearTimeout, SwitchTo, SendEvent are safe to call from any goroutine
//   - Drawing methods (DC, Flush, FlushRect, etc.) are NOT mutex-protected;
//     only the current screen should draw, and only from its callbacks
type Manager struct {
	mu            sync.Mutex // Protects current, currentID, screens, timers, nextTimerID, mqttConnected
	current       Screen
	currentID     ScreenID
	screens       map[ScreenID]Screen
	dc            *gg.Context
	width, height int
	updateFn      func()               // Called after drawing to flush full framebuffer
	updateRectFn  func(x, y, w, h int) // Called to flush a rectangle only
	dispatch      func(func())         // Runs timer callbacks, nil runs them directly
	fontPath      string
	fontSize      int

	// Timer management
	nextTimerID TimerID
	timers      map[TimerID]*screenTimer

	// App-level state that persists across screen switches
	mqttConnected bool

	images map[string]image.Image
}

// NewManager creates a new screen manager.
func NewManager(dc *gg.Context, width, height int, updateFn func()) *Manager {
	return &Manager{
		dc:       dc,
		width:    width,
		height:   height,
		updateFn: updateFn,
		fontPath: DefaultFont,
		screens:  make(map[ScreenID]Screen),
		timers:   make(map[TimerID]*screenTimer),
		images:   make(map[string]image.Image),
	}
}

// NewHeadless creates a manager drawing into memory only.
func NewHeadless(width, height int) *Manager {
	return NewManager(gg.NewContext(width, height), width, height, nil)
}

// SetDispatcher routes timer callbacks through fn, which must run them
// on the goroutine that handles input events.
func (m *Manager) SetDispatcher(fn func(func())) {
	m.dispatch = fn
}

// SetFontPath sets the TTF file used by SetFontSize.
func (m *Manager) SetFontPath(path string) {
	if path != "" {
		m.fontPath = path
		m.fontSize = 0
	}
}

// SetUpdateRectFn sets the function for partial screen updates.
func (m *Manager) SetUpdateRectFn(fn func(x, y, w, h int)) {
	m.updateRectFn = fn
}

// Register registers a screen with the manager.
func (m *Manager) Register(id ScreenID, screen Screen) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screens[id] = screen
}

// SwitchTo transitions to a new screen.
func (m *Manager) SwitchTo(id ScreenID) {
	m.mu.Lock()

	screen, ok := m.screens[id]
	if !ok {
		m.mu.Unlock()
		log.Printf("Screen: unknown screen ID %d", id)
		return
	}

	if m.current != nil {
		// Clear all timers for the exiting screen
		m.clearTimersForScreenLocked(m.current)
		m.current.Exit()
	}

	m.current = screen
	m.currentID = id
	m.mu.Unlock()
	log.Printf("Screen: %s", screen.Name())

	// Call Init and Update outside the lock to allow SetTimeout to work
	screen.Init(m)

	// Check if we're still the current screen after Init (Init might have switched)
	m.mu.Lock()
	stillCurrent := (m.current == screen)
	m.mu.Unlock()

	if stillCurrent {
		screen.Update()
	}
}

// Current returns the current screen, or nil if none.
func (m *Manager) Current() Screen {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentID returns the ID of the current screen.
func (m *Manager) CurrentID() ScreenID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID
}

// SendEvent sends an event to the current screen.
func (m *Manager) SendEvent(event Event) bool {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	if current == nil {
		return false
	}
	// Call HandleEvent outside the lock to allow it to call Update/SwitchTo
	return current.HandleEvent(event)
}

// Update forces a redraw of the current screen.
func (m *Manager) Update() {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	if current != nil {
		current.Update()
	}
}

// DC returns the drawing context for screens to use.
func (m *Manager) DC() *gg.Context {
	return m.dc
}

// Width returns the screen width.
func (m *Manager) Width() int {
	return m.width
}

// Height returns the screen height.
func (m *Manager) Height() int {
	return m.height
}

// Flush flushes the drawing to the framebuffer.
func (m *Manager) Flush() {
	if m.updateFn != nil {
		m.updateFn()
	}
}

// FlushRect flushes only a rectangle of the screen to the framebuffer.
// Falls back to full flush if partial update is not supported.
func (m *Manager) FlushRect(x, y, w, h int) {
	if m.updateRectFn != nil {
		m.updateRectFn(x, y, w, h)
	} else if m.updateFn != nil {
		m.updateFn()
	}
}

// FillRect fills a rectangle with a solid color.
func (m *Manager) FillRect(x, y, w, h int, r, g, b float64) {
	m.dc.SetRGB(r, g, b)
	m.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	m.dc.Fill()
}

// SetFontSize loads a font at the specified size. A missing font file
// leaves the built-in face in place.
func (m *Manager) SetFontSize(size int) {
	if size == m.fontSize {
		return
	}
	if err := m.dc.LoadFontFace(m.fontPath, float64(size)); err != nil {
		log.Printf("Screen: failed to load font: %v", err)
	}
	m.fontSize = size
}

// DrawCentered draws centered text at the given y position.
func (m *Manager) DrawCentered(text string, y float64, r, g, b float64) {
	m.dc.SetRGB(r, g, b)
	m.dc.DrawStringAnchored(text, float64(m.width/2), y, 0.5, 0.5)
}

// DrawWrapped draws text wrapped to width, centered on x.
func (m *Manager) DrawWrapped(text string, y, width float64, r, g, b float64) {
	m.dc.SetRGB(r, g, b)
	m.dc.DrawStringWrapped(text, float64(m.width/2), y, 0.5, 0.5, width, 1.3, gg.AlignCenter)
}

// Image loads a PNG or JPEG once and keeps it for later screens.
func (m *Manager) Image(path string) (image.Image, error) {
	m.mu.Lock()
	img, ok := m.images[path]
	m.mu.Unlock()
	if ok {
		return img, nil
	}

	img, err := gg.LoadImage(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.images[path] = img
	m.mu.Unlock()
	return img, nil
}

// ForgetImages drops cached images so edited files are reloaded.
func (m *Manager) ForgetImages() {
	m.mu.Lock()
	m.images = make(map[string]image.Image)
	m.mu.Unlock()
}

// FillBackground fills the screen with a solid color.
func (m *Manager) FillBackground(r, g, b float64) {
	m.dc.SetRGB(r, g, b)
	m.dc.DrawRectangle(0, 0, float64(m.width), float64(m.height))
	m.dc.Fill()
}

// SetMQTTConnected updates the MQTT connection state.
// This is called by the app framework and persists across screen switches.
// If the current screen is showing, it also sends an event to update the display.
func (m *Manager) SetMQTTConnected(connected bool) {
	m.mu.Lock()
	m.mqttConnected = connected
	current := m.current
	m.mu.Unlock()

	// Send event to current screen so it can react in real-time
	if current != nil {
		var eventType EventType
		if connected {
			eventType = EventMQTTConnected
		} else {
			eventType = EventMQTTDisconnected
		}
		current.HandleEvent(Event{Type: eventType})
	}
}

// SetTimeout sets a one-shot timer that calls the callback after the duration.
// The callback receives the screen that was current when the timer was set.
// Returns a TimerID that can be used to cancel the timer.
func (m *Manager) SetTimeout(d time.Duration, callback TimerCallback) TimerID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTimerID++
	id := m.nextTimerID
	screen := m.current

	st := &screenTimer{
		id:       id,
		screen:   screen,
		callback: callback,
	}

	st.timer = time.AfterFunc(d, func() {
		m.mu.Lock()
		// Check if timer still exists (wasn't cleared)
		if _, exists := m.timers[id]; !exists {
			m.mu.Unlock()
			return
		}
		delete(m.timers, id)
		m.mu.Unlock()

		// Call callback outside of lock
		if callback == nil {
			return
		}
		if m.dispatch != nil {
			m.dispatch(func() { callback(screen) })
		} else {
			callback(screen)
		}
	})

	m.timers[id] = st
	return id
}

// ClearTimeout cancels a specific timer by ID.
// Returns true if the timer was found and cancelled.
func (m *Manager) ClearTimeout(id TimerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, exists := m.timers[id]
	if !exists {
		return false
	}

	st.timer.Stop()
	delete(m.timers, id)
	return true
}

// clearTimersForScreenLocked clears all timers associated with a screen.
// Must be called with m.mu held.
func (m *Manager) clearTimersForScreenLocked(screen Screen) {
	for id, st := range m.timers {
		if st.screen == screen {
			st.timer.Stop()
			delete(m.timers, id)
		}
	}
}
