package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"givekiosk/admin"
	"givekiosk/billing"
	"givekiosk/buttons"
	"givekiosk/catalog"
	"givekiosk/chime"
	"givekiosk/donation"
	"givekiosk/eventpipe"
	"givekiosk/indicator"
	"givekiosk/keypad"
	"givekiosk/ledger"
	"givekiosk/mqtt"
	"givekiosk/payment"
	"givekiosk/printer"
	"givekiosk/receipt"
	"givekiosk/rotary"
	"givekiosk/settings"
	"givekiosk/video"
	"givekiosk/video/screen"
	"givekiosk/video/screen/screens"
)

// failureHold is how long the indicator shows a failed payment.
const failureHold = 3 * time.Second

// App holds the application state and dependencies.
type App struct {
	cfg       *Config
	settings  *settings.Store
	ledger    *ledger.Ledger
	catalog   *catalog.Manager
	billing   *billing.Store
	checkout  *billing.Client
	receipts  *receipt.Client
	provider  *payment.Provider
	session   *donation.Session
	mqtt      *mqtt.Client
	keypad    keypad.Keypad
	rotary    *rotary.Rotary
	buttons   *buttons.Buttons
	indicator indicator.Indicator
	chime     chime.Chime
	printer   *printer.Dymo
	display   *video.Display
	mgr       *screen.Manager
	screens   *screens.Set
	pipe      *eventpipe.EventPipe
	admin     *admin.Server
	ui        *dispatcher
	started   time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	// Only touched on the ui goroutine.
	lastSeq   uint64
	lastState donation.State
	blocked   bool
}

// newApp opens every configured device and service. Start-up errors are
// returned; nothing after start-up is fatal.
func newApp(cfg *Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		cfg:     cfg,
		ui:      newDispatcher(),
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	if err := app.init(); err != nil {
		cancel()
		return nil, err
	}
	return app, nil
}

func (app *App) init() error {
	cfg := app.cfg
	var err error

	// Initialize indicator (LEDs, neopixels)
	app.indicator, err = indicator.New(cfg.Indicator)
	if err != nil {
		return fmt.Errorf("init indicator: %w", err)
	}
	app.indicator.ConnectionLost() // Start with connection lost state

	app.chime, err = chime.New(cfg.Chime)
	if err != nil {
		return fmt.Errorf("init chime: %w", err)
	}

	// Operator settings
	app.settings, err = settings.Open(cfg.SettingsFile)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}

	if cfg.Ledger.Path != "" {
		app.ledger, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
	}

	// Backend clients
	rt, err := backendTransport(cfg.API)
	if err != nil {
		return fmt.Errorf("init backend transport: %w", err)
	}
	app.receipts = receipt.NewClient(cfg.API.URL, cfg.API.timeout())
	app.receipts.SetTransport(rt)
	app.checkout = billing.NewClient(cfg.API.URL, cfg.API.timeout())
	app.checkout.SetTransport(rt)
	app.billing = billing.NewStore(app.checkout, func() string { return app.settings.Organization().ID })
	app.catalog = catalog.New(cfg.API.URL, cfg.CatalogFile, &http.Client{Transport: rt, Timeout: cfg.API.timeout()})

	app.provider, err = payment.New(cfg.Payment)
	if err != nil {
		return fmt.Errorf("init payment: %w", err)
	}

	app.printer, err = printer.New(cfg.Printer)
	if err != nil {
		return fmt.Errorf("init printer: %w", err)
	}

	app.session = donation.NewSession(app.sessionOptions(), donation.Handlers{
		OnChange:       func(s donation.Snapshot) { app.ui.Do(func() { app.onSession(s) }) },
		OnHome:         func() { app.ui.Do(app.goHome) },
		OnAuthRequired: func() { app.ui.Do(func() { app.mgr.SwitchTo(screen.ScreenAuthRequired) }) },
		OnShake:        func() { app.ui.Do(func() { app.mgr.SendEvent(screen.Event{Type: screen.EventShake}) }) },
		OnDonation:     app.onDonation,
	})

	// Initialize display, or draw into memory without one
	if cfg.Video.Enabled {
		if !video.ScreenSupported() {
			return errors.New("video enabled but screen support not compiled in")
		}
		app.display, err = video.New(cfg.Video)
		if err != nil {
			return fmt.Errorf("init display: %w", err)
		}
		app.mgr = app.display.Manager()
	} else {
		app.mgr = screen.NewHeadless(cfg.Video.HeadlessSize())
		app.mgr.SetFontPath(cfg.Video.Font)
	}
	app.mgr.SetDispatcher(app.ui.Do)
	app.screens = screens.Register(app.mgr, app.session, app.settings, cfg.AuthHint)

	// Donor input
	app.keypad, err = keypad.New(cfg.Keypad)
	if err != nil {
		return fmt.Errorf("init keypad: %w", err)
	}

	app.rotary, err = rotary.New(cfg.Rotary, rotary.Handlers{
		OnTurn:      app.SendRotaryEvent,
		OnPress:     func() { app.sendEvent(screen.Event{Type: screen.EventRotaryPress}) },
		OnLongPress: func() { app.sendEvent(screen.Event{Type: screen.EventRotaryLongPress}) },
	})
	if err != nil {
		return fmt.Errorf("init rotary: %w", err)
	}
	if app.rotary != nil {
		log.Printf("Rotary encoder initialized (CLK=%d, DT=%d, BTN=%d)",
			cfg.Rotary.CLKPin, cfg.Rotary.DTPin, cfg.Rotary.ButtonPin)
	}

	app.buttons, err = buttons.New(cfg.Buttons, buttons.Handlers{OnPress: app.SendButtonEvent})
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}

	app.pipe, err = eventpipe.New(cfg.EventPipe, eventpipe.Handlers{
		OnEvent:  app.sendEvent,
		OnAction: func(action, arg string) { app.ui.Do(func() { app.pipeAction(action, arg) }) },
	})
	if err != nil {
		return fmt.Errorf("init event pipe: %w", err)
	}

	// Initialize MQTT
	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect:    func() { app.ui.Do(func() { app.setConnected(true) }) },
		OnDisconnect: func() { app.ui.Do(func() { app.setConnected(false) }) },
		OnCommand:    app.onMQTTCommand,
	})
	if err != nil {
		return fmt.Errorf("init MQTT: %w", err)
	}

	if cfg.Admin.Listen != "" {
		deps := admin.Deps{
			Settings:     app.settings,
			Ledger:       app.ledger,
			Billing:      app.billing,
			Checkout:     app.checkout,
			Catalog:      app.catalog,
			Status:       app.status,
			OnAuthChange: func() { app.ui.Do(app.onAuthChange) },
		}
		if app.provider.Auth != nil {
			deps.Auth = app.provider.Auth
		}
		app.admin = admin.NewServer(cfg.Admin, deps)
	}

	app.settings.OnChange(func(settings.Settings) { app.ui.Do(app.onSettingsChange) })
	app.billing.OnChange(func(sub *billing.Subscription) { app.ui.Do(func() { app.onSubscription(sub) }) })
	app.catalog.SetUpdateCallback(func(items []catalog.Item) {
		topic := fmt.Sprintf("kiosk/status/%s/catalog/update", cfg.ClientID)
		app.mqtt.Publish(topic, fmt.Sprintf(`{"status":"downloaded","items":%d}`, len(items)))
	})
	return nil
}

// sessionOptions collects the session collaborators. Optional ones are
// left nil rather than holding a nil pointer.
func (app *App) sessionOptions() donation.Options {
	opts := donation.Options{
		Settings:  app.settings,
		Processor: app.provider.Processor,
		Auth:      app.provider,
		Receipts:  app.receipts,
	}
	if app.ledger != nil {
		opts.Recorder = app.ledger
	}
	if app.printer != nil {
		opts.Printer = app.printer
	}
	return opts
}

// Run starts the background goroutines and blocks until ctx is done.
func (app *App) Run(ctx context.Context) {
	// Load the cached catalog, then refresh it and the subscription
	if err := app.catalog.LoadFromFile(); err != nil {
		log.Printf("Warning: could not load catalog file: %v", err)
	}
	go app.refresh()

	app.ui.Do(func() { app.mgr.SwitchTo(app.homeScreen()) })

	go func() {
		if err := app.mqtt.Connect(); err != nil {
			log.Printf("MQTT connect: %v", err)
		}
	}()
	go app.keyListener()
	go app.pingSender()
	go app.refresher()
	if app.pipe != nil {
		go app.pipe.Start()
	}
	if app.admin != nil {
		go func() {
			if err := app.admin.Start(app.cfg.Admin.Listen); err != nil {
				log.Printf("Admin API: %v", err)
			}
		}()
	}

	go app.ui.Run(app.ctx)

	<-ctx.Done()
}

// Close stops everything and releases the hardware.
func (app *App) Close() {
	app.cancel()

	app.session.Close()
	app.session.Wait()

	if app.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := app.admin.Shutdown(ctx); err != nil {
			log.Printf("Admin API shutdown: %v", err)
		}
		cancel()
	}
	if app.pipe != nil {
		app.pipe.Close()
	}
	app.mqtt.Disconnect()
	app.keypad.Close()
	app.chime.Release()
	app.indicator.Shutdown()
	app.indicator.Release()
	app.buttons.Release()
	if app.rotary != nil {
		app.rotary.Release()
	}
	app.mgr.SwitchTo(screen.ScreenShutdown)
	if app.display != nil {
		app.display.Shutdown()
		app.display.Release()
	}
	if err := app.settings.Close(); err != nil {
		log.Printf("Settings: %v", err)
	}
	if app.ledger != nil {
		app.ledger.Close()
	}
}

// homeScreen is where the kiosk rests between donors.
func (app *App) homeScreen() screen.ScreenID {
	if app.blocked {
		return screen.ScreenUnavailable
	}
	if app.settings.Kiosk().HomePageEnabled {
		return screen.ScreenHome
	}
	return screen.ScreenSelectAmount
}

func (app *App) goHome() {
	app.mgr.SwitchTo(app.homeScreen())
}

// screenFor picks the screen for a session state. An idle session keeps
// the home or sign-in screen if one is showing.
func screenFor(state donation.State, current screen.ScreenID, blocked bool) screen.ScreenID {
	switch state {
	case donation.StateProcessing:
		return screen.ScreenProcessing
	case donation.StateReceiptPrompt:
		return screen.ScreenReceiptPrompt
	case donation.StateEmailEntry:
		return screen.ScreenEmailEntry
	case donation.StateThankYou:
		return screen.ScreenThankYou
	}
	if blocked {
		return screen.ScreenUnavailable
	}
	switch current {
	case screen.ScreenHome, screen.ScreenAuthRequired:
		return current
	}
	return screen.ScreenSelectAmount
}

// buttonLights returns which push buttons do something in state.
func buttonLights(state donation.State) (confirm, cancel bool) {
	switch state {
	case donation.StateProcessing:
		return false, true
	case donation.StateThankYou:
		return true, false
	default:
		return true, true
	}
}

func (app *App) onSession(snap donation.Snapshot) {
	if snap.Seq <= app.lastSeq {
		return
	}
	prev := app.lastState
	app.lastSeq = snap.Seq
	app.lastState = snap.State

	if prev != snap.State {
		app.signal(prev, snap.State)
		app.mqtt.PublishJSON(mqtt.StateTopic(app.cfg.ClientID), map[string]string{
			"state": snap.State.String(),
		})
	}

	if want := screenFor(snap.State, app.mgr.CurrentID(), app.blocked); want != app.mgr.CurrentID() {
		app.mgr.SwitchTo(want)
	}
	app.mgr.SendEvent(screen.Event{Type: screen.EventSession, Data: snap})
}

// signal drives the indicator and button LEDs for a state change.
func (app *App) signal(prev, next donation.State) {
	switch {
	case next == donation.StateProcessing:
		app.indicator.Processing()
	case prev == donation.StateProcessing && next == donation.StateReceiptPrompt:
		app.indicator.Success()
	case prev == donation.StateProcessing && next == donation.StateIdle:
		app.indicator.Failure()
		time.AfterFunc(failureHold, func() {
			app.ui.Do(func() {
				if app.lastState == donation.StateIdle {
					app.indicator.Idle()
				}
			})
		})
	case next == donation.StateIdle:
		app.indicator.Idle()
	}
	app.buttons.Light(buttonLights(next))
}

func (app *App) onDonation(d donation.Donation) {
	log.Printf("Donation %s: %s (order %s)", d.ID, d.Amount.StringFixed(2), d.OrderID)
	go func() {
		if err := app.chime.Ring(); err != nil {
			log.Printf("Chime: %v", err)
		}
	}()
	err := app.mqtt.PublishJSON(mqtt.DonationTopic(app.cfg.ClientID), mqtt.DonationMessage{
		ID:             d.ID,
		OrderID:        d.OrderID,
		TransactionID:  d.TransactionID,
		Amount:         d.Amount.StringFixed(2),
		IsCustomAmount: d.IsCustomAmount,
		CatalogItemID:  d.CatalogItemID,
		CreatedAt:      d.CreatedAt,
	})
	if err != nil {
		log.Printf("Publish donation: %v", err)
	}
}

func (app *App) setConnected(connected bool) {
	if connected {
		app.indicator.Connected()
	} else {
		app.indicator.ConnectionLost()
	}
	app.mgr.SetMQTTConnected(connected)
}

// onSubscription blocks donations while the subscription is known to be
// unusable. An unknown subscription does not block.
func (app *App) onSubscription(sub *billing.Subscription) {
	blocked := sub != nil && !sub.Usable()
	if blocked == app.blocked {
		return
	}
	app.blocked = blocked

	if blocked {
		log.Printf("Subscription %s, taking kiosk out of service", sub.Status)
		app.screens.Unavailable.SetReason(fmt.Sprintf("Subscription %s", sub.Status))
	} else {
		log.Println("Subscription usable, kiosk back in service")
	}
	if app.session.State() != donation.StateIdle {
		return
	}
	app.goHome()
}

func (app *App) onSettingsChange() {
	app.mgr.ForgetImages()
	if app.session.State() == donation.StateIdle && app.mgr.CurrentID() == screen.ScreenHome &&
		!app.settings.Kiosk().HomePageEnabled {
		app.goHome()
		return
	}
	app.mgr.Update()
}

func (app *App) onAuthChange() {
	if app.provider.IsAuthenticated() && app.mgr.CurrentID() == screen.ScreenAuthRequired {
		app.goHome()
	}
}

func (app *App) onMQTTCommand(cmd mqtt.Command) {
	switch cmd.Kind {
	case mqtt.CommandReloadSettings:
		if err := app.settings.Load(); err != nil {
			log.Printf("Reload settings: %v", err)
		}
	case mqtt.CommandRefreshCatalog:
		go app.refreshCatalog(true)
	case mqtt.CommandRefreshSubscription:
		go func() {
			if _, err := app.billing.Refresh(app.ctx); err != nil {
				log.Printf("Refresh subscription: %v", err)
			}
		}()
	case mqtt.CommandReset:
		req, err := verifyReset(app.cfg.ControlSecret, app.cfg.ClientID, cmd.Payload, time.Now())
		if err != nil {
			log.Printf("Remote reset refused: %v", err)
			return
		}
		log.Printf("Remote reset by %s", req.Operator)
		app.ui.Do(func() {
			app.session.Reset()
			app.goHome()
		})
	}
}

// pipeAction handles the non-input commands of the event pipe.
func (app *App) pipeAction(action, arg string) {
	sim, _ := app.provider.Processor.(*payment.Simulator)
	on := arg == "ok" || arg == "on" || arg == "1"

	switch action {
	case "pay":
		if sim == nil || !sim.Resolve(on) {
			log.Printf("Event pipe: no simulated payment waiting")
		}
	case "reader":
		if sim == nil {
			log.Printf("Event pipe: reader control needs the simulator")
			return
		}
		sim.SetReaderConnected(on)
	case "email":
		app.session.SetEmail(arg)
	case "reset":
		app.session.Reset()
		app.goHome()
	case "screen":
		id, ok := screenByName(arg)
		if !ok {
			log.Printf("Event pipe: unknown screen %q", arg)
			return
		}
		app.mgr.SwitchTo(id)
	}
}

// screenByName accepts the screen names used by the event pipe.
func screenByName(name string) (screen.ScreenID, bool) {
	switch strings.ToLower(name) {
	case "home", "idle":
		return screen.ScreenHome, true
	case "select", "amount":
		return screen.ScreenSelectAmount, true
	case "processing":
		return screen.ScreenProcessing, true
	case "receipt":
		return screen.ScreenReceiptPrompt, true
	case "email":
		return screen.ScreenEmailEntry, true
	case "thanks", "thankyou":
		return screen.ScreenThankYou, true
	case "auth":
		return screen.ScreenAuthRequired, true
	case "unavailable":
		return screen.ScreenUnavailable, true
	}
	return screen.ScreenNone, false
}

func (app *App) status(ctx context.Context) admin.Status {
	st := admin.Status{
		State:      app.session.State().String(),
		Screen:     app.mgr.CurrentID().String(),
		Authorized: app.provider.IsAuthenticated(),
		Reader:     app.provider.Processor.ReaderConnected(ctx),
	}
	if sub := app.billing.Current(); sub != nil {
		st.Subscription = string(sub.Status)
	}
	return st
}

func (app *App) keyListener() {
	for {
		select {
		case <-app.ctx.Done():
			return
		default:
		}

		k, err := app.keypad.Read(app.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("Read key: %v", err)
			time.Sleep(time.Second)
			continue
		}

		if k == keypad.KeyNone {
			continue
		}
		app.sendEvent(screen.Event{Type: screen.EventKey, Data: screen.KeyData{Key: k}})
	}
}

// refresh fetches the catalog and the subscription. Presets are left as
// the operator set them.
func (app *App) refresh() {
	app.refreshCatalog(false)
	if _, err := app.billing.Refresh(app.ctx); err != nil {
		log.Printf("Warning: could not fetch subscription: %v", err)
	}
}

// refreshCatalog fetches the catalog. With syncPresets the kiosk presets
// are replaced by the catalog items.
func (app *App) refreshCatalog(syncPresets bool) {
	if err := app.catalog.Fetch(app.ctx, app.settings.Organization().ID); err != nil {
		log.Printf("Warning: could not fetch catalog: %v", err)
		return
	}
	if !syncPresets {
		return
	}
	if err := app.catalog.SyncPresets(app.settings); err != nil {
		log.Printf("Catalog: %v", err)
	}
}

func (app *App) refresher() {
	if app.cfg.RefreshMins <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(app.cfg.RefreshMins) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.refresh()
		}
	}
}

func (app *App) pingSender() {
	if app.cfg.PingSecs <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(app.cfg.PingSecs) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			st := app.status(app.ctx)
			err := app.mqtt.PublishJSON(mqtt.PingTopic(app.cfg.ClientID), mqtt.Ping{
				State:        st.State,
				Screen:       st.Screen,
				Authorized:   st.Authorized,
				Subscription: st.Subscription,
				Uptime:       int64(time.Since(app.started).Seconds()),
				At:           time.Now().UTC(),
			})
			if err != nil {
				log.Printf("Ping: %v", err)
			}
		}
	}
}

func (app *App) sendEvent(event screen.Event) {
	app.ui.Do(func() { app.mgr.SendEvent(event) })
}

// SendRotaryEvent sends a rotary turn event to the current screen.
func (app *App) SendRotaryEvent(delta int) {
	app.sendEvent(screen.Event{
		Type: screen.EventRotaryTurn,
		Data: screen.RotaryData{Delta: delta},
	})
}

// SendButtonEvent sends a push button press to the current screen.
func (app *App) SendButtonEvent(b buttons.Button) {
	id := screen.ButtonConfirm
	if b == buttons.Cancel {
		id = screen.ButtonCancel
	}
	app.sendEvent(screen.Event{Type: screen.EventButton, Data: screen.ButtonData{ID: id}})
}
