package donation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"givekiosk/payment"
	"givekiosk/receipt"
	"givekiosk/settings"
)

const (
	// ThankYouDelay is how long the thank-you screen stays up without Done.
	ThankYouDelay = 3 * time.Second

	// BannerDuration is how long an amount error banner is shown.
	BannerDuration = 3 * time.Second
)

// Donation is a completed payment.
type Donation struct {
	ID             string
	Amount         decimal.Decimal
	IsCustomAmount bool
	CatalogItemID  string
	TransactionID  string
	OrderID        string
	CreatedAt      time.Time
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules the session's timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Settings is the configuration the session reads on every decision, so
// operator edits apply to the next donor without a restart.
type Settings interface {
	Kiosk() settings.Kiosk
	Organization() settings.Organization
}

// Authenticator reports whether the payment provider is signed in.
type Authenticator interface {
	IsAuthenticated() bool
}

// Recorder keeps completed donations.
type Recorder interface {
	Record(ctx context.Context, d Donation) error
	MarkReceiptSent(ctx context.Context, id string) error
}

// Printer prints a paper receipt.
type Printer interface {
	PrintReceipt(ctx context.Context, r receipt.Request) error
}

// Options are the collaborators of a Session. Auth, Recorder, Printer and
// Clock are optional.
type Options struct {
	Settings  Settings
	Processor payment.Processor
	Auth      Authenticator
	Receipts  receipt.Sender
	Recorder  Recorder
	Printer   Printer
	Clock     Clock
}

// Handlers are called outside the session lock, from whichever goroutine
// caused the change.
type Handlers struct {
	OnChange       func(Snapshot)
	OnHome         func()
	OnAuthRequired func()
	OnShake        func()
	OnDonation     func(Donation)
}

// Snapshot is a copy of the session state for rendering. Seq increases
// with every change so late deliveries can be dropped.
type Snapshot struct {
	Seq          uint64
	State        State
	Amount       string
	Banner       string
	Donation     *Donation
	OrderID      string
	PaymentID    string
	Email        string
	EmailValid   bool
	Sending      bool
	Printing     bool
	ReceiptError string
	CanPrint     bool
}

// Session runs the donation flow for one kiosk.
//
// All state is guarded by mu. Payment, receipt and print calls run on their
// own goroutines and carry the epoch they started in; results from an older
// epoch are discarded. Every transition bumps the epoch.
type Session struct {
	opts  Options
	h     Handlers
	clock Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	state       State
	epoch       uint64
	seq         uint64
	entry       AmountEntry
	banner      string
	bannerGen   uint64
	bannerTimer Timer
	idleGen     uint64
	idleTimer   Timer
	stateTimer  Timer
	payCancel   context.CancelFunc
	donation    *Donation
	orderID     string
	paymentID   string
	email       string
	sending     bool
	printing    bool
	receiptErr  string
}

// NewSession creates a session in the idle state.
func NewSession(opts Options, h Handlers) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		opts:   opts,
		h:      h,
		clock:  clock,
		ctx:    ctx,
		cancel: cancel,
	}
}

type notice struct {
	snap     *Snapshot
	home     bool
	auth     bool
	shake    bool
	donation *Donation
}

func (s *Session) fire(n notice) {
	if n.shake && s.h.OnShake != nil {
		s.h.OnShake()
	}
	if n.snap != nil && s.h.OnChange != nil {
		s.h.OnChange(*n.snap)
	}
	if n.home && s.h.OnHome != nil {
		s.h.OnHome()
	}
	if n.auth && s.h.OnAuthRequired != nil {
		s.h.OnAuthRequired()
	}
	if n.donation != nil && s.h.OnDonation != nil {
		s.h.OnDonation(*n.donation)
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current flow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Seq:          s.seq,
		State:        s.state,
		Amount:       s.entry.String(),
		Banner:       s.banner,
		OrderID:      s.orderID,
		PaymentID:    s.paymentID,
		Email:        s.email,
		EmailValid:   receipt.ValidEmail(s.email),
		Sending:      s.sending,
		Printing:     s.printing,
		ReceiptError: s.receiptErr,
		CanPrint:     s.opts.Printer != nil,
	}
	if s.donation != nil {
		d := *s.donation
		snap.Donation = &d
	}
	return snap
}

func (s *Session) changedLocked() *Snapshot {
	s.seq++
	snap := s.snapshotLocked()
	return &snap
}

// transitionLocked applies a and clears the timers owned by the old state.
func (s *Session) transitionLocked(a Action) error {
	to, err := Next(s.state, a)
	if err != nil {
		return err
	}
	from := s.state
	s.epoch++
	s.state = to
	s.stopIdleLocked()
	s.stopStateTimerLocked()
	if to == StateIdle {
		s.clearLocked()
	}
	log.Printf("Donation: %s -> %s (%s)", from, to, a)
	return nil
}

func (s *Session) clearLocked() {
	s.clearBannerLocked()
	if s.payCancel != nil {
		s.payCancel()
		s.payCancel = nil
	}
	s.entry.Clear()
	s.donation = nil
	s.orderID = ""
	s.paymentID = ""
	s.email = ""
	s.sending = false
	s.printing = false
	s.receiptErr = ""
}

// homeLocked reports the return to idle, navigating home when enabled.
func (s *Session) homeLocked() notice {
	return notice{
		snap: s.changedLocked(),
		home: s.opts.Settings.Kiosk().HomePageEnabled,
	}
}

// Begin is called when the donor leaves the home screen.
func (s *Session) Begin() {
	s.mu.Lock()
	if s.closed || s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.entry.Clear()
	s.clearBannerLocked()
	s.armIdleLocked()
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

// Touch records a donor interaction that changes nothing else.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.touchLocked()
	}
}

func (s *Session) touchLocked() {
	switch s.state {
	case StateIdle, StateReceiptPrompt:
		s.armIdleLocked()
	case StateEmailEntry:
		if !s.sending {
			s.armIdleLocked()
		}
	}
}

func (s *Session) armIdleLocked() {
	s.stopIdleLocked()
	gen := s.idleGen
	d := s.opts.Settings.Kiosk().IdleTimeout()
	s.idleTimer = s.clock.AfterFunc(d, func() { s.idleExpired(gen) })
}

func (s *Session) stopIdleLocked() {
	s.idleGen++
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

func (s *Session) idleExpired(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.idleGen {
		s.mu.Unlock()
		return
	}
	s.idleTimer = nil
	log.Printf("Donation: idle timeout in %s", s.state)
	s.transitionLocked(ActionReset)
	n := s.homeLocked()
	s.mu.Unlock()
	s.fire(n)
}

func (s *Session) stopStateTimerLocked() {
	if s.stateTimer != nil {
		s.stateTimer.Stop()
		s.stateTimer = nil
	}
}

func (s *Session) showBannerLocked(msg string) {
	s.clearBannerLocked()
	s.banner = msg
	gen := s.bannerGen
	s.bannerTimer = s.clock.AfterFunc(BannerDuration, func() {
		s.mu.Lock()
		if s.closed || gen != s.bannerGen {
			s.mu.Unlock()
			return
		}
		s.banner = ""
		s.bannerTimer = nil
		n := notice{snap: s.changedLocked()}
		s.mu.Unlock()
		s.fire(n)
	})
}

func (s *Session) clearBannerLocked() {
	s.bannerGen++
	s.banner = ""
	if s.bannerTimer != nil {
		s.bannerTimer.Stop()
		s.bannerTimer = nil
	}
}

func maxBanner(max decimal.Decimal) string {
	return "Maximum donation is $" + max.StringFixed(2)
}

// PressDigit adds a keypad digit to the custom amount.
func (s *Session) PressDigit(d rune) {
	s.mu.Lock()
	if s.closed || s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.touchLocked()
	_, max := s.opts.Settings.Kiosk().Limits()
	switch s.entry.Press(d, max) {
	case KeyIgnored:
		s.mu.Unlock()
		return
	case KeyOverMax:
		s.showBannerLocked(maxBanner(max))
	}
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

// DeleteDigit removes the last custom amount digit.
func (s *Session) DeleteDigit() {
	s.mu.Lock()
	if s.closed || s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.touchLocked()
	s.entry.Delete()
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

// ClearAmount empties the custom amount.
func (s *Session) ClearAmount() {
	s.mu.Lock()
	if s.closed || s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.touchLocked()
	s.entry.Clear()
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

// SubmitCustom charges the custom amount if it is within limits. Empty,
// zero and below-minimum amounts shake the keypad; amounts above the
// maximum show the banner.
func (s *Session) SubmitCustom() Verdict {
	s.mu.Lock()
	if s.closed || s.state != StateIdle {
		s.mu.Unlock()
		return VerdictShake
	}
	k := s.opts.Settings.Kiosk()
	min, max := k.Limits()
	amount := s.entry.Value()

	var n notice
	v := Check(amount, min, max)
	switch v {
	case VerdictShake:
		s.touchLocked()
		n.shake = true
	case VerdictOverMax:
		s.touchLocked()
		s.showBannerLocked(maxBanner(max))
		n.snap = s.changedLocked()
	case VerdictAccept:
		n = s.payLocked(amount, true, "", k.AllowOffline)
	}
	s.mu.Unlock()
	s.fire(n)
	return v
}

// SelectPreset charges preset i.
func (s *Session) SelectPreset(i int) {
	s.mu.Lock()
	if s.closed || s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	k := s.opts.Settings.Kiosk()
	if i < 0 || i >= len(k.Presets) {
		s.mu.Unlock()
		log.Printf("Donation: no preset %d", i)
		return
	}
	amount, err := k.Presets[i].Value()
	if err != nil || !amount.IsPositive() {
		s.mu.Unlock()
		log.Printf("Donation: bad preset %d: %v", i, err)
		return
	}
	n := s.payLocked(amount, false, k.Presets[i].CatalogItemID, k.AllowOffline)
	s.mu.Unlock()
	s.fire(n)
}

func (s *Session) payLocked(amount decimal.Decimal, custom bool, catalogItemID string, allowOffline bool) notice {
	if s.opts.Auth != nil && !s.opts.Auth.IsAuthenticated() {
		log.Printf("Donation: payment provider not signed in")
		s.touchLocked()
		return notice{auth: true}
	}
	if err := s.transitionLocked(ActionPay); err != nil {
		log.Printf("Donation: %v", err)
		return notice{}
	}
	s.clearBannerLocked()

	ctx, cancel := context.WithCancel(s.ctx)
	s.payCancel = cancel
	req := payment.Request{
		Amount:         amount,
		IsCustomAmount: custom,
		CatalogItemID:  catalogItemID,
		AllowOffline:   allowOffline,
	}
	s.wg.Add(1)
	go s.runPayment(ctx, cancel, s.epoch, req)
	return notice{snap: s.changedLocked()}
}

func (s *Session) runPayment(ctx context.Context, cancel context.CancelFunc, epoch uint64, req payment.Request) {
	defer s.wg.Done()
	defer cancel()

	proc := s.opts.Processor
	if !proc.ReaderConnected(ctx) {
		log.Printf("Donation: card reader not connected, reconnecting")
		if err := proc.ConnectReader(ctx); err != nil {
			log.Printf("Donation: connect reader: %v, trying anyway", err)
		}
	}
	res, err := proc.ProcessPayment(ctx, req)
	orderID := proc.CurrentOrderID()

	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		log.Printf("Donation: dropping payment result for order %s (err=%v)", orderID, err)
		return
	}
	s.payCancel = nil

	if err != nil {
		// Failures and cancellations go home without telling the donor.
		log.Printf("Donation: payment failed for order %s: %v", orderID, err)
		s.transitionLocked(ActionPaymentFailed)
		n := s.homeLocked()
		n.auth = errors.Is(err, payment.ErrNotAuthenticated)
		s.mu.Unlock()
		s.fire(n)
		return
	}

	d := Donation{
		ID:             uuid.NewString(),
		Amount:         req.Amount,
		IsCustomAmount: req.IsCustomAmount,
		CatalogItemID:  req.CatalogItemID,
		TransactionID:  res.TransactionID,
		OrderID:        orderID,
		CreatedAt:      s.clock.Now(),
	}
	s.transitionLocked(ActionPaymentSucceeded)
	s.donation = &d
	s.orderID = orderID
	s.paymentID = res.TransactionID
	s.armIdleLocked()
	n := notice{snap: s.changedLocked(), donation: &d}
	s.mu.Unlock()

	log.Printf("Donation: %s received, order %s transaction %s", d.Amount.StringFixed(2), orderID, d.TransactionID)
	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.Record(s.ctx, d); err != nil {
			log.Printf("Donation: record %s: %v", d.ID, err)
		}
	}
	s.fire(n)
}

// ChooseEmailReceipt moves from the receipt prompt to email entry.
func (s *Session) ChooseEmailReceipt() {
	s.mu.Lock()
	if s.closed || s.printing || s.transitionLocked(ActionEmailReceipt) != nil {
		s.mu.Unlock()
		return
	}
	s.email = ""
	s.receiptErr = ""
	s.armIdleLocked()
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

// DeclineReceipt skips the receipt and thanks the donor.
func (s *Session) DeclineReceipt() {
	s.mu.Lock()
	if s.closed || s.printing || s.transitionLocked(ActionNoReceipt) != nil {
		s.mu.Unlock()
		return
	}
	s.armThankYouLocked()
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

// PrintReceipt prints a paper receipt when a printer is configured.
func (s *Session) PrintReceipt() {
	s.mu.Lock()
	if s.closed || s.opts.Printer == nil || s.state != StateReceiptPrompt || s.printing {
		s.mu.Unlock()
		return
	}
	req := s.receiptRequestLocked("")
	s.printing = true
	s.receiptErr = ""
	s.stopIdleLocked()
	epoch := s.epoch
	s.wg.Add(1)
	go s.runPrint(epoch, req)
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

func (s *Session) runPrint(epoch uint64, req receipt.Request) {
	defer s.wg.Done()
	err := s.opts.Printer.PrintReceipt(s.ctx, req)

	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.printing = false
	if err != nil {
		log.Printf("Donation: print receipt: %v", err)
		s.receiptErr = "Could not print a receipt. Please try email instead."
		s.armIdleLocked()
	} else {
		s.transitionLocked(ActionReceiptPrinted)
		s.armThankYouLocked()
	}
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

// Back returns from email entry to the receipt prompt.
func (s *Session) Back() {
	s.mu.Lock()
	if s.closed || s.sending || s.transitionLocked(ActionBack) != nil {
		s.mu.Unlock()
		return
	}
	s.email = ""
	s.receiptErr = ""
	s.armIdleLocked()
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

// SetEmail replaces the email draft.
func (s *Session) SetEmail(addr string) {
	s.editEmail(func(string) string { return addr })
}

// TypeEmail appends text to the email draft.
func (s *Session) TypeEmail(text string) {
	s.editEmail(func(cur string) string { return cur + text })
}

// EraseEmail removes the last character of the email draft.
func (s *Session) EraseEmail() {
	s.editEmail(func(cur string) string {
		if cur == "" {
			return cur
		}
		_, size := utf8.DecodeLastRuneInString(cur)
		return cur[:len(cur)-size]
	})
}

func (s *Session) editEmail(fn func(string) string) {
	s.mu.Lock()
	if s.closed || s.state != StateEmailEntry || s.sending {
		s.mu.Unlock()
		return
	}
	s.email = fn(s.email)
	s.receiptErr = ""
	s.armIdleLocked()
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

// SendReceipt emails the receipt. An invalid address returns
// receipt.ErrInvalidEmail without contacting the backend. The outcome
// arrives through OnChange.
func (s *Session) SendReceipt() error {
	s.mu.Lock()
	if s.closed || s.state != StateEmailEntry || s.sending {
		s.mu.Unlock()
		return nil
	}
	if !receipt.ValidEmail(s.email) {
		s.mu.Unlock()
		return receipt.ErrInvalidEmail
	}
	req := s.receiptRequestLocked(s.email)
	id := s.donation.ID
	s.sending = true
	s.receiptErr = ""
	s.stopIdleLocked()
	epoch := s.epoch
	s.wg.Add(1)
	go s.runReceipt(epoch, id, req)
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
	return nil
}

func (s *Session) runReceipt(epoch uint64, donationID string, req receipt.Request) {
	defer s.wg.Done()
	err := s.opts.Receipts.Send(s.ctx, req)

	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		log.Printf("Donation: dropping receipt result for order %s (err=%v)", req.OrderID, err)
		return
	}
	s.sending = false
	if err != nil {
		log.Printf("Donation: send receipt: %v", err)
		s.receiptErr = receipt.MessageFor(err)
		s.armIdleLocked()
		n := notice{snap: s.changedLocked()}
		s.mu.Unlock()
		s.fire(n)
		return
	}
	s.transitionLocked(ActionReceiptSent)
	s.armThankYouLocked()
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()

	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.MarkReceiptSent(s.ctx, donationID); err != nil {
			log.Printf("Donation: mark receipt sent %s: %v", donationID, err)
		}
	}
	s.fire(n)
}

func (s *Session) receiptRequestLocked(email string) receipt.Request {
	org := s.opts.Settings.Organization()
	return receipt.Request{
		OrganizationID:             org.ID,
		DonorEmail:                 email,
		Amount:                     s.donation.Amount,
		TransactionID:              s.paymentID,
		OrderID:                    s.orderID,
		PaymentDate:                receipt.FormatDate(s.donation.CreatedAt),
		OrganizationName:           org.Name,
		OrganizationTaxID:          org.TaxID,
		OrganizationReceiptMessage: org.ReceiptMessage,
	}
}

func (s *Session) armThankYouLocked() {
	epoch := s.epoch
	s.stateTimer = s.clock.AfterFunc(ThankYouDelay, func() {
		s.mu.Lock()
		if s.closed || epoch != s.epoch || s.state != StateThankYou {
			s.mu.Unlock()
			return
		}
		s.stateTimer = nil
		s.transitionLocked(ActionDone)
		n := s.homeLocked()
		s.mu.Unlock()
		s.fire(n)
	})
}

// Done dismisses the thank-you screen.
func (s *Session) Done() {
	s.mu.Lock()
	if s.closed || s.transitionLocked(ActionDone) != nil {
		s.mu.Unlock()
		return
	}
	n := s.homeLocked()
	s.mu.Unlock()
	s.fire(n)
}

// Reset returns to idle from any state, abandoning a payment in flight.
// It does not navigate home. Calling it repeatedly is harmless.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.transitionLocked(ActionReset)
	n := notice{snap: s.changedLocked()}
	s.mu.Unlock()
	s.fire(n)
}

// Close cancels every timer and call in flight. Results that arrive later
// are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopIdleLocked()
	s.stopStateTimerLocked()
	s.clearBannerLocked()
	if s.payCancel != nil {
		s.payCancel()
		s.payCancel = nil
	}
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until payment, receipt and print calls have returned.
func (s *Session) Wait() {
	s.wg.Wait()
}
