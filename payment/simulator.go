package payment

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SimulatorConfig tunes the bench processor.
type SimulatorConfig struct {
	DelayMillis   int     `yaml:"delay_millis"`   // 0 waits for Resolve
	FailRate      float64 `yaml:"fail_rate"`      // 0..1, used with DelayMillis
	ReaderOffline bool    `yaml:"reader_offline"` // start with the reader disconnected
}

// Simulator is a Processor with no hardware behind it. Payments either
// settle after a fixed delay or wait for Resolve, which the event pipe
// uses to script outcomes.
type Simulator struct {
	cfg SimulatorConfig

	mu             sync.Mutex
	connected      bool
	currentOrderID string
	pending        chan bool
	rng            *rand.Rand
}

// NewSimulator creates a bench processor.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	return &Simulator{
		cfg:       cfg,
		connected: !cfg.ReaderOffline,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ReaderConnected implements Processor.ReaderConnected.
func (s *Simulator) ReaderConnected(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// ConnectReader implements Processor.ConnectReader.
func (s *Simulator) ConnectReader(ctx context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	log.Printf("Simulator: reader connected")
	return nil
}

// CurrentOrderID implements Processor.CurrentOrderID.
func (s *Simulator) CurrentOrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentOrderID
}

// ProcessPayment implements Processor.ProcessPayment.
func (s *Simulator) ProcessPayment(ctx context.Context, req Request) (Result, error) {
	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	ch := make(chan bool, 1)
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("simulator: payment already in flight")
	}
	s.currentOrderID = orderID
	s.pending = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
	}()

	log.Printf("Simulator: charging %s (order %s)", req.Amount.StringFixed(2), orderID)

	var timeout <-chan time.Time
	if s.cfg.DelayMillis > 0 {
		t := time.NewTimer(time.Duration(s.cfg.DelayMillis) * time.Millisecond)
		defer t.Stop()
		timeout = t.C
	}

	var ok bool
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case ok = <-ch:
	case <-timeout:
		s.mu.Lock()
		ok = s.rng.Float64() >= s.cfg.FailRate
		s.mu.Unlock()
	}

	if !ok {
		return Result{}, ErrDeclined
	}
	return Result{TransactionID: "SIM-" + uuid.NewString()[:8]}, nil
}

// Resolve settles the payment in flight. It reports false when nothing
// was waiting.
func (s *Simulator) Resolve(success bool) bool {
	s.mu.Lock()
	ch := s.pending
	s.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case ch <- success:
		return true
	default:
		return false
	}
}

// SetReaderConnected changes the simulated reader state.
func (s *Simulator) SetReaderConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}
