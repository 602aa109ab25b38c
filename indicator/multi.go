package indicator

// Multi combines multiple Indicator implementations.
type Multi struct {
	indicators []Indicator
}

// NewMulti combines the given indicators.
func NewMulti(indicators ...Indicator) *Multi {
	return &Multi{indicators: indicators}
}

func (m *Multi) each(fn func(Indicator)) {
	for _, ind := range m.indicators {
		fn(ind)
	}
}

// Idle implements Indicator.Idle.
func (m *Multi) Idle() { m.each(Indicator.Idle) }

// Processing implements Indicator.Processing.
func (m *Multi) Processing() { m.each(Indicator.Processing) }

// Success implements Indicator.Success.
func (m *Multi) Success() { m.each(Indicator.Success) }

// Failure implements Indicator.Failure.
func (m *Multi) Failure() { m.each(Indicator.Failure) }

// ConnectionLost implements Indicator.ConnectionLost.
func (m *Multi) ConnectionLost() { m.each(Indicator.ConnectionLost) }

// Connected implements Indicator.Connected.
func (m *Multi) Connected() { m.each(Indicator.Connected) }

// Shutdown implements Indicator.Shutdown.
func (m *Multi) Shutdown() { m.each(Indicator.Shutdown) }

// Release implements Indicator.Release.
func (m *Multi) Release() error {
	var lastErr error
	for _, ind := range m.indicators {
		if err := ind.Release(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
