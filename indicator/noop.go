package indicator

// Noop implements Indicator but does nothing.
// Used when no indicators are configured.
type Noop struct{}

func (n *Noop) Idle()           {}
func (n *Noop) Processing()     {}
func (n *Noop) Success()        {}
func (n *Noop) Failure()        {}
func (n *Noop) ConnectionLost() {}
func (n *Noop) Connected()      {}
func (n *Noop) Shutdown()       {}
func (n *Noop) Release() error  { return nil }
