package detect

import "sync/atomic"

// Gate admits at most one detection pass of a kind at a time. A pass that
// acquires the gate must release it when its work is done.
type Gate struct {
	inFlight atomic.Bool
}

// TryAcquire sets the gate and reports whether it was free.
func (g *Gate) TryAcquire() bool {
	return g.inFlight.CompareAndSwap(false, true)
}

// Release clears the gate.
func (g *Gate) Release() {
	g.inFlight.Store(false)
}

// InFlight reports whether a pass holds the gate.
func (g *Gate) InFlight() bool {
	return g.inFlight.Load()
}
