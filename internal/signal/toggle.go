package signal

import "sync/atomic"

// Toggle is the process-wide auto-trading switch. It is owned by the boundary
// layer and read by the signal cycle at evaluation time.
type Toggle struct {
	enabled atomic.Bool
}

// NewToggle creates a toggle with the given initial state.
func NewToggle(enabled bool) *Toggle {
	t := &Toggle{}
	t.enabled.Store(enabled)
	return t
}

// Enabled reports the current state.
func (t *Toggle) Enabled() bool {
	return t.enabled.Load()
}

// Set updates the state and returns the new value.
func (t *Toggle) Set(enabled bool) bool {
	t.enabled.Store(enabled)
	return enabled
}
