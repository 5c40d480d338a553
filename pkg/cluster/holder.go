package cluster

import (
	"log/slog"
	"sync/atomic"
)

// Holder publishes the current Router. A topology change builds a new
// Router and swaps it in; readers never see a partially built one.
type Holder struct {
	current atomic.Pointer[Router]
}

func NewHolder(r *Router) *Holder {
	h := &Holder{}
	h.current.Store(r)
	return h
}

// Load returns the current router; nil until the first Swap when the holder
// was created empty.
func (h *Holder) Load() *Router {
	return h.current.Load()
}

// Swap installs r and closes the router it replaces.
func (h *Holder) Swap(r *Router) {
	old := h.current.Swap(r)
	if r != nil {
		slog.Info("router updated", "routable", r.Len(), "ring_points", r.RingSize())
	}
	if old == nil || old == r {
		return
	}
	if err := old.Close(); err != nil {
		slog.Warn("close replaced router", "error", err)
	}
}
