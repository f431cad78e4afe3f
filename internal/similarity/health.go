/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package similarity

import (
	"sync/atomic"
	"time"
)

// Mode is the scoring path currently in use.
type Mode int32

const (
	ModePrimary Mode = iota
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModePrimary:
		return "primary"
	case ModeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Health is the process-wide provider state. It is shared by reference
// and only needs eventual consistency: a stale read costs at most one extra
// remote attempt or one extra fallback score.
type Health struct {
	mode        atomic.Int32
	lastChecked atomic.Int64
}

// NewHealth returns health state starting in mode.
func NewHealth(mode Mode) *Health {
	h := &Health{}
	h.mode.Store(int32(mode))
	return h
}

// Mode returns the recorded mode.
func (h *Health) Mode() Mode {
	return Mode(h.mode.Load())
}

// LastChecked returns when a probe last completed, or the zero time.
func (h *Health) LastChecked() time.Time {
	ns := h.lastChecked.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Set records mode as observed at t and returns the previous mode.
func (h *Health) Set(mode Mode, t time.Time) Mode {
	h.lastChecked.Store(t.UnixNano())
	return Mode(h.mode.Swap(int32(mode)))
}
