// Package nav is the routing boundary of the tab bar. Selecting a tab asks a
// Navigator to change location; the active tab is derived from Location.
package nav

import (
	"strings"
	"sync"
)

// Navigator exposes the current location and accepts navigation requests.
type Navigator interface {
	Location() string
	Navigate(url string)
}

// History is an in-memory Navigator with back/forward stacks.
type History struct {
	mu       sync.Mutex
	current  string
	back     []string
	forward  []string
	limit    int
	onChange func(string)
}

// DefaultHistoryLimit bounds the back stack.
const DefaultHistoryLimit = 100

// NewHistory returns a History starting at location.
func NewHistory(location string) *History {
	return &History{current: strings.TrimSpace(location), limit: DefaultHistoryLimit}
}

// OnChange registers fn to run after every location change.
func (h *History) OnChange(fn func(location string)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// Location returns the current location.
func (h *History) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Navigate moves to url. Navigating to the current location is a no-op.
func (h *History) Navigate(url string) {
	url = strings.TrimSpace(url)
	h.mu.Lock()
	if url == "" || url == h.current {
		h.mu.Unlock()
		return
	}
	if h.current != "" {
		h.back = append(h.back, h.current)
		if h.limit > 0 && len(h.back) > h.limit {
			h.back = h.back[len(h.back)-h.limit:]
		}
	}
	h.forward = nil
	h.current = url
	fn := h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn(url)
	}
}

// Back returns to the previous location. It reports false when there is none.
func (h *History) Back() bool {
	h.mu.Lock()
	if len(h.back) == 0 {
		h.mu.Unlock()
		return false
	}
	prev := h.back[len(h.back)-1]
	h.back = h.back[:len(h.back)-1]
	h.forward = append(h.forward, h.current)
	h.current = prev
	fn := h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn(prev)
	}
	return true
}

// Forward undoes a Back.
func (h *History) Forward() bool {
	h.mu.Lock()
	if len(h.forward) == 0 {
		h.mu.Unlock()
		return false
	}
	next := h.forward[len(h.forward)-1]
	h.forward = h.forward[:len(h.forward)-1]
	h.back = append(h.back, h.current)
	h.current = next
	fn := h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn(next)
	}
	return true
}
