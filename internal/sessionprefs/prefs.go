package sessionprefs

import (
	"context"
	"sync"

	"pkt.systems/tabstrip/schema"
)

// Prefs captures per-session state that is not persisted with the tab list.
type Prefs struct {
	mu       sync.RWMutex
	location string
	theme    schema.ThemeName
}

type prefsKey struct{}

// New returns a new Prefs instance with defaults applied.
func New() *Prefs {
	return &Prefs{theme: schema.DefaultTheme}
}

// Location returns the current navigation location of the session.
func (p *Prefs) Location() string {
	if p == nil {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.location
}

// SetLocation records the current navigation location of the session.
func (p *Prefs) SetLocation(location string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.location = location
	p.mu.Unlock()
}

// Theme returns the session theme.
func (p *Prefs) Theme() schema.ThemeName {
	if p == nil {
		return schema.DefaultTheme
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.theme
}

// SetTheme sets the session theme when the name is known.
func (p *Prefs) SetTheme(name string) bool {
	theme, ok := schema.NormalizeThemeName(name)
	if !ok || p == nil {
		return false
	}
	p.mu.Lock()
	p.theme = theme
	p.mu.Unlock()
	return true
}

// WithContext stores prefs in the context.
func WithContext(ctx context.Context, prefs *Prefs) context.Context {
	if ctx == nil || prefs == nil {
		return ctx
	}
	return context.WithValue(ctx, prefsKey{}, prefs)
}

// FromContext returns the prefs stored in the context, if any.
func FromContext(ctx context.Context) *Prefs {
	if ctx == nil {
		return nil
	}
	if value := ctx.Value(prefsKey{}); value != nil {
		if prefs, ok := value.(*Prefs); ok {
			return prefs
		}
	}
	return nil
}

// LocationFromContext returns the session location stored in ctx, or "".
func LocationFromContext(ctx context.Context) string {
	return FromContext(ctx).Location()
}
