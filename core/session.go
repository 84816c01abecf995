package core

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/internal/layout"
	"pkt.systems/tabstrip/schema"
)

// SessionState describes whether a session's mutations reach storage.
type SessionState int

const (
	// SessionPending means identity resolution has not finished. Mutations are
	// applied locally and replayed once the identity is bound.
	SessionPending SessionState = iota
	// SessionBound means mutations go through the service and are persisted.
	SessionBound
	// SessionDegraded means identity resolution failed. The session keeps a
	// local catalog-seeded list that is never persisted.
	SessionDegraded
)

func (s SessionState) String() string {
	switch s {
	case SessionPending:
		return "pending"
	case SessionBound:
		return "bound"
	case SessionDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// IdentitySource resolves the identity a session binds to.
type IdentitySource interface {
	ResolveIdentity(ctx context.Context) (schema.IdentityID, error)
}

type mutationKind int

const (
	mutReorder mutationKind = iota
	mutTogglePin
	mutClose
	mutPromote
	mutReset
)

type mutation struct {
	kind mutationKind
	a, b schema.TabID
}

// Session is one client's handle onto a tab list. It bridges the window
// between startup and identity resolution.
type Session struct {
	svc     Service
	catalog []schema.Tab
	icons   IconLookup

	mu       sync.Mutex
	state    SessionState
	identity schema.IdentityID
	local    []schema.Tab
	pending  []mutation
	err      error
}

// NewSession returns a pending session seeded with catalog.
func NewSession(svc Service, catalog []schema.Tab, icons IconLookup) *Session {
	return &Session{
		svc:     svc,
		catalog: schema.CloneTabs(catalog),
		icons:   icons,
		local:   schema.CloneTabs(catalog),
	}
}

// NewBoundSession returns a session already bound to id.
func NewBoundSession(ctx context.Context, svc Service, catalog []schema.Tab, icons IconLookup, id schema.IdentityID) (*Session, error) {
	s := NewSession(svc, catalog, icons)
	if err := s.Bind(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

// State returns the session state, identity, and the error that degraded it.
func (s *Session) State() (SessionState, schema.IdentityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.identity, s.err
}

// Resolve resolves the identity and binds, or degrades on AuthError.
func (s *Session) Resolve(ctx context.Context, source IdentitySource) error {
	id, err := source.ResolveIdentity(ctx)
	if err != nil {
		s.Degrade(err)
		var authErr *schema.AuthError
		if errors.As(err, &authErr) {
			pslog.Ctx(ctx).Warn("session running without persistence", "err", err)
			return nil
		}
		return err
	}
	return s.Bind(ctx, id)
}

// Bind opens id and replays mutations recorded while pending.
func (s *Session) Bind(ctx context.Context, id schema.IdentityID) error {
	if _, err := s.svc.Open(ctx, schema.OpenRequest{Identity: id}); err != nil {
		s.Degrade(err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionPending {
		return nil
	}
	log := pslog.Ctx(ctx).With("identity", id)
	for _, m := range s.pending {
		if err := s.apply(ctx, id, m); err != nil && !errors.Is(err, schema.ErrTabNotFound) {
			log.Warn("session replay failed", "err", err)
		}
	}
	if len(s.pending) > 0 {
		log.Info("session mutations replayed", "count", len(s.pending))
	}
	s.pending = nil
	s.local = nil
	s.identity = id
	s.state = SessionBound
	return nil
}

// Degrade stops waiting for an identity. The local list stays unpersisted.
func (s *Session) Degrade(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionPending {
		return
	}
	s.state = SessionDegraded
	s.err = err
	s.pending = nil
}

// Tabs returns the ordered views and the tab matching location.
func (s *Session) Tabs(ctx context.Context, location string) ([]schema.TabView, schema.TabID, error) {
	s.mu.Lock()
	if s.state == SessionBound {
		id := s.identity
		s.mu.Unlock()
		resp, err := s.svc.ListTabs(ctx, schema.ListTabsRequest{Identity: id, Location: location})
		if err != nil {
			return nil, "", err
		}
		return resp.Tabs, resp.ActiveTab, nil
	}
	tabs := schema.CloneTabs(s.local)
	s.mu.Unlock()
	active, _ := layout.ActiveID(tabs, location)
	views := make([]schema.TabView, 0, len(tabs))
	for _, tab := range tabs {
		icon := ""
		if s.icons != nil {
			icon = s.icons.IconFor(tab.ID)
		}
		views = append(views, schema.TabView{ID: tab.ID, Title: tab.Title, URL: tab.URL, Pinned: tab.Pinned, Icon: icon, Active: tab.ID == active})
	}
	return views, active, nil
}

// Reorder moves from to the index of to.
func (s *Session) Reorder(ctx context.Context, from, to schema.TabID) error {
	return s.do(ctx, mutation{kind: mutReorder, a: from, b: to})
}

// TogglePin flips the pinned flag of id.
func (s *Session) TogglePin(ctx context.Context, id schema.TabID) error {
	return s.do(ctx, mutation{kind: mutTogglePin, a: id})
}

// Close removes id from the list.
func (s *Session) Close(ctx context.Context, id schema.TabID) error {
	return s.do(ctx, mutation{kind: mutClose, a: id})
}

// Reset re-seeds the list from the catalog.
func (s *Session) Reset(ctx context.Context) error {
	return s.do(ctx, mutation{kind: mutReset})
}

// Select returns the selected tab, promoting it first when it came from the overflow set.
func (s *Session) Select(ctx context.Context, id schema.TabID, fromOverflow bool) (schema.Tab, error) {
	s.mu.Lock()
	if s.state == SessionBound {
		identity := s.identity
		s.mu.Unlock()
		resp, err := s.svc.SelectTab(ctx, schema.SelectTabRequest{Identity: identity, TabID: id, FromOverflow: fromOverflow})
		if err != nil {
			return schema.Tab{}, err
		}
		return resp.Tab, nil
	}
	defer s.mu.Unlock()
	if fromOverflow {
		if err := s.applyLocalLocked(mutation{kind: mutPromote, a: id}); err != nil {
			return schema.Tab{}, err
		}
	}
	idx := schema.IndexOf(s.local, id)
	if idx < 0 {
		return schema.Tab{}, schema.ErrTabNotFound
	}
	return s.local[idx], nil
}

func (s *Session) do(ctx context.Context, m mutation) error {
	s.mu.Lock()
	if s.state == SessionBound {
		id := s.identity
		s.mu.Unlock()
		return s.apply(ctx, id, m)
	}
	defer s.mu.Unlock()
	return s.applyLocalLocked(m)
}

func (s *Session) applyLocalLocked(m mutation) error {
	var (
		next    []schema.Tab
		changed bool
	)
	switch m.kind {
	case mutReorder:
		next, changed = Reorder(s.local, m.a, m.b)
	case mutTogglePin:
		next, _, changed = TogglePin(s.local, m.a)
		if !changed {
			return schema.ErrTabNotFound
		}
	case mutClose:
		next, changed = Close(s.local, m.a)
	case mutPromote:
		next, changed = PromoteOnSelect(s.local, m.a)
		if !changed {
			return schema.ErrTabNotFound
		}
	case mutReset:
		next, changed = schema.CloneTabs(s.catalog), true
	}
	if !changed {
		return nil
	}
	s.local = next
	if s.state == SessionPending {
		s.pending = append(s.pending, m)
	}
	return nil
}

func (s *Session) apply(ctx context.Context, id schema.IdentityID, m mutation) error {
	var err error
	switch m.kind {
	case mutReorder:
		_, err = s.svc.ReorderTab(ctx, schema.ReorderTabRequest{Identity: id, From: m.a, To: m.b})
	case mutTogglePin:
		_, err = s.svc.TogglePin(ctx, schema.TogglePinRequest{Identity: id, TabID: m.a})
	case mutClose:
		_, err = s.svc.CloseTab(ctx, schema.CloseTabRequest{Identity: id, TabID: m.a})
	case mutPromote:
		_, err = s.svc.SelectTab(ctx, schema.SelectTabRequest{Identity: id, TabID: m.a, FromOverflow: true})
	case mutReset:
		_, err = s.svc.ResetTabs(ctx, schema.ResetTabsRequest{Identity: id})
	}
	return err
}
