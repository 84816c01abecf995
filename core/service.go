package core

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/internal/catalog"
	"pkt.systems/tabstrip/internal/layout"
	"pkt.systems/tabstrip/internal/logx"
	"pkt.systems/tabstrip/internal/persist"
	"pkt.systems/tabstrip/internal/sessionprefs"
	"pkt.systems/tabstrip/schema"
)

// service implements the core service behavior.
type service struct {
	cfg     schema.ServiceConfig
	adapter persist.Adapter
	icons   IconLookup
	sink    EventSink
	logger  pslog.Logger
	saves   *saveQueue

	// openMu serializes Open so migrate and load run once per identity.
	openMu sync.Mutex
	mu     sync.Mutex
	states map[schema.IdentityID]*identityState
	// emitMu is taken while mu is still held so sink order matches state order.
	emitMu sync.Mutex

	watchCtx    context.Context
	watchCancel context.CancelFunc
}

type identityState struct {
	tabs        []schema.Tab
	unsubscribe func()
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	icons := deps.Icons
	if icons == nil {
		icons = catalog.Default()
	}
	watchCtx, watchCancel := context.WithCancel(pslog.ContextWithLogger(context.Background(), logger))
	s := &service{
		cfg:         normalized,
		adapter:     deps.Adapter,
		icons:       icons,
		sink:        deps.EventSink,
		logger:      logger,
		states:      make(map[schema.IdentityID]*identityState),
		watchCtx:    watchCtx,
		watchCancel: watchCancel,
	}
	s.saves = newSaveQueue(s.persistIdentity)
	return s, nil
}

func (s *service) Open(ctx context.Context, req schema.OpenRequest) (schema.OpenResponse, error) {
	if ctx == nil {
		return schema.OpenResponse{}, errors.New("missing context")
	}
	id, err := normalizeIdentity(req.Identity)
	if err != nil {
		return schema.OpenResponse{}, err
	}
	log := logx.WithIdentity(ctx, id)

	s.openMu.Lock()
	defer s.openMu.Unlock()
	if tabs, ok := s.snapshot(id); ok {
		return schema.OpenResponse{Tabs: tabs}, nil
	}

	resp := schema.OpenResponse{}
	var persisted []schema.Tab
	if s.adapter != nil {
		// migration must precede the first load
		migrated, err := s.adapter.MigrateLegacy(ctx, id)
		if err != nil {
			log.Warn("service legacy migration failed", "err", err)
		}
		resp.Migrated = migrated
		tabs, ok, err := s.adapter.Load(ctx, id)
		switch {
		case err != nil:
			log.Warn("service load failed, using catalog", "err", err)
			resp.LoadFailed = true
		case ok:
			persisted = tabs
		}
	}
	tabs, seeded := Initialize(s.cfg.Catalog, persisted)
	resp.Seeded = seeded
	if seeded && s.adapter != nil && !resp.LoadFailed {
		if err := s.adapter.InitializeIdentity(ctx, id, tabs); err != nil {
			log.Warn("service identity initialize failed", "err", err)
		}
	}

	state := &identityState{tabs: tabs}
	resp.Tabs = schema.CloneTabs(tabs)
	s.mu.Lock()
	s.states[id] = state
	s.emitLocked(schema.TabEvent{Identity: id, Type: schema.TabEventLoaded, Tabs: resp.Tabs})

	if sub, ok := s.adapter.(persist.Subscriber); ok && !s.cfg.DisableWatch {
		cancel, err := sub.Subscribe(s.watchCtx, id, func(change persist.Change) {
			s.applyRemote(id, change)
		})
		if err != nil {
			log.Warn("service subscribe failed", "err", err)
		} else {
			s.mu.Lock()
			state.unsubscribe = cancel
			s.mu.Unlock()
		}
	}

	log.Info("service identity opened", "tabs", len(tabs), "seeded", seeded, "migrated", resp.Migrated, "load_failed", resp.LoadFailed)
	return resp, nil
}

func (s *service) ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error) {
	id, err := s.ensureOpen(ctx, req.Identity)
	if err != nil {
		return schema.ListTabsResponse{}, err
	}
	tabs, _ := s.snapshot(id)
	location := req.Location
	if location == "" {
		location = sessionprefs.LocationFromContext(ctx)
	}
	active, _ := layout.ActiveID(tabs, location)
	views := make([]schema.TabView, 0, len(tabs))
	for _, tab := range tabs {
		views = append(views, s.view(tab, tab.ID == active))
	}
	return schema.ListTabsResponse{Tabs: views, ActiveTab: active}, nil
}

func (s *service) ReorderTab(ctx context.Context, req schema.ReorderTabRequest) (schema.ReorderTabResponse, error) {
	id, err := s.ensureOpen(ctx, req.Identity)
	if err != nil {
		return schema.ReorderTabResponse{}, err
	}
	log := logx.WithMove(logx.WithIdentity(ctx, id), req.From, req.To)
	tabs, changed := s.mutate(id, schema.TabEventReordered, req.From, func(tabs []schema.Tab) ([]schema.Tab, bool) {
		return Reorder(tabs, req.From, req.To)
	})
	if changed {
		log.Info("service tab reordered")
	} else {
		log.Debug("service tab reorder ignored")
	}
	return schema.ReorderTabResponse{Tabs: tabs, Changed: changed}, nil
}

func (s *service) TogglePin(ctx context.Context, req schema.TogglePinRequest) (schema.TogglePinResponse, error) {
	id, err := s.ensureOpen(ctx, req.Identity)
	if err != nil {
		return schema.TogglePinResponse{}, err
	}
	log := logx.WithIdentityTab(ctx, id, req.TabID)
	var toggled schema.Tab
	tabs, changed := s.mutate(id, schema.TabEventPinned, req.TabID, func(tabs []schema.Tab) ([]schema.Tab, bool) {
		next, tab, ok := TogglePin(tabs, req.TabID)
		toggled = tab
		return next, ok
	})
	if !changed {
		log.Debug("service tab pin failed", "err", schema.ErrTabNotFound)
		return schema.TogglePinResponse{}, schema.ErrTabNotFound
	}
	log.Info("service tab pin toggled", "pinned", toggled.Pinned)
	return schema.TogglePinResponse{Tab: toggled, Tabs: tabs}, nil
}

func (s *service) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	id, err := s.ensureOpen(ctx, req.Identity)
	if err != nil {
		return schema.CloseTabResponse{}, err
	}
	log := logx.WithIdentityTab(ctx, id, req.TabID)
	tabs, closed := s.mutate(id, schema.TabEventClosed, req.TabID, func(tabs []schema.Tab) ([]schema.Tab, bool) {
		return Close(tabs, req.TabID)
	})
	if closed {
		log.Info("service tab closed", "remaining", len(tabs))
	} else {
		log.Debug("service tab close ignored")
	}
	return schema.CloseTabResponse{Tabs: tabs, Closed: closed}, nil
}

func (s *service) SelectTab(ctx context.Context, req schema.SelectTabRequest) (schema.SelectTabResponse, error) {
	id, err := s.ensureOpen(ctx, req.Identity)
	if err != nil {
		return schema.SelectTabResponse{}, err
	}
	log := logx.WithIdentityTab(ctx, id, req.TabID)
	var tabs []schema.Tab
	if req.FromOverflow {
		tabs, _ = s.mutate(id, schema.TabEventSelected, req.TabID, func(tabs []schema.Tab) ([]schema.Tab, bool) {
			return PromoteOnSelect(tabs, req.TabID)
		})
	} else {
		tabs, _ = s.snapshot(id)
	}
	idx := schema.IndexOf(tabs, req.TabID)
	if idx < 0 {
		log.Debug("service tab select failed", "err", schema.ErrTabNotFound)
		return schema.SelectTabResponse{}, schema.ErrTabNotFound
	}
	selected := tabs[idx]
	if prefs := sessionprefs.FromContext(ctx); prefs != nil {
		prefs.SetLocation(selected.URL)
	}
	log.Info("service tab selected", "url", selected.URL, "from_overflow", req.FromOverflow)
	return schema.SelectTabResponse{Tab: selected, Tabs: tabs}, nil
}

func (s *service) ResetTabs(ctx context.Context, req schema.ResetTabsRequest) (schema.ResetTabsResponse, error) {
	id, err := s.ensureOpen(ctx, req.Identity)
	if err != nil {
		return schema.ResetTabsResponse{}, err
	}
	tabs, _ := s.mutate(id, schema.TabEventReset, "", func([]schema.Tab) ([]schema.Tab, bool) {
		return schema.CloneTabs(s.cfg.Catalog), true
	})
	logx.WithIdentity(ctx, id).Info("service tabs reset", "tabs", len(tabs))
	return schema.ResetTabsResponse{Tabs: tabs}, nil
}

func (s *service) Flush(ctx context.Context) error {
	return s.saves.flush(ctx)
}

func (s *service) Close() error {
	s.watchCancel()
	s.mu.Lock()
	var cancels []func()
	for _, state := range s.states {
		if state.unsubscribe != nil {
			cancels = append(cancels, state.unsubscribe)
			state.unsubscribe = nil
		}
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	s.saves.close()
	return nil
}

// mutate applies fn to the identity's list. Effective changes are queued for
// saving and emitted to the sink.
func (s *service) mutate(id schema.IdentityID, eventType schema.TabEventType, tabID schema.TabID, fn func([]schema.Tab) ([]schema.Tab, bool)) ([]schema.Tab, bool) {
	s.mu.Lock()
	state := s.states[id]
	if state == nil {
		s.mu.Unlock()
		return nil, false
	}
	next, changed := fn(state.tabs)
	if changed {
		state.tabs = next
	}
	out := schema.CloneTabs(state.tabs)
	if !changed {
		s.mu.Unlock()
		return out, false
	}
	// enqueue under mu: the queue keeps only the latest list per identity
	if s.adapter != nil && !s.saves.enqueue(id, out) {
		s.logger.Warn("service save dropped", "identity", id, "reason", "service closed")
	}
	s.emitLocked(schema.TabEvent{Identity: id, Type: eventType, TabID: tabID, Tabs: out})
	return out, true
}

func (s *service) persistIdentity(id schema.IdentityID, tabs []schema.Tab) {
	if s.adapter == nil {
		return
	}
	log := s.logger.With("identity", id)
	ctx := logx.ContextWithIdentityLogger(context.Background(), log, id)
	if err := s.adapter.Save(ctx, id, tabs); err != nil {
		log.Warn("service save failed", "err", err)
		return
	}
	log.Trace("service state persisted", "tabs", len(tabs))
}

func (s *service) applyRemote(id schema.IdentityID, change persist.Change) {
	if err := schema.ValidateTabs(change.Tabs); err != nil {
		s.logger.Warn("service remote change rejected", "identity", id, "err", err)
		return
	}
	s.mu.Lock()
	state := s.states[id]
	if state == nil {
		s.mu.Unlock()
		return
	}
	state.tabs = schema.CloneTabs(change.Tabs)
	out := schema.CloneTabs(state.tabs)
	s.emitLocked(schema.TabEvent{Identity: id, Type: schema.TabEventRemote, Tabs: out})
	s.logger.Info("service remote change applied", "identity", id, "tabs", len(out))
}

func (s *service) ensureOpen(ctx context.Context, raw schema.IdentityID) (schema.IdentityID, error) {
	if ctx == nil {
		return "", errors.New("missing context")
	}
	id, err := normalizeIdentity(raw)
	if err != nil {
		return "", err
	}
	if _, ok := s.snapshot(id); ok {
		return id, nil
	}
	if _, err := s.Open(ctx, schema.OpenRequest{Identity: id}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *service) snapshot(id schema.IdentityID) ([]schema.Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[id]
	if state == nil {
		return nil, false
	}
	return schema.CloneTabs(state.tabs), true
}

func (s *service) view(tab schema.Tab, active bool) schema.TabView {
	return schema.TabView{
		ID:     tab.ID,
		Title:  tab.Title,
		URL:    tab.URL,
		Pinned: tab.Pinned,
		Icon:   s.icons.IconFor(tab.ID),
		Active: active,
	}
}

// emitLocked is called with mu held and releases it. Events reach the sink
// in the order their changes were applied.
func (s *service) emitLocked(event schema.TabEvent) {
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	s.emitTabEvent(event)
}

func (s *service) emitTabEvent(event schema.TabEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnTabEvent(event)
}

func normalizeIdentity(id schema.IdentityID) (schema.IdentityID, error) {
	if err := schema.ValidateIdentity(id); err != nil {
		return "", schema.ErrInvalidIdentity
	}
	return id, nil
}
