package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/internal/identity"
	"pkt.systems/tabstrip/internal/layout"
	"pkt.systems/tabstrip/internal/logx"
	"pkt.systems/tabstrip/internal/sessionprefs"
	"pkt.systems/tabstrip/schema"
)

const (
	defaultIdentityCookie = "tabstrip_identity"
	streamHeartbeat       = 25 * time.Second
)

// Server serves the tab list as JSON and streams changes over SSE.
type Server struct {
	cfg      Config
	service  core.Service
	engine   layout.Engine
	sessions *sessionStore
	hub      *Hub
	basePath string
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, service core.Service, engine layout.Engine, hub *Hub) *Server {
	ttl := time.Duration(cfg.IdentityTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * 365 * time.Hour
	}
	if strings.TrimSpace(cfg.IdentityCookie) == "" {
		cfg.IdentityCookie = defaultIdentityCookie
	}
	if engine.TabWidth == 0 {
		engine = layout.DefaultEngine()
	}
	if hub == nil {
		hub = NewHub(0)
	}
	return &Server{
		cfg:      cfg,
		service:  service,
		engine:   engine,
		sessions: newSessionStore(ttl, cfg.SessionFile),
		hub:      hub,
		basePath: normalizeBasePath(cfg.BasePath),
	}
}

// SetBaseContext sets the parent context for session lifetimes.
func (s *Server) SetBaseContext(ctx context.Context) {
	if s == nil || ctx == nil {
		return
	}
	s.sessions.setBaseContext(ctx)
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/signin", s.handleSignIn)
	mux.HandleFunc("/api/signout", s.handleSignOut)
	mux.HandleFunc("/api/me", s.requireSession(s.handleMe))
	mux.HandleFunc("/api/theme", s.requireSession(s.handleTheme))
	mux.HandleFunc("/api/tabs", s.requireSession(s.handleTabs))
	mux.HandleFunc("/api/tabs/reorder", s.requireSession(s.handleReorder))
	mux.HandleFunc("/api/tabs/pin", s.requireSession(s.handlePin))
	mux.HandleFunc("/api/tabs/close", s.requireSession(s.handleClose))
	mux.HandleFunc("/api/tabs/select", s.requireSession(s.handleSelect))
	mux.HandleFunc("/api/tabs/reset", s.requireSession(s.handleReset))
	mux.HandleFunc("/api/stream", s.requireSession(s.handleStream))

	handler := withRequestLogging(mux, s.lookupSession)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	return root
}

type meResponse struct {
	Identity  schema.IdentityID `json:"identity"`
	Anonymous bool              `json:"anonymous"`
	Theme     schema.ThemeName  `json:"theme"`
	Location  string            `json:"location,omitempty"`
}

// TabsResponse is returned by GET /api/tabs.
type TabsResponse struct {
	Tabs      []schema.TabView       `json:"tabs"`
	ActiveTab schema.TabID           `json:"active_tab,omitempty"`
	Layout    *schema.LayoutSnapshot `json:"layout,omitempty"`
}

// MutationResponse is returned by the tab mutation endpoints.
type MutationResponse struct {
	Changed bool         `json:"changed"`
	Tab     *schema.Tab  `json:"tab,omitempty"`
	Tabs    []schema.Tab `json:"tabs"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if token := s.sessionToken(r); token != "" {
		if entry, ok := s.sessions.get(token); ok {
			writeJSON(w, http.StatusOK, s.me(entry))
			return
		}
	}
	entry := s.signIn(w)
	logx.WithIdentity(r.Context(), entry.identity).Info("http signin ok", "remote", clientIP(r))
	writeJSON(w, http.StatusOK, s.me(entry))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if token := s.sessionToken(r); token != "" {
		s.sessions.delete(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.IdentityCookie,
		Value:    "",
		Path:     cookiePath(s.cfg.BasePath),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// signIn mints an anonymous identity and sets its cookie.
func (s *Server) signIn(w http.ResponseWriter) session {
	token, entry := s.sessions.create(identity.NewAnonymous())
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.IdentityCookie,
		Value:    token,
		Path:     cookiePath(s.cfg.BasePath),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  entry.expiresAt,
	})
	return entry
}

func (s *Server) me(entry session) meResponse {
	return meResponse{
		Identity:  entry.identity,
		Anonymous: identity.IsAnonymous(entry.identity),
		Theme:     entry.prefs.Theme(),
		Location:  entry.prefs.Location(),
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, entry session) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.me(entry))
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request, entry session) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Theme string `json:"theme"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !entry.prefs.SetTheme(payload.Theme) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown theme %q", payload.Theme))
		return
	}
	s.sessions.persist()
	writeJSON(w, http.StatusOK, s.me(entry))
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request, entry session) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	width, err := parseWidth(query.Get("width"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.ListTabs(r.Context(), schema.ListTabsRequest{
		Identity: entry.identity,
		Location: query.Get("location"),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	out := TabsResponse{Tabs: resp.Tabs, ActiveTab: resp.ActiveTab}
	if width > 0 {
		snap := s.engine.Snapshot(resp.Tabs, width)
		out.Layout = &snap
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request, entry session) {
	var payload struct {
		From schema.TabID `json:"from"`
		To   schema.TabID `json:"to"`
	}
	if !decodePost(w, r, &payload) {
		return
	}
	resp, err := s.service.ReorderTab(r.Context(), schema.ReorderTabRequest{Identity: entry.identity, From: payload.From, To: payload.To})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Changed: resp.Changed, Tabs: resp.Tabs})
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request, entry session) {
	var payload struct {
		ID schema.TabID `json:"id"`
	}
	if !decodePost(w, r, &payload) {
		return
	}
	resp, err := s.service.TogglePin(r.Context(), schema.TogglePinRequest{Identity: entry.identity, TabID: payload.ID})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	tab := resp.Tab
	writeJSON(w, http.StatusOK, MutationResponse{Changed: true, Tab: &tab, Tabs: resp.Tabs})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request, entry session) {
	var payload struct {
		ID schema.TabID `json:"id"`
	}
	if !decodePost(w, r, &payload) {
		return
	}
	resp, err := s.service.CloseTab(r.Context(), schema.CloseTabRequest{Identity: entry.identity, TabID: payload.ID})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Changed: resp.Closed, Tabs: resp.Tabs})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, entry session) {
	var payload struct {
		ID           schema.TabID `json:"id"`
		FromOverflow bool         `json:"from_overflow"`
	}
	if !decodePost(w, r, &payload) {
		return
	}
	resp, err := s.service.SelectTab(r.Context(), schema.SelectTabRequest{Identity: entry.identity, TabID: payload.ID, FromOverflow: payload.FromOverflow})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	s.sessions.persist()
	tab := resp.Tab
	writeJSON(w, http.StatusOK, MutationResponse{Changed: payload.FromOverflow, Tab: &tab, Tabs: resp.Tabs})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, entry session) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.ResetTabs(r.Context(), schema.ResetTabsRequest{Identity: entry.identity})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Changed: true, Tabs: resp.Tabs})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, entry session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := pslog.Ctx(r.Context())
	ctx := r.Context()

	resp, err := s.service.ListTabs(ctx, schema.ListTabsRequest{Identity: entry.identity})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.hub.Subscribe(entry.identity)
	defer unsubscribe()

	_ = writeSSEvent(w, StreamEvent{
		Type: "snapshot",
		Snapshot: &SnapshotPayload{
			Identity:  entry.identity,
			Tabs:      resp.Tabs,
			ActiveTab: resp.ActiveTab,
			Theme:     entry.prefs.Theme(),
		},
		Timestamp: time.Now(),
	})
	requested := parseUint(r.Header.Get("Last-Event-ID"))
	lastID := requested
	replayed := 0
	if requested > 0 {
		for _, event := range s.hub.Replay(entry.identity, requested) {
			_ = writeSSEvent(w, event)
			lastID = event.Seq
			replayed++
		}
	}
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	log.Info("http stream opened", "last_id", requested, "replay", replayed, "tabs", len(resp.Tabs))
	for {
		select {
		case <-ctx.Done():
			log.Info("http stream closed")
			return
		case <-entry.ctx.Done():
			log.Info("http stream closed", "reason", "session ended")
			return
		case <-heartbeat.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Seq <= lastID {
				continue
			}
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

// requireSession resolves the identity cookie. Requests without a valid
// cookie are signed in anonymously.
func (s *Server) requireSession(next func(http.ResponseWriter, *http.Request, session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Ctx(r.Context()).With("remote", clientIP(r))
		var entry session
		ok := false
		if token := s.sessionToken(r); token != "" {
			entry, ok = s.sessions.get(token)
			if !ok {
				log.Debug("http session invalid")
			}
		}
		if !ok {
			entry = s.signIn(w)
			log.Info("http anonymous signin", "identity", entry.identity)
		}
		log = log.With("identity", entry.identity, "http_session", entry.id)
		ctx := logx.ContextWithIdentityLogger(r.Context(), log, entry.identity)
		ctx = sessionprefs.WithContext(ctx, entry.prefs)
		next(w, r.WithContext(ctx), entry)
	}
}

func (s *Server) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(s.cfg.IdentityCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) lookupSession(r *http.Request) (schema.IdentityID, string) {
	if s == nil || r == nil {
		return "", ""
	}
	token := s.sessionToken(r)
	if token == "" {
		return "", ""
	}
	entry, ok := s.sessions.get(token)
	if !ok {
		return "", ""
	}
	return entry.identity, entry.id
}

func decodePost(w http.ResponseWriter, r *http.Request, target any) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if err := decodeJSON(r.Body, target); err != nil {
		pslog.Ctx(r.Context()).Warn("http decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		pslog.Ctx(ctx).Warn("http service call failed", "err", err)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	var authErr *schema.AuthError
	switch {
	case errors.Is(err, schema.ErrTabNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrInvalidRequest), errors.Is(err, schema.ErrInvalidIdentity), errors.Is(err, schema.ErrInvalidTab):
		return http.StatusBadRequest
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// parseWidth reads the width query value. Empty means no layout.
func parseWidth(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	width, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: width %q is not a number", schema.ErrInvalidRequest, value)
	}
	if width < 0 {
		return 0, fmt.Errorf("%w: width must not be negative", schema.ErrInvalidRequest)
	}
	return width, nil
}
