package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pkt.systems/tabstrip/internal/logx"
	"pkt.systems/tabstrip/internal/sessionprefs"
	"pkt.systems/tabstrip/schema"
)

// session is one signed-in browser. Its context carries the preferences
// (location, theme) that outlive single requests.
type session struct {
	id        string
	identity  schema.IdentityID
	expiresAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	prefs     *sessionprefs.Prefs
}

type sessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	baseCtx context.Context
	items   map[string]session
	path    string
	now     func() time.Time
}

func newSessionStore(ttl time.Duration, path string) *sessionStore {
	store := &sessionStore{
		ttl:     ttl,
		baseCtx: context.Background(),
		items:   make(map[string]session),
		path:    strings.TrimSpace(path),
		now:     time.Now,
	}
	if store.path != "" {
		if err := store.load(); err != nil {
			logx.Ctx(context.Background()).Warn("http session store load failed", "err", err)
		}
	}
	return store
}

func (s *sessionStore) create(id schema.IdentityID) (string, session) {
	token := randomToken(32)
	entry := s.newSession(id, s.now().Add(s.ttl), "")
	s.mu.Lock()
	s.items[token] = entry
	s.mu.Unlock()
	s.persist()
	logx.WithIdentity(context.Background(), id).Info("http session created", "http_session", entry.id, "expires", entry.expiresAt.Format(time.RFC3339))
	return token, entry
}

func (s *sessionStore) get(token string) (session, bool) {
	s.mu.Lock()
	entry, ok := s.items[token]
	if !ok {
		s.mu.Unlock()
		return session{}, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.items, token)
		s.mu.Unlock()
		if entry.cancel != nil {
			entry.cancel()
		}
		logx.WithIdentity(context.Background(), entry.identity).Info("http session expired", "http_session", entry.id)
		s.persist()
		return session{}, false
	}
	s.mu.Unlock()
	return entry, true
}

func (s *sessionStore) delete(token string) {
	s.mu.Lock()
	entry, ok := s.items[token]
	if ok {
		delete(s.items, token)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	logx.WithIdentity(context.Background(), entry.identity).Info("http session deleted", "http_session", entry.id)
	s.persist()
}

// setBaseContext re-parents every session onto ctx so server shutdown ends
// their streams.
func (s *sessionStore) setBaseContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseCtx = ctx
	for token, entry := range s.items {
		if entry.cancel != nil {
			entry.cancel()
		}
		entry.ctx, entry.cancel = context.WithCancel(sessionprefs.WithContext(ctx, entry.prefs))
		s.items[token] = entry
	}
}

func (s *sessionStore) newSession(id schema.IdentityID, expiresAt time.Time, sessionID string) session {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = randomToken(12)
	}
	s.mu.Lock()
	parent := s.baseCtx
	s.mu.Unlock()
	prefs := sessionprefs.New()
	ctx, cancel := context.WithCancel(sessionprefs.WithContext(parent, prefs))
	return session{
		id:        sessionID,
		identity:  id,
		expiresAt: expiresAt,
		ctx:       ctx,
		cancel:    cancel,
		prefs:     prefs,
	}
}

func randomToken(size int) string {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

type sessionRecord struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
	Location  string    `json:"location,omitempty"`
	Theme     string    `json:"theme,omitempty"`
}

type sessionFile struct {
	Version  int             `json:"version"`
	Sessions []sessionRecord `json:"sessions"`
}

func (s *sessionStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var file sessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	now := s.now()
	entries := make(map[string]session)
	for _, record := range file.Sessions {
		if strings.TrimSpace(record.Token) == "" || now.After(record.ExpiresAt) {
			continue
		}
		id := schema.IdentityID(record.Identity)
		if schema.ValidateIdentity(id) != nil {
			continue
		}
		entry := s.newSession(id, record.ExpiresAt, record.SessionID)
		entry.prefs.SetLocation(record.Location)
		if record.Theme != "" {
			entry.prefs.SetTheme(record.Theme)
		}
		entries[record.Token] = entry
	}
	s.mu.Lock()
	s.items = entries
	s.mu.Unlock()
	if len(file.Sessions) != len(entries) {
		s.persist()
	}
	logx.Ctx(context.Background()).Info("http session store loaded", "sessions", len(entries))
	return nil
}

func (s *sessionStore) persist() {
	if s.path == "" {
		return
	}
	if err := writeSessionFile(s.path, s.snapshot()); err != nil {
		logx.Ctx(context.Background()).Warn("http session store save failed", "err", err)
	}
}

func (s *sessionStore) snapshot() []sessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]sessionRecord, 0, len(s.items))
	for token, entry := range s.items {
		records = append(records, sessionRecord{
			Token:     token,
			SessionID: entry.id,
			Identity:  string(entry.identity),
			ExpiresAt: entry.expiresAt,
			Location:  entry.prefs.Location(),
			Theme:     string(entry.prefs.Theme()),
		})
	}
	return records
}

func writeSessionFile(path string, records []sessionRecord) error {
	payload := sessionFile{Version: 1, Sessions: records}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "sessions-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
