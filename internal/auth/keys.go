// Package auth authorizes SSH logins against an authorized_keys file. The
// comment field of each key line names the account the key signs in as.
package auth

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/schema"
)

// ErrUnknownUser is returned when no key is registered for a user.
var ErrUnknownUser = errors.New("user not found")

// KeyStore serves authorized keys from disk, reloading when the file changes.
type KeyStore struct {
	path      string
	mu        sync.RWMutex
	keys      map[schema.IdentityID][]ssh.PublicKey
	fileState fileState
	loaded    bool
	log       pslog.Logger
}

// NewKeyStore loads the authorized_keys file at path. A missing file yields
// an empty store.
func NewKeyStore(path string, logger pslog.Logger) (*KeyStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("authorized keys path is required")
	}
	if logger != nil {
		logger = logger.With("authorized_keys", path)
	}
	s := &KeyStore{
		path: path,
		keys: make(map[schema.IdentityID][]ssh.PublicKey),
		log:  logger,
	}
	if err := s.refreshIfNeeded(); err != nil {
		return nil, err
	}
	return s, nil
}

// HasLoginPubKey reports whether key is authorized for userID.
func (s *KeyStore) HasLoginPubKey(userID schema.IdentityID, key ssh.PublicKey) (bool, error) {
	if err := s.refreshIfNeeded(); err != nil {
		return false, err
	}
	user, err := normalizeUser(string(userID))
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	keys, ok := s.keys[user]
	s.mu.RUnlock()
	if !ok {
		return false, ErrUnknownUser
	}
	want := key.Marshal()
	for _, k := range keys {
		if bytes.Equal(k.Marshal(), want) {
			return true, nil
		}
	}
	return false, nil
}

// Users returns the users with at least one key, sorted.
func (s *KeyStore) Users() []schema.IdentityID {
	if err := s.refreshIfNeeded(); err != nil && s.log != nil {
		s.log.Warn("auth keys refresh failed", "err", err)
	}
	s.mu.RLock()
	out := make([]schema.IdentityID, 0, len(s.keys))
	for user := range s.keys {
		out = append(out, user)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Keys returns the keys registered for userID.
func (s *KeyStore) Keys(userID schema.IdentityID) []ssh.PublicKey {
	if err := s.refreshIfNeeded(); err != nil && s.log != nil {
		s.log.Warn("auth keys refresh failed", "err", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ssh.PublicKey(nil), s.keys[userID]...)
}

// AddKey appends pubKey for userID. Keys already present are not duplicated.
func (s *KeyStore) AddKey(userID schema.IdentityID, pubKey string) error {
	user, err := normalizeUser(string(userID))
	if err != nil {
		return err
	}
	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(pubKey)))
	if err != nil {
		return fmt.Errorf("invalid pubkey: %w", err)
	}
	if ok, err := s.HasLoginPubKey(user, key); err == nil && ok {
		return nil
	}
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key))) + " " + string(user) + "\n"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Info("auth key added", "identity", user, "fingerprint", ssh.FingerprintSHA256(key))
	}
	return s.loadFromDisk()
}

func normalizeUser(raw string) (schema.IdentityID, error) {
	id := schema.IdentityID(strings.ToLower(strings.TrimSpace(raw)))
	if err := schema.ValidateIdentity(id); err != nil {
		return "", err
	}
	return id, nil
}

type fileState struct {
	modTime time.Time
	size    int64
	inode   uint64
	dev     uint64
	missing bool
}

func fileStateFromInfo(info os.FileInfo) fileState {
	state := fileState{
		modTime: info.ModTime(),
		size:    info.Size(),
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		state.inode = stat.Ino
		state.dev = uint64(stat.Dev)
	}
	return state
}

func (s fileState) equal(other fileState) bool {
	return s.missing == other.missing &&
		s.size == other.size &&
		s.modTime.Equal(other.modTime) &&
		s.inode == other.inode &&
		s.dev == other.dev
}

func (s *KeyStore) refreshIfNeeded() error {
	info, err := os.Stat(s.path)
	var latest fileState
	switch {
	case err == nil:
		latest = fileStateFromInfo(info)
	case os.IsNotExist(err):
		latest = fileState{missing: true}
	default:
		if s.log != nil {
			s.log.Warn("auth keys stat failed", "err", err)
		}
		return err
	}
	s.mu.RLock()
	current, loaded := s.fileState, s.loaded
	s.mu.RUnlock()
	if loaded && current.equal(latest) {
		return nil
	}
	if latest.missing {
		s.mu.Lock()
		s.keys = make(map[schema.IdentityID][]ssh.PublicKey)
		s.fileState = latest
		s.loaded = true
		s.mu.Unlock()
		return nil
	}
	return s.loadFromDisk()
}

func (s *KeyStore) loadFromDisk() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if s.log != nil {
			s.log.Warn("auth keys load failed", "err", err)
		}
		return err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	next, err := parseAuthorizedKeys(data)
	if err != nil {
		if s.log != nil {
			s.log.Warn("auth keys load failed", "err", err)
		}
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = next
	s.fileState = fileStateFromInfo(info)
	s.loaded = true
	if s.log != nil {
		s.log.Debug("auth keys load ok", "users", len(next))
	}
	return nil
}

// parseAuthorizedKeys reads OpenSSH authorized_keys lines. Lines without a
// valid account comment are rejected.
func parseAuthorizedKeys(data []byte) (map[schema.IdentityID][]ssh.PublicKey, error) {
	out := make(map[schema.IdentityID][]ssh.PublicKey)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		user, err := normalizeUser(comment)
		if err != nil {
			return nil, fmt.Errorf("line %d: account comment: %w", lineNo, err)
		}
		out[user] = append(out[user], key)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
