package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"pkt.systems/tabstrip/schema"
)

func newPubKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	key, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	return key
}

func authorizedLine(key ssh.PublicKey, comment string) string {
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key))) + " " + comment + "\n"
}

func TestKeyStoreMatchesByComment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authorized_keys")
	alice := newPubKey(t)
	other := newPubKey(t)
	content := "# tab bar users\n" + authorizedLine(alice, "Alice")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, err := NewKeyStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ok, err := store.HasLoginPubKey("alice", alice)
	if err != nil || !ok {
		t.Fatalf("expected alice key accepted, got %v %v", ok, err)
	}
	if ok, _ := store.HasLoginPubKey("alice", other); ok {
		t.Fatalf("expected unknown key rejected")
	}
	if _, err := store.HasLoginPubKey("bob", alice); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestKeyStoreReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authorized_keys")
	store, err := NewKeyStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if users := store.Users(); len(users) != 0 {
		t.Fatalf("expected empty store, got %v", users)
	}
	bob := newPubKey(t)
	if err := os.WriteFile(path, []byte(authorizedLine(bob, "bob")), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ok, err := store.HasLoginPubKey("bob", bob); err != nil || !ok {
		t.Fatalf("expected reload to pick up bob, got %v %v", ok, err)
	}
}

func TestKeyStoreAddKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "authorized_keys")
	store, err := NewKeyStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	key := newPubKey(t)
	raw := string(ssh.MarshalAuthorizedKey(key))
	if err := store.AddKey("carol", raw); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddKey("carol", raw); err != nil {
		t.Fatalf("add again: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := strings.Count(string(data), "carol"); n != 1 {
		t.Fatalf("expected one line for carol, got %d", n)
	}
	users := store.Users()
	if len(users) != 1 || users[0] != schema.IdentityID("carol") {
		t.Fatalf("unexpected users: %v", users)
	}
	keys := store.Keys("carol")
	if len(keys) != 1 || ssh.FingerprintSHA256(keys[0]) != ssh.FingerprintSHA256(key) {
		t.Fatalf("unexpected keys for carol: %v", keys)
	}
	if err := store.AddKey("carol", "not a key"); err == nil {
		t.Fatalf("expected invalid key error")
	}
	if err := store.AddKey("Bad User", raw); err == nil {
		t.Fatalf("expected invalid user error")
	}
}

func TestKeyStoreRejectsMissingComment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authorized_keys")
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(newPubKey(t)))) + "\n"
	if err := os.WriteFile(path, []byte(line), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewKeyStore(path, nil); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("expected line error, got %v", err)
	}
}
