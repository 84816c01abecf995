package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/tabstrip/schema"
)

func TestDeviceMintsOnceAndReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "device")
	d := Device{Path: path}
	first, err := d.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !IsAnonymous(first) {
		t.Fatalf("expected anonymous identity, got %q", first)
	}
	second, err := d.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable identity, got %q then %q", first, second)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}
}

func TestDeviceRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device")
	if err := os.WriteFile(path, []byte("Not Valid!"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := (Device{Path: path}).Resolve(context.Background()); !errors.Is(err, schema.ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity, got %v", err)
	}
}

func TestAccount(t *testing.T) {
	id, err := Account{Name: "Alice"}.Resolve(context.Background())
	if err != nil || id != "alice" {
		t.Fatalf("expected alice, got %q (%v)", id, err)
	}
	if _, err := (Account{}).Resolve(context.Background()); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount, got %v", err)
	}
}

func TestDefaultChainFallsBackToDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device")
	id, err := Default("", path).Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(string(id), AnonymousPrefix) {
		t.Fatalf("expected device identity, got %q", id)
	}
	id, err = Default("bob", path).Resolve(context.Background())
	if err != nil || id != "bob" {
		t.Fatalf("expected account identity, got %q (%v)", id, err)
	}
}

func TestChainJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	chain := Chain{Account{}, ResolverFunc(func(context.Context) (schema.IdentityID, error) { return "", boom })}
	_, err := chain.Resolve(context.Background())
	if !errors.Is(err, boom) || !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected joined errors, got %v", err)
	}
}
