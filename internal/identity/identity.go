// Package identity resolves the token a tab list is stored under.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/schema"
)

// AnonymousPrefix marks identities minted for a device rather than an account.
const AnonymousPrefix = "anon-"

// ErrNoAccount indicates no account is configured.
var ErrNoAccount = errors.New("no account configured")

// Resolver returns a stable identity token.
type Resolver interface {
	Resolve(ctx context.Context) (schema.IdentityID, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (schema.IdentityID, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context) (schema.IdentityID, error) { return f(ctx) }

// Account resolves to a named account.
type Account struct {
	Name string
}

// Resolve returns the account name as identity.
func (a Account) Resolve(ctx context.Context) (schema.IdentityID, error) {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return "", ErrNoAccount
	}
	id := schema.IdentityID(strings.ToLower(name))
	if err := schema.ValidateIdentity(id); err != nil {
		return "", fmt.Errorf("account %q: %w", a.Name, err)
	}
	return id, nil
}

// Device resolves to an anonymous token kept in a file, minting it on first use.
type Device struct {
	Path string
}

// Resolve reads the device token, creating it when missing.
func (d Device) Resolve(ctx context.Context) (schema.IdentityID, error) {
	if strings.TrimSpace(d.Path) == "" {
		return "", errors.New("device token path is required")
	}
	log := pslog.Ctx(ctx)
	data, err := os.ReadFile(d.Path)
	if err == nil {
		id := schema.IdentityID(strings.TrimSpace(string(data)))
		if err := schema.ValidateIdentity(id); err != nil {
			return "", fmt.Errorf("device token %s: %w", d.Path, err)
		}
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read device token: %w", err)
	}
	id := NewAnonymous()
	if err := os.MkdirAll(filepath.Dir(d.Path), 0o700); err != nil {
		return "", fmt.Errorf("create device token dir: %w", err)
	}
	if err := os.WriteFile(d.Path, []byte(string(id)+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write device token: %w", err)
	}
	log.Info("identity device token created", "path", d.Path, "identity", id)
	return id, nil
}

// NewAnonymous mints a fresh anonymous identity.
func NewAnonymous() schema.IdentityID {
	return schema.IdentityID(AnonymousPrefix + uuid.NewString())
}

// IsAnonymous reports whether id was minted by NewAnonymous.
func IsAnonymous(id schema.IdentityID) bool {
	rest, ok := strings.CutPrefix(string(id), AnonymousPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

// Chain tries resolvers in order and returns the first success.
type Chain []Resolver

// Resolve walks the chain.
func (c Chain) Resolve(ctx context.Context) (schema.IdentityID, error) {
	var errs []error
	for _, r := range c {
		if r == nil {
			continue
		}
		id, err := r.Resolve(ctx)
		if err == nil {
			return id, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", errors.New("no identity resolver configured")
	}
	return "", errors.Join(errs...)
}

// Default prefers a configured account and falls back to the device token.
func Default(account, deviceFile string) Resolver {
	return Chain{Account{Name: account}, Device{Path: deviceFile}}
}
