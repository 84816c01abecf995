// Package persist stores identity-scoped tab lists and migrates the legacy
// single-slot store into them.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/internal/identity"
	"pkt.systems/tabstrip/schema"
)

// Adapter is the storage contract the tab service depends on.
type Adapter interface {
	ResolveIdentity(ctx context.Context) (schema.IdentityID, error)
	Load(ctx context.Context, id schema.IdentityID) ([]schema.Tab, bool, error)
	Save(ctx context.Context, id schema.IdentityID, tabs []schema.Tab) error
	InitializeIdentity(ctx context.Context, id schema.IdentityID, catalog []schema.Tab) error
	MigrateLegacy(ctx context.Context, id schema.IdentityID) (bool, error)
}

// Change is an out-of-band update of a stored tab list.
type Change struct {
	Identity    schema.IdentityID
	Tabs        []schema.Tab
	LastUpdated time.Time
}

// Subscriber is implemented by adapters that can push out-of-band changes.
type Subscriber interface {
	Subscribe(ctx context.Context, id schema.IdentityID, onChange func(Change)) (cancel func(), err error)
}

// DocumentStore reads and writes whole documents by identity.
type DocumentStore interface {
	Get(ctx context.Context, id schema.IdentityID) (Document, bool, error)
	Put(ctx context.Context, id schema.IdentityID, doc Document) error
	Close() error
}

// Watcher is implemented by document stores that can observe changes.
type Watcher interface {
	Watch(ctx context.Context, id schema.IdentityID, fn func(Document)) (cancel func(), err error)
}

// LegacyStore is the pre-identity single-slot store.
type LegacyStore interface {
	Read(ctx context.Context) ([]schema.Tab, bool, error)
	Erase(ctx context.Context) error
}

// BackendConfig wires a Backend.
type BackendConfig struct {
	Resolver identity.Resolver
	Store    DocumentStore
	// Legacy is optional.
	Legacy LegacyStore
	Logger pslog.Logger
	// Now overrides the clock used for lastUpdated.
	Now func() time.Time
}

// Backend implements Adapter and Subscriber over a DocumentStore.
type Backend struct {
	resolver identity.Resolver
	store    DocumentStore
	legacy   LegacyStore
	writer   string
	now      func() time.Time
	log      pslog.Logger
}

var (
	_ Adapter    = (*Backend)(nil)
	_ Subscriber = (*Backend)(nil)
)

// NewBackend constructs a Backend.
func NewBackend(cfg BackendConfig) (*Backend, error) {
	if cfg.Store == nil {
		return nil, errors.New("document store is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("identity resolver is required")
	}
	writer := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Backend{
		resolver: cfg.Resolver,
		store:    cfg.Store,
		legacy:   cfg.Legacy,
		writer:   writer,
		now:      now,
		log:      logger.With("writer", writer),
	}, nil
}

// Writer returns the id stamped on documents written by this backend.
func (b *Backend) Writer() string { return b.writer }

// Close releases the underlying document store.
func (b *Backend) Close() error { return b.store.Close() }

// ResolveIdentity resolves the identity through the configured resolver.
func (b *Backend) ResolveIdentity(ctx context.Context) (schema.IdentityID, error) {
	id, err := b.resolver.Resolve(ctx)
	if err != nil {
		b.log.Warn("persist identity resolve failed", "err", err)
		return "", &schema.AuthError{Err: err}
	}
	if err := schema.ValidateIdentity(id); err != nil {
		return "", &schema.AuthError{Err: fmt.Errorf("%q: %w", id, err)}
	}
	b.log.Debug("persist identity resolved", "identity", id)
	return id, nil
}

// Load returns the stored tab list. Absent documents report false with no error.
func (b *Backend) Load(ctx context.Context, id schema.IdentityID) ([]schema.Tab, bool, error) {
	doc, ok, err := b.store.Get(ctx, id)
	if err != nil {
		b.log.Warn("persist load failed", "identity", id, "err", err)
		return nil, false, &schema.LoadError{Identity: id, Err: err}
	}
	if !ok {
		b.log.Debug("persist load miss", "identity", id)
		return nil, false, nil
	}
	b.log.Debug("persist load ok", "identity", id, "tabs", len(doc.Tabs))
	return doc.Tabs, true, nil
}

// Save overwrites the stored list and stamps lastUpdated.
func (b *Backend) Save(ctx context.Context, id schema.IdentityID, tabs []schema.Tab) error {
	doc := Document{Tabs: schema.CloneTabs(tabs), LastUpdated: b.now(), Writer: b.writer}
	if err := b.store.Put(ctx, id, doc); err != nil {
		b.log.Warn("persist save failed", "identity", id, "err", err)
		return &schema.SaveError{Identity: id, Err: err}
	}
	b.log.Trace("persist save ok", "identity", id, "tabs", len(tabs))
	return nil
}

// InitializeIdentity writes the catalog as the first document of an identity.
func (b *Backend) InitializeIdentity(ctx context.Context, id schema.IdentityID, catalog []schema.Tab) error {
	doc := Document{Tabs: schema.CloneTabs(catalog), LastUpdated: b.now(), IsInitialized: true, Writer: b.writer}
	if err := b.store.Put(ctx, id, doc); err != nil {
		b.log.Warn("persist initialize failed", "identity", id, "err", err)
		return &schema.SaveError{Identity: id, Err: err}
	}
	b.log.Info("persist identity initialized", "identity", id, "tabs", len(catalog))
	return nil
}

// MigrateLegacy copies the legacy list into the identity document and erases
// it. An existing identity document is never overwritten. It reports whether
// data was copied.
func (b *Backend) MigrateLegacy(ctx context.Context, id schema.IdentityID) (bool, error) {
	if b.legacy == nil {
		return false, nil
	}
	tabs, ok, err := b.legacy.Read(ctx)
	if err != nil {
		b.log.Warn("persist legacy read failed", "identity", id, "err", err)
		return false, err
	}
	if !ok {
		return false, nil
	}
	_, exists, err := b.store.Get(ctx, id)
	if err != nil {
		b.log.Warn("persist legacy migrate failed", "identity", id, "err", err)
		return false, &schema.LoadError{Identity: id, Err: err}
	}
	copied := false
	if !exists {
		if err := b.Save(ctx, id, tabs); err != nil {
			return false, err
		}
		copied = true
	}
	if err := b.legacy.Erase(ctx); err != nil {
		b.log.Warn("persist legacy erase failed", "identity", id, "err", err)
		return copied, err
	}
	b.log.Info("persist legacy migrated", "identity", id, "tabs", len(tabs), "copied", copied)
	return copied, nil
}

// Subscribe forwards changes written by other processes. Documents written by
// this backend are skipped.
func (b *Backend) Subscribe(ctx context.Context, id schema.IdentityID, onChange func(Change)) (func(), error) {
	watcher, ok := b.store.(Watcher)
	if !ok {
		return func() {}, nil
	}
	return watcher.Watch(ctx, id, func(doc Document) {
		if doc.Writer == b.writer {
			return
		}
		b.log.Debug("persist remote change", "identity", id, "remote_writer", doc.Writer, "tabs", len(doc.Tabs))
		onChange(Change{Identity: id, Tabs: doc.Tabs, LastUpdated: doc.LastUpdated})
	})
}
