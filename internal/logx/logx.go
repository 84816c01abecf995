package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/schema"
)

type contextKey int

const (
	identityKey contextKey = iota
	tabKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithIdentity annotates the logger with the identity if present.
func WithIdentity(ctx context.Context, id schema.IdentityID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if id != "" {
		if current, ok := ctx.Value(identityKey).(schema.IdentityID); ok && current == id {
			return log
		}
		log = log.With("identity", id)
	}
	return log
}

// WithIdentityTab annotates the logger with identity and tab identifiers.
func WithIdentityTab(ctx context.Context, id schema.IdentityID, tabID schema.TabID) pslog.Logger {
	log := WithIdentity(ctx, id)
	if tabID != "" {
		if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
			return log
		}
		log = log.With("tab", tabID)
	}
	return log
}

// WithMove annotates the logger with the endpoints of a reorder.
func WithMove(log pslog.Logger, from, to schema.TabID) pslog.Logger {
	if from != "" {
		log = log.With("from", from)
	}
	if to != "" {
		log = log.With("to", to)
	}
	return log
}

// ContextWithIdentity stores the identity marker on the context for log de-duplication.
func ContextWithIdentity(ctx context.Context, id schema.IdentityID) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, identityKey, id)
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithIdentityLogger attaches the logger and identity marker to the context.
func ContextWithIdentityLogger(ctx context.Context, log pslog.Logger, id schema.IdentityID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithIdentity(ctx, id)
}

// CopyContextFields copies identity/tab markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if id, ok := src.Value(identityKey).(schema.IdentityID); ok && id != "" {
		dst = ContextWithIdentity(dst, id)
	}
	if tab, ok := src.Value(tabKey).(schema.TabID); ok && tab != "" {
		dst = ContextWithTab(dst, tab)
	}
	return dst
}
