package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidIdentity indicates an invalid identity token.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrInvalidTab indicates a malformed tab record.
	ErrInvalidTab = errors.New("invalid tab")
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrEmptyCatalog indicates the default catalog holds no tabs.
	ErrEmptyCatalog = errors.New("catalog is empty")
)

// AuthError reports that an identity could not be resolved.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	if e == nil || e.Err == nil {
		return "resolve identity"
	}
	return fmt.Sprintf("resolve identity: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// LoadError reports that a stored tab list could not be read or was malformed.
type LoadError struct {
	Identity IdentityID
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load tabs for %q: %v", e.Identity, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError reports that a tab list could not be written.
type SaveError struct {
	Identity IdentityID
	Err      error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save tabs for %q: %v", e.Identity, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
