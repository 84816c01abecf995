package schema

import (
	"fmt"
	"strings"
)

// ValidateIdentity ensures an identity matches [a-z0-9._-] with no normalization.
func ValidateIdentity(id IdentityID) error {
	raw := string(id)
	if raw == "" {
		return ErrInvalidIdentity
	}
	if strings.TrimSpace(raw) != raw {
		return ErrInvalidIdentity
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidIdentity
	}
	return nil
}

// ValidateTabs checks that every tab has an id and that ids are unique.
func ValidateTabs(tabs []Tab) error {
	seen := make(map[TabID]struct{}, len(tabs))
	for i, tab := range tabs {
		if strings.TrimSpace(string(tab.ID)) == "" {
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidTab, i)
		}
		if _, ok := seen[tab.ID]; ok {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidTab, tab.ID)
		}
		seen[tab.ID] = struct{}{}
	}
	return nil
}
