package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"pkt.systems/tabstrip/schema"
)

// LegacyFile is the pre-identity store: one file holding a bare JSON array of tabs.
type LegacyFile struct {
	Path string
}

// Read returns the legacy list. A missing, blank, or empty-array file reports false.
func (l LegacyFile) Read(context.Context) ([]schema.Tab, bool, error) {
	if strings.TrimSpace(l.Path) == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, false, nil
	}
	var tabs []schema.Tab
	if err := json.Unmarshal(data, &tabs); err != nil {
		return nil, false, fmt.Errorf("parse legacy tabs %s: %w", l.Path, err)
	}
	if err := schema.ValidateTabs(tabs); err != nil {
		return nil, false, fmt.Errorf("legacy tabs %s: %w", l.Path, err)
	}
	if len(tabs) == 0 {
		return nil, false, nil
	}
	return tabs, true, nil
}

// Erase removes the legacy file.
func (l LegacyFile) Erase(context.Context) error {
	if strings.TrimSpace(l.Path) == "" {
		return nil
	}
	if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Write stores tabs as a legacy array. Used to stage legacy data.
func (l LegacyFile) Write(tabs []schema.Tab) error {
	if tabs == nil {
		tabs = []schema.Tab{}
	}
	data, err := json.Marshal(tabs)
	if err != nil {
		return err
	}
	return os.WriteFile(l.Path, data, 0o600)
}
