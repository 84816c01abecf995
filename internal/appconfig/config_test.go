package appconfig

import (
	"strings"
	"testing"
)

func TestDefaultConfigPaths(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	for name, path := range map[string]string{
		"state_dir":   cfg.StateDir,
		"legacy_path": cfg.Storage.LegacyPath,
		"device_file": cfg.Identity.DeviceFile,
		"host_key":    cfg.SSH.HostKeyPath,
		"key_store":   cfg.SSH.KeyStorePath,
		"key_dir":     cfg.SSH.KeyDir,
	} {
		if !strings.Contains(path, ".tabstrip") {
			t.Fatalf("expected %s under .tabstrip, got %q", name, path)
		}
	}
	if !cfg.Storage.Watch || !cfg.UI.Mouse {
		t.Fatalf("expected watch and mouse enabled by default")
	}
}
