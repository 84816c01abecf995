package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/tabstrip/internal/layout"
	"pkt.systems/tabstrip/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	CatalogFile   string         `mapstructure:"catalog_file" yaml:"catalog_file"`
	Storage       StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Identity      IdentityConfig `mapstructure:"identity" yaml:"identity"`
	Layout        LayoutConfig   `mapstructure:"layout" yaml:"layout"`
	UI            UIConfig       `mapstructure:"ui" yaml:"ui"`
	SSH           SSHConfig      `mapstructure:"ssh" yaml:"ssh"`
	HTTP          HTTPConfig     `mapstructure:"http" yaml:"http"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// StorageConfig selects where tab lists are stored.
type StorageConfig struct {
	Backend        string `mapstructure:"backend" yaml:"backend"`
	SQLitePath     string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	LegacyPath     string `mapstructure:"legacy_path" yaml:"legacy_path"`
	Watch          bool   `mapstructure:"watch" yaml:"watch"`
	PollIntervalMS int    `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// IdentityConfig controls local identity resolution.
type IdentityConfig struct {
	// Account is used when set; otherwise an anonymous device token is minted.
	Account    string `mapstructure:"account" yaml:"account"`
	DeviceFile string `mapstructure:"device_file" yaml:"device_file"`
}

// LayoutConfig holds the width estimates in terminal cells.
type LayoutConfig struct {
	PinnedWidth int `mapstructure:"pinned_width" yaml:"pinned_width"`
	TabWidth    int `mapstructure:"tab_width" yaml:"tab_width"`
	Reserve     int `mapstructure:"reserve" yaml:"reserve"`
}

// UIConfig controls the terminal tab bar.
type UIConfig struct {
	Theme    string `mapstructure:"theme" yaml:"theme"`
	Mouse    bool   `mapstructure:"mouse" yaml:"mouse"`
	Location string `mapstructure:"location" yaml:"location"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// SSHConfig configures the SSH server.
type SSHConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// HostKeyPath is a plain PEM host key, used when KeyStorePath is empty.
	HostKeyPath string `mapstructure:"host_key_path" yaml:"host_key_path"`
	// KeyStorePath holds the root key that encrypts host keys under KeyDir.
	KeyStorePath       string `mapstructure:"key_store_path" yaml:"key_store_path"`
	KeyDir             string `mapstructure:"key_dir" yaml:"key_dir"`
	AuthorizedKeysPath string `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr             string `mapstructure:"addr" yaml:"addr"`
	IdentityCookie   string `mapstructure:"identity_cookie" yaml:"identity_cookie"`
	IdentityTTLHours int    `mapstructure:"identity_ttl_hours" yaml:"identity_ttl_hours"`
	BasePath         string `mapstructure:"base_path" yaml:"base_path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	root := filepath.Join(home, ".tabstrip")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(root, "state"),
		CatalogFile:   "",
		Storage: StorageConfig{
			Backend:        BackendFile,
			SQLitePath:     filepath.Join(root, "tabs.db"),
			LegacyPath:     filepath.Join(root, "tabs-layout.json"),
			Watch:          true,
			PollIntervalMS: 1000,
		},
		Identity: IdentityConfig{
			Account:    "",
			DeviceFile: filepath.Join(root, "device"),
		},
		Layout: LayoutConfig{
			PinnedWidth: layout.DefaultPinnedWidth,
			TabWidth:    layout.DefaultTabWidth,
			Reserve:     layout.DefaultReserve,
		},
		UI: UIConfig{
			Theme:    string(schema.DefaultTheme),
			Mouse:    true,
			Location: "",
			LogFile:  filepath.Join(root, "tabstrip.log"),
		},
		SSH: SSHConfig{
			Addr:               ":27522",
			HostKeyPath:        filepath.Join(root, "ssh_host_key"),
			KeyStorePath:       filepath.Join(root, "ssh", "keys.bundle"),
			KeyDir:             filepath.Join(root, "ssh", "keys"),
			AuthorizedKeysPath: filepath.Join(root, "authorized_keys"),
		},
		HTTP: HTTPConfig{
			Addr:             ":27580",
			IdentityCookie:   "tabstrip_identity",
			IdentityTTLHours: 24 * 365,
			BasePath:         "",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tabstrip", "config.yaml"), nil
}
