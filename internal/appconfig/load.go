package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/tabstrip/schema"
)

// EnvPrefix prefixes environment overrides, e.g. TABSTRIP_STORAGE_BACKEND.
const EnvPrefix = "TABSTRIP"

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("catalog_file", cfg.CatalogFile)
	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.legacy_path", cfg.Storage.LegacyPath)
	v.SetDefault("storage.watch", cfg.Storage.Watch)
	v.SetDefault("storage.poll_interval_ms", cfg.Storage.PollIntervalMS)
	v.SetDefault("identity.account", cfg.Identity.Account)
	v.SetDefault("identity.device_file", cfg.Identity.DeviceFile)
	v.SetDefault("layout.pinned_width", cfg.Layout.PinnedWidth)
	v.SetDefault("layout.tab_width", cfg.Layout.TabWidth)
	v.SetDefault("layout.reserve", cfg.Layout.Reserve)
	v.SetDefault("ui.theme", cfg.UI.Theme)
	v.SetDefault("ui.mouse", cfg.UI.Mouse)
	v.SetDefault("ui.location", cfg.UI.Location)
	v.SetDefault("ui.log_file", cfg.UI.LogFile)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("ssh.key_store_path", cfg.SSH.KeyStorePath)
	v.SetDefault("ssh.key_dir", cfg.SSH.KeyDir)
	v.SetDefault("ssh.authorized_keys_path", cfg.SSH.AuthorizedKeysPath)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.identity_cookie", cfg.HTTP.IdentityCookie)
	v.SetDefault("http.identity_ttl_hours", cfg.HTTP.IdentityTTLHours)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Storage.Backend {
	case BackendFile:
	case BackendSQLite:
		if strings.TrimSpace(cfg.Storage.SQLitePath) == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unsupported storage.backend %q", cfg.Storage.Backend)
	}
	if _, ok := schema.NormalizeThemeName(cfg.UI.Theme); !ok {
		return fmt.Errorf("unsupported ui.theme %q", cfg.UI.Theme)
	}
	if cfg.Layout.PinnedWidth < 0 || cfg.Layout.TabWidth < 0 || cfg.Layout.Reserve < 0 {
		return fmt.Errorf("layout widths must not be negative")
	}
	if strings.TrimSpace(cfg.SSH.KeyStorePath) != "" && strings.TrimSpace(cfg.SSH.KeyDir) == "" {
		return fmt.Errorf("ssh.key_dir is required with ssh.key_store_path")
	}
	basePath := strings.TrimSpace(cfg.HTTP.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.CatalogFile = expandEnv(cfg.CatalogFile)
	cfg.Storage.SQLitePath = expandEnv(cfg.Storage.SQLitePath)
	cfg.Storage.LegacyPath = expandEnv(cfg.Storage.LegacyPath)
	cfg.Identity.DeviceFile = expandEnv(cfg.Identity.DeviceFile)
	cfg.UI.LogFile = expandEnv(cfg.UI.LogFile)
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
	cfg.SSH.KeyStorePath = expandEnv(cfg.SSH.KeyStorePath)
	cfg.SSH.KeyDir = expandEnv(cfg.SSH.KeyDir)
	cfg.SSH.AuthorizedKeysPath = expandEnv(cfg.SSH.AuthorizedKeysPath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
