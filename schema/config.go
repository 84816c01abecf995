package schema

// ServiceConfig defines the inputs of the core service.
type ServiceConfig struct {
	// Catalog is the ordered default tab list new identities are seeded with.
	Catalog []Tab
	// DisableWatch turns off out-of-band change subscriptions.
	DisableWatch bool
}

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if len(cfg.Catalog) == 0 {
		return ServiceConfig{}, ErrEmptyCatalog
	}
	if err := ValidateTabs(cfg.Catalog); err != nil {
		return ServiceConfig{}, err
	}
	cfg.Catalog = CloneTabs(cfg.Catalog)
	return cfg, nil
}
