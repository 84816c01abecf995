package httpapi

// Config defines HTTP API settings.
type Config struct {
	Addr             string
	IdentityCookie   string
	IdentityTTLHours int
	BasePath         string
	// SessionFile persists sign-ins across restarts when set.
	SessionFile string
}
