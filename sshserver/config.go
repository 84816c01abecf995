package sshserver

// Config defines SSH server settings.
type Config struct {
	Addr               string
	HostKeyPath        string
	KeyStorePath       string
	KeyDir             string
	AuthorizedKeysPath string
	Mouse              bool
}
