// Package secret defines the narrow credential-store contract used by the
// connection registry. Passwords live behind this interface, decoupled from
// plain config persistence; the default implementation is the state store's
// secrets table, but hosts may supply an OS keychain instead.
package secret

// Store holds secrets by key.
type Store interface {
	SetSecret(key, value string) error
	Secret(key string) (string, error)
	DeleteSecret(key string) error
}

// ConnectionPasswordKey returns the secret key holding the password for a
// connection id.
func ConnectionPasswordKey(connectionID string) string {
	return "mssqlmgr.connection." + connectionID
}
