package config

// ConfigBackend is the persistent store behind `karigar config set`.
// On macOS it is UserDefaults via the `defaults` CLI; elsewhere a JSON
// file under $XDG_CONFIG_HOME.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
