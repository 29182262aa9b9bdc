package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	JSONBin JSONBinConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
	Bind string
}

type JSONBinConfig struct {
	BaseURL    string
	BinID      string
	MasterKey  string
	Timeout    string
	Versioning bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

const defaultJSONBinTimeout = 15 * time.Second

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
			Bind: "127.0.0.1",
		},
		JSONBin: JSONBinConfig{
			BaseURL: "https://api.jsonbin.io/v3/b",
			Timeout: defaultJSONBinTimeout.String(),
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Bind, s.Port)
}

// RequestTimeout parses Timeout, falling back to 15s when it is empty or
// invalid.
func (j JSONBinConfig) RequestTimeout() (time.Duration, error) {
	if j.Timeout == "" {
		return defaultJSONBinTimeout, nil
	}
	d, err := time.ParseDuration(j.Timeout)
	if err != nil || d <= 0 {
		return defaultJSONBinTimeout, fmt.Errorf("invalid jsonbin.timeout %q", j.Timeout)
	}
	return d, nil
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.karigar.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/karigar/config.json
// and secrets come from environment variables or the secrets file.
//
// Environment variables (KARIGAR_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

// SecretReader reads platform secrets. Keychain satisfies it.
type SecretReader interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc SecretReader) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.JSONBin.MasterKey == "" {
		if key, err := kc.Get(secretService, "jsonbin_master_key"); err == nil && key != "" {
			cfg.JSONBin.MasterKey = key
		}
	}

	if cfg.JSONBin.MasterKey == "" {
		msg := "missing required config: jsonbin master key. " +
			"Set it via environment variable KARIGAR_JSONBIN_MASTER_KEY" +
			masterKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	cfg.JSONBin.BaseURL = strings.TrimRight(cfg.JSONBin.BaseURL, "/")
	return cfg, nil
}
