package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "KARIGAR_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.bind", typ: kString, env: "KARIGAR_SERVER_BIND",
		apply:   func(cfg *Config, v any) { cfg.Server.Bind = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Bind },
	},
	{
		key: "jsonbin.base_url", typ: kString, env: "KARIGAR_JSONBIN_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.JSONBin.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.JSONBin.BaseURL },
	},
	{
		key: "jsonbin.bin_id", typ: kString, env: "KARIGAR_JSONBIN_BIN_ID",
		apply:   func(cfg *Config, v any) { cfg.JSONBin.BinID = v.(string) },
		extract: func(cfg Config) any { return cfg.JSONBin.BinID },
	},
	{
		key: "jsonbin.master_key", typ: kString, env: "KARIGAR_JSONBIN_MASTER_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.JSONBin.MasterKey = v.(string) },
		extract: func(cfg Config) any { return cfg.JSONBin.MasterKey },
	},
	{
		key: "jsonbin.timeout", typ: kString, env: "KARIGAR_JSONBIN_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.JSONBin.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.JSONBin.Timeout },
	},
	{
		key: "jsonbin.versioning", typ: kBool, env: "KARIGAR_JSONBIN_VERSIONING",
		apply:   func(cfg *Config, v any) { cfg.JSONBin.Versioning = v.(bool) },
		extract: func(cfg Config) any { return cfg.JSONBin.Versioning },
	},
	{
		key: "storage.data_dir", typ: kString, env: "KARIGAR_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "KARIGAR_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse converts a raw string into the key's type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (s.typ != kString && raw == "") {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
