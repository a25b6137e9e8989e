package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key    string
	typ    keyType
	env    string
	secret bool
	// account is the secret store account for secret keys.
	account string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "APPTRACK_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "APPTRACK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "APPTRACK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "APPTRACK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "llm.provider", typ: kString, env: "APPTRACK_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.model", typ: kString, env: "APPTRACK_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.base_url", typ: kString, env: "APPTRACK_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "APPTRACK_LLM_API_KEY",
		secret: true, account: "llm_api_key",
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.timeout_seconds", typ: kInt, env: "APPTRACK_LLM_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.LLM.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.TimeoutSeconds },
	},
	{
		key: "llm.requests_per_minute", typ: kInt, env: "APPTRACK_LLM_REQUESTS_PER_MINUTE",
		apply:   func(cfg *Config, v any) { cfg.LLM.RequestsPerMinute = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.RequestsPerMinute },
	},
	{
		key: "cv.max_upload_mb", typ: kInt, env: "APPTRACK_CV_MAX_UPLOAD_MB",
		apply:   func(cfg *Config, v any) { cfg.CV.MaxUploadMB = v.(int) },
		extract: func(cfg Config) any { return cfg.CV.MaxUploadMB },
	},
	{
		key: "auth.token", typ: kString, env: "APPTRACK_AUTH_TOKEN",
		secret: true, account: "auth_token",
		apply:   func(cfg *Config, v any) { cfg.Auth.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.Token },
	},
	{
		key: "cli.user_id", typ: kInt, env: "APPTRACK_USER_ID",
		apply:   func(cfg *Config, v any) { cfg.CLI.UserID = v.(int) },
		extract: func(cfg Config) any { return cfg.CLI.UserID },
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

// decode converts a raw value from a JSON file, the environment or the
// command line to the key's type.
func (s keySpec) decode(raw any) (any, error) {
	switch s.typ {
	case kInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		case float64:
			if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
				return nil, fmt.Errorf("%s: %v is not a valid integer", s.key, v)
			}
			return int(v), nil
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
			}
			return i, nil
		}
	default:
		switch v := raw.(type) {
		case string:
			return v, nil
		case float64, int, bool:
			return fmt.Sprint(v), nil
		}
	}
	return nil, fmt.Errorf("%s: unexpected value %v", s.key, raw)
}

func applyStore(cfg *Config, st Store) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok := st.Lookup(s.key)
		if !ok {
			continue
		}
		v, err := s.decode(raw)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if s.env == "" || raw == "" {
			continue
		}
		v, err := s.decode(raw)
		if err != nil {
			slog.Warn("ignoring environment override", "var", s.env, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
