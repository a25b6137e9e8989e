package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
// Secrets are reported as set or unset, never shown.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		v := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret {
			if v == "" {
				v = "(unset)"
			} else {
				v = "(set)"
			}
		}
		result = append(result, KeyInfo{Key: s.key, EnvVar: s.env, Value: v})
	}
	return result
}

// SetKey writes a config key to config.json. Secret keys go to
// secrets.json instead.
func SetKey(key, value string) error {
	return setKey(openValues(), openSecrets(), key, value)
}

func setKey(values, secrets Store, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return secrets.Set(s.account, value)
	}
	v, err := s.decode(value)
	if err != nil {
		return err
	}
	return values.Set(key, v)
}

// ValidKeys returns the list of config key names.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	return keys
}

// EnsureAuthToken returns cfg.Auth.Token, generating a random token and
// saving it to secrets.json when none is configured yet. The CLI reads it
// back from there.
func EnsureAuthToken(cfg *Config) (string, error) {
	return ensureAuthToken(cfg, openSecrets())
}

func ensureAuthToken(cfg *Config, secrets Store) (string, error) {
	if cfg.Auth.Token != "" {
		return cfg.Auth.Token, nil
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating auth token: %w", err)
	}
	token := hex.EncodeToString(buf)
	if err := secrets.Set("auth_token", token); err != nil {
		return "", fmt.Errorf("storing auth token: %w", err)
	}
	cfg.Auth.Token = token
	return token, nil
}
