package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

// Store is a flat key/value document that config values or secrets are
// persisted in.
type Store interface {
	Lookup(key string) (any, bool)
	Set(key string, v any) error
}

// jsonFile is a Store kept as one JSON object on disk. Every Set rewrites
// the whole file with mode 0600.
type jsonFile struct {
	path string
	data map[string]any
}

// openJSONFile reads path if it exists. A missing file is an empty store; an
// unreadable one is reported and treated as empty so a broken file never
// blocks startup.
func openJSONFile(path string) *jsonFile {
	f := &jsonFile{path: path, data: make(map[string]any)}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f
	}
	if err == nil {
		err = json.Unmarshal(raw, &f.data)
	}
	if err != nil {
		slog.Warn("ignoring config file", "path", path, "error", err)
		f.data = make(map[string]any)
	}
	return f
}

func (f *jsonFile) Lookup(key string) (any, bool) {
	v, ok := f.data[key]
	return v, ok
}

func (f *jsonFile) Set(key string, v any) error {
	f.data[key] = v

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, out, 0o600)
}

// configDir is where config.json and secrets.json live:
// $APPTRACK_CONFIG_DIR if set, otherwise the user config directory
// ($XDG_CONFIG_HOME or ~/.config on Linux, ~/Library/Application Support on
// macOS) plus "apptrack".
func configDir() string {
	if dir := os.Getenv("APPTRACK_CONFIG_DIR"); dir != "" {
		return dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "apptrack-config"
	}
	return filepath.Join(dir, "apptrack")
}

func defaultDataDir() string {
	if runtime.GOOS == "darwin" {
		if dir, err := os.UserConfigDir(); err == nil {
			return filepath.Join(dir, "apptrack")
		}
	}
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "apptrack-data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "apptrack")
}

func openValues() *jsonFile  { return openJSONFile(filepath.Join(configDir(), "config.json")) }
func openSecrets() *jsonFile { return openJSONFile(filepath.Join(configDir(), "secrets.json")) }
