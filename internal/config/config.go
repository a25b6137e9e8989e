package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// LLM providers.
const (
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
	ProviderNone       = "none"
)

var Providers = []string{ProviderGemini, ProviderOllama, ProviderOpenRouter, ProviderNone}

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	LLM     LLMConfig
	CV      CVConfig
	Auth    AuthConfig
	CLI     CLIConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type LLMConfig struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	TimeoutSeconds    int
	RequestsPerMinute int
}

type CVConfig struct {
	MaxUploadMB int
}

type AuthConfig struct {
	Token string
}

// CLIConfig holds settings of the command-line client and the stdio MCP
// server, which act on behalf of a single user.
type CLIConfig struct {
	UserID int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Provider:          ProviderGemini,
			Model:             "gemini-1.5-flash",
			TimeoutSeconds:    60,
			RequestsPerMinute: 15,
		},
		CV: CVConfig{
			MaxUploadMB: 5,
		},
	}
}

// DefaultModel returns the model used for provider when llm.model is unset.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOllama:
		return "llama3.1"
	case ProviderOpenRouter:
		return "google/gemini-flash-1.5"
	default:
		return "gemini-1.5-flash"
	}
}

// Load reads configuration from config.json, a .env file in the working
// directory, environment variables, and secrets.json, in that order of
// increasing precedence except that secrets only fill keys still unset.
//
// Both JSON files live in $APPTRACK_CONFIG_DIR, or in the apptrack
// directory under the user config directory. Values from .env never
// override variables already set.
func Load() (Config, error) {
	return loadWith(openValues(), openSecrets(), ".env")
}

func loadWith(values, secrets Store, envFiles ...string) (Config, error) {
	cfg := defaults()

	if err := applyStore(&cfg, values); err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(envFiles...); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	for _, s := range specs {
		if !s.secret || s.extract(cfg) != "" {
			continue
		}
		if v, ok := secrets.Lookup(s.account); ok {
			if str, _ := v.(string); str != "" {
				s.apply(&cfg, strings.TrimSpace(str))
			}
		}
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel(cfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(Providers, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider %q must be one of %s", c.LLM.Provider, strings.Join(Providers, ", ")))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.LLM.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_seconds must be positive"))
	}
	if c.LLM.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("llm.requests_per_minute must not be negative"))
	}
	if c.CV.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("cv.max_upload_mb must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// LLMConfigured reports whether the chosen provider has what it needs to
// make calls.
func (c Config) LLMConfigured() bool {
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenRouter:
		return c.LLM.APIKey != ""
	case ProviderOllama:
		return true
	default:
		return false
	}
}
