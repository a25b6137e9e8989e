package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// memStore is an in-memory Store.
type memStore map[string]any

func (m memStore) Lookup(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func (m memStore) Set(key string, v any) error {
	m[key] = v
	return nil
}

// clearEnv blanks every APPTRACK_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
	t.Setenv("APPTRACK_CONFIG_DIR", t.TempDir())
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(memStore{}, memStore{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "127.0.0.1:4100" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.LLM.Provider != ProviderGemini {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, ProviderGemini)
	}
	if cfg.LLM.Model != "gemini-1.5-flash" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.CV.MaxUploadMB != 5 {
		t.Errorf("CV.MaxUploadMB = %d, want 5", cfg.CV.MaxUploadMB)
	}
	if cfg.LLMConfigured() {
		t.Error("gemini without an API key must not count as configured")
	}
}

func TestStoreValues(t *testing.T) {
	clearEnv(t)

	// Numbers arrive as float64 from config.json.
	b := memStore{
		"server.port":         float64(5000),
		"llm.provider":        "ollama",
		"llm.base_url":        "http://gpu-box:11434",
		"storage.data_dir":    "/tmp/apptrack-test",
		"cv.max_upload_mb":    float64(10),
		"llm.timeout_seconds": "30",
	}
	cfg, err := loadWith(b, memStore{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.LLM.Provider != ProviderOllama || cfg.LLM.Model != "llama3.1" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.LLM.BaseURL != "http://gpu-box:11434" {
		t.Errorf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.Storage.DataDir != "/tmp/apptrack-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.CV.MaxUploadMB != 10 || cfg.LLM.TimeoutSeconds != 30 {
		t.Errorf("ints not applied: %+v %+v", cfg.CV, cfg.LLM)
	}
	if !cfg.LLMConfigured() {
		t.Error("ollama needs no key")
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("APPTRACK_SERVER_PORT", "6000")
	t.Setenv("APPTRACK_LLM_API_KEY", "env-key")
	t.Setenv("APPTRACK_LLM_MODEL", "gemini-1.5-pro")

	b := memStore{"server.port": 5000}
	secrets := memStore{"llm_api_key": "stored-key"}
	cfg, err := loadWith(b, secrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("LLM.APIKey = %q, want env-key", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gemini-1.5-pro" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
}

func TestSecretsFallback(t *testing.T) {
	clearEnv(t)

	secrets := memStore{
		"llm_api_key": "stored-secret",
		"auth_token":  " tok\n",
	}
	cfg, err := loadWith(memStore{}, secrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.APIKey != "stored-secret" {
		t.Errorf("LLM.APIKey = %q, want stored-secret", cfg.LLM.APIKey)
	}
	if cfg.Auth.Token != "tok" {
		t.Errorf("Auth.Token = %q, want tok", cfg.Auth.Token)
	}
	if !cfg.LLMConfigured() {
		t.Error("expected gemini with key to be configured")
	}
}

func TestDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("APPTRACK_LOG_LEVEL=debug\nAPPTRACK_SERVER_HOST=0.0.0.0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Variables already set win over .env.
	t.Setenv("APPTRACK_SERVER_HOST", "10.0.0.1")
	t.Cleanup(func() { os.Unsetenv("APPTRACK_LOG_LEVEL") })

	cfg, err := loadWith(memStore{}, memStore{}, path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Server.Host != "10.0.0.1" {
		t.Errorf("Server.Host = %q, want 10.0.0.1", cfg.Server.Host)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("APPTRACK_LLM_PROVIDER", "openai")
	t.Setenv("APPTRACK_CV_MAX_UPLOAD_MB", "0")

	_, err := loadWith(memStore{}, memStore{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"llm.provider", "cv.max_upload_mb"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestSetKey(t *testing.T) {
	values, secrets := memStore{}, memStore{}

	if err := setKey(values, secrets, "server.port", "4200"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if values["server.port"] != 4200 {
		t.Errorf("server.port = %v", values["server.port"])
	}
	if err := setKey(values, secrets, "server.port", "high"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(values, secrets, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSetKey_SecretGoesToSecretStore(t *testing.T) {
	values, secrets := memStore{}, memStore{}

	if err := setKey(values, secrets, "llm.api_key", "sk-123"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if _, ok := values["llm.api_key"]; ok {
		t.Error("secret must not be written to config.json")
	}
	if secrets["llm_api_key"] != "sk-123" {
		t.Errorf("secrets = %v", secrets)
	}
}

func TestEnsureAuthToken(t *testing.T) {
	secrets := memStore{}

	cfg := Config{}
	tok, err := ensureAuthToken(&cfg, secrets)
	if err != nil {
		t.Fatalf("ensureAuthToken: %v", err)
	}
	if len(tok) != 48 || cfg.Auth.Token != tok {
		t.Errorf("token = %q, cfg = %q", tok, cfg.Auth.Token)
	}
	again, _ := ensureAuthToken(&cfg, secrets)
	if again != tok {
		t.Error("existing token must be kept")
	}
	if secrets["auth_token"] != tok {
		t.Errorf("stored token = %v", secrets["auth_token"])
	}
}

func TestJSONFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	f := openJSONFile(path)
	if err := f.Set("server.port", 4300); err != nil {
		t.Fatalf("Set: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	v, ok := openJSONFile(path).Lookup("server.port")
	if !ok || v != float64(4300) {
		t.Errorf("reloaded server.port = %v (%T)", v, v)
	}
}

func TestJSONFile_CorruptIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	f := openJSONFile(path)
	if _, ok := f.Lookup("server.port"); ok {
		t.Error("corrupt file must read as empty")
	}
	if err := f.Set("log.level", "debug"); err != nil {
		t.Fatalf("Set on corrupt file: %v", err)
	}
	if v, _ := openJSONFile(path).Lookup("log.level"); v != "debug" {
		t.Errorf("log.level = %v", v)
	}
}

func TestLoad_ConfigDir(t *testing.T) {
	clearEnv(t)
	t.Setenv("APPTRACK_CONFIG_DIR", t.TempDir())

	if err := SetKey("server.port", "4300"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if err := SetKey("llm.api_key", "sk-file"); err != nil {
		t.Fatalf("SetKey secret: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4300 {
		t.Errorf("Server.Port = %d, want 4300", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "sk-file" {
		t.Errorf("LLM.APIKey = %q", cfg.LLM.APIKey)
	}
}

func TestDecode(t *testing.T) {
	port, _ := lookupSpec("server.port")
	host, _ := lookupSpec("server.host")

	tests := []struct {
		spec    keySpec
		raw     any
		want    any
		wantErr bool
	}{
		{port, float64(80), 80, false},
		{port, " 81 ", 81, false},
		{port, 82, 82, false},
		{port, 1.5, nil, true},
		{port, "x", nil, true},
		{port, true, nil, true},
		{host, "localhost", "localhost", false},
		{host, float64(7), "7", false},
		{host, []any{}, nil, true},
	}
	for _, tt := range tests {
		got, err := tt.spec.decode(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s.decode(%v) error = %v, wantErr %v", tt.spec.key, tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%s.decode(%v) = %v, want %v", tt.spec.key, tt.raw, got, tt.want)
		}
	}
}

func TestShowAll_HidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.LLM.APIKey = "sk-secret"

	for _, k := range ShowAll(cfg) {
		if strings.Contains(k.Value, "sk-secret") {
			t.Errorf("secret leaked in %s", k.Key)
		}
		if k.Key == "llm.api_key" && k.Value != "(set)" {
			t.Errorf("llm.api_key shown as %q", k.Value)
		}
		if k.Key == "auth.token" && k.Value != "(unset)" {
			t.Errorf("auth.token shown as %q", k.Value)
		}
	}
	if len(ValidKeys()) != len(specs) {
		t.Error("ValidKeys should list every key")
	}
}
