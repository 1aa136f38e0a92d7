package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	platformerrors "nutrilens-server-go/internal/platform/errors"
)

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	t.Setenv("TEST_GROQ_KEY", "gsk-test")
	t.Setenv("USDA_API_KEY", "usda-test")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 8080
log:
  log_level: "DEBUG"
  log_dir: "/tmp/logs"
  log_file: "test.log"
selected_module:
  VLM: GroqVLM
VLM:
  GroqVLM:
    type: groq
    model_name: llama-vision
    api_key: ${TEST_GROQ_KEY}
timeouts:
  vlm: 45s
`

	if err := os.WriteFile(configFile, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	res, err := NewLoader().WithDotEnv(false).WithPath(configFile).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg := res.Config

	if res.Path != configFile {
		t.Errorf("expected path %s, got %s", configFile, res.Path)
	}
	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("expected log level DEBUG, got %s", cfg.Log.Level)
	}
	vc, ok := cfg.SelectedVLM()
	if !ok || vc.APIKey != "gsk-test" {
		t.Errorf("expected expanded api key, got %+v", vc)
	}
	if cfg.Nutrition.APIKey != "usda-test" {
		t.Errorf("expected USDA key from env, got %q", cfg.Nutrition.APIKey)
	}
	if cfg.Timeouts.VLM != 45*time.Second {
		t.Errorf("expected vlm timeout 45s, got %s", cfg.Timeouts.VLM)
	}
	if cfg.Timeouts.Nutrition != 10*time.Second {
		t.Errorf("expected default nutrition timeout to survive merge, got %s", cfg.Timeouts.Nutrition)
	}
	if cfg.Upload.MaxFileSize != 5*1024*1024 {
		t.Errorf("expected default upload cap, got %d", cfg.Upload.MaxFileSize)
	}
}

func TestLoader_MissingCredentialsIsConfigError(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("USDA_API_KEY", "")

	_, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	if !platformerrors.IsKind(err, platformerrors.KindConfig) {
		t.Fatalf("expected config error for missing file, got %v", err)
	}

	t.Setenv(PathEnv, "")
	oldWd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(oldWd)

	_, err = NewLoader().WithDotEnv(false).Load()
	if !platformerrors.IsKind(err, platformerrors.KindConfig) {
		t.Fatalf("expected config error for missing credentials, got %v", err)
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	vc := cfg.VLM["GroqVLM"]
	vc.APIKey = "key"
	cfg.VLM["GroqVLM"] = vc
	cfg.Nutrition.APIKey = "usda"
	return cfg
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid server port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "auth without secret", mutate: func(c *Config) { c.Server.Auth.Enabled = true }, wantErr: true},
		{name: "non-image allow-list", mutate: func(c *Config) { c.Upload.AllowedTypes = []string{"text/plain"} }, wantErr: true},
		{name: "unknown classifier", mutate: func(c *Config) { c.Classifier.Type = "keras" }, wantErr: true},
		{name: "rekognition needs region", mutate: func(c *Config) {
			c.Classifier.Type = "rekognition"
			c.Classifier.Region = ""
		}, wantErr: true},
		{name: "unselected VLM", mutate: func(c *Config) { c.Selected.VLM = "Missing" }, wantErr: true},
		{name: "ollama needs no key", mutate: func(c *Config) { c.Selected.VLM = "OllamaVLM" }},
		{name: "missing nutrition key", mutate: func(c *Config) { c.Nutrition.APIKey = "" }, wantErr: true},
		{name: "unknown cache driver", mutate: func(c *Config) { c.Cache.Driver = "memcached" }, wantErr: true},
		{name: "sqlite cache without dsn", mutate: func(c *Config) {
			c.Cache.Driver = "sqlite"
			c.Cache.SQLite.DSN = ""
		}, wantErr: true},
		{name: "zero max items", mutate: func(c *Config) { c.Aggregation.MaxItems = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := loader.validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !platformerrors.IsKind(err, platformerrors.KindConfig) {
				t.Errorf("expected config kind, got %v", err)
			}
		})
	}
}
