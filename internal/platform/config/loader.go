package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "nutrilens-server-go/internal/platform/errors"
)

const (
	// PathEnv overrides the config file location.
	PathEnv     = "NUTRILENS_CONFIG"
	defaultPath = "config.yaml"
)

// Provider types accepted under the VLM section.
var supportedVLMTypes = map[string]bool{
	"openai":     true,
	"groq":       true,
	"openrouter": true,
	"ollama":     true,
}

// Loader reads config.yaml over DefaultConfig and validates the result.
type Loader struct {
	useDotEnv bool
	path      string
}

func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the config file path, bypassing NUTRILENS_CONFIG.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path. Path is empty when
// no file was found and defaults plus environment were used.
type Result struct {
	Config *Config
	Path   string
}

func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// a missing .env is normal; the process environment still applies
		_ = godotenv.Load()
	}

	path := l.resolvePath()
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "failed to parse "+path, err)
		}
	case os.IsNotExist(err) && l.path == "" && os.Getenv(PathEnv) == "":
		path = ""
	default:
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "failed to read "+path, err)
	}

	applyEnvFallbacks(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) resolvePath() string {
	if l.path != "" {
		return l.path
	}
	if p := strings.TrimSpace(os.Getenv(PathEnv)); p != "" {
		return p
	}
	return defaultPath
}

// applyEnvFallbacks fills credentials left empty in the file from well-known variables.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Nutrition.APIKey == "" {
		cfg.Nutrition.APIKey = os.Getenv("USDA_API_KEY")
	}
	envByType := map[string]string{
		"openai":     "OPENAI_API_KEY",
		"groq":       "GROQ_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
	}
	for name, vc := range cfg.VLM {
		if vc.APIKey != "" {
			continue
		}
		if env, ok := envByType[strings.ToLower(vc.Type)]; ok {
			vc.APIKey = os.Getenv(env)
			cfg.VLM[name] = vc
		}
	}
}

func (l *Loader) validate(cfg *Config) error {
	fail := func(msg string) error {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", msg)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fail(fmt.Sprintf("invalid server port: %d", cfg.Server.Port))
	}
	if cfg.Server.Auth.Enabled && strings.TrimSpace(cfg.Server.Auth.Secret) == "" {
		return fail("server.auth.secret is required when auth is enabled")
	}

	if cfg.Upload.MaxFileSize <= 0 {
		return fail("upload.max_file_size must be positive")
	}
	if len(cfg.Upload.AllowedTypes) == 0 {
		return fail("upload.allowed_types must not be empty")
	}
	for _, mt := range cfg.Upload.AllowedTypes {
		if !strings.HasPrefix(strings.ToLower(mt), "image/") {
			return fail("upload.allowed_types only accepts image media types, got " + mt)
		}
	}

	switch strings.ToLower(cfg.Classifier.Type) {
	case "tfserving":
		if cfg.Classifier.URL == "" || cfg.Classifier.Model == "" {
			return fail("classifier.url and classifier.model are required for tfserving")
		}
	case "rekognition":
		if cfg.Classifier.Region == "" {
			return fail("classifier.region is required for rekognition")
		}
	default:
		return fail("unsupported classifier type: " + cfg.Classifier.Type)
	}

	vc, ok := cfg.SelectedVLM()
	if !ok {
		return fail("selected VLM provider not configured: " + cfg.Selected.VLM)
	}
	vlmType := strings.ToLower(vc.Type)
	if !supportedVLMTypes[vlmType] {
		return fail("unsupported VLM type: " + vc.Type)
	}
	if vc.ModelName == "" {
		return fail("VLM model_name is required")
	}
	if vlmType != "ollama" && vc.APIKey == "" {
		return fail("VLM api_key is required for " + vc.Type)
	}

	if cfg.Nutrition.BaseURL == "" {
		return fail("nutrition.base_url is required")
	}
	if cfg.Nutrition.APIKey == "" {
		return fail("nutrition.api_key is required")
	}

	switch strings.ToLower(cfg.Cache.Driver) {
	case "", "none", "memory":
	case "sqlite":
		if strings.TrimSpace(cfg.Cache.SQLite.DSN) == "" {
			return fail("cache.sqlite.dsn is required for the sqlite driver")
		}
	case "redis":
		if cfg.Cache.Redis.Addr == "" {
			return fail("cache.redis.addr is required for the redis driver")
		}
	default:
		return fail("unsupported cache driver: " + cfg.Cache.Driver)
	}

	if cfg.Aggregation.MaxItems <= 0 {
		return fail("aggregation.max_items must be positive")
	}
	if cfg.Timeouts.Classifier <= 0 || cfg.Timeouts.VLM <= 0 || cfg.Timeouts.Nutrition <= 0 {
		return fail("timeouts must be positive")
	}

	return nil
}
