package config

import (
	"time"
)

type Config struct {
	Server      ServerConfig         `yaml:"server"`
	Log         LogConfig            `yaml:"log"`
	Web         WebConfig            `yaml:"web"`
	Upload      UploadConfig         `yaml:"upload"`
	Classifier  ClassifierConfig     `yaml:"classifier"`
	Selected    SelectedConfig       `yaml:"selected_module"`
	VLM         map[string]VLMConfig `yaml:"VLM"`
	Nutrition   NutritionConfig      `yaml:"nutrition"`
	Cache       CacheConfig          `yaml:"cache"`
	Aggregation AggregationConfig    `yaml:"aggregation"`
	Timeouts    TimeoutConfig        `yaml:"timeouts"`
	MCP         MCPConfig            `yaml:"mcp"`
	Events      EventsConfig         `yaml:"events"`
}

type ServerConfig struct {
	IP   string     `yaml:"ip"`
	Port int        `yaml:"port"`
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig guards the analyze endpoints with HS256 bearer tokens when enabled.
type AuthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Secret  string        `yaml:"secret"`
	TTL     time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	StaticDir   string   `yaml:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// UploadConfig bounds what the intake accepts before any stage runs.
type UploadConfig struct {
	MaxFileSize  int64    `yaml:"max_file_size"`
	AllowedTypes []string `yaml:"allowed_types"`
	MaxWidth     int      `yaml:"max_width"`
	MaxHeight    int      `yaml:"max_height"`
	MaxPixels    int64    `yaml:"max_pixels"`
	TempDir      string   `yaml:"temp_dir"`
}

// ClassifierConfig selects the food gate scorer: "tfserving" or "rekognition".
type ClassifierConfig struct {
	Type          string  `yaml:"type"`
	URL           string  `yaml:"url"`
	Model         string  `yaml:"model"`
	Region        string  `yaml:"region"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type VLMConfig struct {
	Type        string  `yaml:"type"`
	ModelName   string  `yaml:"model_name"`
	BaseURL     string  `yaml:"url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float64 `yaml:"top_p"`
}

type SelectedConfig struct {
	VLM string `yaml:"VLM"`
}

type NutritionConfig struct {
	BaseURL       string  `yaml:"base_url"`
	APIKey        string  `yaml:"api_key"`
	PageSize      int     `yaml:"page_size"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// CacheConfig selects the lookup cache driver: "memory", "sqlite", "redis" or "none".
type CacheConfig struct {
	Driver string        `yaml:"driver"`
	TTL    time.Duration `yaml:"ttl"`
	SQLite SQLiteCache   `yaml:"sqlite"`
	Redis  RedisCache    `yaml:"redis"`
}

type SQLiteCache struct {
	DSN string `yaml:"dsn"`
}

type RedisCache struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type AggregationConfig struct {
	MaxItems int `yaml:"max_items"`
}

type TimeoutConfig struct {
	Classifier time.Duration `yaml:"classifier"`
	VLM        time.Duration `yaml:"vlm"`
	Nutrition  time.Duration `yaml:"nutrition"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// EventsConfig sizes the async lifecycle event dispatcher.
type EventsConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// SelectedVLM returns the provider config chosen by selected_module.VLM.
func (c *Config) SelectedVLM() (VLMConfig, bool) {
	if c == nil || c.VLM == nil {
		return VLMConfig{}, false
	}
	vc, ok := c.VLM[c.Selected.VLM]
	return vc, ok
}
