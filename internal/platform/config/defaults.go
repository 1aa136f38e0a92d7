package config

import "time"

// DefaultConfig returns the built-in configuration that config.yaml is merged over.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8000,
			Auth: AuthConfig{
				Enabled: false,
				TTL:     24 * time.Hour,
			},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Upload: UploadConfig{
			MaxFileSize: 5 * 1024 * 1024,
			AllowedTypes: []string{
				"image/jpeg",
				"image/png",
				"image/gif",
				"image/webp",
			},
			MaxWidth:  4096,
			MaxHeight: 4096,
			MaxPixels: 16 * 1024 * 1024,
		},
		Classifier: ClassifierConfig{
			Type:          "tfserving",
			URL:           "http://localhost:8501",
			Model:         "food_classifier",
			Region:        "us-east-1",
			MinConfidence: 50,
		},
		Selected: SelectedConfig{
			VLM: "GroqVLM",
		},
		VLM: map[string]VLMConfig{
			"GroqVLM": {
				Type:        "groq",
				ModelName:   "meta-llama/llama-4-scout-17b-16e-instruct",
				Temperature: 0.2,
				MaxTokens:   1024,
				TopP:        1,
			},
			"OllamaVLM": {
				Type:      "ollama",
				ModelName: "llava",
				BaseURL:   "http://localhost:11434",
			},
		},
		Nutrition: NutritionConfig{
			BaseURL:       "https://api.nal.usda.gov/fdc/v1",
			PageSize:      1,
			RatePerSecond: 5,
			Burst:         5,
		},
		Cache: CacheConfig{
			Driver: "memory",
			TTL:    24 * time.Hour,
			SQLite: SQLiteCache{DSN: "data/nutrition_cache.db"},
			Redis:  RedisCache{Addr: "127.0.0.1:6379", Prefix: "nutrition:lookup:"},
		},
		Aggregation: AggregationConfig{
			MaxItems: 10,
		},
		Timeouts: TimeoutConfig{
			Classifier: 10 * time.Second,
			VLM:        60 * time.Second,
			Nutrition:  10 * time.Second,
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Events: EventsConfig{
			Workers:   4,
			QueueSize: 256,
		},
	}
}
