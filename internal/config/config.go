package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config is the process configuration, loaded once at startup and
// passed down explicitly. No package-level state.
type Config struct {
	Server struct {
		Host      string `json:"host"`
		Port      int    `json:"port"`
		JWTSecret string `json:"jwtSecret"`
	} `json:"server"`
	Postgres struct {
		DSN string `json:"dsn"`
	} `json:"postgres"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	Qdrant struct {
		URL              string `json:"url"`
		APIKey           string `json:"api_key"`
		MemoryCollection string `json:"memory_collection"`
		ImageCollection  string `json:"image_collection"`
	} `json:"qdrant"`
	Embedding struct {
		TextURL  string `json:"text_url"`
		ImageURL string `json:"image_url"`
	} `json:"embedding"`
	LLM struct {
		URL    string `json:"url"`
		APIKey string `json:"api_key"`
		Model  string `json:"model"`
	} `json:"llm"`
	Transcription struct {
		URL    string `json:"url"`
		APIKey string `json:"api_key"`
		Model  string `json:"model"`
	} `json:"transcription"`
	Decay struct {
		Enabled       bool `json:"enabled"`
		ScheduleHours int  `json:"schedule_hours"`
		BatchSize     int  `json:"batch_size"`
	} `json:"decay"`
}

// Load reads and validates a JSON config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("invalid config format: %w", err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Qdrant.MemoryCollection == "" {
		c.Qdrant.MemoryCollection = "patient_memories"
	}
	if c.Qdrant.ImageCollection == "" {
		c.Qdrant.ImageCollection = "patient_images"
	}
	if c.Decay.ScheduleHours <= 0 {
		c.Decay.ScheduleHours = 24
	}
	if c.Decay.BatchSize <= 0 {
		c.Decay.BatchSize = 100
	}
}

func (c *Config) validate() error {
	if c.Server.JWTSecret == "" {
		return errors.New("jwtSecret must be set in config")
	}
	if c.Qdrant.URL == "" {
		return errors.New("qdrant.url must be set in config")
	}
	if c.Embedding.TextURL == "" {
		return errors.New("embedding.text_url must be set in config")
	}
	return nil
}

// Address returns the host:port the HTTP server binds to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
