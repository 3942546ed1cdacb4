// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	Server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`

	Database struct {
		Path     string `json:"path"`
		InMemory bool   `json:"in_memory"`
	} `json:"database"`

	Cache struct {
		Size int `json:"size"` // decoded blame records kept in memory
	} `json:"cache"`

	Compression struct {
		MinSize int `json:"min_size"`
		Level   int `json:"level"`
	} `json:"compression"`

	Environment string `json:"environment"` // dev, prod
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080
	cfg.Database.Path = ".blamer"
	cfg.Cache.Size = 256
	cfg.Compression.MinSize = 4 * 1024
	cfg.Compression.Level = 2
	cfg.Environment = "development"
	cfg.LogLevel = "info"
	return &cfg
}

// Path returns the config file for the environment named by BLAMER_ENV.
func Path() string {
	env := os.Getenv("BLAMER_ENV")
	if env == "" {
		env = "development"
	}
	return fmt.Sprintf("config/config.%s.json", env)
}

// Load reads path on top of Default, so absent keys keep their defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return config, nil
}
