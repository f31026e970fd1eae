// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Store StoreConfig `toml:"store"`
	Quiz  QuizConfig  `toml:"quiz"`
	Web   WebConfig   `toml:"web"`
}

// StoreConfig maps storage-related settings.
type StoreConfig struct {
	Workbook *string `toml:"workbook"`
	Sheet    *string `toml:"sheet"`
	DB       *string `toml:"db"`
	Results  *string `toml:"results"`
}

// QuizConfig maps quiz-related settings.
type QuizConfig struct {
	BatchSize       *int `toml:"batch-size"`
	ReviewThreshold *int `toml:"review-threshold"`
	// ReviewCooldown is in seconds.
	ReviewCooldown *int `toml:"review-cooldown"`
}

// WebConfig maps HTTP server settings.
type WebConfig struct {
	Addr        *string  `toml:"addr"`
	CORSOrigins []string `toml:"cors-origins"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
