package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment overrides for store settings.
const (
	EnvWorkbook = "AZDRILL_WORKBOOK"
	EnvSheet    = "AZDRILL_SHEET"
	EnvDB       = "AZDRILL_DB"
)

// LoadDotEnv loads variables from a .env file without overriding variables
// already set. Missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides file settings with environment variables.
func ApplyEnv(cfg *FileConfig) {
	if v, ok := os.LookupEnv(EnvWorkbook); ok && v != "" {
		cfg.Store.Workbook = &v
	}
	if v, ok := os.LookupEnv(EnvSheet); ok && v != "" {
		cfg.Store.Sheet = &v
	}
	if v, ok := os.LookupEnv(EnvDB); ok && v != "" {
		cfg.Store.DB = &v
	}
}
