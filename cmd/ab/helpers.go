package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/marchhare/agileboard/internal/config"
	"github.com/marchhare/agileboard/internal/db"
	"gorm.io/gorm"
)

const defaultConfigPath = "agileboard.yaml"

// connectFromConfig loads the config file and opens the database. A missing
// config file at the default path falls back to built-in defaults (local
// SQLite database).
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	gormDB, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Database.Name, err)
	}

	return cfg, gormDB, nil
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if configPath == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
			return config.Parse(nil)
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
