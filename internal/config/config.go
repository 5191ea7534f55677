package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// LoadConfig reads the YAML file at CONFIG_PATH, when present, and applies
// PORT, DATABASE_URL, REDIS_ADDR and REDIS_PASSWORD from the environment on top.
func LoadConfig() (Config, error) {
	var cfg Config
	cfg.Server.Address = ":4001"
	cfg.Database.Driver = "mysql"

	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	return cfg, nil
}
