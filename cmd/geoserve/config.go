package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/geogismaps/geoadapter/pkg/oauth"
)

// vaultSecretEnv переопределяет секрет из конфига: секрет в YAML удобен
// для dev, в продакшене он приходит из окружения
const vaultSecretEnv = "GEOADAPTER_VAULT_SECRET"

// ServeConfig — конфигурация geoserve
type ServeConfig struct {
	Server   ServerSection   `yaml:"server"`
	Database DatabaseSection `yaml:"database"`
	Redis    RedisSection    `yaml:"redis"`
	Vault    VaultSection    `yaml:"vault"`
	OAuth    *oauth.Config   `yaml:"oauth,omitempty"`
}

// ServerSection — параметры HTTP сервера
type ServerSection struct {
	Name string `yaml:"name"` // имя в стартовом баннере
	Port int    `yaml:"port"` // HTTP порт, по умолчанию 8080
}

// DatabaseSection — хранилище арендаторов
type DatabaseSection struct {
	Driver string `yaml:"driver"` // postgres | sqlite
	DSN    string `yaml:"dsn"`
}

// RedisSection — хранилище OAuth-state; пустой addr = память
type RedisSection struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// VaultSection — мастер-секрет шифрования конфигураций
type VaultSection struct {
	Secret string `yaml:"secret"`
}

// loadConfig читает и валидирует YAML конфиг
func loadConfig(path string) (*ServeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	var cfg ServeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if env := os.Getenv(vaultSecretEnv); env != "" {
		cfg.Vault.Secret = env
	}
	if cfg.Vault.Secret == "" {
		return nil, fmt.Errorf("vault secret is required (vault.secret or %s)", vaultSecretEnv)
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	case "":
		return nil, fmt.Errorf("database driver is required")
	default:
		return nil, fmt.Errorf("unknown database driver %q (postgres/sqlite)", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	if cfg.OAuth != nil {
		if err := cfg.OAuth.Validate(); err != nil {
			return nil, err
		}
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Name == "" {
		cfg.Server.Name = "GeoAdapter Serve"
	}

	return &cfg, nil
}
