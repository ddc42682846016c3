// Package config loads and validates the service configuration from a JSON
// or YAML file with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Tiimber/ev-smart-charger/core/metrics"
	"github.com/Tiimber/ev-smart-charger/core/model"
	"github.com/Tiimber/ev-smart-charger/infra/mqtt"
)

type Config struct {
	Charger  model.ConfigSettings `json:"charger"`
	Defaults DefaultsConfig       `json:"defaults"`
	Control  ControlConfig        `json:"control"`
	MQTT     mqtt.Config          `json:"mqtt"`
	Metrics  metrics.Config       `json:"metrics"`
	Store    StoreConfig          `json:"store"`
}

// StoreConfig selects the persistence backend. An empty path keeps state in
// memory only.
type StoreConfig struct {
	Path string `json:"path"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("EVSC_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "evsc_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.MQTT.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks all sections.
func (c Config) Validate() error {
	if err := c.Charger.Validate(); err != nil {
		return err
	}
	if _, err := c.Defaults.UserSettings(); err != nil {
		return err
	}
	if err := c.Control.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}
