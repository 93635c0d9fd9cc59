package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Remote  RemoteConfig  `yaml:"remote"`
	Events  EventsConfig  `yaml:"events"`
}

type ServerConfig struct {
	URL string `yaml:"url"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type RemoteConfig struct {
	RequestTimeout string `yaml:"request_timeout"`
}

type EventsConfig struct {
	DialTimeout  string `yaml:"dial_timeout"`
	ReconnectMin string `yaml:"reconnect_min"`
	ReconnectMax string `yaml:"reconnect_max"`
}

func (c *RemoteConfig) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

func (c *EventsConfig) GetDialTimeout() time.Duration {
	d, err := time.ParseDuration(c.DialTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

func (c *EventsConfig) GetReconnectMin() time.Duration {
	d, err := time.ParseDuration(c.ReconnectMin)
	if err != nil {
		return time.Second
	}
	return d
}

func (c *EventsConfig) GetReconnectMax() time.Duration {
	d, err := time.ParseDuration(c.ReconnectMax)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Load reads a YAML config file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	setDefaults(&cfg)

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./data/client.db"
	}
	if cfg.Remote.RequestTimeout == "" {
		cfg.Remote.RequestTimeout = "10s"
	}
	if cfg.Events.DialTimeout == "" {
		cfg.Events.DialTimeout = "10s"
	}
	if cfg.Events.ReconnectMin == "" {
		cfg.Events.ReconnectMin = "1s"
	}
	if cfg.Events.ReconnectMax == "" {
		cfg.Events.ReconnectMax = "30s"
	}
}
