// Package config loads sunswitch configuration from the environment and
// from the YAML location file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultUsername     = "admin"
	DefaultPollInterval = 60 * time.Second
	DefaultAPIPort      = 8080
	DefaultLocationPath = "location_config.yaml"
)

// Config holds the device and runtime settings read from the environment.
type Config struct {
	DeviceIP     string
	Username     string
	Password     string
	PollInterval time.Duration
	APIPort      int
	EventWatch   bool
	LocationPath string
}

// Location is a fixed named place the sun times are computed for.
type Location struct {
	Name      string  `yaml:"name"`
	Region    string  `yaml:"region"`
	Timezone  string  `yaml:"timezone"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// FromEnv builds a Config from environment variables. DEVICE_IP and
// DEVICE_PASSWORD are required; everything else has a default.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DeviceIP:     os.Getenv("DEVICE_IP"),
		Username:     os.Getenv("DEVICE_USERNAME"),
		Password:     os.Getenv("DEVICE_PASSWORD"),
		PollInterval: DefaultPollInterval,
		APIPort:      DefaultAPIPort,
		EventWatch:   os.Getenv("EVENT_WATCH") == "true",
		LocationPath: os.Getenv("LOCATION_CONFIG"),
	}

	if cfg.DeviceIP == "" {
		return nil, fmt.Errorf("DEVICE_IP must be set")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("DEVICE_PASSWORD must be set")
	}
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.LocationPath == "" {
		cfg.LocationPath = DefaultLocationPath
	}

	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q", v)
		}
		cfg.PollInterval = time.Duration(secs) * time.Second
	}

	if v := os.Getenv("API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return nil, fmt.Errorf("invalid API_PORT %q", v)
		}
		cfg.APIPort = port
	}

	return cfg, nil
}

// LoadLocation reads and validates the YAML location file.
func LoadLocation(path string) (*Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read location config: %w", err)
	}

	var loc Location
	if err := yaml.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("failed to parse location config: %w", err)
	}

	if loc.Timezone == "" {
		return nil, fmt.Errorf("location config missing timezone")
	}
	if _, err := time.LoadLocation(loc.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", loc.Timezone, err)
	}
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return nil, fmt.Errorf("latitude %v out of range", loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return nil, fmt.Errorf("longitude %v out of range", loc.Longitude)
	}

	return &loc, nil
}
