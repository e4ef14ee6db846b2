// Package config loads and validates the exporter's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Load.
const (
	DefaultAddress         = "0.0.0.0"
	DefaultPort            = 36333
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultRefreshInterval = 10 * time.Minute
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = time.Minute
)

var (
	// ErrNoProviders means no provider section is enabled.
	ErrNoProviders = errors.New("at least one provider must be configured")
	// ErrEmptyAuth means an auth section is present but lists no users.
	ErrEmptyAuth = errors.New("auth section must list at least one user")
	// ErrLocationWithoutPosition means a location has neither coordinates nor
	// an address.
	ErrLocationWithoutPosition = errors.New("location needs latitude and longitude or an address")
)

var validate = validator.New()

// Config is the root of the configuration file.
type Config struct {
	HTTP HTTP `yaml:"http"`

	// Auth maps usernames to bcrypt hashes. Nil disables authentication.
	Auth map[string]string `yaml:"auth" validate:"omitempty,dive,required"`

	Geocoding Geocoding `yaml:"geocoding"`

	Providers Providers `yaml:"providers"`

	Locations map[string]Location `yaml:"locations" validate:"required,min=1,dive"`
}

// AuthRequired reports whether an auth section was given.
func (c *Config) AuthRequired() bool {
	return c.Auth != nil
}

// HTTP configures the server and the shared upstream client.
type HTTP struct {
	Address         string        `yaml:"address" validate:"required"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout" validate:"min=0"`
	// Workers bounds concurrent provider tasks per scrape, 0 means unbounded.
	Workers int `yaml:"workers" validate:"min=0"`
}

// ListenAddress returns address:port.
func (h HTTP) ListenAddress() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}

// Geocoding configures address resolution.
type Geocoding struct {
	APIKey string `yaml:"api_key"`
}

// Load reads, expands, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} with the value of VAR. A bare $ is kept, bcrypt
// hashes contain them.
func expandEnv(raw []byte) []byte {
	return envReference.ReplaceAllFunc(raw, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// Parse decodes a configuration document. ${VAR} references are expanded from
// the environment before decoding.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnv(raw), &cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = DefaultAddress
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultPort
	}
	if c.HTTP.UpstreamTimeout == 0 {
		c.HTTP.UpstreamTimeout = DefaultUpstreamTimeout
	}

	for _, p := range c.Providers.settings() {
		p.applyDefaults(DefaultRefreshInterval)
	}
	// Nogoodnik never caches.
	if c.Providers.Nogoodnik != nil {
		c.Providers.Nogoodnik.RefreshInterval = 0
	}
}

// Validate checks struct tags and the rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.AuthRequired() && len(c.Auth) == 0 {
		return ErrEmptyAuth
	}
	if !c.Providers.Any() {
		return ErrNoProviders
	}

	for name, loc := range c.Locations {
		if name == "" {
			return fmt.Errorf("location names must not be empty")
		}
		if err := loc.validate(); err != nil {
			return fmt.Errorf("location %q: %w", name, err)
		}
	}
	return nil
}
