package config

import "time"

// Provider holds the settings every provider shares.
type Provider struct {
	// RefreshInterval is the cache lifetime of upstream responses.
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"min=0"`

	// RequestsPerMinute limits upstream calls, 0 means unlimited.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"min=0"`

	// Retries is the number of additional attempts after a failed call.
	Retries int `yaml:"retries" validate:"min=0,max=10"`

	CircuitBreaker CircuitBreaker `yaml:"circuit_breaker"`
}

// CircuitBreaker configures the per-provider breaker.
type CircuitBreaker struct {
	// Failures is the number of consecutive failures that open the breaker.
	Failures uint32 `yaml:"failures"`
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration `yaml:"open_timeout" validate:"min=0"`
}

func (p *Provider) applyDefaults(refresh time.Duration) {
	if p.RefreshInterval == 0 {
		p.RefreshInterval = refresh
	}
	if p.CircuitBreaker.Failures == 0 {
		p.CircuitBreaker.Failures = DefaultBreakerFailures
	}
	if p.CircuitBreaker.OpenTimeout == 0 {
		p.CircuitBreaker.OpenTimeout = DefaultBreakerTimeout
	}
}

// KeyedProvider is a provider that needs an API key.
type KeyedProvider struct {
	APIKey   string `yaml:"api_key" validate:"required"`
	Provider `yaml:",inline"`
}

// Providers lists the provider sections. A nil section disables the provider.
type Providers struct {
	OpenWeather           *KeyedProvider `yaml:"open_weather"`
	Meteoblue             *KeyedProvider `yaml:"meteoblue"`
	Tomorrow              *KeyedProvider `yaml:"tomorrow"`
	DeutscherWetterdienst *Provider      `yaml:"deutscher_wetterdienst"`
	OpenMeteo             *Provider      `yaml:"open_meteo"`
	Nogoodnik             *Provider      `yaml:"nogoodnik"`
}

// Any reports whether at least one provider is enabled.
func (p Providers) Any() bool {
	return len(p.settings()) > 0
}

func (p *Providers) settings() []*Provider {
	var out []*Provider
	for _, kp := range []*KeyedProvider{p.OpenWeather, p.Meteoblue, p.Tomorrow} {
		if kp != nil {
			out = append(out, &kp.Provider)
		}
	}
	for _, s := range []*Provider{p.DeutscherWetterdienst, p.OpenMeteo, p.Nogoodnik} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
