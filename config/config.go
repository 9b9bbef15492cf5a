// Package config loads client configuration from the environment with sane
// defaults. All settings bind under the TRACELANE_ prefix, e.g.
// TRACELANE_API_URL and TRACELANE_TOKEN.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tracelane/tracelane-go/retry"
	"github.com/tracelane/tracelane-go/typecache"
)

// Config holds everything needed to construct a client. The token is opaque
// credential material injected into the transport; this layer does not
// interpret it.
type Config struct {
	APIURL string
	Token  string

	RequestTimeout time.Duration

	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterRatio   float64

	TypeCacheTTL time.Duration
}

func setDefaults(v *viper.Viper) {
	defaults := retry.DefaultPolicy()
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("retry-max-attempts", defaults.MaxAttempts)
	v.SetDefault("retry-base-delay", defaults.BaseDelay)
	v.SetDefault("retry-max-delay", defaults.MaxDelay)
	v.SetDefault("retry-backoff-factor", defaults.BackoffFactor)
	v.SetDefault("retry-jitter-ratio", defaults.JitterRatio)
	v.SetDefault("type-cache-ttl", typecache.DefaultTTL)
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("tracelane")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		APIURL:         v.GetString("api-url"),
		Token:          v.GetString("token"),
		RequestTimeout: v.GetDuration("request-timeout"),
		MaxAttempts:    v.GetInt("retry-max-attempts"),
		BaseDelay:      v.GetDuration("retry-base-delay"),
		MaxDelay:       v.GetDuration("retry-max-delay"),
		BackoffFactor:  v.GetFloat64("retry-backoff-factor"),
		JitterRatio:    v.GetFloat64("retry-jitter-ratio"),
		TypeCacheTTL:   v.GetDuration("type-cache-ttl"),
	}

	if cfg.APIURL == "" {
		return nil, fmt.Errorf("TRACELANE_API_URL is required")
	}
	return cfg, nil
}

// RetryPolicy converts the configured values into an executor policy.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.BaseDelay > 0 {
		p.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		p.MaxDelay = c.MaxDelay
	}
	if c.BackoffFactor > 0 {
		p.BackoffFactor = c.BackoffFactor
	}
	if c.JitterRatio > 0 {
		p.JitterRatio = c.JitterRatio
	}
	return p
}
