package config

import (
	"errors"
	"fmt"
	"time"
)

type Config interface {
	EnvConfig
	CorsConfig
	ProviderConfig
	SecurityConfig
	StoreConfig
	MetricsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type StoreConfig interface {
	GetRedisURL() string
}

type MetricsConfig interface {
	GetMetricsEnabled() bool
}

type mainConfig struct {
	EnvVars
	Cors
	Provider
	Security
}

var _ Config = mainConfig{}

func New() Config {
	return mainConfig{}
}

// Validate reports the settings without which the service cannot complete a login.
func Validate(c Config) error {
	var errs []error
	if c.GetClientID() == "" {
		errs = append(errs, fmt.Errorf("%s is required", clientIDEnvVar))
	}
	if c.GetClientSecret() == "" {
		errs = append(errs, fmt.Errorf("%s is required", clientSecretEnvVar))
	}
	if c.GetRequestTimeout() <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", requestTimeoutEnvVar))
	}
	if c.GetSessionTTL() < time.Minute {
		errs = append(errs, fmt.Errorf("%s must be at least 1m", sessionTTLEnvVar))
	}
	return errors.Join(errs...)
}
