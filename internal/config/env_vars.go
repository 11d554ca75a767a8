package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar      = "PORT"
	appNameVar      = "APP_NAME"
	envNameEnvVar   = "ENV"
	logLevelEnvVar  = "LOG_LEVEL"
	redisURLEnvVar  = "REDIS_URL"
	metricsEnvVar   = "METRICS_ENABLED"
	defaultPort     = "3000"
	defaultAppName  = "Discord OAuth2 Demo"
	defaultEnv      = "DEV"
	defaultLogLevel = "info"
)

type EnvVars struct{}

var (
	_ EnvConfig     = EnvVars{}
	_ StoreConfig   = EnvVars{}
	_ MetricsConfig = EnvVars{}
)

// GetPort returns the listen address in ":port" form.
func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, defaultPort)
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, defaultAppName)
}

func (EnvVars) GetEnv() string {
	return GetEnv(envNameEnvVar, defaultEnv)
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelEnvVar, defaultLogLevel)
}

// GetRedisURL returns the Redis connection URL; empty selects the in-memory session store.
func (EnvVars) GetRedisURL() string {
	return GetEnv(redisURLEnvVar, "")
}

func (EnvVars) GetMetricsEnabled() bool {
	return GetEnvBool(metricsEnvVar, true)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvBool(envVar string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}
