package config

import "time"

const (
	sessionSecretEnvVar  = "SESSION_SECRET"
	sessionTTLEnvVar     = "SESSION_TTL"
	nonceBytesEnvVar     = "NONCE_BYTES"
	rateLimitRPSEnvVar   = "RATE_LIMIT_RPS"
	rateLimitBurstEnvVar = "RATE_LIMIT_BURST"

	// MinNonceBytes is the smallest amount of entropy accepted for a state nonce.
	MinNonceBytes = 20
)

type SecurityConfig interface {
	GetSessionSecret() string
	GetSessionTTL() time.Duration
	GetNonceBytes() int
	GetCodeReuseWindow() time.Duration
	GetRateLimitRPS() int
	GetRateLimitBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionSecret returns the cookie signing secret. Empty means one is generated per process.
func (Security) GetSessionSecret() string {
	return GetEnv(sessionSecretEnvVar, "")
}

func (Security) GetSessionTTL() time.Duration {
	return GetEnvDuration(sessionTTLEnvVar, 24*time.Hour)
}

func (Security) GetNonceBytes() int {
	n := GetEnvInt(nonceBytesEnvVar, 32)
	if n < MinNonceBytes {
		return MinNonceBytes
	}
	return n
}

func (Security) GetCodeReuseWindow() time.Duration {
	return 10 * time.Minute
}

func (Security) GetRateLimitRPS() int {
	return GetEnvInt(rateLimitRPSEnvVar, 5)
}

func (Security) GetRateLimitBurst() int {
	return GetEnvInt(rateLimitBurstEnvVar, 10)
}
