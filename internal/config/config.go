package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/resilience"
)

type Config struct {
	APIPort           string
	APIMaxConns       int
	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIQueueTimeoutMS int
	LogLevel          string

	DocrepoURL            string
	DocrepoToken          string
	DocrepoTimeoutSeconds int

	DocexURL                 string
	ClassifierTimeoutSeconds int

	AutoTagThreshold float64
	AutoTagLabel     string
	AutoTagText      string
	PolicyFile       string

	// PostgresDSN is optional. When set, per-document locks are Postgres
	// advisory locks shared by every process.
	PostgresDSN string

	NATSURL             string
	NATSClassifySubject string
	NATSOutcomeSubject  string

	WorkerMetricsPort string

	RetryMaxAttempts        int
	RetryInitialBackoffMS   int
	RetryMaxBackoffMS       int
	BreakerEnabled          bool
	BreakerMinRequests      int
	BreakerFailureRatio     float64
	BreakerOpenTimeoutMS    int
	BreakerHalfOpenMaxCalls int
}

func Load() Config {
	return Config{
		APIPort:           mustEnv("API_PORT", "8080"),
		APIMaxConns:       mustEnvInt("API_MAX_CONNS", 256),
		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIQueueTimeoutMS: mustEnvInt("API_QUEUE_TIMEOUT_MS", 250),
		LogLevel:          mustEnv("LOG_LEVEL", "info"),

		DocrepoURL:            mustEnv("DOCREPO_URL", "http://localhost:8000"),
		DocrepoToken:          mustEnv("DOCREPO_TOKEN", ""),
		DocrepoTimeoutSeconds: mustEnvInt("DOCREPO_TIMEOUT_SECONDS", 30),

		DocexURL:                 mustEnv("DOCEX_URL", "http://localhost:8001"),
		ClassifierTimeoutSeconds: mustEnvInt("CLASSIFIER_TIMEOUT_SECONDS", 30),

		AutoTagThreshold: mustEnvFloat("AUTO_TAG_THRESHOLD", 0.8),
		AutoTagLabel:     mustEnv("AUTO_TAG_LABEL", domain.LabelEmail),
		AutoTagText:      mustEnv("AUTO_TAG_TEXT", "Email"),
		PolicyFile:       mustEnv("POLICY_FILE", ""),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:             mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSClassifySubject: mustEnv("NATS_CLASSIFY_SUBJECT", "docrepo.classification.requested"),
		NATSOutcomeSubject:  mustEnv("NATS_OUTCOME_SUBJECT", "docrepo.classification.finished"),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),

		RetryMaxAttempts:        mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoffMS:   mustEnvInt("RETRY_INITIAL_BACKOFF_MS", 100),
		RetryMaxBackoffMS:       mustEnvInt("RETRY_MAX_BACKOFF_MS", 400),
		BreakerEnabled:          mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:      mustEnvInt("BREAKER_MIN_REQUESTS", 10),
		BreakerFailureRatio:     mustEnvFloat("BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeoutMS:    mustEnvInt("BREAKER_OPEN_TIMEOUT_MS", 30000),
		BreakerHalfOpenMaxCalls: mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 2),
	}
}

func (c Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.ClassifierTimeoutSeconds) * time.Second
}

func (c Config) DocrepoTimeout() time.Duration {
	return time.Duration(c.DocrepoTimeoutSeconds) * time.Second
}

func (c Config) APIQueueTimeout() time.Duration {
	return time.Duration(c.APIQueueTimeoutMS) * time.Millisecond
}

func (c Config) Resilience() resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        c.RetryMaxAttempts,
		RetryInitialBackoff:     time.Duration(c.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(c.RetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:         2.0,
		BreakerEnabled:          c.BreakerEnabled,
		BreakerMinRequests:      uint32(max(c.BreakerMinRequests, 0)),
		BreakerFailureRatio:     c.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(c.BreakerOpenTimeoutMS) * time.Millisecond,
		BreakerHalfOpenMaxCalls: uint32(max(c.BreakerHalfOpenMaxCalls, 0)),
	}
}

// AutoTagPolicy returns the environment policy, overridden field by field
// by POLICY_FILE when it is set.
func (c Config) AutoTagPolicy() (domain.AutoTagPolicy, error) {
	policy := domain.AutoTagPolicy{
		Threshold:  c.AutoTagThreshold,
		Label:      c.AutoTagLabel,
		AppliedTag: c.AutoTagText,
	}
	if c.PolicyFile != "" {
		var err error
		policy, err = LoadPolicyFile(c.PolicyFile, policy)
		if err != nil {
			return domain.AutoTagPolicy{}, err
		}
	}
	if err := policy.Validate(); err != nil {
		return domain.AutoTagPolicy{}, err
	}
	return policy, nil
}

type policyFile struct {
	Threshold  *float64 `yaml:"auto_tag_threshold"`
	Label      *string  `yaml:"auto_tag_label"`
	AppliedTag *string  `yaml:"applied_tag_text"`
}

// LoadPolicyFile reads a YAML policy. Keys missing from the file keep the
// values of base.
func LoadPolicyFile(path string, base domain.AutoTagPolicy) (domain.AutoTagPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.AutoTagPolicy{}, fmt.Errorf("read policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.AutoTagPolicy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if file.Threshold != nil {
		base.Threshold = *file.Threshold
	}
	if file.Label != nil {
		base.Label = *file.Label
	}
	if file.AppliedTag != nil {
		base.AppliedTag = *file.AppliedTag
	}
	return base, nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
