package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CLASSIFIER_TIMEOUT_SECONDS", "")
	t.Setenv("AUTO_TAG_THRESHOLD", "")
	t.Setenv("AUTO_TAG_LABEL", "")
	t.Setenv("AUTO_TAG_TEXT", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("POLICY_FILE", "")

	cfg := Load()
	if cfg.ClassifierTimeout() != 30*time.Second {
		t.Fatalf("expected default classifier timeout 30s, got %s", cfg.ClassifierTimeout())
	}
	if cfg.PostgresDSN != "" {
		t.Fatalf("expected postgres to be optional, got %q", cfg.PostgresDSN)
	}

	policy, err := cfg.AutoTagPolicy()
	if err != nil {
		t.Fatalf("AutoTagPolicy() error = %v", err)
	}
	if policy != domain.DefaultAutoTagPolicy() {
		t.Fatalf("expected default policy, got %+v", policy)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("AUTO_TAG_THRESHOLD", "0.65")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("RETRY_MAX_ATTEMPTS", "not-a-number")

	cfg := Load()
	if cfg.AutoTagThreshold != 0.65 {
		t.Fatalf("expected threshold override, got %v", cfg.AutoTagThreshold)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.APIRateLimitRPS)
	}
	res := cfg.Resilience()
	if res.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if res.RetryMaxAttempts != 3 {
		t.Fatalf("expected invalid value to fall back to 3, got %d", res.RetryMaxAttempts)
	}
}

func TestPolicyFileOverridesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("auto_tag_threshold: 0.9\napplied_tag_text: Mail\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	t.Setenv("POLICY_FILE", path)
	t.Setenv("AUTO_TAG_LABEL", "email")

	policy, err := Load().AutoTagPolicy()
	if err != nil {
		t.Fatalf("AutoTagPolicy() error = %v", err)
	}
	if policy.Threshold != 0.9 || policy.AppliedTag != "Mail" || policy.Label != "email" {
		t.Fatalf("unexpected policy %+v", policy)
	}
}

func TestInvalidPolicyIsRejected(t *testing.T) {
	t.Setenv("POLICY_FILE", "")
	t.Setenv("AUTO_TAG_THRESHOLD", "1.5")

	_, err := Load().AutoTagPolicy()
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPolicyFileParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("auto_tag_threshold: [oops"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := LoadPolicyFile(path, domain.DefaultAutoTagPolicy()); err == nil {
		t.Fatalf("expected parse error")
	}
}
