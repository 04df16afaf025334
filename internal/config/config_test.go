package config

import (
	"testing"

	"github.com/maxbolgarin/errm"

	"github.com/williamChen26/ai-code-review/internal/agent"
	"github.com/williamChen26/ai-code-review/internal/provider"
)

func validConfig() Config {
	return Config{
		GitLab: provider.Config{
			Enabled:       true,
			Token:         "glpat-test",
			WebhookSecret: "s3cret",
		},
		Agent: agent.Config{
			APIKey: "sk-test",
		},
	}
}

func TestValidateRequiresProvider(t *testing.T) {
	cfg := validConfig()
	cfg.GitLab.Enabled = false

	if err := cfg.Validate(); !errm.Is(err, ErrNoProviderEnabled) {
		t.Fatalf("expected ErrNoProviderEnabled, got %v", err)
	}
}

func TestValidateEnabledProviderNeedsCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.GitLab.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled provider without token accepted")
	}

	cfg = validConfig()
	cfg.GitLab.WebhookSecret = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled provider without webhook secret accepted")
	}

	// a disabled provider needs nothing
	cfg = validConfig()
	cfg.GitHub = provider.Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled provider should not require credentials: %v", err)
	}
}

func TestValidateAgentNeedsKey(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("agent without api key accepted")
	}
}

func TestValidateAppliesEngineDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.Engine.MaxThinkSteps == 0 || cfg.Engine.SessionTimeout == 0 {
		t.Errorf("engine defaults not applied: %+v", cfg.Engine)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yml"); !errm.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}
