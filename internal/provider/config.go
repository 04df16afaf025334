package provider

import (
	"github.com/maxbolgarin/errm"
)

// ProviderType identifies a VCS provider backend
type ProviderType string

const (
	GitLab ProviderType = "gitlab"
	GitHub ProviderType = "github"
)

// Config represents one VCS provider's configuration. A deployment can
// enable any subset of providers, each serving its own webhook route.
type Config struct {
	Enabled       bool   `yaml:"enabled" env:"PROVIDER_ENABLED"`
	BaseURL       string `yaml:"base_url" env:"PROVIDER_BASE_URL"`
	Token         string `yaml:"token" env:"PROVIDER_TOKEN"`
	WebhookSecret string `yaml:"webhook_secret" env:"PROVIDER_WEBHOOK_SECRET"`
	BotUsername   string `yaml:"bot_username" env:"PROVIDER_BOT_USERNAME"`
}

func (c *Config) PrepareAndValidate() error {
	if !c.Enabled {
		return nil
	}
	if c.Token == "" {
		return errm.New("token is required")
	}
	if c.WebhookSecret == "" {
		return errm.New("webhook secret is required")
	}
	return nil
}
