package config

import (
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/maxbolgarin/errm"

	"github.com/williamChen26/ai-code-review/internal/agent"
	"github.com/williamChen26/ai-code-review/internal/engine"
	"github.com/williamChen26/ai-code-review/internal/provider"
	"github.com/williamChen26/ai-code-review/internal/server"
)

// Config represents the main application configuration
type Config struct {
	Server server.Config   `yaml:"server"`
	GitLab provider.Config `yaml:"gitlab" env-prefix:"GITLAB_"`
	GitHub provider.Config `yaml:"github" env-prefix:"GITHUB_"`
	Agent  agent.Config    `yaml:"agent"`
	Engine engine.Config   `yaml:"engine"`
}

// Load reads the configuration from an optional YAML file and the
// environment, then validates it
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, errm.Wrap(ErrConfigNotFound, path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, errm.Wrap(err, "read config file")
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, errm.Wrap(err, "read config from environment")
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks cross-section consistency the per-section validators
// cannot see
func (c *Config) Validate() error {
	if !c.GitLab.Enabled && !c.GitHub.Enabled {
		return ErrNoProviderEnabled
	}
	if err := c.GitLab.PrepareAndValidate(); err != nil {
		return errm.Wrap(err, "gitlab config")
	}
	if err := c.GitHub.PrepareAndValidate(); err != nil {
		return errm.Wrap(err, "github config")
	}
	if err := c.Agent.PrepareAndValidate(); err != nil {
		return errm.Wrap(err, "agent config")
	}
	if err := c.Engine.PrepareAndValidate(); err != nil {
		return errm.Wrap(err, "engine config")
	}
	return nil
}

// ProviderConfigs returns the enabled providers keyed by type
func (c *Config) ProviderConfigs() map[provider.ProviderType]provider.Config {
	return map[provider.ProviderType]provider.Config{
		provider.GitLab: c.GitLab,
		provider.GitHub: c.GitHub,
	}
}
