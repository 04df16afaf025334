package provider

import (
	"github.com/maxbolgarin/erro"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
	"github.com/williamChen26/ai-code-review/internal/provider/github"
	"github.com/williamChen26/ai-code-review/internal/provider/gitlab"
)

// New creates a VCS provider of the given type
func New(providerType ProviderType, cfg Config) (interfaces.CodeProvider, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "validate config")
	}

	cfgForProvider := model.ProviderConfig{
		BaseURL:       cfg.BaseURL,
		Token:         cfg.Token,
		WebhookSecret: cfg.WebhookSecret,
		BotUsername:   cfg.BotUsername,
	}

	var provider interfaces.CodeProvider
	var err error

	switch providerType {
	case GitLab:
		provider, err = gitlab.New(cfgForProvider)
	case GitHub:
		provider, err = github.New(cfgForProvider)
	default:
		return nil, erro.New("unsupported provider type: %s", providerType)
	}
	if err != nil {
		return nil, erro.Wrap(err, "failed to create provider")
	}

	return provider, nil
}

// NewAll creates every enabled provider keyed by its type name
func NewAll(configs map[ProviderType]Config) (map[string]interfaces.CodeProvider, error) {
	providers := make(map[string]interfaces.CodeProvider)
	for providerType, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		p, err := New(providerType, cfg)
		if err != nil {
			return nil, erro.Wrap(err, "create "+string(providerType)+" provider")
		}
		providers[string(providerType)] = p
	}
	if len(providers) == 0 {
		return nil, erro.New("no providers enabled")
	}
	return providers, nil
}
