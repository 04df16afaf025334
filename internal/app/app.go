package app

import (
	"context"

	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"

	"github.com/williamChen26/ai-code-review/internal/agent"
	"github.com/williamChen26/ai-code-review/internal/config"
	"github.com/williamChen26/ai-code-review/internal/engine"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
	"github.com/williamChen26/ai-code-review/internal/provider"
	"github.com/williamChen26/ai-code-review/internal/server"
)

// App wires the providers, the agent, the review engine and the webhook
// server together
type App struct {
	providers map[string]interfaces.CodeProvider
	agent     *agent.Agent
	engine    *engine.Engine
	server    *server.Server

	cfg config.Config
	log logze.Logger
}

// New creates the review service
func New(ctx contem.Context, cfg config.Config) (*App, error) {
	app := &App{
		cfg: cfg,
		log: logze.With("component", "app"),
	}

	if err := app.init(ctx, cfg); err != nil {
		return nil, errm.Wrap(err, "failed to initialize service")
	}

	return app, nil
}

// Start starts serving webhooks
func (a *App) Start(ctx context.Context) error {
	if err := a.server.Start(ctx); err != nil {
		return errm.Wrap(err, "failed to start webhook server")
	}
	return nil
}

func (a *App) init(ctx contem.Context, cfg config.Config) (err error) {
	a.providers, err = provider.NewAll(cfg.ProviderConfigs())
	if err != nil {
		return errm.Wrap(err, "failed to create VCS providers")
	}

	a.agent, err = agent.New(ctx, cfg.Agent)
	if err != nil {
		return errm.Wrap(err, "failed to create AI agent")
	}

	registry := engine.NewRegistry(cfg.Engine.RetentionWindow)

	a.engine, err = engine.New(a.providers, a.agent, registry, cfg.Engine)
	if err != nil {
		return errm.Wrap(err, "failed to create review engine")
	}
	ctx.Add(a.engine.Stop)

	a.server, err = server.New(cfg.Server, a.providers, a.engine)
	if err != nil {
		return errm.Wrap(err, "failed to create webhook server")
	}
	ctx.Add(a.server.Stop)

	return nil
}
