package server

import (
	"context"
	"net/http"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/servex/v2"

	"github.com/williamChen26/ai-code-review/internal/engine"
	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

// authHeader names the webhook credential header per provider
var authHeader = map[string]string{
	"gitlab": "X-Gitlab-Token",
	"github": "X-Hub-Signature-256",
}

// Server is the webhook boundary. Each enabled provider gets its own route,
// every response is terminal: 401 for bad credentials, 400 for unparseable
// payloads, 200 for everything the pipeline accepted or deliberately skipped.
type Server struct {
	providers map[string]interfaces.CodeProvider
	engine    *engine.Engine
	config    Config
	log       logze.Logger
	server    *servex.Server
}

// New creates a webhook server with one route per provider
func New(cfg Config, providers map[string]interfaces.CodeProvider, eng *engine.Engine) (*Server, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "validate config")
	}

	log := logze.With("component", "server")

	srv, err := servex.NewServer(
		servex.WithReadTimeout(cfg.Timeout),
		servex.WithIdleTimeout(cfg.Timeout*2),
		servex.WithLogger(log),
		servex.WithHealthEndpoint(),
		servex.WithDefaultMetrics(),
		servex.WithCertificate(cfg.Certificate),
	)
	if err != nil {
		return nil, erro.Wrap(err, "failed to create server")
	}

	s := &Server{
		providers: providers,
		engine:    eng,
		config:    cfg,
		log:       log,
		server:    srv,
	}

	for name := range providers {
		srv.HandleFunc("/"+name+"/webhook", s.webhookHandler(name))
	}

	return s, nil
}

// Start starts the webhook server
func (s *Server) Start(ctx context.Context) error {
	if s.config.EnableHTTPS {
		return s.server.StartHTTPS(s.config.Address)
	}
	return s.server.StartHTTP(s.config.Address)
}

// Stop stops the webhook server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) webhookHandler(name string) http.HandlerFunc {
	provider := s.providers[name]
	log := s.log.WithFields("provider", name)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := servex.NewContext(w, r)

		body, err := ctx.Read()
		if err != nil {
			ctx.BadRequest(err, "failed to read webhook body")
			return
		}

		if err := provider.ValidateWebhook(body, r.Header.Get(authHeader[name])); err != nil {
			ctx.Unauthorized(err, "webhook validation failed")
			return
		}

		event, err := provider.ParseWebhookEvent(body)
		if err != nil {
			ctx.BadRequest(err, "failed to parse webhook event")
			return
		}

		if !provider.IsReviewableEvent(event) {
			log.Debug("ignoring event", "type", event.Type, "action", event.Action)
			ctx.Response(http.StatusOK)
			return
		}

		log.Info("received reviewable event",
			"action", event.Action, "project", event.ProjectID, "iid", event.MergeRequest.IID)

		if err := s.engine.HandleEvent(event); err != nil {
			// Replays of the same head revision are acknowledged, not retried
			if errm.Is(err, model.ErrDuplicateSession) || errm.Is(err, model.ErrSessionInProgress) {
				log.Info("skipping already handled revision", "iid", event.MergeRequest.IID)
				ctx.Response(http.StatusOK)
				return
			}
			ctx.InternalServerError(err, "failed to handle event")
			return
		}

		ctx.Response(http.StatusAccepted)
	}
}
