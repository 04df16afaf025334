package agent

import (
	"context"
	"strings"
	"time"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"

	"github.com/williamChen26/ai-code-review/internal/agent/openai"
	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

var _ interfaces.AgentAPI = (*Agent)(nil)

// Agent fronts a concrete LLM backend and adds transient-failure retries on
// top of it. Semantic retries (malformed model output) belong to the callers,
// this layer only cares about transport.
type Agent struct {
	cfg Config
	api interfaces.AgentAPI
	log logze.Logger
}

// New creates an agent of the configured type
func New(ctx context.Context, cfg Config) (*Agent, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	cli, err := cliex.NewWithConfig(cliex.Config{
		BaseURL:        cfg.BaseURL,
		UserAgent:      cfg.UserAgent,
		ProxyAddress:   cfg.ProxyURL,
		RequestTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to create HTTP client")
	}

	agent := &Agent{
		cfg: cfg,
		log: logze.With("component", "agent"),
	}

	modelCfg := model.ModelConfig{
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		URL:      cfg.BaseURL,
		ProxyURL: cfg.ProxyURL,
		IsTest:   cfg.IsTest,
	}

	switch cfg.Type {
	case OpenAI:
		agent.api, err = openai.New(ctx, cli, modelCfg)
	default:
		return nil, errm.Errorf("unsupported agent type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errm.Wrap(err, "failed to create agent")
	}

	return agent, nil
}

// CallAPI calls the backend, retrying rate-limit and server-side failures
// with a fixed delay
func (a *Agent) CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error) {
	req.MaxTokens = lang.Check(req.MaxTokens, a.cfg.MaxTokens)
	req.Temperature = lang.Check(req.Temperature, a.cfg.Temperature)

	var lastErr error
	for attempt := 1; attempt <= a.cfg.MaxRetries; attempt++ {
		resp, err := a.api.CallAPI(ctx, req)
		if err == nil {
			if resp.Content == "" {
				return model.APIResponse{}, model.ErrEmptyResponse
			}
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == a.cfg.MaxRetries {
			return model.APIResponse{}, err
		}

		a.log.Warn("transient API failure, waiting before retry",
			"attempt", attempt, "delay", a.cfg.RetryDelay.String(), "error", err.Error())
		select {
		case <-time.After(a.cfg.RetryDelay):
		case <-ctx.Done():
			return model.APIResponse{}, ctx.Err()
		}
	}

	return model.APIResponse{}, errm.Wrap(lastErr, "max retries exceeded")
}

func isRetryable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "504")
}
