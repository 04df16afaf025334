package engine

import (
	"context"
	"sync"
	"time"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

const writebackTimeout = time.Minute

const (
	fetchFailureComment = "### Code Review\n\n⚠️ The review could not be started: fetching the change set failed."
	planFailureComment  = "### Code Review\n\n⚠️ Risk assessment could not be completed, the change set was not reviewed."
)

// Engine orchestrates the full review pipeline: admit the event, build the
// diff context, plan once, fan out focused reviews, aggregate, write back.
// One Engine serves all configured providers.
type Engine struct {
	providers map[string]interfaces.CodeProvider
	builders  map[string]*ContextBuilder
	planner   *Planner
	reviewer  *FocusedReviewer
	registry  interfaces.SessionRegistry
	cfg       Config
	log       logze.Logger

	eventPool *ants.Pool
	filePool  *ants.Pool
}

// New creates an engine serving the given providers
func New(providers map[string]interfaces.CodeProvider, api interfaces.AgentAPI, registry interfaces.SessionRegistry, cfg Config) (*Engine, error) {
	if len(providers) == 0 {
		return nil, errm.New("at least one code provider is required")
	}

	eventPool, err := ants.NewPool(cfg.EventWorkers)
	if err != nil {
		return nil, errm.Wrap(err, "create event pool")
	}
	filePool, err := ants.NewPool(cfg.Concurrency)
	if err != nil {
		eventPool.Release()
		return nil, errm.Wrap(err, "create file pool")
	}

	builders := make(map[string]*ContextBuilder, len(providers))
	for name, provider := range providers {
		builders[name] = NewContextBuilder(provider, cfg)
	}

	return &Engine{
		providers: providers,
		builders:  builders,
		planner:   NewPlanner(api, cfg),
		reviewer:  NewFocusedReviewer(api, cfg),
		registry:  registry,
		cfg:       cfg,
		log:       logze.With("component", "engine"),
		eventPool: eventPool,
		filePool:  filePool,
	}, nil
}

// Stop drains the worker pools
func (e *Engine) Stop(ctx context.Context) error {
	e.eventPool.Release()
	e.filePool.Release()
	return nil
}

// HandleEvent admits an already-parsed reviewable event and schedules the
// review session. It returns quickly: typed admission rejections
// (model.ErrDuplicateSession, model.ErrSessionInProgress) bubble up so the
// webhook boundary can acknowledge without side effects, everything else runs
// on the event pool.
func (e *Engine) HandleEvent(event *model.CodeEvent) error {
	provider, ok := e.providers[event.Provider]
	if !ok {
		return errm.New("unknown provider: %s", event.Provider)
	}
	if event.MergeRequest == nil {
		return errm.New("event has no merge request")
	}

	key := model.DedupKey{
		ProjectID:       event.ProjectID,
		MergeRequestIID: event.MergeRequest.IID,
		HeadSHA:         event.MergeRequest.SHA,
	}
	if err := e.registry.Admit(key); err != nil {
		return err
	}

	if err := e.eventPool.Submit(func() {
		e.run(provider, e.builders[event.Provider], event, key)
	}); err != nil {
		e.registry.Release(key, model.SessionFailed)
		return errm.Wrap(err, "submit review session")
	}

	e.log.Info("review session admitted", "key", key.String(), "provider", event.Provider)
	return nil
}

// run owns the whole session lifetime. The webhook request context is gone by
// the time it starts, so the session gets its own deadline.
func (e *Engine) run(provider interfaces.CodeProvider, builder *ContextBuilder, event *model.CodeEvent, key model.DedupKey) {
	timer := abstract.StartTimer()
	log := e.log.WithFields("key", key.String())

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SessionTimeout)
	defer cancel()

	dctx, err := builder.Build(ctx, event)
	if err != nil {
		log.Err(err, "cannot build diff context")
		e.writeback(provider, key, fetchFailureComment, log)
		e.registry.Release(key, model.SessionFailed)
		return
	}

	if len(dctx.Files) == 0 {
		agg := Aggregate(dctx, model.RiskPlan{RiskLevel: model.RiskLow}, nil)
		e.writeback(provider, key, agg.Body, log)
		e.registry.Release(key, model.SessionCompleted)
		log.Info("empty change set, nothing to review", "elapsed", timer.ElapsedTime().String())
		return
	}

	plan, err := e.planner.Plan(ctx, dctx)
	if err != nil {
		log.Err(err, "risk planning failed")
		e.writeback(provider, key, planFailureComment, log)
		e.registry.Release(key, model.SessionFailed)
		return
	}
	log.Info("risk plan ready", "risk", plan.RiskLevel, "targets", len(plan.FocusTargets))

	reviews := e.reviewFiles(ctx, provider, dctx, plan, log)
	agg := Aggregate(dctx, plan, reviews)

	e.writeback(provider, key, agg.Body, log)

	status := model.SessionCompleted
	if ctx.Err() != nil {
		status = model.SessionFailed
	}
	e.registry.Release(key, status)
	log.Info("review session finished",
		"status", status, "files", len(reviews), "findings", agg.FindingCount,
		"elapsed", timer.ElapsedTime().String())
}

// reviewFiles fans the focus targets out over the file pool and collects the
// results in target order. A file that cannot be scheduled is reviewed inline
// so no target is silently dropped.
func (e *Engine) reviewFiles(ctx context.Context, provider interfaces.CodeProvider, dctx *model.DiffContext, plan model.RiskPlan, log logze.Logger) []model.FileReview {
	targets := plan.FocusTargets
	if e.cfg.ReviewAllFiles {
		targets = dctx.Paths()
	}

	tools := newToolRunner(provider, dctx, e.cfg)

	files := make([]model.FileChange, 0, len(targets))
	for _, path := range targets {
		for _, fc := range dctx.Files {
			if fc.Path != path {
				continue
			}
			if fc.IsBinary {
				log.Debug("skipping binary file", "file", fc.Path)
				break
			}
			files = append(files, fc)
			break
		}
	}

	reviews := make([]model.FileReview, len(files))
	var wg sync.WaitGroup
	for i, fc := range files {
		i, fc := i, fc
		wg.Add(1)
		task := func() {
			defer wg.Done()
			reviews[i] = e.reviewer.ReviewFile(ctx, tools, fc, plan)
		}
		if err := e.filePool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	return reviews
}

// writeback posts the review note on its own deadline so a session that ran
// out of time still reports what it has
func (e *Engine) writeback(provider interfaces.CodeProvider, key model.DedupKey, body string, log logze.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), writebackTimeout)
	defer cancel()

	if err := provider.CreateComment(ctx, key.ProjectID, key.MergeRequestIID, body); err != nil {
		log.Err(err, "cannot post review comment")
	}
}
