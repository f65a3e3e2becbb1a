package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/conversation"
	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/gateway"
	"github.com/hupe1980/personasim/goal"
	"github.com/hupe1980/personasim/internal/metrics"
	"github.com/hupe1980/personasim/logging"
	"github.com/hupe1980/personasim/model"
	"github.com/hupe1980/personasim/persona"
	"github.com/hupe1980/personasim/results"
)

// ErrInvalidRequest is returned for batch requests that cannot be served.
var ErrInvalidRequest = errors.New("invalid batch request")

// Progress stages reported through Options.Progress.
const (
	StageLoadedConfigs  = "Loaded configurations"
	StageLoadedPersona  = "Loaded persona data"
	StageGeneratedGoals = "Generated goals"
	StageStarting       = "Starting conversations"
	StageRunning        = "Running conversations"
	StageProcessing     = "Processing conversation results"
	StageDone           = "Done"
)

// BatchRequest selects the persona/agent pair and the shape of a batch.
type BatchRequest struct {
	PersonaID     string `json:"persona_id"`
	AgentConfigID string `json:"agent_config_id"`
	NumGoals      int    `json:"num_goals"`
	MaxTurns      int    `json:"max_turns"`
	// Mix requests a good/bad faith split; zero means an even split.
	Mix goal.FaithMix `json:"mix"`
	// ConversationsPerGoal repeats every goal; zero uses the runner default.
	ConversationsPerGoal int `json:"conversations_per_goal,omitempty"`
}

// Validate checks the request arguments.
func (r BatchRequest) Validate() error {
	switch {
	case r.PersonaID == "":
		return fmt.Errorf("%w: persona_id is required", ErrInvalidRequest)
	case r.AgentConfigID == "":
		return fmt.Errorf("%w: agent_config_id is required", ErrInvalidRequest)
	case r.NumGoals < 1:
		return fmt.Errorf("%w: num_goals must be positive, got %d", ErrInvalidRequest, r.NumGoals)
	case r.MaxTurns < 1:
		return fmt.Errorf("%w: max_turns must be positive, got %d", ErrInvalidRequest, r.MaxTurns)
	case r.ConversationsPerGoal < 0:
		return fmt.Errorf("%w: conversations_per_goal must not be negative", ErrInvalidRequest)
	case !r.Mix.IsZero() && r.Mix.Total() != r.NumGoals:
		return fmt.Errorf("%w: mix %s does not add up to %d goals", ErrInvalidRequest, r.Mix, r.NumGoals)
	}
	return nil
}

// AgentSource resolves agent configurations by id. *config.Registry
// implements it.
type AgentSource interface {
	Get(id string) (*core.AgentConfig, error)
}

// ModelFactory builds the model that plays the agent under test.
type ModelFactory func(cfg *core.AgentConfig) (model.Model, error)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Concurrency bounds the sessions running at once.
	Concurrency int
	// ConversationsPerGoal is used when a request leaves it zero.
	ConversationsPerGoal int
	// SessionTimeout bounds each session; zero disables it.
	SessionTimeout time.Duration
	// StopToken overrides the conversation stop token.
	StopToken *string
	// VirtualUser configures the persona side; nil selects the built-in one.
	VirtualUser *config.VirtualUserConfig
	// AgentModel builds the agent model; defaults to a gateway for the
	// agent's hub.
	AgentModel ModelFactory
	// Progress observes batch progress. Calls are serialized.
	Progress func(stage string, percent int)
	// Results receives every finished batch when set.
	Results results.Store
	Logger  logging.Logger
	Metrics *metrics.Collector
}

// Runner executes batches. Public methods are safe for concurrent use.
type Runner struct {
	personas     persona.Store
	agents       AgentSource
	goals        *goal.Generator
	personaModel model.Model
	opts         Options
	logger       logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner. personaModel plays the virtual user for every
// batch; the agent model is built per batch from the agent configuration.
func New(personas persona.Store, agents AgentSource, goals *goal.Generator, personaModel model.Model, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Concurrency:          4,
		ConversationsPerGoal: 1,
		Logger:               logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.ConversationsPerGoal < 1 {
		opts.ConversationsPerGoal = 1
	}
	logger := logging.OrNoOp(opts.Logger)
	if opts.AgentModel == nil {
		opts.AgentModel = func(cfg *core.AgentConfig) (model.Model, error) {
			return gateway.New(cfg.LLM, func(o *gateway.Options) {
				o.Logger = logger
				o.Metrics = opts.Metrics
			})
		}
	}

	return &Runner{
		personas:     personas,
		agents:       agents,
		goals:        goals,
		personaModel: personaModel,
		opts:         opts,
		logger:       logger.With("component", "runner"),
		activeRuns:   make(map[string]context.CancelFunc),
	}
}

// RunBatch generates goals for the persona/agent pair and runs one
// conversation per goal (times ConversationsPerGoal).
func (r *Runner) RunBatch(ctx context.Context, req BatchRequest) (*core.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cpg := req.ConversationsPerGoal
	if cpg == 0 {
		cpg = r.opts.ConversationsPerGoal
	}

	progress := r.progress()

	agent, err := r.agents.Get(req.AgentConfigID)
	if err != nil {
		return nil, fmt.Errorf("loading agent config %q: %w", req.AgentConfigID, err)
	}
	agentModel, err := r.opts.AgentModel(agent)
	if err != nil {
		return nil, fmt.Errorf("building agent model for %q: %w", agent.ID, err)
	}
	progress(StageLoadedConfigs, 35)

	p, err := r.personas.Get(ctx, req.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("loading persona %q: %w", req.PersonaID, err)
	}
	progress(StageLoadedPersona, 40)

	batch := core.NewBatchResult(p.ID, agent.ID, req.NumGoals, req.MaxTurns)
	logger := r.logger.With("batch_id", batch.ID, "persona_id", p.ID, "agent_config_id", agent.ID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.activeRuns[batch.ID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.activeRuns, batch.ID)
		r.mu.Unlock()
	}()

	generated, err := r.goals.Generate(ctx, p, agent, req.NumGoals, req.Mix)
	if err != nil {
		batch.Error = core.Describe(err)
		logger.Error("goal generation failed", "kind", batch.Error.Kind, "error", err.Error())
		r.finish(ctx, batch, "failed")
		progress(StageDone, 100)
		return batch, nil
	}
	progress(fmt.Sprintf("%s (%d)", StageGeneratedGoals, len(generated)), 50)

	goals := repeatGoals(generated, cpg)
	collector := NewCollector(batch, goals)

	orch := conversation.NewOrchestrator(r.personaModel, agentModel, r.opts.VirtualUser, func(o *conversation.Options) {
		o.SessionTimeout = r.opts.SessionTimeout
		if r.opts.StopToken != nil {
			o.StopToken = *r.opts.StopToken
		}
		o.Logger = r.opts.Logger
		o.Metrics = r.opts.Metrics
	})

	progress(StageStarting, 60)
	logger.Info("running conversations", "goals", len(goals), "concurrency", r.opts.Concurrency)

	var (
		done   int
		doneMu sync.Mutex
	)
	eg := &errgroup.Group{}
	eg.SetLimit(r.opts.Concurrency)
	for _, g := range goals {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			sess := orch.Run(ctx, p, agent, g, req.MaxTurns)
			if err := collector.Collect(g, sess); err != nil {
				logger.Error("collecting session", "goal_id", g.ID, "error", err.Error())
				return nil
			}
			doneMu.Lock()
			defer doneMu.Unlock()
			done++
			progress(StageRunning, 60+25*done/len(goals))
			return nil
		})
	}
	_ = eg.Wait()

	progress(StageProcessing, 85)
	result := collector.Result(context.Cause(ctx))

	status := "completed"
	if ctx.Err() != nil {
		status = "canceled"
	}
	counts := result.Counts()
	logger.Info("batch finished",
		"status", status,
		"completed", counts[core.StatusCompleted],
		"failed", counts[core.StatusFailed])

	r.finish(ctx, result, status)
	progress(StageDone, 100)
	return result, nil
}

// RunBatches runs several batches one after another. A failing request
// yields a result carrying Error and never aborts the remaining ones.
func (r *Runner) RunBatches(ctx context.Context, reqs []BatchRequest) []*core.BatchResult {
	out := make([]*core.BatchResult, len(reqs))
	for i, req := range reqs {
		res, err := r.RunBatch(ctx, req)
		if err != nil {
			r.logger.Warn("batch rejected", "persona_id", req.PersonaID, "agent_config_id", req.AgentConfigID, "error", err.Error())
			res = core.NewBatchResult(req.PersonaID, req.AgentConfigID, req.NumGoals, req.MaxTurns)
			res.Error = describeRequestError(err)
		}
		out[i] = res
	}
	return out
}

// Cancel cancels a running batch by ID.
func (r *Runner) Cancel(batchID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[batchID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("batch %s not found", batchID)
	}
	cancel()
	return nil
}

// Active returns the ids of the batches currently running.
func (r *Runner) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	return ids
}

func (r *Runner) finish(ctx context.Context, batch *core.BatchResult, status string) {
	r.opts.Metrics.RecordBatch(status)
	if r.opts.Results == nil {
		return
	}
	// Results are saved even when the batch context is gone.
	if err := r.opts.Results.Save(context.WithoutCancel(ctx), batch); err != nil {
		r.logger.Error("saving batch result", "batch_id", batch.ID, "error", err.Error())
	}
}

// progress returns a serialized view of the progress callback.
func (r *Runner) progress() func(stage string, percent int) {
	if r.opts.Progress == nil {
		return func(string, int) {}
	}
	var mu sync.Mutex
	return func(stage string, percent int) {
		mu.Lock()
		defer mu.Unlock()
		r.opts.Progress(stage, percent)
	}
}

// repeatGoals expands every goal into n distinct records sharing text and
// faith. Indexes are renumbered in order.
func repeatGoals(goals []core.Goal, n int) []core.Goal {
	if n <= 1 {
		return goals
	}
	out := make([]core.Goal, 0, len(goals)*n)
	for _, g := range goals {
		for i := 0; i < n; i++ {
			c := g
			if i > 0 {
				c.ID = core.NewID()
			}
			c.Index = len(out)
			out = append(out, c)
		}
	}
	return out
}

func describeRequestError(err error) *core.ErrorDescriptor {
	d := core.Describe(err)
	if d.Kind != core.KindInternal {
		return d
	}
	switch {
	case errors.Is(err, ErrInvalidRequest):
		d.Kind = core.KindInvalidRequest
	case errors.Is(err, persona.ErrNotFound), errors.Is(err, config.ErrNotFound):
		d.Kind = core.KindNotFound
	}
	return d
}
