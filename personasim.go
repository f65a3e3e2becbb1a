// Package personasim simulates conversations between survey-derived personas
// and a conversational agent under test.
//
// A Simulator wires the pieces together: a persona store, agent
// configurations, the goal generator and the conversation orchestrator, each
// talking to its LLM through a gateway that retries transient failures and
// shares one rate limiter. Most applications:
//  1. Create a Simulator via New(), supplying personas and agent configs
//  2. Call RunBatch with a persona id, an agent config id, the number of goals
//     and a turn limit
//  3. Inspect or persist the returned core.BatchResult
//
// The same RunBatch backs the HTTP server and the command line tool.
package personasim

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/gateway"
	"github.com/hupe1980/personasim/goal"
	"github.com/hupe1980/personasim/internal/metrics"
	"github.com/hupe1980/personasim/logging"
	"github.com/hupe1980/personasim/model"
	"github.com/hupe1980/personasim/persona"
	"github.com/hupe1980/personasim/results"
	"github.com/hupe1980/personasim/runner"
)

// BatchRequest selects the persona/agent pair and the shape of a batch.
type BatchRequest = runner.BatchRequest

// Options configures the Simulator.
type Options struct {
	// Personas defaults to an empty in-memory store.
	Personas persona.Store
	// Agents defaults to an empty registry.
	Agents *config.Registry
	// GoalGenerator and VirtualUser default to the built-in documents.
	GoalGenerator *config.GoalGeneratorConfig
	VirtualUser   *config.VirtualUserConfig

	// GoalModel, PersonaModel and AgentModel replace the gateways built from
	// the configuration documents. They are used as given, without retries.
	GoalModel    model.Model
	PersonaModel model.Model
	AgentModel   runner.ModelFactory

	// Concurrency bounds the sessions of one batch running at once.
	Concurrency int
	// ConversationsPerGoal repeats every generated goal.
	ConversationsPerGoal int
	// SessionTimeout bounds each session; zero disables it.
	SessionTimeout time.Duration
	// RateLimit caps LLM requests per second across every gateway; zero
	// disables limiting.
	RateLimit float64

	Results  results.Store
	Progress func(stage string, percent int)
	Logger   logging.Logger
	Metrics  *metrics.Collector
}

// Simulator is the high-level façade over the batch runner.
type Simulator struct {
	opts   Options
	runner *runner.Runner
}

// New creates a Simulator. Providers for the configured hubs are built
// eagerly so configuration problems surface here rather than mid-batch.
func New(optFns ...func(o *Options)) (*Simulator, error) {
	opts := Options{
		Concurrency:          4,
		ConversationsPerGoal: 1,
		Logger:               logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Personas == nil {
		opts.Personas = persona.NewInMemoryStore()
	}
	if opts.Agents == nil {
		opts.Agents = config.NewRegistry()
	}
	if opts.GoalGenerator == nil {
		opts.GoalGenerator = config.DefaultGoalGeneratorConfig()
	}
	if opts.VirtualUser == nil {
		opts.VirtualUser = config.DefaultVirtualUserConfig()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	shared := func(o *gateway.Options) {
		o.Limiter = limiter
		o.Metrics = opts.Metrics
		o.Logger = opts.Logger
	}

	goalModel := opts.GoalModel
	if goalModel == nil {
		gw, err := gateway.New(opts.GoalGenerator.LLM, shared, gateway.WithRetryPolicy(opts.GoalGenerator.Retry))
		if err != nil {
			return nil, err
		}
		goalModel = gw
	}
	personaModel := opts.PersonaModel
	if personaModel == nil {
		gw, err := gateway.New(opts.VirtualUser.LLM, shared, gateway.WithRetryPolicy(opts.VirtualUser.Retry))
		if err != nil {
			return nil, err
		}
		personaModel = gw
	}
	agentModel := opts.AgentModel
	if agentModel == nil {
		turnPolicy := gateway.WithRetryPolicy(opts.VirtualUser.Retry)
		agentModel = func(cfg *core.AgentConfig) (model.Model, error) {
			return gateway.New(cfg.LLM, shared, turnPolicy)
		}
	}

	generator := goal.NewGenerator(goalModel, opts.GoalGenerator, func(o *goal.Options) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	r := runner.New(opts.Personas, opts.Agents, generator, personaModel, func(o *runner.Options) {
		o.Concurrency = opts.Concurrency
		o.ConversationsPerGoal = opts.ConversationsPerGoal
		o.SessionTimeout = opts.SessionTimeout
		o.VirtualUser = opts.VirtualUser
		o.AgentModel = agentModel
		o.Progress = opts.Progress
		o.Results = opts.Results
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	return &Simulator{opts: opts, runner: r}, nil
}

// RunBatch generates goals for the pair and runs one conversation per goal.
// See runner.Runner.RunBatch for the error contract.
func (s *Simulator) RunBatch(ctx context.Context, req BatchRequest) (*core.BatchResult, error) {
	return s.runner.RunBatch(ctx, req)
}

// RunBatches runs several pairs; a failing pair never aborts the others.
func (s *Simulator) RunBatches(ctx context.Context, reqs []BatchRequest) []*core.BatchResult {
	return s.runner.RunBatches(ctx, reqs)
}

// Runner exposes the underlying batch runner.
func (s *Simulator) Runner() *runner.Runner { return s.runner }

// Personas returns the persona store.
func (s *Simulator) Personas() persona.Store { return s.opts.Personas }

// Agents returns the agent configuration registry.
func (s *Simulator) Agents() *config.Registry { return s.opts.Agents }

// Results returns the result store, which may be nil.
func (s *Simulator) Results() results.Store { return s.opts.Results }
