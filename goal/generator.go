package goal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/internal/metrics"
	"github.com/hupe1980/personasim/internal/util"
	"github.com/hupe1980/personasim/logging"
	"github.com/hupe1980/personasim/model"
	"github.com/hupe1980/personasim/prompt"
)

// Template variables provided in addition to the persona's.
const (
	VarNumGoals         = "num_goals"
	VarNumGoodFaith     = "num_good_faith"
	VarNumBadFaith      = "num_bad_faith"
	VarAgentName        = "agent_name"
	VarAgentDescription = "agent_description"
	VarAgentSysPrompt   = "agent_sys_prompt"
)

// DefaultMaxAttempts allows one regeneration after an invalid answer.
const DefaultMaxAttempts = 2

// Options configures a Generator.
type Options struct {
	// MaxAttempts bounds generation attempts when answers fail validation.
	MaxAttempts int
	// Backoff is the pause before a regeneration.
	Backoff time.Duration
	Logger  logging.Logger
	Metrics *metrics.Collector
}

// Generator produces goals for persona/agent pairs. It is safe for
// concurrent use.
type Generator struct {
	model  model.Model
	cfg    *config.GoalGeneratorConfig
	opts   Options
	logger logging.Logger
}

// NewGenerator creates a generator calling m with the prompts of cfg. A nil
// cfg selects config.DefaultGoalGeneratorConfig. Attempt and backoff
// defaults come from the configuration's retries.goal_generation block.
func NewGenerator(m model.Model, cfg *config.GoalGeneratorConfig, optFns ...func(o *Options)) *Generator {
	if cfg == nil {
		cfg = config.DefaultGoalGeneratorConfig()
	}
	opts := Options{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     cfg.Retry.Backoff(),
		Logger:      logging.NoOpLogger{},
	}
	if cfg.Retry.MaxAttempts > 0 {
		opts.MaxAttempts = cfg.Retry.MaxAttempts
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Generator{
		model:  m,
		cfg:    cfg,
		opts:   opts,
		logger: logging.OrNoOp(opts.Logger).With("component", "goal_generator"),
	}
}

// Generate returns exactly numGoals goals in model order. A zero mix
// requests EvenMix(numGoals). A returned split differing from the requested
// one is logged, not rejected.
func (g *Generator) Generate(ctx context.Context, persona core.Persona, agent *core.AgentConfig, numGoals int, mix FaithMix) ([]core.Goal, error) {
	if numGoals < 1 {
		return nil, fmt.Errorf("%w: num_goals must be positive, got %d", ErrInvalidRequest, numGoals)
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: agent config is required", ErrInvalidRequest)
	}
	if mix.IsZero() {
		mix = EvenMix(numGoals)
	}
	if mix.GoodFaith < 0 || mix.BadFaith < 0 || mix.Total() != numGoals {
		return nil, fmt.Errorf("%w: mix %s does not add up to %d goals", ErrInvalidRequest, mix, numGoals)
	}

	req, err := g.buildRequest(persona, agent, numGoals, mix)
	if err != nil {
		g.opts.Metrics.RecordGoalGeneration("failed")
		return nil, fmt.Errorf("rendering goal prompts: %w", err)
	}

	logger := g.logger.With("persona_id", persona.ID, "agent_config_id", agent.ID)

	var (
		raw     string
		lastErr error
	)
	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		if attempt > 1 && g.opts.Backoff > 0 {
			if err := sleep(ctx, g.opts.Backoff); err != nil {
				g.opts.Metrics.RecordGoalGeneration("failed")
				return nil, err
			}
		}

		resp, err := g.model.Complete(ctx, req)
		if err != nil {
			g.opts.Metrics.RecordGoalGeneration("failed")
			logger.Error("goal generation call failed", "attempt", attempt, "error", err.Error())
			return nil, fmt.Errorf("generating goals: %w", err)
		}
		raw = resp.Text

		goals, err := parse(raw, numGoals)
		if err != nil {
			lastErr = err
			logger.Warn("invalid goal set", "attempt", attempt, "max_attempts", g.opts.MaxAttempts, "error", err.Error())
			continue
		}

		for i := range goals {
			goals[i].ID = core.NewID()
			goals[i].PersonaID = persona.ID
			goals[i].AgentConfigID = agent.ID
		}
		if got := mixOf(goals); got != mix {
			logger.Warn("goal faith mix differs from request", "requested", mix.String(), "got", got.String())
		}
		g.opts.Metrics.RecordGoalGeneration("success")
		logger.Info("goals generated", "count", len(goals), "attempts", attempt)
		return goals, nil
	}

	g.opts.Metrics.RecordGoalGeneration("failed")
	return nil, &GenerationError{Attempts: g.opts.MaxAttempts, RawResponse: raw, Err: lastErr}
}

func (g *Generator) buildRequest(persona core.Persona, agent *core.AgentConfig, numGoals int, mix FaithMix) (model.Request, error) {
	system, err := g.cfg.SystemPrompt.Render(prompt.NewVariables(map[string]string{
		VarNumGoals:     strconv.Itoa(numGoals),
		VarNumGoodFaith: strconv.Itoa(mix.GoodFaith),
		VarNumBadFaith:  strconv.Itoa(mix.BadFaith),
	}))
	if err != nil {
		return model.Request{}, err
	}

	user, err := g.cfg.UserPrompt.Render(prompt.NewVariables(persona.TemplateVars(), map[string]string{
		VarAgentName:        agent.Name,
		VarAgentDescription: agent.Description,
		VarAgentSysPrompt:   agent.SystemPrompt,
	}))
	if err != nil {
		return model.Request{}, err
	}

	return model.Request{
		SystemPrompt: system,
		Messages:     []model.Message{{Role: model.RoleUser, Content: user}},
		Params:       model.ParamsFrom(g.cfg.LLM.Params),
	}, nil
}

type goalList struct {
	Goals []struct {
		Goal      string `json:"goal"`
		FaithType string `json:"faith_type"`
	} `json:"goals"`
}

// parse decodes and validates raw model output.
func parse(raw string, numGoals int) ([]core.Goal, error) {
	var list goalList
	if err := util.DecodeJSONObject(raw, &list); err != nil {
		return nil, &ValidationError{Index: -1, Detail: err.Error(), Err: ErrUnparseable}
	}
	if len(list.Goals) != numGoals {
		return nil, &ValidationError{Index: -1, Detail: fmt.Sprintf("want %d, got %d", numGoals, len(list.Goals)), Err: ErrWrongCount}
	}

	seen := make(map[string]int, numGoals)
	goals := make([]core.Goal, 0, numGoals)
	for i, item := range list.Goals {
		text := strings.TrimSpace(item.Goal)
		if text == "" {
			return nil, &ValidationError{Index: i, Detail: "goal is blank", Err: ErrEmptyGoal}
		}
		key := strings.ToLower(text)
		if first, dup := seen[key]; dup {
			return nil, &ValidationError{Index: i, Detail: fmt.Sprintf("same as goal %d", first), Err: ErrDuplicate}
		}
		seen[key] = i

		faith, err := core.ParseFaithType(item.FaithType)
		if err != nil {
			return nil, &ValidationError{Index: i, Detail: err.Error(), Err: ErrUnknownFaith}
		}
		goals = append(goals, core.Goal{Index: i, Text: text, FaithType: faith})
	}
	return goals, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
