package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/internal/metrics"
	"github.com/hupe1980/personasim/logging"
	"github.com/hupe1980/personasim/model"
	"github.com/hupe1980/personasim/prompt"
)

// Template variables provided by the orchestrator in addition to the
// persona's.
const (
	VarGoal             = "goal"
	VarFaithType        = "faith_type"
	VarAgentName        = "agent_name"
	VarAgentDescription = "agent_description"
	VarAgentSysPrompt   = "agent_sys_prompt"
	VarTurnIndex        = "turn_index"
)

// Options configures an Orchestrator.
type Options struct {
	// SessionTimeout bounds a whole session; zero disables it.
	SessionTimeout time.Duration
	// StopToken ends the conversation when emitted by either speaker. Empty
	// disables token detection; the persona JSON verdict still applies.
	StopToken string
	// OnTurn observes every recorded turn. It runs on the session goroutine.
	OnTurn  func(session *core.Session, turn core.Turn)
	Logger  logging.Logger
	Metrics *metrics.Collector
}

// Orchestrator runs conversation sessions. It holds no per-session state and
// is safe for concurrent use.
type Orchestrator struct {
	persona model.Model
	agent   model.Model
	user    *config.VirtualUserConfig
	opts    Options
	logger  logging.Logger
}

// NewOrchestrator creates an orchestrator. personaModel plays the virtual
// user, agentModel the system under test. A nil user config selects
// config.DefaultVirtualUserConfig.
func NewOrchestrator(personaModel, agentModel model.Model, user *config.VirtualUserConfig, optFns ...func(o *Options)) *Orchestrator {
	if user == nil {
		user = config.DefaultVirtualUserConfig()
	}
	opts := Options{
		StopToken: DefaultStopToken,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		persona: personaModel,
		agent:   agentModel,
		user:    user,
		opts:    opts,
		logger:  logging.OrNoOp(opts.Logger).With("component", "orchestrator"),
	}
}

// run is the per-session state.
type run struct {
	session *core.Session
	agent   *core.AgentConfig

	// persona side
	openingSystem string
	system        string
	opening       string
	personaParams model.Params

	// agent side
	agentTmpl *prompt.Template
	agentVars prompt.Variables
}

// Run drives one conversation for goal to a terminal state. It never returns
// an error: failures are recorded on the returned session.
func (o *Orchestrator) Run(ctx context.Context, persona core.Persona, agent *core.AgentConfig, goal core.Goal, maxTurns int) *core.Session {
	sess := core.NewSession(goal, maxTurns)
	logger := o.logger.With("session_id", sess.ID, "goal_id", goal.ID, "persona_id", persona.ID)

	if o.opts.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.SessionTimeout)
		defer cancel()
	}

	o.opts.Metrics.SessionStarted()
	defer func() {
		var kind string
		if sess.Error != nil {
			kind = sess.Error.Kind
		}
		o.opts.Metrics.RecordSession(string(sess.CurrentStatus()), kind, len(sess.Transcript()))
	}()

	state := StateInit
	var r *run
	for state != StateTerminated {
		var next State
		var err error

		switch state {
		case StateInit:
			r, err = o.init(sess, persona, agent, maxTurns)
			next = StatePersonaTurn
		case StatePersonaTurn, StateAgentTurn:
			next, err = o.step(ctx, r, state)
		}

		if err != nil {
			sess.Fail(err)
			logger.Warn("session failed", "state", state.String(), "turns", len(sess.Transcript()), "error", err.Error())
			next = StateTerminated
		}
		logger.Debug("state transition", "from", state.String(), "to", next.String())
		state = next
	}

	if sess.CurrentStatus() == core.StatusCompleted {
		logger.Info("session completed", "turns", len(sess.Transcript()), "ended_by", string(sess.EndedBy))
	}
	return sess
}

// init prepares both sides' prompts so template problems surface before any
// provider call.
func (o *Orchestrator) init(sess *core.Session, persona core.Persona, agent *core.AgentConfig, maxTurns int) (*run, error) {
	if agent == nil {
		return nil, &config.ConfigError{Key: "agent", Err: config.ErrMissingKey}
	}
	if maxTurns < 1 {
		return nil, &config.ConfigError{Key: "max_turns", Err: fmt.Errorf("must be positive, got %d", maxTurns)}
	}

	vars := prompt.NewVariables(persona.TemplateVars(), map[string]string{
		VarAgentName:        agent.Name,
		VarAgentDescription: agent.Description,
		VarAgentSysPrompt:   agent.SystemPrompt,
		VarGoal:             sess.PersonaContext,
		VarFaithType:        string(sess.Goal.FaithType),
	})

	r := &run{session: sess, agent: agent, personaParams: model.ParamsFrom(o.user.LLM.Params)}

	roleAndTask, err := o.user.RoleAndTask.Render(vars)
	if err != nil {
		return nil, fmt.Errorf("rendering role_and_task_prompt: %w", err)
	}
	target, err := o.user.TargetGoal.Render(vars)
	if err != nil {
		return nil, fmt.Errorf("rendering target_goal: %w", err)
	}
	job, err := o.user.JobDescription.Render(vars)
	if err != nil {
		return nil, fmt.Errorf("rendering job_description_prompt: %w", err)
	}
	if r.opening, err = o.user.UserPrompt.Render(vars); err != nil {
		return nil, fmt.Errorf("rendering user_prompt: %w", err)
	}
	r.system = joinPrompts(roleAndTask, target)
	r.openingSystem = joinPrompts(roleAndTask, target, job)

	if r.agentTmpl, err = prompt.Parse(agent.SystemPrompt); err != nil {
		return nil, fmt.Errorf("parsing agent system prompt: %w", err)
	}
	// Agent turns differ only in turn_index, so one render validates them all.
	r.agentVars = agentVars(persona, agent)
	if _, err := r.agentTmpl.Render(r.agentVars.With(VarTurnIndex, "1")); err != nil {
		return nil, fmt.Errorf("rendering agent system prompt: %w", err)
	}
	return r, nil
}

// step produces one turn for state and evaluates termination.
func (o *Orchestrator) step(ctx context.Context, r *run, state State) (State, error) {
	if err := ctx.Err(); err != nil {
		return StateTerminated, err
	}

	turns := r.session.Transcript()
	var (
		speaker core.Speaker
		req     model.Request
		m       model.Model
		err     error
	)
	switch state {
	case StatePersonaTurn:
		speaker, m, req = core.SpeakerPersona, o.persona, r.personaRequest(turns)
	default:
		speaker, m = core.SpeakerAgent, o.agent
		if req, err = r.agentRequest(turns); err != nil {
			return StateTerminated, err
		}
	}

	resp, err := m.Complete(ctx, req)
	if err != nil {
		return StateTerminated, fmt.Errorf("%s turn %d: %w", speaker, len(turns), err)
	}

	text := resp.Text
	if speaker == core.SpeakerPersona && len(turns) == 0 {
		text = unwrapSeed(text)
	}

	turn, err := r.session.AppendTurn(speaker, text)
	if err != nil {
		return StateTerminated, err
	}
	if o.opts.OnTurn != nil {
		o.opts.OnTurn(r.session, turn)
	}

	switch {
	case stopSignal(o.opts.StopToken, speaker, text):
		return StateTerminated, r.session.Complete(speaker)
	case turn.Index+1 >= r.session.MaxTurns:
		return StateTerminated, r.session.Complete("")
	case speaker == core.SpeakerPersona:
		return StateAgentTurn, nil
	default:
		return StatePersonaTurn, nil
	}
}

// personaRequest builds the virtual user's view: the opening instruction
// followed by the transcript with roles flipped.
func (r *run) personaRequest(turns []core.Turn) model.Request {
	system := r.system
	if len(turns) == 0 {
		system = r.openingSystem
	}
	msgs := make([]model.Message, 0, len(turns)+1)
	msgs = append(msgs, model.Message{Role: model.RoleUser, Content: r.opening})
	for _, t := range turns {
		role := model.RoleUser
		if t.Speaker == core.SpeakerPersona {
			role = model.RoleAssistant
		}
		msgs = append(msgs, model.Message{Role: role, Content: t.Text})
	}
	return model.Request{SystemPrompt: system, Messages: msgs, Params: r.personaParams}
}

// agentRequest builds the agent's view. It never contains the goal.
func (r *run) agentRequest(turns []core.Turn) (model.Request, error) {
	vars := r.agentVars.With(VarTurnIndex, strconv.Itoa(len(turns)))
	system, err := r.agentTmpl.Render(vars)
	if err != nil {
		return model.Request{}, fmt.Errorf("rendering agent system prompt: %w", err)
	}
	msgs := make([]model.Message, 0, len(turns))
	for _, t := range turns {
		role := model.RoleAssistant
		if t.Speaker == core.SpeakerPersona {
			role = model.RoleUser
		}
		msgs = append(msgs, model.Message{Role: role, Content: t.Text})
	}
	return model.Request{
		SystemPrompt: system,
		Messages:     msgs,
		Params:       model.ParamsFrom(r.agent.LLM.Params),
	}, nil
}

// agentVars are the variables visible to the agent's system prompt, minus
// turn_index. They never include the goal.
func agentVars(persona core.Persona, agent *core.AgentConfig) prompt.Variables {
	return prompt.NewVariables(persona.TemplateVars(), map[string]string{
		VarAgentName:        agent.Name,
		VarAgentDescription: agent.Description,
	})
}

func joinPrompts(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
