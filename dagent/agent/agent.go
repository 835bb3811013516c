// Package agent assembles the complete middleware stack (§4.C) into a
// runnable harness: the planner, filesystem, sub-agent dispatcher,
// summarization, caching, patch, caller-supplied middlewares, and
// human-in-the-loop layers, in the authoritative bottom-up order, bound to
// whichever AgentState a run or a sub-agent dispatch is driving.
//
// Grounded on flow/chain.go's Build, which resolves every step's tool sets
// and middleware chain once and wires them into a single compiled graph;
// here a Harness plays the equivalent role for one agent definition
// instead of one linear graph, and middlewaresFor replaces "compiled at
// Build time" with "rebuilt per AgentState" since §4.E requires a fresh,
// isolated stack for every sub-agent dispatch (see
// middleware/subagent/subagent.go's DESIGN.md entry for why stateful
// middlewares cannot simply be reused across states).
package agent

import (
	"context"
	"fmt"

	"github.com/package-register/deepagent-go/dagent/backend"
	"github.com/package-register/deepagent-go/dagent/checkpoint"
	"github.com/package-register/deepagent-go/dagent/config"
	"github.com/package-register/deepagent-go/dagent/engine"
	"github.com/package-register/deepagent-go/dagent/middleware/caching"
	"github.com/package-register/deepagent-go/dagent/middleware/filesystem"
	"github.com/package-register/deepagent-go/dagent/middleware/hitl"
	"github.com/package-register/deepagent-go/dagent/middleware/patch"
	"github.com/package-register/deepagent-go/dagent/middleware/subagent"
	"github.com/package-register/deepagent-go/dagent/middleware/summarization"
	"github.com/package-register/deepagent-go/dagent/middleware/todolist"
	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
	"github.com/package-register/deepagent-go/dagent/tool"
)

// BackendFactory builds the Backend a run's filesystem middleware talks
// to, bound to s. The default wraps s.Files (backend.StateBackend),
// keeping a run hermetic and checkpointable; a caller wanting real disk or
// an external store supplies its own factory.
type BackendFactory func(s *state.AgentState) backend.Backend

// Options configures a Harness. Only Model is required; every other field
// has a documented default applied by New.
type Options struct {
	Model Model

	// SystemPrompt is the caller's base system instruction. The planner
	// middleware's own instructions (write_todos/read_todos usage) are
	// appended automatically.
	SystemPrompt string

	BackendFactory BackendFactory

	Checkpointer checkpoint.Checkpointer

	Config config.Config

	// SubAgents declares the harness's named sub-agents (§4.E). May be
	// empty; the `task` tool is still registered (it just has nothing to
	// dispatch to) so the middleware stack shape stays uniform.
	SubAgents []subagent.Definition

	// SharedFilePrefixes lists the AgentState.Files path prefixes a
	// finished sub-agent is allowed to propagate back to its caller.
	SharedFilePrefixes []string

	// SummarizationModel overrides the model invoked for compaction
	// passes (§4.D.3); defaults to Model.
	SummarizationModel Model

	// HITLGates configures which tool calls suspend for human approval
	// and which decisions each permits (§4.D.6). Nil disables
	// human-in-the-loop entirely.
	HITLGates map[string]hitl.Gate

	// UserMiddlewares are spliced in after patch and before
	// human-in-the-loop, per the authoritative order (§4.C).
	UserMiddlewares []engine.Middleware
}

// Model is a local alias so Options reads naturally; it is exactly
// model.Model.
type Model = model.Model

// Harness is the assembled, runnable agent. It is safe for concurrent use
// across independent AgentStates (each run gets its own middleware stack
// instance) but a single AgentState must only be driven by one goroutine
// at a time (§5: single-writer per step).
type Harness struct {
	model              model.Model
	systemPrompt       string
	backendFactory     BackendFactory
	checkpointer       checkpoint.Checkpointer
	cfg                config.Config
	subAgents          []subagent.Definition
	sharedFilePrefixes []string
	summarizationModel model.Model
	userMiddlewares    []engine.Middleware

	subAgentMW *subagent.Middleware
	hitlMW     *hitl.Middleware
}

// New assembles a Harness. Config zero values are replaced by
// config.Default via Config.WithDefaults.
func New(opts Options) (*Harness, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("agent.New: Model is required")
	}

	cfg := opts.Config.WithDefaults()

	backendFactory := opts.BackendFactory
	if backendFactory == nil {
		backendFactory = func(s *state.AgentState) backend.Backend {
			return backend.NewStateBackend(s.Files)
		}
	}

	cp := opts.Checkpointer
	if cp == nil {
		cp = checkpoint.NewMemoryCheckpointer()
	}

	summarizationModel := opts.SummarizationModel
	if summarizationModel == nil {
		summarizationModel = opts.Model
	}

	systemPrompt := opts.SystemPrompt
	if systemPrompt != "" {
		systemPrompt += "\n\n"
	}
	systemPrompt += todolist.Instructions()

	h := &Harness{
		model:              opts.Model,
		systemPrompt:       systemPrompt,
		backendFactory:     backendFactory,
		checkpointer:       cp,
		cfg:                cfg,
		subAgents:          opts.SubAgents,
		sharedFilePrefixes: opts.SharedFilePrefixes,
		summarizationModel: summarizationModel,
		userMiddlewares:    opts.UserMiddlewares,
	}

	h.subAgentMW = subagent.New(opts.SubAgents, opts.Model, cp, cfg, opts.SharedFilePrefixes)
	h.subAgentMW.SetMiddlewareFactory(h.middlewaresFor)

	if opts.HITLGates != nil {
		h.hitlMW = hitl.New(opts.HITLGates)
	}

	return h, nil
}

// HITL returns the harness's human-in-the-loop middleware, so a caller can
// record a Resolve decision before calling Resume. Nil if HITLGates was
// never configured.
func (h *Harness) HITL() *hitl.Middleware { return h.hitlMW }

// NewState starts a fresh AgentState seeded with the harness's system
// prompt, ready for the caller to append the first user message.
func (h *Harness) NewState() *state.AgentState {
	s := state.New()
	s.AppendMessage(state.NewSystemMessage(h.systemPrompt))
	return s
}

// middlewaresFor builds the complete stack (§4.C authoritative order)
// bound to s. Called both for top-level runs and, via
// subagent.MiddlewareFactory, for every sub-agent dispatch.
func (h *Harness) middlewaresFor(s *state.AgentState) []engine.Middleware {
	planner := todolist.New(s)
	b := h.backendFactory(s)
	if !h.cfg.ExecuteCapability {
		// Embedding only the Backend interface hides any Executor method,
		// so the filesystem middleware does not offer `execute`.
		b = struct{ backend.Backend }{b}
	}
	fs := filesystem.New(b, h.cfg.OffloadThresholdBytes)
	summ := summarization.New(h.summarizationModel, nil, h.cfg)
	cache := caching.New()

	// planner -> filesystem -> sub-agents -> summarization -> caching,
	// per §4.C. patch needs a registry built from these contributions
	// before it can validate tool calls against it, so it is constructed
	// after but still placed in its correct stack position below.
	prePatch := []engine.Middleware{planner, fs, h.subAgentMW, summ, cache}
	prePatchRegistry := tool.NewRegistry(tool.StaticSet(engine.Tools(prePatch)))
	patchMW := patch.New(prePatchRegistry)

	stack := make([]engine.Middleware, 0, len(prePatch)+2+len(h.userMiddlewares))
	stack = append(stack, prePatch...)
	stack = append(stack, patchMW)
	stack = append(stack, h.userMiddlewares...)
	if h.hitlMW != nil {
		stack = append(stack, h.hitlMW)
	}
	return stack
}

// runnerFor builds the full Runner for one AgentState: middleware stack
// plus the tool registry derived from every contributor in it (now
// including patch and any user middlewares that also carry tools).
func (h *Harness) runnerFor(s *state.AgentState) *engine.Runner {
	mws := h.middlewaresFor(s)
	registry := tool.NewRegistry(tool.StaticSet(engine.Tools(mws)))
	return engine.NewRunner(h.model, mws, registry, h.checkpointer, h.cfg)
}

// Run drives s to completion or suspension (§4.C step 5 / §4.D.6).
func (h *Harness) Run(ctx context.Context, s *state.AgentState) error {
	return h.runnerFor(s).Run(ctx, s)
}

// Resume continues a run suspended by a human-in-the-loop gate, after the
// caller has recorded a decision via h.HITL().Resolve.
func (h *Harness) Resume(ctx context.Context, s *state.AgentState, stepNum int) error {
	return h.runnerFor(s).Resume(ctx, s, stepNum)
}
