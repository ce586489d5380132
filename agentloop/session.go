package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localbrain/localbrain/modelclient"
)

// ModelClient is the slice of the model layer the loop needs.
type ModelClient interface {
	Complete(ctx context.Context, req modelclient.Request) (*modelclient.Response, error)
}

// LoopState represents the current lifecycle state of a session.
type LoopState string

const (
	StateAwaitingModel LoopState = "awaiting_model"
	StateExecuting     LoopState = "executing"
	StateTerminal      LoopState = "terminal"
)

// OutcomeKind says how a session ended.
type OutcomeKind string

const (
	OutcomeFinal     OutcomeKind = "final"
	OutcomeTurnLimit OutcomeKind = "turn_limit"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeFatal     OutcomeKind = "fatal"
)

// Outcome is the result of running a session to completion. History is
// populated for every outcome kind so the host can inspect what happened
// even after a fatal model error.
type Outcome struct {
	Kind    OutcomeKind
	Answer  string
	Err     error
	History []Turn
	Turns   int
}

// SessionConfig holds configuration for a session.
type SessionConfig struct {
	Model             string
	SystemPrompt      string
	MaxTurns          int
	InvocationTimeout time.Duration
	ModelTimeout      time.Duration
	ToolLimits        map[string]OutputLimits
}

// DefaultSessionConfig returns the default configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxTurns:          10,
		InvocationTimeout: 30 * time.Second,
		ModelTimeout:      120 * time.Second,
	}
}

// Session drives one task through the model-invoke-respond loop against a
// sealed tool registry.
type Session struct {
	id       string
	client   ModelClient
	registry *ToolRegistry
	sandbox  *Sandbox
	config   SessionConfig
	emitter  *EventEmitter
	logger   *zap.Logger

	mu      sync.Mutex
	state   LoopState
	history []Turn
}

// NewSession creates a session. The registry is sealed here; the tool
// surface is fixed before the first model call.
func NewSession(client ModelClient, registry *ToolRegistry, config SessionConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxTurns <= 0 {
		config.MaxTurns = DefaultSessionConfig().MaxTurns
	}
	if config.InvocationTimeout <= 0 {
		config.InvocationTimeout = DefaultSessionConfig().InvocationTimeout
	}
	if config.ModelTimeout <= 0 {
		config.ModelTimeout = DefaultSessionConfig().ModelTimeout
	}
	registry.Seal()
	sessionID := uuid.New().String()
	return &Session{
		id:       sessionID,
		client:   client,
		registry: registry,
		sandbox:  NewSandbox(registry, config.InvocationTimeout, config.ToolLimits, logger),
		config:   config,
		emitter:  NewEventEmitter(sessionID, 256),
		logger:   logger.With(zap.String("session_id", sessionID)),
		state:    StateAwaitingModel,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current loop state.
func (s *Session) State() LoopState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := make([]Turn, len(s.history))
	copy(h, s.history)
	return h
}

// Events returns the event channel for the host application.
func (s *Session) Events() <-chan SessionEvent {
	return s.emitter.Events()
}

// Run drives the task to an outcome. It always returns an Outcome; Err is
// set only for the fatal kind.
func (s *Session) Run(ctx context.Context, task string) Outcome {
	s.emitter.Emit(EventSessionStart, map[string]any{"task": task})
	defer s.emitter.Close()

	s.appendTurn(NewUserTurn(task))

	turns := 0
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(OutcomeCancelled, "", err, turns)
		}
		if turns >= s.config.MaxTurns {
			s.emitter.Emit(EventTurnLimit, map[string]any{"turns": turns})
			return s.finish(OutcomeTurnLimit, "", nil, turns)
		}
		turns++

		response, err := s.callModel(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return s.finish(OutcomeCancelled, "", ctx.Err(), turns)
			}
			s.emitter.Emit(EventError, map[string]any{"error": err.Error()})
			return s.finish(OutcomeFatal, "", err, turns)
		}

		invocations, malformed := ExtractInvocations(response)
		s.appendTurn(NewAssistantTurn(response.Text, invocations, response.Usage, response.ID))

		if malformed != nil {
			// A request the loop could not decode still gets a result, so
			// the model sees what went wrong and can retry.
			s.appendTurn(NewInvocationResultsTurn([]InvocationResult{*malformed}))
			continue
		}
		if len(invocations) == 0 {
			return s.finish(OutcomeFinal, response.Text, nil, turns)
		}

		s.setState(StateExecuting)
		for _, inv := range invocations {
			s.emitter.Emit(EventInvocationStart, map[string]any{
				"invocation_id": inv.ID,
				"tool":          inv.Name,
			})
		}
		results := s.sandbox.ExecuteAll(ctx, invocations)
		for _, r := range results {
			s.emitter.Emit(EventInvocationEnd, map[string]any{
				"invocation_id": r.ID,
				"is_error":      r.IsError,
			})
		}
		s.appendTurn(NewInvocationResultsTurn(results))
		s.setState(StateAwaitingModel)
	}
}

func (s *Session) callModel(ctx context.Context) (*modelclient.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.ModelTimeout)
	defer cancel()

	defs := s.registry.Definitions()
	toolDefs := make([]modelclient.ToolDefinition, len(defs))
	for i, d := range defs {
		toolDefs[i] = modelclient.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		}
	}

	messages := ConvertHistoryToMessages(s.History())
	if s.config.SystemPrompt != "" {
		messages = append([]modelclient.Message{modelclient.SystemMessage(s.config.SystemPrompt)}, messages...)
	}

	s.emitter.Emit(EventModelCall, map[string]any{"model": s.config.Model})
	start := time.Now()
	response, err := s.client.Complete(callCtx, modelclient.Request{
		Model:    s.config.Model,
		Messages: messages,
		ToolDefs: toolDefs,
	})
	s.logger.Debug("model call complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return response, err
}

func (s *Session) finish(kind OutcomeKind, answer string, err error, turns int) Outcome {
	s.setState(StateTerminal)
	s.emitter.Emit(EventSessionEnd, map[string]any{
		"outcome": string(kind),
		"turns":   turns,
	})
	return Outcome{
		Kind:    kind,
		Answer:  answer,
		Err:     err,
		History: s.History(),
		Turns:   turns,
	}
}

func (s *Session) appendTurn(t Turn) {
	s.mu.Lock()
	s.history = append(s.history, t)
	s.mu.Unlock()
}

func (s *Session) setState(state LoopState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// ExtractInvocations pulls tool invocations out of a model response.
// Structured tool calls take precedence; otherwise a fenced script block
// in the text becomes a single script invocation. A structured call whose
// arguments do not decode yields a malformed result instead of
// invocations, so the failure flows back to the model as data.
func ExtractInvocations(response *modelclient.Response) ([]Invocation, *InvocationResult) {
	if len(response.ToolCalls) > 0 {
		invocations := make([]Invocation, 0, len(response.ToolCalls))
		for _, tc := range response.ToolCalls {
			args := map[string]any{}
			if len(tc.Arguments) > 0 {
				if err := json.Unmarshal(tc.Arguments, &args); err != nil {
					return nil, &InvocationResult{
						ID:      tc.ID,
						Name:    tc.Name,
						Content: fmt.Sprintf("arguments for %s are not valid JSON: %v", tc.Name, err),
						IsError: true,
					}
				}
			}
			invocations = append(invocations, Invocation{ID: tc.ID, Name: tc.Name, Arguments: args})
		}
		return invocations, nil
	}

	if code := extractScriptBlock(response.Text); code != "" {
		return []Invocation{{
			ID:   "script_" + response.ID,
			Name: "script",
			Code: code,
		}}, nil
	}

	return nil, nil
}

// extractScriptBlock returns the contents of the first ```tool or
// ```starlark fenced block in text, or "".
func extractScriptBlock(text string) string {
	for _, fence := range []string{"```tool\n", "```starlark\n"} {
		start := strings.Index(text, fence)
		if start < 0 {
			continue
		}
		rest := text[start+len(fence):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		return strings.TrimSpace(rest[:end])
	}
	return ""
}
