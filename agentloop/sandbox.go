package agentloop

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Invocation is one tool request extracted from a model response. Either
// Name+Arguments for a structured call, or Code for a generated script.
type Invocation struct {
	ID        string
	Name      string
	Arguments map[string]any
	Code      string
}

// InvocationResult is what goes back to the model. IsError marks results
// produced from a denial, timeout, or malformed request; the text explains
// what happened so the model can adjust.
type InvocationResult struct {
	ID      string
	Name    string
	Content string
	IsError bool
}

// Sandbox executes invocations against a sealed registry with per-call
// deadlines and bounded output. Failures of individual invocations never
// escape as errors; they become error-flagged results.
type Sandbox struct {
	registry *ToolRegistry
	timeout  time.Duration
	limits   map[string]OutputLimits
	logger   *zap.Logger
}

func NewSandbox(registry *ToolRegistry, timeout time.Duration, limits map[string]OutputLimits, logger *zap.Logger) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sandbox{registry: registry, timeout: timeout, limits: limits, logger: logger}
}

// Execute runs a single invocation. A script invocation (Code set) runs in
// the scripted environment; otherwise the named tool runs directly.
func (s *Sandbox) Execute(ctx context.Context, inv Invocation) InvocationResult {
	start := time.Now()
	var out string
	var err error
	if inv.Code != "" {
		out, err = s.executeScript(ctx, inv)
	} else {
		out, err = s.executeTool(ctx, inv)
	}
	s.logger.Debug("invocation complete",
		zap.String("tool", inv.Name),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("error", err != nil))

	if err != nil {
		return InvocationResult{ID: inv.ID, Name: inv.Name, Content: err.Error(), IsError: true}
	}
	return InvocationResult{ID: inv.ID, Name: inv.Name, Content: out}
}

func (s *Sandbox) executeTool(ctx context.Context, inv Invocation) (string, error) {
	tool, err := s.registry.Get(inv.Name)
	if err != nil {
		return "", err
	}
	if err := tool.ValidateArgs(inv.Arguments); err != nil {
		return "", err
	}
	out, err := DeadlineGuard(ctx, inv.Name, s.timeout, func(runCtx context.Context) (string, error) {
		return tool.Executor(runCtx, inv.Arguments)
	})
	if err != nil {
		return "", err
	}
	return Bound(out, LimitsForTool(inv.Name, s.limits)), nil
}

func (s *Sandbox) executeScript(ctx context.Context, inv Invocation) (string, error) {
	out, err := DeadlineGuard(ctx, "script", s.timeout, func(runCtx context.Context) (string, error) {
		return RunScript(runCtx, s.registry, inv.Code, s.limits)
	})
	if err != nil {
		return "", err
	}
	return Bound(out, DefaultOutputLimits()), nil
}

// ExecuteAll runs invocations concurrently and returns results in the
// input order.
func (s *Sandbox) ExecuteAll(ctx context.Context, invs []Invocation) []InvocationResult {
	results := make([]InvocationResult, len(invs))
	var wg sync.WaitGroup
	for i, inv := range invs {
		wg.Add(1)
		go func(i int, inv Invocation) {
			defer wg.Done()
			results[i] = s.Execute(ctx, inv)
		}(i, inv)
	}
	wg.Wait()
	return results
}
