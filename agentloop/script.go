package agentloop

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// maxScriptSteps bounds interpreter work so a looping script cannot burn a
// core for its whole deadline.
const maxScriptSteps = 500_000

var scriptFileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
}

// RunScript executes model-generated Starlark with the registry's tools as
// the only predeclared names besides print. There is no load(), no
// filesystem, no network; a script can only compose tool calls, and every
// tool call still validates its arguments and bounds its output the same
// as a direct invocation.
func RunScript(ctx context.Context, registry *ToolRegistry, code string, limits map[string]OutputLimits) (string, error) {
	var mu sync.Mutex
	var printed strings.Builder

	thread := &starlark.Thread{
		Name: "script",
		Print: func(_ *starlark.Thread, msg string) {
			mu.Lock()
			printed.WriteString(msg)
			printed.WriteString("\n")
			mu.Unlock()
		},
	}
	thread.SetMaxExecutionSteps(maxScriptSteps)

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("context cancelled")
		case <-watchDone:
		}
	}()

	predeclared := make(starlark.StringDict)
	for _, name := range registry.Names() {
		predeclared[name] = toolBuiltin(ctx, registry, name, limits)
	}

	_, err := starlark.ExecFileOptions(scriptFileOptions, thread, "script.star", code, predeclared)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if evalErr, ok := err.(*starlark.EvalError); ok {
			return "", fmt.Errorf("script failed: %s", evalErr.Msg)
		}
		return "", &MalformedError{Detail: "script did not parse", Cause: err}
	}

	mu.Lock()
	defer mu.Unlock()
	out := printed.String()
	if out == "" {
		return "(script produced no output)", nil
	}
	return out, nil
}

// toolBuiltin wraps a registered tool as a Starlark builtin taking keyword
// arguments only.
func toolBuiltin(ctx context.Context, registry *ToolRegistry, name string, limits map[string]OutputLimits) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("%s: arguments must be passed by keyword", b.Name())
		}
		toolArgs := make(map[string]any, len(kwargs))
		for _, kv := range kwargs {
			key, ok := starlark.AsString(kv[0])
			if !ok {
				return nil, fmt.Errorf("%s: keyword is not a string", b.Name())
			}
			val, err := fromStarlarkValue(kv[1])
			if err != nil {
				return nil, fmt.Errorf("%s: argument %s: %w", b.Name(), key, err)
			}
			toolArgs[key] = val
		}

		tool, err := registry.Get(b.Name())
		if err != nil {
			return nil, err
		}
		if err := tool.ValidateArgs(toolArgs); err != nil {
			return nil, err
		}
		out, err := tool.Executor(ctx, toolArgs)
		if err != nil {
			return nil, err
		}
		return starlark.String(Bound(out, LimitsForTool(b.Name(), limits))), nil
	})
}

func fromStarlarkValue(v starlark.Value) (any, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.String:
		return string(v), nil
	case starlark.Int:
		n, ok := v.Int64()
		if !ok {
			return nil, fmt.Errorf("integer out of range")
		}
		return n, nil
	case starlark.Float:
		return float64(v), nil
	case *starlark.List:
		elems := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := fromStarlarkValue(v.Index(i))
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return elems, nil
	case *starlark.Dict:
		m := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("dict key is not a string")
			}
			val, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			m[key] = val
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported value of type %s", v.Type())
}
