// Package modelselect resolves which model serves a request through a
// fixed four-level priority: explicit override, per-target mapping,
// task-type hint, configured default. Resolution is deterministic and
// always lands on exactly one model as long as a default exists.
package modelselect

import (
	"fmt"
	"strings"
)

// SelectionRequest carries the optional inputs that can pin a model. All
// fields may be empty; resolution then falls through to the default.
type SelectionRequest struct {
	// Override is an exact model identifier the caller chose. It is used
	// verbatim even when the registry does not know it; availability is
	// the model runtime's problem, not the selector's.
	Override string
	// Target is a pre-configured registry key, such as a file extension.
	Target string
	// Task is a task-type hint resolved against the task mapping.
	Task string
}

// UnknownTaskError reports a task hint with no mapping. It lists the
// valid task names so the caller can correct the request.
type UnknownTaskError struct {
	Task  string
	Valid []string
}

func (e *UnknownTaskError) Error() string {
	if len(e.Valid) == 0 {
		return fmt.Sprintf("unknown task %q: no tasks are configured", e.Task)
	}
	return fmt.Sprintf("unknown task %q: valid tasks are %s", e.Task, strings.Join(e.Valid, ", "))
}

// Select resolves a model identifier. Levels are checked in order and the
// first match wins: override, target mapping, task mapping, default. An
// unknown override is not downgraded; an unknown task is an error rather
// than a silent fall-through, so a typo never quietly picks the default.
func Select(reg *Registry, req SelectionRequest) (string, error) {
	if req.Override != "" {
		if m := reg.Lookup(req.Override); m != nil {
			return m.ID, nil
		}
		return req.Override, nil
	}

	if req.Target != "" {
		if model, ok := reg.Targets[req.Target]; ok {
			return model, nil
		}
	}

	if req.Task != "" {
		model, ok := reg.Tasks[req.Task]
		if !ok {
			return "", &UnknownTaskError{Task: req.Task, Valid: reg.TaskNames()}
		}
		return model, nil
	}

	return reg.Default, nil
}
