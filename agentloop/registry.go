package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ToolFunc executes a tool with already-validated arguments. The returned
// string is the raw output before bounding.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON schema object describing the arguments.
	Parameters map[string]any
}

// RegisteredTool pairs a definition with its executor and compiled schema.
type RegisteredTool struct {
	Definition ToolDefinition
	Executor   ToolFunc
	schema     *jsonschema.Schema
}

// ToolRegistry holds the closed set of tools available to a session. After
// Seal, registration fails; lookup of an unregistered name is a denial, not
// an error in the transport sense.
type ToolRegistry struct {
	mu     sync.RWMutex
	tools  map[string]*RegisteredTool
	sealed bool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*RegisteredTool)}
}

// Register adds a tool. The definition's Parameters schema is compiled at
// registration time so malformed schemas fail fast, not at call time.
func (r *ToolRegistry) Register(def ToolDefinition, fn ToolFunc) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition requires a name")
	}
	if fn == nil {
		return fmt.Errorf("tool %q requires an executor", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("registry is sealed, cannot register %q", def.Name)
	}
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q is already registered", def.Name)
	}

	var sch *jsonschema.Schema
	if def.Parameters != nil {
		compiled, err := compileSchema(def.Name, def.Parameters)
		if err != nil {
			return fmt.Errorf("tool %q has an invalid parameter schema: %w", def.Name, err)
		}
		sch = compiled
	}

	r.tools[def.Name] = &RegisteredTool{Definition: def, Executor: fn, schema: sch}
	return nil
}

// Seal closes the registry. Sessions seal before the first model call so
// the tool surface cannot grow mid-conversation.
func (r *ToolRegistry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Get returns the tool for name, or a *DeniedError when the name is not
// registered.
func (r *ToolRegistry) Get(name string) (*RegisteredTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, &DeniedError{Subject: name, Reason: "unknown tool"}
	}
	return t, nil
}

// Names returns the registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool definitions in sorted-name order.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Restrict returns a new sealed registry containing only the named tools.
// Names not present in the source registry are skipped; a skill that asks
// for a tool the host never registered simply does not get it.
func (r *ToolRegistry) Restrict(names []string) *ToolRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub := NewToolRegistry()
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			sub.tools[name] = t
		}
	}
	sub.sealed = true
	return sub
}

// ValidateArgs checks args against the tool's compiled schema. Violations
// come back as *MalformedError so the loop reports them to the model as a
// failed result instead of aborting the session.
func (t *RegisteredTool) ValidateArgs(args map[string]any) error {
	if t.schema == nil {
		return nil
	}
	// Round-trip through JSON so numbers and nested values take the shapes
	// the validator expects.
	raw, err := json.Marshal(args)
	if err != nil {
		return &MalformedError{Detail: "arguments are not serializable", Cause: err}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return &MalformedError{Detail: "arguments are not valid JSON", Cause: err}
	}
	if err := t.schema.Validate(decoded); err != nil {
		return &MalformedError{Detail: fmt.Sprintf("arguments for %s do not match the schema", t.Definition.Name), Cause: err}
	}
	return nil
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var schemaObj any
	if err := json.Unmarshal(raw, &schemaObj); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := c.AddResource(resource, schemaObj); err != nil {
		return nil, err
	}
	return c.Compile(resource)
}
