package modelselect

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// ModelConfig describes one locally available model.
type ModelConfig struct {
	ID         string   `toml:"id"`
	Aliases    []string `toml:"aliases"`
	Parameters string   `toml:"parameters"`
	MemoryGB   float64  `toml:"memory_gb"`
	Speed      string   `toml:"speed"`
}

// Registry is the loaded model registry: the available models, the
// per-target and per-task mappings, and the fallback default. Targets are
// pre-configured keys like file extensions; tasks are request-time hints.
type Registry struct {
	Models  []ModelConfig     `toml:"models"`
	Targets map[string]string `toml:"targets"`
	Tasks   map[string]string `toml:"tasks"`
	Default string            `toml:"default"`
}

// LoadRegistry reads a registry from a TOML file. A registry without a
// default model is rejected; every selection path needs somewhere to land.
func LoadRegistry(path string) (*Registry, error) {
	var reg Registry
	if _, err := toml.DecodeFile(path, &reg); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("model registry %s does not exist", path)
		}
		return nil, fmt.Errorf("decode model registry %s: %w", path, err)
	}
	if err := reg.validate(); err != nil {
		return nil, fmt.Errorf("model registry %s: %w", path, err)
	}
	return &reg, nil
}

// DefaultRegistry returns the built-in registry used when no config file
// is present. Entries mirror common local model servers.
func DefaultRegistry() *Registry {
	return &Registry{
		Models: []ModelConfig{
			{ID: "qwen2.5-coder:7b", Aliases: []string{"coder"}, Parameters: "7B", MemoryGB: 4.7, Speed: "fast"},
			{ID: "llama3.1:8b", Aliases: []string{"llama"}, Parameters: "8B", MemoryGB: 4.9, Speed: "fast"},
			{ID: "deepseek-r1:14b", Aliases: []string{"reasoner"}, Parameters: "14B", MemoryGB: 9.0, Speed: "medium"},
		},
		Tasks: map[string]string{
			"chat":   "llama3.1:8b",
			"code":   "qwen2.5-coder:7b",
			"review": "deepseek-r1:14b",
		},
		Default: "llama3.1:8b",
	}
}

func (r *Registry) validate() error {
	if r.Default == "" {
		return fmt.Errorf("no default model configured")
	}
	if len(r.Models) == 0 {
		return fmt.Errorf("no models configured")
	}
	if r.Lookup(r.Default) == nil {
		return fmt.Errorf("default model %q is not in the model list", r.Default)
	}
	for target, model := range r.Targets {
		if r.Lookup(model) == nil {
			return fmt.Errorf("target %q maps to unknown model %q", target, model)
		}
	}
	for task, model := range r.Tasks {
		if r.Lookup(model) == nil {
			return fmt.Errorf("task %q maps to unknown model %q", task, model)
		}
	}
	return nil
}

// Lookup finds a model by ID or alias, or nil if unknown.
func (r *Registry) Lookup(name string) *ModelConfig {
	for i := range r.Models {
		if r.Models[i].ID == name {
			return &r.Models[i]
		}
		for _, alias := range r.Models[i].Aliases {
			if alias == name {
				return &r.Models[i]
			}
		}
	}
	return nil
}

// TaskNames returns the configured task names in sorted order.
func (r *Registry) TaskNames() []string {
	names := make([]string, 0, len(r.Tasks))
	for name := range r.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
