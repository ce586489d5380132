// Package skills defines reusable task profiles: a system prompt, a user
// prompt template, the tools the task is allowed to use, and a model
// preference the selector treats as a task hint. Skills load from YAML
// files; a set of builtins covers the common tasks out of the box.
package skills

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Skill is one task profile.
type Skill struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	ModelPreference    string   `yaml:"model_preference"`
	SystemPrompt       string   `yaml:"system_prompt"`
	UserPromptTemplate string   `yaml:"user_prompt_template"`
	Tools              []string `yaml:"tools"`
	OutputFormat       string   `yaml:"output_format"`
}

// Validate checks that a skill is usable.
func (s *Skill) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("skill has no name")
	}
	if s.SystemPrompt == "" {
		return fmt.Errorf("skill %q has no system prompt", s.Name)
	}
	return nil
}

// RenderUserPrompt fills the user prompt template with the task input.
// Skills without a template pass the input through unchanged.
func (s *Skill) RenderUserPrompt(input string) (string, error) {
	if s.UserPromptTemplate == "" {
		return input, nil
	}
	tmpl, err := template.New(s.Name).Parse(s.UserPromptTemplate)
	if err != nil {
		return "", fmt.Errorf("skill %q has an invalid template: %w", s.Name, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, map[string]string{"Input": input}); err != nil {
		return "", fmt.Errorf("skill %q template failed: %w", s.Name, err)
	}
	return sb.String(), nil
}

// FullSystemPrompt is the system prompt with the output format appended
// when one is configured.
func (s *Skill) FullSystemPrompt() string {
	if s.OutputFormat == "" {
		return s.SystemPrompt
	}
	return s.SystemPrompt + "\n\nOutput format:\n" + s.OutputFormat
}

// Load reads a skill from a YAML file.
func Load(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill %s: %w", path, err)
	}
	return LoadFromString(string(data))
}

// LoadFromString parses a skill from YAML.
func LoadFromString(data string) (*Skill, error) {
	var s Skill
	if err := yaml.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("parse skill: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadDir loads every .yaml/.yml file in dir as a skill, layered over the
// builtins. A file whose skill name matches a builtin replaces it.
func LoadDir(dir string) (map[string]*Skill, error) {
	set := Builtin()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("read skills dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		s, err := Load(dir + "/" + name)
		if err != nil {
			return nil, err
		}
		set[s.Name] = s
	}
	return set, nil
}

// Get returns a skill by name from set.
func Get(set map[string]*Skill, name string) (*Skill, error) {
	s, ok := set[name]
	if !ok {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown skill %q: available skills are %s", name, strings.Join(names, ", "))
	}
	return s, nil
}

// List returns the skills in set sorted by name.
func List(set map[string]*Skill) []*Skill {
	out := make([]*Skill, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
