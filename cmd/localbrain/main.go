// Command localbrain runs a local model against a codebase through a
// restricted, read-only tool loop.
//
// Usage:
//
//	localbrain run [-skill name] "task description"
//	localbrain review [focus]
//	localbrain commit
//	localbrain skills
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/localbrain/localbrain/agentloop"
	"github.com/localbrain/localbrain/modelclient"
	"github.com/localbrain/localbrain/modelselect"
	"github.com/localbrain/localbrain/skills"
)

const modelEnvVar = "LOCALBRAIN_MODEL"

type options struct {
	root     string
	model    string
	target   string
	skill    string
	registry string
	maxTurns int
	verbose  bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "localbrain:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("a command is required")
	}
	command := args[0]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	var opts options
	fs.StringVar(&opts.root, "root", ".", "workspace root to explore")
	fs.StringVar(&opts.model, "model", "", "exact model to use, bypassing selection")
	fs.StringVar(&opts.target, "target", "", "registry target category (e.g. a language or file extension)")
	fs.StringVar(&opts.skill, "skill", "", "skill to run (run command only)")
	fs.StringVar(&opts.registry, "registry", defaultRegistryPath(), "model registry TOML file")
	fs.IntVar(&opts.maxTurns, "max-turns", 10, "maximum model turns before giving up")
	fs.BoolVar(&opts.verbose, "verbose", false, "show session events and debug logs")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	input := strings.Join(fs.Args(), " ")

	skillSet, err := skills.LoadDir(filepath.Join(opts.root, ".localbrain", "skills"))
	if err != nil {
		return err
	}

	switch command {
	case "run":
		name := opts.skill
		if name == "" {
			name = "chat"
		}
		return runSkill(opts, skillSet, name, input)
	case "review":
		return runSkill(opts, skillSet, "code-review", input)
	case "commit":
		return runSkill(opts, skillSet, "commit-message", input)
	case "skills":
		for _, s := range skills.List(skillSet) {
			fmt.Printf("%-16s %s\n", s.Name, s.Description)
		}
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runSkill(opts options, skillSet map[string]*skills.Skill, name, input string) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	skill, err := skills.Get(skillSet, name)
	if err != nil {
		return err
	}

	registry, err := loadRegistry(opts.registry, logger)
	if err != nil {
		return err
	}

	override := opts.model
	if override == "" {
		override = os.Getenv(modelEnvVar)
	}
	model, err := modelselect.Select(registry, modelselect.SelectionRequest{
		Override: override,
		Target:   opts.target,
		Task:     skill.ModelPreference,
	})
	if err != nil {
		return err
	}
	logger.Debug("model selected", zap.String("model", model), zap.String("skill", name))

	guard, err := agentloop.NewPathGuard(opts.root)
	if err != nil {
		return err
	}
	ws := agentloop.NewWorkspace(guard, logger)
	git := agentloop.NewGitRunner(guard, logger)
	tools := agentloop.NewToolRegistry()
	if err := agentloop.RegisterCoreTools(tools, ws, git); err != nil {
		return err
	}
	restricted := tools.Restrict(skill.Tools)

	adapter, err := modelclient.NewGollmAdapter("ollama", "", modelclient.WithModel(model))
	if err != nil {
		return err
	}
	client := modelclient.NewClient(
		modelclient.WithProvider("ollama", adapter),
		modelclient.WithDefaultProvider("ollama"),
	)

	session := agentloop.NewSession(client, restricted, agentloop.SessionConfig{
		Model:        model,
		SystemPrompt: skill.FullSystemPrompt(),
		MaxTurns:     opts.maxTurns,
	}, logger)

	if opts.verbose {
		go printEvents(session.Events())
	} else {
		go drainEvents(session.Events())
	}

	task, err := skill.RenderUserPrompt(input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome := session.Run(ctx, task)
	switch outcome.Kind {
	case agentloop.OutcomeFinal:
		fmt.Println(outcome.Answer)
		return nil
	case agentloop.OutcomeTurnLimit:
		return fmt.Errorf("turn limit reached after %d turns without a final answer", outcome.Turns)
	case agentloop.OutcomeCancelled:
		return fmt.Errorf("cancelled")
	default:
		return fmt.Errorf("session failed: %w", outcome.Err)
	}
}

func loadRegistry(path string, logger *zap.Logger) (*modelselect.Registry, error) {
	if _, err := os.Stat(path); err != nil {
		logger.Debug("no model registry file, using builtin defaults", zap.String("path", path))
		return modelselect.DefaultRegistry(), nil
	}
	return modelselect.LoadRegistry(path)
}

func defaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models.toml"
	}
	return filepath.Join(home, ".localbrain", "models.toml")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func printEvents(events <-chan agentloop.SessionEvent) {
	for event := range events {
		switch event.Kind {
		case agentloop.EventInvocationStart:
			fmt.Fprintf(os.Stderr, "-> %v\n", event.Data["tool"])
		case agentloop.EventInvocationEnd:
			if isErr, _ := event.Data["is_error"].(bool); isErr {
				fmt.Fprintf(os.Stderr, "<- %v failed\n", event.Data["invocation_id"])
			}
		case agentloop.EventWarning, agentloop.EventError:
			fmt.Fprintf(os.Stderr, "!! %v\n", event.Data)
		}
	}
}

func drainEvents(events <-chan agentloop.SessionEvent) {
	for range events {
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: localbrain <command> [flags] [input]

commands:
  run      run a skill against the workspace (default skill: chat)
  review   review uncommitted changes
  commit   draft a commit message for staged changes
  skills   list available skills

flags:
  -root       workspace root (default .)
  -model      exact model to use, bypassing selection
  -target     registry target category for model selection
  -skill      skill name for the run command
  -registry   model registry TOML file
  -max-turns  maximum model turns (default 10)
  -verbose    show session events and debug logs`)
}
