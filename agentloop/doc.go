// Package agentloop implements a secure tool-execution loop for a
// codebase-exploration agent.
//
// It pairs a language model with a closed set of read-only tools and runs
// the conversation to an outcome: the model asks for tool invocations, the
// loop executes them under a path jail, per-call deadlines, and output
// bounds, and the results flow back until the model produces a final
// answer or the turn ceiling is hit.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - Session: the orchestrator holding conversation state, dispatching
//     invocations, and enforcing the turn ceiling.
//   - ToolRegistry: the sealed set of tools a session may use; lookup of
//     an unregistered name is a denial.
//   - PathGuard: resolves every filesystem path against the workspace
//     root and the sensitive-file patterns before any read happens.
//   - Sandbox: executes invocations with deadlines and bounded output,
//     turning failures into error-flagged results instead of aborting.
//   - EventEmitter: typed event stream for host application integration.
//
// # Quick Start
//
//	guard, _ := agentloop.NewPathGuard("/path/to/project")
//	ws := agentloop.NewWorkspace(guard, logger)
//	git := agentloop.NewGitRunner(guard, logger)
//	reg := agentloop.NewToolRegistry()
//	agentloop.RegisterCoreTools(reg, ws, git)
//
//	session := agentloop.NewSession(client, reg, agentloop.DefaultSessionConfig(), logger)
//	outcome := session.Run(ctx, "What does the storage package do?")
//	fmt.Println(outcome.Answer)
package agentloop
