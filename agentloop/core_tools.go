package agentloop

import (
	"context"

	"github.com/localbrain/localbrain/codeindex"
)

// RegisterCoreTools registers the read-only exploration tools on a
// ToolRegistry. Filesystem tools delegate to the Workspace, git tools to
// the GitRunner.
func RegisterCoreTools(reg *ToolRegistry, ws *Workspace, git *GitRunner) error {
	registrations := []func() error{
		func() error { return registerReadFile(reg, ws) },
		func() error { return registerListDirectory(reg, ws) },
		func() error { return registerFileInfo(reg, ws) },
		func() error { return registerSearchCode(reg, ws) },
		func() error { return registerListDefinitions(reg, ws) },
		func() error { return registerGitDiff(reg, git) },
		func() error { return registerGitStatus(reg, git) },
		func() error { return registerGitLog(reg, git) },
		func() error { return registerGitChangedFiles(reg, git) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func registerReadFile(reg *ToolRegistry, ws *Workspace) error {
	return reg.Register(ToolDefinition{
		Name:        "read_file",
		Description: "Read a file from the workspace. Paths are relative to the workspace root.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path of the file to read, relative to the workspace root.",
				},
			},
			"required": []any{"path"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		path, ok := getStringArg(args, "path")
		if !ok || path == "" {
			return "", &MalformedError{Detail: "path is required"}
		}
		return ws.ReadFile(path)
	})
}

func registerListDirectory(reg *ToolRegistry, ws *Workspace) error {
	return reg.Register(ToolDefinition{
		Name:        "list_directory",
		Description: "List entries in a workspace directory. Hidden files and dependency directories are omitted.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory to list. Default: the workspace root.",
				},
				"pattern": map[string]any{
					"type":        "string",
					"description": "Glob pattern to filter entry names (e.g. \"*.go\").",
				},
			},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		path, _ := getStringArg(args, "path")
		if path == "" {
			path = "."
		}
		pattern, _ := getStringArg(args, "pattern")
		return ws.ListDirectory(path, pattern)
	})
}

func registerFileInfo(reg *ToolRegistry, ws *Workspace) error {
	return reg.Register(ToolDefinition{
		Name:        "file_info",
		Description: "Show size, type, and modification time for a workspace path.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to inspect, relative to the workspace root.",
				},
			},
			"required": []any{"path"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		path, ok := getStringArg(args, "path")
		if !ok || path == "" {
			return "", &MalformedError{Detail: "path is required"}
		}
		return ws.FileInfo(path)
	})
}

func registerSearchCode(reg *ToolRegistry, ws *Workspace) error {
	return reg.Register(ToolDefinition{
		Name:        "search_code",
		Description: "Search a file for a query string. For Go files, matches are reported with the enclosing declaration.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File to search, relative to the workspace root.",
				},
				"query": map[string]any{
					"type":        "string",
					"description": "Text to search for.",
				},
				"case_insensitive": map[string]any{
					"type":        "boolean",
					"description": "Ignore case when matching. Default: false.",
				},
			},
			"required": []any{"path", "query"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		path, ok := getStringArg(args, "path")
		if !ok || path == "" {
			return "", &MalformedError{Detail: "path is required"}
		}
		query, ok := getStringArg(args, "query")
		if !ok || query == "" {
			return "", &MalformedError{Detail: "query is required"}
		}
		caseInsensitive, _ := getBoolArg(args, "case_insensitive")
		src, err := ws.ReadFile(path)
		if err != nil {
			return "", err
		}
		matches, structural := codeindex.Search(path, src, query, codeindex.SearchOptions{
			CaseInsensitive: caseInsensitive,
		})
		return codeindex.FormatMatches(path, matches, structural), nil
	})
}

func registerListDefinitions(reg *ToolRegistry, ws *Workspace) error {
	return reg.Register(ToolDefinition{
		Name:        "list_definitions",
		Description: "List the top-level definitions in a Go source file with their signatures and line ranges.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Go file to index, relative to the workspace root.",
				},
			},
			"required": []any{"path"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		path, ok := getStringArg(args, "path")
		if !ok || path == "" {
			return "", &MalformedError{Detail: "path is required"}
		}
		src, err := ws.ReadFile(path)
		if err != nil {
			return "", err
		}
		defs, structural := codeindex.ListDefinitions(path, src)
		return codeindex.FormatDefinitions(path, defs, structural), nil
	})
}

func registerGitDiff(reg *ToolRegistry, git *GitRunner) error {
	return reg.Register(ToolDefinition{
		Name:        "git_diff",
		Description: "Show uncommitted changes as a unified diff.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"staged": map[string]any{
					"type":        "boolean",
					"description": "Show staged changes instead of working tree changes. Default: false.",
				},
				"file": map[string]any{
					"type":        "string",
					"description": "Limit the diff to a single file.",
				},
			},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		staged, _ := getBoolArg(args, "staged")
		file, _ := getStringArg(args, "file")
		return git.Diff(ctx, staged, file)
	})
}

func registerGitStatus(reg *ToolRegistry, git *GitRunner) error {
	return reg.Register(ToolDefinition{
		Name:        "git_status",
		Description: "Show the repository status in short format.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		return git.Status(ctx)
	})
}

func registerGitLog(reg *ToolRegistry, git *GitRunner) error {
	return reg.Register(ToolDefinition{
		Name:        "git_log",
		Description: "Show recent commits, one line each.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"count": map[string]any{
					"type":        "integer",
					"description": "Number of commits to show. Default: 10, max: 50.",
				},
			},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		count, _ := getIntArg(args, "count")
		return git.Log(ctx, count)
	})
}

func registerGitChangedFiles(reg *ToolRegistry, git *GitRunner) error {
	return reg.Register(ToolDefinition{
		Name:        "git_changed_files",
		Description: "List files touched by uncommitted changes.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"staged": map[string]any{
					"type":        "boolean",
					"description": "List staged files instead of working tree changes. Default: false.",
				},
				"include_untracked": map[string]any{
					"type":        "boolean",
					"description": "Include untracked files. Default: false.",
				},
			},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		staged, _ := getBoolArg(args, "staged")
		includeUntracked, _ := getBoolArg(args, "include_untracked")
		return git.ChangedFiles(ctx, staged, includeUntracked)
	})
}

func getStringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func getBoolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func getIntArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}
