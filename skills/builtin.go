package skills

// Builtin returns the built-in skill set. The map is freshly allocated so
// callers can layer their own skills over it.
func Builtin() map[string]*Skill {
	set := make(map[string]*Skill, len(builtinSkills))
	for i := range builtinSkills {
		s := builtinSkills[i]
		set[s.Name] = &s
	}
	return set
}

var builtinSkills = []Skill{
	{
		Name:            "chat",
		Description:     "General conversation about the codebase.",
		ModelPreference: "chat",
		SystemPrompt: "You are a helpful assistant exploring a codebase. " +
			"Use the available tools to read files and inspect the repository before answering. " +
			"Be concise and cite the files you looked at.",
		Tools: []string{
			"read_file", "list_directory", "file_info",
			"search_code", "list_definitions",
			"git_status", "git_log",
		},
	},
	{
		Name:            "code-review",
		Description:     "Review uncommitted changes and point out problems.",
		ModelPreference: "review",
		SystemPrompt: "You are a careful code reviewer. Inspect the uncommitted changes with the " +
			"git tools, read the surrounding code for context, and report concrete problems: " +
			"bugs, missing error handling, races, and unclear naming. Do not restate the diff.",
		UserPromptTemplate: "Review the current changes.{{if .Input}} Focus: {{.Input}}{{end}}",
		Tools: []string{
			"git_diff", "git_status", "git_changed_files",
			"read_file", "search_code", "list_definitions",
		},
		OutputFormat: "A numbered list of findings, each with file, line, severity, and a suggested fix.",
	},
	{
		Name:            "explain",
		Description:     "Explain how a piece of the codebase works.",
		ModelPreference: "chat",
		SystemPrompt: "You explain code to developers new to this repository. Read the relevant " +
			"files, follow the call paths, and describe how the pieces fit together. " +
			"Prefer walking through real code over generalities.",
		UserPromptTemplate: "Explain: {{.Input}}",
		Tools: []string{
			"read_file", "list_directory", "file_info",
			"search_code", "list_definitions", "git_log",
		},
	},
	{
		Name:            "commit-message",
		Description:     "Draft a commit message for the staged changes.",
		ModelPreference: "code",
		SystemPrompt: "You write commit messages. Inspect the staged changes and produce a single " +
			"commit message: a summary line under 72 characters, a blank line, then a short body " +
			"explaining what changed and why. Output only the message.",
		Tools: []string{
			"git_diff", "git_status", "git_changed_files",
		},
		OutputFormat: "The commit message text only, no surrounding commentary.",
	},
	{
		Name:            "summarize",
		Description:     "Summarize a file or directory.",
		ModelPreference: "chat",
		SystemPrompt: "You summarize code. Read the requested files and produce a compact summary " +
			"of what they contain and how they are used.",
		UserPromptTemplate: "Summarize: {{.Input}}",
		Tools: []string{
			"read_file", "list_directory", "list_definitions",
		},
	},
}
