package agentloop

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// OutputLimits caps the size of any textual result returned to the model.
type OutputLimits struct {
	MaxBytes int
	MaxLines int
}

// DefaultOutputLimits returns the fallback limits for tools without a
// per-tool override.
func DefaultOutputLimits() OutputLimits {
	return OutputLimits{MaxBytes: 50000, MaxLines: 2000}
}

// defaultToolLimits are per-tool output caps. Tools without an entry use
// DefaultOutputLimits.
var defaultToolLimits = map[string]OutputLimits{
	"read_file":         {MaxBytes: 50000, MaxLines: 2000},
	"git_diff":          {MaxBytes: 50000, MaxLines: 2000},
	"git_log":           {MaxBytes: 20000, MaxLines: 500},
	"list_directory":    {MaxBytes: 20000, MaxLines: 500},
	"git_status":        {MaxBytes: 20000, MaxLines: 500},
	"git_changed_files": {MaxBytes: 20000, MaxLines: 500},
	"search_code":       {MaxBytes: 30000, MaxLines: 400},
	"list_definitions":  {MaxBytes: 30000, MaxLines: 600},
}

// LimitsForTool returns the output limits for a tool, preferring overrides,
// then the per-tool defaults, then the global default.
func LimitsForTool(name string, overrides map[string]OutputLimits) OutputLimits {
	if overrides != nil {
		if l, ok := overrides[name]; ok {
			return l
		}
	}
	if l, ok := defaultToolLimits[name]; ok {
		return l
	}
	return DefaultOutputLimits()
}

// Bound truncates output to the configured byte and line caps. When any
// truncation occurs, exactly one marker is appended stating what was kept;
// the marker is never dropped, so the model can tell the output is partial.
func Bound(output string, limits OutputLimits) string {
	totalBytes := len(output)
	totalLines := strings.Count(output, "\n") + 1
	if output == "" {
		totalLines = 0
	}

	truncated := false
	result := output

	if limits.MaxBytes > 0 && len(result) > limits.MaxBytes {
		cut := limits.MaxBytes
		for cut > 0 && !utf8.RuneStart(result[cut]) {
			cut--
		}
		result = result[:cut]
		truncated = true
	}

	if limits.MaxLines > 0 {
		lines := strings.Split(result, "\n")
		if len(lines) > limits.MaxLines {
			result = strings.Join(lines[:limits.MaxLines], "\n")
			truncated = true
		}
	}

	if !truncated {
		return output
	}

	keptLines := strings.Count(result, "\n") + 1
	return result + fmt.Sprintf(
		"\n[output truncated: showing %d of %d lines, %d of %d bytes]",
		keptLines, totalLines, len(result), totalBytes)
}
