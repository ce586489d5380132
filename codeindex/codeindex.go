// Package codeindex provides structural search and definition extraction
// for source files. Go files are parsed into their syntax tree so matches
// carry the enclosing declaration and definitions are reported signature
// only. Anything that is not Go, or does not parse, degrades to plain
// line-based search instead of failing the tool call.
package codeindex

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
)

// Definition is one named top-level unit in a source file. Signature holds
// the declaration line only, never the body.
type Definition struct {
	Name      string
	Kind      string
	Receiver  string
	Signature string
	StartLine int
	EndLine   int
}

// Match is one search hit. Context names the enclosing declaration for
// structural matches and is empty in the plain-text fallback.
type Match struct {
	Line    int
	Text    string
	Context string
}

// SearchOptions controls matching.
type SearchOptions struct {
	CaseInsensitive bool
	MaxMatches      int
}

const defaultMaxMatches = 100

// ListDefinitions extracts the top-level definitions of a Go source file.
// The second return reports whether structural parsing succeeded; for
// non-Go or unparsable input it is false and the definition list is empty.
func ListDefinitions(filename, src string) ([]Definition, bool) {
	if filepath.Ext(filename) != ".go" {
		return nil, false
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, false
	}

	var defs []Definition
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			defs = append(defs, funcDefinition(fset, src, d))
		case *ast.GenDecl:
			defs = append(defs, genDefinitions(fset, src, d)...)
		}
	}
	return defs, true
}

func funcDefinition(fset *token.FileSet, src string, d *ast.FuncDecl) Definition {
	kind := "func"
	receiver := ""
	if d.Recv != nil && len(d.Recv.List) > 0 {
		kind = "method"
		receiver = sourceRange(fset, src, d.Recv.List[0].Type.Pos(), d.Recv.List[0].Type.End())
	}
	sigEnd := d.Type.End()
	return Definition{
		Name:      d.Name.Name,
		Kind:      kind,
		Receiver:  receiver,
		Signature: condense(sourceRange(fset, src, d.Pos(), sigEnd)),
		StartLine: fset.Position(d.Pos()).Line,
		EndLine:   fset.Position(d.End()).Line,
	}
}

func genDefinitions(fset *token.FileSet, src string, d *ast.GenDecl) []Definition {
	var kind string
	switch d.Tok {
	case token.TYPE:
		kind = "type"
	case token.CONST:
		kind = "const"
	case token.VAR:
		kind = "var"
	default:
		return nil
	}

	var defs []Definition
	for _, spec := range d.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			sig := "type " + s.Name.Name
			if _, ok := s.Type.(*ast.StructType); ok {
				sig += " struct"
			} else if _, ok := s.Type.(*ast.InterfaceType); ok {
				sig += " interface"
			}
			defs = append(defs, Definition{
				Name:      s.Name.Name,
				Kind:      kind,
				Signature: sig,
				StartLine: fset.Position(s.Pos()).Line,
				EndLine:   fset.Position(s.End()).Line,
			})
		case *ast.ValueSpec:
			for _, name := range s.Names {
				if name.Name == "_" {
					continue
				}
				defs = append(defs, Definition{
					Name:      name.Name,
					Kind:      kind,
					Signature: kind + " " + name.Name,
					StartLine: fset.Position(s.Pos()).Line,
					EndLine:   fset.Position(s.End()).Line,
				})
			}
		}
	}
	return defs
}

// Search finds query in src. For parsable Go files each match carries the
// enclosing declaration; otherwise matching is plain line search. The
// second return reports whether the matches are structural.
func Search(filename, src, query string, opts SearchOptions) ([]Match, bool) {
	maxMatches := opts.MaxMatches
	if maxMatches <= 0 {
		maxMatches = defaultMaxMatches
	}

	needle := query
	haystackLine := func(line string) string { return line }
	if opts.CaseInsensitive {
		needle = strings.ToLower(query)
		haystackLine = strings.ToLower
	}

	defs, structural := ListDefinitions(filename, src)

	var matches []Match
	for i, line := range strings.Split(src, "\n") {
		if len(matches) >= maxMatches {
			break
		}
		if !strings.Contains(haystackLine(line), needle) {
			continue
		}
		m := Match{Line: i + 1, Text: strings.TrimRight(line, " \t")}
		if structural {
			m.Context = enclosingContext(defs, i+1)
		}
		matches = append(matches, m)
	}
	return matches, structural
}

// enclosingContext returns the signature of the innermost definition whose
// line range contains line.
func enclosingContext(defs []Definition, line int) string {
	best := ""
	bestSpan := 0
	for _, d := range defs {
		if line < d.StartLine || line > d.EndLine {
			continue
		}
		span := d.EndLine - d.StartLine
		if best == "" || span < bestSpan {
			best = d.Signature
			bestSpan = span
		}
	}
	return best
}

// FormatDefinitions renders definitions for the model, one per line with
// the line range.
func FormatDefinitions(path string, defs []Definition, structural bool) string {
	if !structural {
		return fmt.Sprintf("%s: not a parsable Go file, no definitions extracted", path)
	}
	if len(defs) == 0 {
		return fmt.Sprintf("%s: no top-level definitions", path)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d definitions)\n", path, len(defs))
	for _, d := range defs {
		fmt.Fprintf(&sb, "%d-%d: %s\n", d.StartLine, d.EndLine, d.Signature)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatMatches renders search matches for the model.
func FormatMatches(path string, matches []Match, structural bool) string {
	if len(matches) == 0 {
		return fmt.Sprintf("%s: no matches", path)
	}
	var sb strings.Builder
	mode := "plain-text"
	if structural {
		mode = "structural"
	}
	fmt.Fprintf(&sb, "%s (%d matches, %s)\n", path, len(matches), mode)
	for _, m := range matches {
		if m.Context != "" {
			fmt.Fprintf(&sb, "%d [%s]: %s\n", m.Line, m.Context, strings.TrimSpace(m.Text))
		} else {
			fmt.Fprintf(&sb, "%d: %s\n", m.Line, strings.TrimSpace(m.Text))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sourceRange(fset *token.FileSet, src string, from, to token.Pos) string {
	start := fset.Position(from).Offset
	end := fset.Position(to).Offset
	if start < 0 || end > len(src) || start >= end {
		return ""
	}
	return src[start:end]
}

// condense collapses a multi-line signature to a single line.
func condense(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
