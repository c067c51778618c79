// Package preproc resolves compiler directives (`include, `define,
// conditional compilation) into a flat sequence of source lines. Each line
// keeps the file and line number it originally came from, so downstream
// diagnostics point at the text the user wrote rather than at the expanded
// buffer.
package preproc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hdlkit/svparse/sv"
)

// Line is one line of preprocessed text tagged with its origin.
type Line struct {
	File string
	Num  int
	Text string
}

// Options controls include resolution and the initial macro table.
type Options struct {
	IncludeDirs []string
	Defines     map[string]string
}

const maxExpandDepth = 64

type macro struct {
	params  []string // nil for object-like macros
	body    string
	hasArgs bool
}

type condFrame struct {
	active  bool // branch currently selected and parent active
	taken   bool // some branch of this if-chain already selected
	inElse  bool
	line    int
	file    string
}

type preprocessor struct {
	includeDirs []string
	macros      map[string]macro
	conds       []condFrame
	stack       []string // absolute paths of files being included
	lines       []Line
	diags       []sv.Diagnostic
}

// Expand preprocesses text (from filename) into flat lines plus any
// diagnostics. It never fails: unresolvable directives degrade into
// PreprocError diagnostics and the offending line is dropped.
func Expand(filename, text string, opts Options) ([]Line, []sv.Diagnostic) {
	p := &preprocessor{
		includeDirs: opts.IncludeDirs,
		macros:      make(map[string]macro),
	}
	for name, body := range opts.Defines {
		p.macros[name] = macro{body: body}
	}
	p.stack = append(p.stack, absPath(filename))
	p.processText(filename, text)
	p.stack = p.stack[:len(p.stack)-1]

	for _, frame := range p.conds {
		p.errorf(frame.file, frame.line, 1, "unterminated conditional directive")
	}
	return p.lines, p.diags
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (p *preprocessor) active() bool {
	for _, frame := range p.conds {
		if !frame.active {
			return false
		}
	}
	return true
}

func (p *preprocessor) errorf(file string, line, col int, format string, args ...any) {
	p.diags = append(p.diags, sv.Diagnostic{
		Kind:    sv.DiagPreproc,
		File:    file,
		Line:    line,
		Col:     col,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *preprocessor) processText(filename, text string) {
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		lineNum := i + 1
		raw := lines[i]
		trimmed := strings.TrimSpace(raw)

		if strings.HasPrefix(trimmed, "`") {
			directive, rest := splitDirective(trimmed[1:])
			switch directive {
			case "include":
				if p.active() {
					p.handleInclude(filename, lineNum, rest)
				}
				continue
			case "define":
				// Continuation lines end with a backslash.
				body := rest
				for strings.HasSuffix(body, "\\") && i+1 < len(lines) {
					i++
					body = strings.TrimSpace(strings.TrimSuffix(body, "\\")) + " " + strings.TrimSpace(lines[i])
				}
				if p.active() {
					p.handleDefine(filename, lineNum, body)
				}
				continue
			case "undef":
				if p.active() {
					delete(p.macros, strings.TrimSpace(rest))
				}
				continue
			case "ifdef", "ifndef":
				name := strings.TrimSpace(rest)
				_, defined := p.macros[name]
				selected := defined == (directive == "ifdef")
				p.conds = append(p.conds, condFrame{
					active: p.active() && selected,
					taken:  selected,
					line:   lineNum,
					file:   filename,
				})
				continue
			case "elsif":
				p.handleElsif(filename, lineNum, rest)
				continue
			case "else":
				p.handleElse(filename, lineNum)
				continue
			case "endif":
				if len(p.conds) == 0 {
					p.errorf(filename, lineNum, 1, "`endif without matching `ifdef")
					continue
				}
				p.conds = p.conds[:len(p.conds)-1]
				continue
			case "timescale", "default_nettype", "resetall", "undefineall",
				"line", "pragma", "celldefine", "endcelldefine",
				"begin_keywords", "end_keywords":
				// Recognized but irrelevant to the structural model.
				continue
			}
			// Anything else is a macro reference at line start; fall
			// through to normal expansion.
		}

		if !p.active() {
			continue
		}
		expanded := p.expandLine(filename, lineNum, raw, 0, 1)
		p.lines = append(p.lines, Line{File: filename, Num: lineNum, Text: expanded})
	}
}

func splitDirective(s string) (string, string) {
	end := 0
	for end < len(s) && (isIdentChar(s[end])) {
		end++
	}
	return s[:end], strings.TrimSpace(s[end:])
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}

func (p *preprocessor) handleElsif(filename string, lineNum int, rest string) {
	if len(p.conds) == 0 {
		p.errorf(filename, lineNum, 1, "`elsif without matching `ifdef")
		return
	}
	frame := &p.conds[len(p.conds)-1]
	if frame.inElse {
		p.errorf(filename, lineNum, 1, "`elsif after `else")
		return
	}
	parent := true
	for _, f := range p.conds[:len(p.conds)-1] {
		parent = parent && f.active
	}
	_, defined := p.macros[strings.TrimSpace(rest)]
	frame.active = parent && !frame.taken && defined
	if frame.active {
		frame.taken = true
	}
}

func (p *preprocessor) handleElse(filename string, lineNum int) {
	if len(p.conds) == 0 {
		p.errorf(filename, lineNum, 1, "`else without matching `ifdef")
		return
	}
	frame := &p.conds[len(p.conds)-1]
	if frame.inElse {
		p.errorf(filename, lineNum, 1, "duplicate `else")
		return
	}
	frame.inElse = true
	parent := true
	for _, f := range p.conds[:len(p.conds)-1] {
		parent = parent && f.active
	}
	frame.active = parent && !frame.taken
	if frame.active {
		frame.taken = true
	}
}

func (p *preprocessor) handleDefine(filename string, lineNum int, rest string) {
	name, after := splitDirectiveName(rest)
	if name == "" {
		p.errorf(filename, lineNum, 1, "`define without a macro name")
		return
	}
	m := macro{}
	// A parameter list only counts when the paren hugs the name.
	if strings.HasPrefix(after, "(") {
		close := strings.IndexByte(after, ')')
		if close < 0 {
			p.errorf(filename, lineNum, 1, "unterminated parameter list in `define %s", name)
			return
		}
		m.hasArgs = true
		for _, param := range strings.Split(after[1:close], ",") {
			param = strings.TrimSpace(param)
			if param != "" {
				m.params = append(m.params, param)
			}
		}
		m.body = strings.TrimSpace(after[close+1:])
	} else {
		m.body = strings.TrimSpace(after)
	}
	p.macros[name] = m
}

func splitDirectiveName(s string) (string, string) {
	end := 0
	for end < len(s) && isIdentChar(s[end]) {
		end++
	}
	return s[:end], s[end:]
}

func (p *preprocessor) handleInclude(filename string, lineNum int, rest string) {
	target, ok := includeTarget(rest)
	if !ok {
		p.errorf(filename, lineNum, 1, "malformed `include directive")
		return
	}
	resolved := p.resolveInclude(filename, target, strings.HasPrefix(rest, "\""))
	if resolved == "" {
		p.errorf(filename, lineNum, 1, "cannot resolve `include %q", target)
		return
	}
	abs := absPath(resolved)
	for _, onStack := range p.stack {
		if onStack == abs {
			p.errorf(filename, lineNum, 1, "include cycle: %q is already being included", target)
			return
		}
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		p.errorf(filename, lineNum, 1, "cannot read `include %q: %v", target, err)
		return
	}
	p.stack = append(p.stack, abs)
	p.processText(resolved, string(data))
	p.stack = p.stack[:len(p.stack)-1]
}

func includeTarget(rest string) (string, bool) {
	if len(rest) >= 2 && rest[0] == '"' {
		if end := strings.IndexByte(rest[1:], '"'); end >= 0 {
			return rest[1 : 1+end], true
		}
	}
	if len(rest) >= 2 && rest[0] == '<' {
		if end := strings.IndexByte(rest, '>'); end > 0 {
			return rest[1:end], true
		}
	}
	return "", false
}

func (p *preprocessor) resolveInclude(from, target string, quoted bool) string {
	var candidates []string
	if quoted {
		candidates = append(candidates, filepath.Join(filepath.Dir(from), target))
	}
	for _, dir := range p.includeDirs {
		candidates = append(candidates, filepath.Join(dir, target))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// expandLine substitutes every `NAME reference in text. Expansion is
// textual and re-scans its own output, bounded by maxExpandDepth so a
// self-referential macro terminates with a diagnostic instead of looping.
// expandLine rewrites macro references in text. At the top level each
// reference reports diagnostics at its own column in the original line;
// inside macro bodies (depth > 0) col carries the column of the reference
// on the original line, so diagnostics never point into expanded text.
func (p *preprocessor) expandLine(filename string, lineNum int, text string, depth, col int) string {
	if depth > maxExpandDepth {
		p.errorf(filename, lineNum, col, "macro expansion too deep (recursive `define?)")
		return ""
	}
	var out strings.Builder
	i := 0
	for i < len(text) {
		c := text[i]
		if c != '`' {
			// Skip string literals wholesale so a backtick inside one
			// is not treated as a macro reference.
			if c == '"' {
				end := i + 1
				for end < len(text) && text[end] != '"' {
					if text[end] == '\\' {
						end++
					}
					end++
				}
				if end < len(text) {
					end++
				}
				out.WriteString(text[i:end])
				i = end
				continue
			}
			out.WriteByte(c)
			i++
			continue
		}
		name, rest := splitDirectiveName(text[i+1:])
		if name == "" {
			out.WriteByte(c)
			i++
			continue
		}
		refCol := col
		if depth == 0 {
			refCol = i + 1
		}
		m, ok := p.macros[name]
		if !ok {
			p.errorf(filename, lineNum, refCol, "undefined macro `%s", name)
			i += 1 + len(name)
			continue
		}
		consumed := 1 + len(name)
		body := m.body
		if m.hasArgs {
			args, used, ok := parseMacroArgs(rest)
			if !ok {
				p.errorf(filename, lineNum, refCol, "macro `%s expects arguments", name)
				i += consumed
				continue
			}
			consumed += used
			body = substituteParams(m.body, m.params, args)
		}
		out.WriteString(p.expandLine(filename, lineNum, body, depth+1, refCol))
		i += consumed
	}
	return out.String()
}

// parseMacroArgs reads a parenthesized argument list from the text that
// follows a macro name. Returns the arguments, the byte count consumed and
// whether a list was present at all.
func parseMacroArgs(s string) ([]string, int, bool) {
	j := 0
	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}
	if j >= len(s) || s[j] != '(' {
		return nil, 0, false
	}
	depth := 0
	start := j + 1
	var args []string
	for k := j; k < len(s); k++ {
		switch s[k] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:k]))
				return args, k + 1, true
			}
		case ',':
			if depth == 1 {
				args = append(args, strings.TrimSpace(s[start:k]))
				start = k + 1
			}
		}
	}
	return nil, 0, false
}

// substituteParams replaces whole-identifier occurrences of each parameter
// with the corresponding argument text.
func substituteParams(body string, params, args []string) string {
	values := make(map[string]string, len(params))
	for i, param := range params {
		if i < len(args) {
			values[param] = args[i]
		} else {
			values[param] = ""
		}
	}
	var out strings.Builder
	i := 0
	for i < len(body) {
		if isIdentStart(body[i]) {
			end := i
			for end < len(body) && isIdentChar(body[end]) {
				end++
			}
			word := body[i:end]
			if value, ok := values[word]; ok {
				out.WriteString(value)
			} else {
				out.WriteString(word)
			}
			i = end
			continue
		}
		out.WriteByte(body[i])
		i++
	}
	return out.String()
}
