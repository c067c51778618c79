// Package lexer turns preprocessed source lines into a flat token slice.
// Tokens carry the file/line/column they came from; comments are stripped
// here so the parser never sees them.
package lexer

import (
	"strings"

	"github.com/hdlkit/svparse/internal/preproc"
	"github.com/hdlkit/svparse/sv"
)

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Ident
	SystemIdent
	Keyword
	Number
	String
	Symbol
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "Ident"
	case SystemIdent:
		return "SystemIdent"
	case Keyword:
		return "Keyword"
	case Number:
		return "Number"
	case String:
		return "String"
	case Symbol:
		return "Symbol"
	}
	return "Kind(?)"
}

// Token is one classified lexeme.
type Token struct {
	Kind Kind
	Text string
	File string
	Line int
	Col  int
}

// keywords is the fixed SystemVerilog keyword subset relevant to
// module/port/type grammar. Everything else lexes as an identifier.
var keywords = map[string]bool{
	"module": true, "macromodule": true, "endmodule": true,
	"package": true, "endpackage": true,
	"interface": true, "endinterface": true,
	"input": true, "output": true, "inout": true, "ref": true,
	"logic": true, "bit": true, "reg": true,
	"wire": true, "uwire": true, "tri": true, "wand": true, "wor": true,
	"triand": true, "trior": true, "trireg": true,
	"tri0": true, "tri1": true, "supply0": true, "supply1": true,
	"int": true, "integer": true, "shortint": true, "longint": true,
	"byte": true, "real": true, "shortreal": true, "realtime": true,
	"time": true, "void": true, "string": true,
	"signed": true, "unsigned": true, "var": true,
	"parameter": true, "localparam": true,
	"import": true, "assign": true,
	"timeunit": true, "timeprecision": true,
}

// multiSymbols are the operators lexed as one token. Longest match first.
var multiSymbols = []string{
	"<<<", ">>>", "::", "<=", ">=", "==", "!=", "<<", ">>",
	"&&", "||", "+:", "-:", "**", "->", "##",
}

type lexer struct {
	lines []preproc.Line
	row   int // index into lines
	pos   int // byte offset into the current line

	inBlockComment   bool
	blockCommentFrom Token // position of the opening /*

	tokens []Token
	diags  []sv.Diagnostic
}

// Lex tokenizes the given lines. It is a pure function of its input:
// lexing the same lines twice yields equal slices, so re-lexing is how the
// sequence restarts.
func Lex(lines []preproc.Line) ([]Token, []sv.Diagnostic) {
	l := &lexer{lines: lines}
	for l.row = 0; l.row < len(l.lines); l.row++ {
		l.pos = 0
		l.lexLine()
	}
	if l.inBlockComment {
		l.diags = append(l.diags, sv.Diagnostic{
			Kind:    sv.DiagLex,
			File:    l.blockCommentFrom.File,
			Line:    l.blockCommentFrom.Line,
			Col:     l.blockCommentFrom.Col,
			Message: "unterminated block comment",
		})
	}
	eofFile := ""
	eofLine := 0
	if n := len(lines); n > 0 {
		eofFile = lines[n-1].File
		eofLine = lines[n-1].Num
	}
	l.tokens = append(l.tokens, Token{Kind: EOF, File: eofFile, Line: eofLine, Col: 1})
	return l.tokens, l.diags
}

// LexSource is a convenience for tests and in-memory parsing: it splits
// text into lines (no preprocessing) and lexes them.
func LexSource(file, text string) ([]Token, []sv.Diagnostic) {
	raw := strings.Split(text, "\n")
	lines := make([]preproc.Line, len(raw))
	for i, t := range raw {
		lines[i] = preproc.Line{File: file, Num: i + 1, Text: t}
	}
	return Lex(lines)
}

func (l *lexer) line() preproc.Line { return l.lines[l.row] }

func (l *lexer) here() (string, int, int) {
	ln := l.line()
	return ln.File, ln.Num, l.pos + 1
}

func (l *lexer) emit(kind Kind, text string, col int) {
	ln := l.line()
	l.tokens = append(l.tokens, Token{Kind: kind, Text: text, File: ln.File, Line: ln.Num, Col: col})
}

func (l *lexer) errorf(col int, msg string) {
	ln := l.line()
	l.diags = append(l.diags, sv.Diagnostic{
		Kind: sv.DiagLex, File: ln.File, Line: ln.Num, Col: col, Message: msg,
	})
}

func (l *lexer) lexLine() {
	text := l.line().Text

	if l.inBlockComment {
		end := strings.Index(text, "*/")
		if end < 0 {
			return
		}
		l.inBlockComment = false
		l.pos = end + 2
	}

	for l.pos < len(text) {
		c := text[l.pos]

		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++

		case c == '/' && l.pos+1 < len(text) && text[l.pos+1] == '/':
			return // rest of line is a comment

		case c == '/' && l.pos+1 < len(text) && text[l.pos+1] == '*':
			file, line, col := l.here()
			end := strings.Index(text[l.pos+2:], "*/")
			if end < 0 {
				l.inBlockComment = true
				l.blockCommentFrom = Token{File: file, Line: line, Col: col}
				return
			}
			l.pos += 2 + end + 2

		case c == '"':
			l.lexString()

		case isIdentStart(c):
			l.lexWord()

		case c == '\\':
			l.lexEscapedIdent()

		case c == '$' && l.pos+1 < len(text) && isIdentStart(text[l.pos+1]):
			start := l.pos
			col := l.pos + 1
			l.pos++
			for l.pos < len(text) && isIdentChar(text[l.pos]) {
				l.pos++
			}
			l.emit(SystemIdent, text[start:l.pos], col)

		case c >= '0' && c <= '9':
			l.lexNumber()

		case c == '\'':
			l.lexBasedTail("")

		default:
			l.lexSymbol()
		}
		text = l.line().Text
	}
}

func (l *lexer) lexString() {
	text := l.line().Text
	col := l.pos + 1
	start := l.pos
	l.pos++
	for l.pos < len(text) {
		switch text[l.pos] {
		case '\\':
			l.pos += 2
		case '"':
			l.pos++
			l.emit(String, text[start:l.pos], col)
			return
		default:
			l.pos++
		}
	}
	// Strings cannot span lines; resync at the newline.
	l.errorf(col, "unterminated string literal")
	l.pos = len(text)
}

func (l *lexer) lexWord() {
	text := l.line().Text
	col := l.pos + 1
	start := l.pos
	for l.pos < len(text) && isIdentChar(text[l.pos]) {
		l.pos++
	}
	word := text[start:l.pos]
	if keywords[word] {
		l.emit(Keyword, word, col)
	} else {
		l.emit(Ident, word, col)
	}
}

// lexEscapedIdent handles \escaped identifiers, which run until the next
// whitespace. The backslash is not part of the emitted name.
func (l *lexer) lexEscapedIdent() {
	text := l.line().Text
	col := l.pos + 1
	start := l.pos + 1
	l.pos++
	for l.pos < len(text) && text[l.pos] != ' ' && text[l.pos] != '\t' {
		l.pos++
	}
	if start == l.pos {
		l.errorf(col, "empty escaped identifier")
		return
	}
	l.emit(Ident, text[start:l.pos], col)
}

// lexNumber handles plain decimal/real literals and sized based literals
// (8'hFF). The size and the based tail join into one normalized token; the
// value itself is never evaluated here.
func (l *lexer) lexNumber() {
	text := l.line().Text
	col := l.pos + 1
	start := l.pos
	for l.pos < len(text) && (isDigit(text[l.pos]) || text[l.pos] == '_') {
		l.pos++
	}

	// Real literal: 3.14, 1e9, 2.5e-3.
	if l.pos < len(text) && (text[l.pos] == '.' || text[l.pos] == 'e' || text[l.pos] == 'E') &&
		l.pos+1 < len(text) && (isDigit(text[l.pos+1]) || text[l.pos+1] == '-' || text[l.pos+1] == '+') {
		l.pos++
		for l.pos < len(text) && (isDigit(text[l.pos]) || text[l.pos] == '_' ||
			text[l.pos] == 'e' || text[l.pos] == 'E' || text[l.pos] == '-' || text[l.pos] == '+') {
			l.pos++
		}
		l.emit(Number, text[start:l.pos], col)
		return
	}

	size := text[start:l.pos]

	// A based tail may follow the size, separated by spaces: 8 'hFF.
	probe := l.pos
	for probe < len(text) && (text[probe] == ' ' || text[probe] == '\t') {
		probe++
	}
	if probe < len(text) && text[probe] == '\'' && basedTailLen(text[probe:]) > 0 {
		l.pos = probe
		l.lexBasedTailAt(size, col)
		return
	}

	l.emit(Number, size, col)
}

// lexBasedTail lexes a based or unbased-unsized literal starting at the
// apostrophe under the cursor ('hFF, 'sb101, '0, 'z).
func (l *lexer) lexBasedTail(size string) {
	col := l.pos + 1
	if basedTailLen(l.line().Text[l.pos:]) == 0 {
		// A lone apostrophe (e.g. assignment pattern '{...}) lexes as a
		// symbol; the grammar subset never inspects it.
		l.emit(Symbol, "'", col)
		l.pos++
		return
	}
	l.lexBasedTailAt(size, col)
}

func (l *lexer) lexBasedTailAt(size string, col int) {
	text := l.line().Text
	n := basedTailLen(text[l.pos:])
	tail := text[l.pos : l.pos+n]
	l.pos += n
	l.emit(Number, size+tail, col)
}

// basedTailLen reports the length of a based-literal tail at the start of
// s, or 0 if s does not begin one. s starts with the apostrophe.
func basedTailLen(s string) int {
	i := 1
	if i < len(s) && (s[i] == 's' || s[i] == 'S') {
		i++
	}
	if i >= len(s) {
		return 0
	}
	switch s[i] {
	case 'b', 'B', 'o', 'O', 'd', 'D', 'h', 'H':
		i++
		start := i
		for i < len(s) && isBasedDigit(s[i]) {
			i++
		}
		if i == start {
			return 0
		}
		return i
	case '0', '1', 'x', 'X', 'z', 'Z':
		// Unbased unsized literal; only valid without a signing prefix.
		if s[1] == 's' || s[1] == 'S' {
			return 0
		}
		return 2
	}
	return 0
}

func (l *lexer) lexSymbol() {
	text := l.line().Text
	col := l.pos + 1
	rest := text[l.pos:]
	for _, sym := range multiSymbols {
		if strings.HasPrefix(rest, sym) {
			l.emit(Symbol, sym, col)
			l.pos += len(sym)
			return
		}
	}
	l.emit(Symbol, text[l.pos:l.pos+1], col)
	l.pos++
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isBasedDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') ||
		c == 'x' || c == 'X' || c == 'z' || c == 'Z' || c == '?' || c == '_'
}
