// Package parser recognizes the module-level subset of SystemVerilog:
// module headers, ANSI and non-ANSI port lists, parameter lists, body port
// declarations, instantiations and packages. It is a recursive-descent
// parser with one token of lookahead and no backtracking; on a malformed
// construct it records a ParseError and resynchronizes at the next `;`,
// `endmodule` or `module` boundary so later declarations still parse.
package parser

import (
	"fmt"
	"strings"

	"github.com/hdlkit/svparse/internal/lexer"
	"github.com/hdlkit/svparse/sv"
)

var directions = map[string]bool{
	"input": true, "output": true, "inout": true, "ref": true,
}

var netTypes = map[string]bool{
	"wire": true, "uwire": true, "tri": true, "wand": true, "wor": true,
	"triand": true, "trior": true, "trireg": true,
	"tri0": true, "tri1": true, "supply0": true, "supply1": true,
}

var typeKeywords = map[string]bool{
	"logic": true, "bit": true, "reg": true,
	"int": true, "integer": true, "shortint": true, "longint": true,
	"byte": true, "real": true, "shortreal": true, "realtime": true,
	"time": true, "void": true, "string": true,
}

type parser struct {
	tokens []lexer.Token
	pos    int
	diags  []sv.Diagnostic
}

// Parse consumes a token slice (terminated by an EOF token) and returns
// the syntax tree plus any diagnostics. It never fails outright: malformed
// regions produce diagnostics and a best-effort partial tree.
func Parse(tokens []lexer.Token) (*CompilationUnit, []sv.Diagnostic) {
	p := &parser{tokens: tokens}
	unit := &CompilationUnit{}

	for !p.atEOF() {
		switch {
		case p.atKeyword("module") || p.atKeyword("macromodule"):
			if m := p.parseModule(); m != nil {
				unit.Modules = append(unit.Modules, m)
			}
		case p.atKeyword("package"):
			if pkg := p.parsePackage(); pkg != nil {
				unit.Packages = append(unit.Packages, pkg)
			}
		case p.atKeyword("interface"):
			p.skipToKeyword("endinterface")
		default:
			// Constructs outside the modeled grammar pass by untouched.
			p.next()
		}
	}
	return unit, p.diags
}

// token access

func (p *parser) cur() lexer.Token { return p.tokens[p.pos] }

func (p *parser) peek() lexer.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) next() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Kind != lexer.EOF {
		p.pos++
	}
	return tok
}

func (p *parser) atEOF() bool { return p.cur().Kind == lexer.EOF }

func (p *parser) atKeyword(kw string) bool {
	return p.cur().Kind == lexer.Keyword && p.cur().Text == kw
}

func (p *parser) atSymbol(s string) bool {
	return p.cur().Kind == lexer.Symbol && p.cur().Text == s
}

func (p *parser) acceptSymbol(s string) bool {
	if p.atSymbol(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) errorf(tok lexer.Token, format string, args ...any) {
	p.diags = append(p.diags, sv.Diagnostic{
		Kind:    sv.DiagParse,
		File:    tok.File,
		Line:    tok.Line,
		Col:     tok.Col,
		Message: fmt.Sprintf(format, args...),
	})
}

// syncStatement advances past the next `;`, stopping early (without
// consuming) at a module/package boundary.
func (p *parser) syncStatement() {
	for !p.atEOF() {
		if p.acceptSymbol(";") {
			return
		}
		if p.atKeyword("endmodule") || p.atKeyword("module") ||
			p.atKeyword("macromodule") || p.atKeyword("endpackage") {
			return
		}
		p.next()
	}
}

func (p *parser) skipToKeyword(kw string) {
	for !p.atEOF() {
		if p.atKeyword(kw) {
			p.next()
			return
		}
		p.next()
	}
}

// modules

func (p *parser) parseModule() *Module {
	start := p.next() // module / macromodule
	m := &Module{File: start.File, Line: start.Line, Col: start.Col, Ansi: true}

	if p.cur().Kind != lexer.Ident {
		p.errorf(p.cur(), "expected module name, found %q", p.cur().Text)
		p.syncStatement()
		return nil
	}
	m.Name = p.next().Text

	for p.atKeyword("import") {
		p.syncStatement()
	}

	if p.atSymbol("#") {
		p.next()
		if !p.atSymbol("(") {
			p.errorf(p.cur(), "expected '(' after '#'")
			p.syncStatement()
		} else {
			p.parseParamPortList(m)
		}
	}

	if p.atSymbol("(") {
		p.parsePortList(m)
	}

	if !p.acceptSymbol(";") {
		p.errorf(p.cur(), "expected ';' after module header, found %q", p.cur().Text)
		p.syncStatement()
	}

	p.parseModuleBody(m)
	return m
}

func (p *parser) parseModuleBody(m *Module) {
	for {
		switch {
		case p.atEOF():
			p.errorf(p.cur(), "missing endmodule for module %q", m.Name)
			return
		case p.atKeyword("endmodule"):
			p.next()
			if p.acceptSymbol(":") && p.cur().Kind == lexer.Ident {
				p.next()
			}
			return
		case p.atKeyword("module") || p.atKeyword("macromodule"):
			p.errorf(p.cur(), "missing endmodule for module %q", m.Name)
			return
		case p.cur().Kind == lexer.Keyword && directions[p.cur().Text]:
			if d := p.parseBodyDecl(); d != nil {
				m.Decls = append(m.Decls, d)
			}
		case p.cur().Kind == lexer.Keyword &&
			(netTypes[p.cur().Text] || typeKeywords[p.cur().Text] || p.cur().Text == "var"):
			if d := p.parseBodyDecl(); d != nil {
				m.Decls = append(m.Decls, d)
			}
		case p.atKeyword("parameter") || p.atKeyword("localparam"):
			m.Params = append(m.Params, p.parseParamDecl()...)
		case p.cur().Kind == lexer.Ident:
			if inst := p.tryInstance(); inst != nil {
				m.Instances = append(m.Instances, inst)
			} else {
				p.next()
			}
		default:
			p.next()
		}
	}
}

// port lists

// parsePortList reads the parenthesized header port list. A list whose
// items carry any declaration syntax (direction, kind, type, dimensions,
// modports, adjacent identifiers) is ANSI; a bare identifier list is
// non-ANSI with the declarations expected in the body.
func (p *parser) parsePortList(m *Module) {
	open := p.next() // (
	if p.acceptSymbol(")") {
		return
	}

	m.Ansi = p.portListIsAnsi()
	if !m.Ansi {
		p.parseHeaderNames(m)
		return
	}

	for {
		if item := p.parsePortItem(); item != nil {
			m.Ports = append(m.Ports, item)
		}
		if p.acceptSymbol(",") {
			continue
		}
		if p.acceptSymbol(")") {
			return
		}
		if p.atEOF() || p.atKeyword("endmodule") || p.atKeyword("module") {
			p.errorf(open, "unterminated port list")
			return
		}
		p.errorf(p.cur(), "expected ',' or ')' in port list, found %q", p.cur().Text)
		p.syncPortItem()
		if p.acceptSymbol(")") {
			return
		}
		p.acceptSymbol(",")
	}
}

// portListIsAnsi looks ahead (without consuming) to the matching ')'.
func (p *parser) portListIsAnsi() bool {
	depth := 1
	prevIdent := false
	for i := p.pos; i < len(p.tokens); i++ {
		tok := p.tokens[i]
		switch {
		case tok.Kind == lexer.EOF:
			return true
		case tok.Kind == lexer.Symbol && tok.Text == "(":
			depth++
		case tok.Kind == lexer.Symbol && tok.Text == ")":
			depth--
			if depth == 0 {
				return false
			}
		case tok.Kind == lexer.Keyword:
			if directions[tok.Text] || netTypes[tok.Text] || typeKeywords[tok.Text] ||
				tok.Text == "var" || tok.Text == "interface" ||
				tok.Text == "signed" || tok.Text == "unsigned" {
				return true
			}
		case tok.Kind == lexer.Symbol && (tok.Text == "[" || tok.Text == "." || tok.Text == "::"):
			return true
		case tok.Kind == lexer.Ident:
			if prevIdent {
				return true // two adjacent identifiers: type + name
			}
			prevIdent = true
			continue
		}
		prevIdent = false
	}
	return true
}

func (p *parser) parseHeaderNames(m *Module) {
	for {
		if p.cur().Kind == lexer.Ident {
			m.HeaderNames = append(m.HeaderNames, p.next().Text)
		} else {
			p.errorf(p.cur(), "expected port name, found %q", p.cur().Text)
			p.syncPortItem()
		}
		if p.acceptSymbol(",") {
			continue
		}
		if p.acceptSymbol(")") {
			return
		}
		if p.atEOF() || p.atKeyword("endmodule") || p.atKeyword("module") {
			return
		}
	}
}

// syncPortItem skips to the next ',' or ')' at bracket depth zero.
func (p *parser) syncPortItem() {
	depth := 0
	for !p.atEOF() {
		tok := p.cur()
		if tok.Kind == lexer.Symbol {
			switch tok.Text {
			case "(", "[", "{":
				depth++
			case "]", "}":
				// Stray closers stay at depth zero so the item stops can
				// still fire.
				if depth > 0 {
					depth--
				}
			case ")":
				if depth == 0 {
					return
				}
				depth--
			case ",":
				if depth == 0 {
					return
				}
			}
		}
		if tok.Kind == lexer.Keyword && (tok.Text == "endmodule" || tok.Text == "module") {
			return
		}
		p.next()
	}
}

func (p *parser) parsePortItem() *PortItem {
	start := p.cur()
	item := &PortItem{File: start.File, Line: start.Line, Col: start.Col}

	if p.cur().Kind == lexer.Keyword && directions[p.cur().Text] {
		item.Direction = p.next().Text
	}

	switch {
	case p.atKeyword("interface"):
		// Generic interface port: interface[.modport] name.
		p.next()
		item.TypeName = "interface"
		if p.acceptSymbol(".") && p.cur().Kind == lexer.Ident {
			item.Modport = p.next().Text
		}
	case p.cur().Kind == lexer.Keyword && netTypes[p.cur().Text]:
		item.NetType = p.next().Text
	case p.atKeyword("var"):
		item.Var = true
		p.next()
	}

	switch {
	case p.cur().Kind == lexer.Keyword && typeKeywords[p.cur().Text]:
		item.TypeKeyword = p.next().Text
	case p.cur().Kind == lexer.Ident && p.peek().Kind == lexer.Symbol && p.peek().Text == "::":
		// Scoped user-defined type: pkg::name.
		var parts []string
		parts = append(parts, p.next().Text)
		for p.acceptSymbol("::") {
			if p.cur().Kind != lexer.Ident {
				p.errorf(p.cur(), "expected identifier after '::'")
				break
			}
			parts = append(parts, p.next().Text)
		}
		item.TypeName = strings.Join(parts, "::")
	case p.cur().Kind == lexer.Ident && p.peek().Kind == lexer.Symbol && p.peek().Text == ".":
		// Interface port with modport: bus_if.slave name.
		item.TypeName = p.next().Text
		p.next() // .
		if p.cur().Kind == lexer.Ident {
			item.Modport = p.next().Text
		} else {
			p.errorf(p.cur(), "expected modport identifier after '.'")
		}
	case p.cur().Kind == lexer.Ident && p.peek().Kind == lexer.Ident:
		// Two adjacent identifiers: user-defined type then port name.
		item.TypeName = p.next().Text
	}

	if p.atKeyword("signed") || p.atKeyword("unsigned") {
		item.Signing = p.next().Text
	}

	for p.atSymbol("[") {
		if r, ok := p.parseRange(); ok {
			item.PackedDims = append(item.PackedDims, r)
		} else {
			// No name was read yet, so there is no port to keep.
			p.syncPortItem()
			return nil
		}
	}

	if p.cur().Kind != lexer.Ident {
		p.errorf(p.cur(), "expected port identifier, found %q", p.cur().Text)
		p.syncPortItem()
		return nil
	}
	item.Name = p.next().Text

	for p.atSymbol("[") {
		if r, ok := p.parseRange(); ok {
			item.UnpackedDims = append(item.UnpackedDims, r)
		} else {
			p.syncPortItem()
			return item
		}
	}

	if p.atSymbol("=") {
		p.next()
		p.captureUntil(",", ")") // default value, not modeled
	}
	return item
}

// parseRange reads one bracketed dimension. Expression text is captured
// verbatim (tokens joined) since constant evaluation is out of scope. A
// ':' splits msb and lsb only at the outermost bracket depth. A missing ']'
// stops at the next ';', unmatched closer or module boundary (without
// consuming it) so the caller can resync and later declarations survive.
func (p *parser) parseRange() (Range, bool) {
	open := p.next() // [
	depth := 1
	var msb, lsb strings.Builder
	side := &msb
scan:
	for !p.atEOF() {
		tok := p.cur()
		if tok.Kind == lexer.Keyword && (tok.Text == "endmodule" || tok.Text == "module" ||
			tok.Text == "macromodule" || tok.Text == "endpackage") {
			break
		}
		if tok.Kind == lexer.Symbol {
			switch tok.Text {
			case ";":
				break scan
			case "[", "(", "{":
				depth++
			case ")", "}":
				if depth == 1 {
					// Unmatched closer: it belongs to the construct around
					// the dimension, so the dimension never closed.
					break scan
				}
				depth--
			case "]":
				depth--
				if depth == 0 {
					p.next()
					if side == &msb && lsb.Len() == 0 {
						return Range{Msb: msb.String()}, true
					}
					return Range{Msb: msb.String(), Lsb: lsb.String()}, true
				}
			case ":":
				if depth == 1 {
					p.next()
					side = &lsb
					continue
				}
			}
		}
		side.WriteString(tok.Text)
		p.next()
	}
	p.errorf(open, "unterminated dimension range")
	return Range{}, false
}

// captureUntil joins token text until one of the stop symbols appears at
// bracket depth zero. The stop token is not consumed.
func (p *parser) captureUntil(stops ...string) string {
	depth := 0
	var out strings.Builder
	for !p.atEOF() {
		tok := p.cur()
		if tok.Kind == lexer.Symbol {
			switch tok.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth == 0 {
					for _, s := range stops {
						if tok.Text == s {
							return out.String()
						}
					}
				} else {
					depth--
				}
			default:
				if depth == 0 {
					for _, s := range stops {
						if tok.Text == s {
							return out.String()
						}
					}
				}
			}
		}
		if tok.Kind == lexer.Keyword && (tok.Text == "endmodule" || tok.Text == "module") {
			return out.String()
		}
		out.WriteString(tok.Text)
		p.next()
	}
	return out.String()
}

// parameters

func (p *parser) parseParamPortList(m *Module) {
	p.next() // (
	if p.acceptSymbol(")") {
		return
	}
	local := false
	for {
		if p.atKeyword("parameter") {
			local = false
			p.next()
		} else if p.atKeyword("localparam") {
			local = true
			p.next()
		}
		if param := p.parseParamAssignment(local, ",", ")"); param != nil {
			m.Params = append(m.Params, param)
		} else {
			p.syncPortItem()
		}
		if p.acceptSymbol(",") {
			continue
		}
		if p.acceptSymbol(")") {
			return
		}
		if p.atEOF() || p.atKeyword("endmodule") || p.atKeyword("module") {
			p.errorf(p.cur(), "unterminated parameter port list")
			return
		}
		p.errorf(p.cur(), "expected ',' or ')' in parameter list, found %q", p.cur().Text)
		p.syncPortItem()
		if p.acceptSymbol(")") {
			return
		}
		p.acceptSymbol(",")
	}
}

// parseParamDecl reads a body-level parameter/localparam declaration up to
// and including its ';'.
func (p *parser) parseParamDecl() []*Param {
	local := p.next().Text == "localparam"
	var params []*Param
	for {
		param := p.parseParamAssignment(local, ",", ";")
		if param == nil {
			p.syncStatement()
			return params
		}
		params = append(params, param)
		if p.acceptSymbol(",") {
			continue
		}
		if !p.acceptSymbol(";") {
			p.errorf(p.cur(), "expected ';' after parameter declaration")
			p.syncStatement()
		}
		return params
	}
}

// parseParamAssignment reads [type] [signing] [dims] name [= expr].
func (p *parser) parseParamAssignment(local bool, stops ...string) *Param {
	start := p.cur()
	param := &Param{Local: local, File: start.File, Line: start.Line, Col: start.Col}

	if p.cur().Kind == lexer.Keyword && typeKeywords[p.cur().Text] {
		param.TypeKeyword = p.next().Text
	}
	if p.atKeyword("signed") || p.atKeyword("unsigned") {
		param.Signing = p.next().Text
	}
	for p.atSymbol("[") {
		r, ok := p.parseRange()
		if !ok {
			return nil
		}
		param.PackedDims = append(param.PackedDims, r)
	}

	if p.cur().Kind != lexer.Ident {
		p.errorf(p.cur(), "expected parameter name, found %q", p.cur().Text)
		return nil
	}
	param.Name = p.next().Text

	if p.atSymbol("=") {
		p.next()
		param.Expr = p.captureUntil(stops...)
	}
	return param
}

// body declarations

// parseBodyDecl reads one non-ANSI declaration statement:
// [direction] [net|var] [type] [signing] [dims] name {, name} ;
func (p *parser) parseBodyDecl() *BodyDecl {
	start := p.cur()
	d := &BodyDecl{File: start.File, Line: start.Line, Col: start.Col}

	if p.cur().Kind == lexer.Keyword && directions[p.cur().Text] {
		d.Direction = p.next().Text
	}
	switch {
	case p.cur().Kind == lexer.Keyword && netTypes[p.cur().Text]:
		d.NetType = p.next().Text
	case p.atKeyword("var"):
		d.Var = true
		p.next()
	}
	switch {
	case p.cur().Kind == lexer.Keyword && typeKeywords[p.cur().Text]:
		d.TypeKeyword = p.next().Text
	case p.cur().Kind == lexer.Ident && p.peek().Kind == lexer.Symbol && p.peek().Text == "::":
		var parts []string
		parts = append(parts, p.next().Text)
		for p.acceptSymbol("::") {
			if p.cur().Kind != lexer.Ident {
				p.errorf(p.cur(), "expected identifier after '::'")
				break
			}
			parts = append(parts, p.next().Text)
		}
		d.TypeName = strings.Join(parts, "::")
	case p.cur().Kind == lexer.Ident && p.peek().Kind == lexer.Ident:
		d.TypeName = p.next().Text
	}
	if p.atKeyword("signed") || p.atKeyword("unsigned") {
		d.Signing = p.next().Text
	}
	for p.atSymbol("[") {
		r, ok := p.parseRange()
		if !ok {
			p.syncStatement()
			return nil
		}
		d.PackedDims = append(d.PackedDims, r)
	}

	for {
		if p.cur().Kind != lexer.Ident {
			p.errorf(p.cur(), "expected identifier in declaration, found %q", p.cur().Text)
			p.syncStatement()
			if len(d.Names) > 0 {
				return d
			}
			return nil
		}
		name := DeclName{Name: p.next().Text}
		for p.atSymbol("[") {
			r, ok := p.parseRange()
			if !ok {
				p.syncStatement()
				d.Names = append(d.Names, name)
				return d
			}
			name.UnpackedDims = append(name.UnpackedDims, r)
		}
		if p.atSymbol("=") {
			p.next()
			p.captureUntil(",", ";") // initializer, not modeled
		}
		d.Names = append(d.Names, name)

		if p.acceptSymbol(",") {
			continue
		}
		if p.acceptSymbol(";") {
			return d
		}
		p.errorf(p.cur(), "expected ',' or ';' in declaration, found %q", p.cur().Text)
		p.syncStatement()
		return d
	}
}

// instances

// tryInstance attempts to read `Module [#(...)] name ( conns ) ;` starting
// at the current identifier. On failure the cursor is restored and nil is
// returned so the body loop can skip the token.
func (p *parser) tryInstance() *Instance {
	save := p.pos
	start := p.cur()
	inst := &Instance{File: start.File, Line: start.Line, Col: start.Col}
	inst.Module = p.next().Text

	if p.atSymbol("#") {
		p.next()
		if !p.atSymbol("(") {
			p.pos = save
			return nil
		}
		p.skipBalancedParens()
	}

	if p.cur().Kind != lexer.Ident {
		p.pos = save
		return nil
	}
	inst.Name = p.next().Text

	if !p.atSymbol("(") {
		p.pos = save
		return nil
	}
	p.next()

	if !p.acceptSymbol(")") {
		for {
			if p.atSymbol(".") {
				p.next()
				if p.atSymbol("*") {
					p.next() // .* wildcard, nothing to record
				} else if p.cur().Kind != lexer.Ident {
					p.errorf(p.cur(), "expected port name in connection")
					p.syncPortItem()
				} else {
					port := p.next().Text
					expr := ""
					if p.atSymbol("(") {
						p.next()
						expr = p.captureUntil(")")
						p.acceptSymbol(")")
					}
					inst.Conns = append(inst.Conns, [2]string{port, expr})
				}
			} else {
				expr := p.captureUntil(",", ")")
				inst.Conns = append(inst.Conns, [2]string{"", expr})
			}
			if p.acceptSymbol(",") {
				continue
			}
			if p.acceptSymbol(")") {
				break
			}
			p.errorf(p.cur(), "unterminated instance connection list")
			p.syncStatement()
			return inst
		}
	}

	if !p.acceptSymbol(";") {
		p.errorf(p.cur(), "expected ';' after instantiation")
		p.syncStatement()
	}
	return inst
}

func (p *parser) skipBalancedParens() {
	depth := 0
	for !p.atEOF() {
		tok := p.next()
		if tok.Kind == lexer.Symbol {
			switch tok.Text {
			case "(":
				depth++
			case ")":
				depth--
				if depth == 0 {
					return
				}
			}
		}
		if tok.Kind == lexer.Keyword && (tok.Text == "endmodule" || tok.Text == "module") {
			return
		}
	}
}

// packages

func (p *parser) parsePackage() *Package {
	start := p.next() // package
	pkg := &Package{File: start.File, Line: start.Line, Col: start.Col}

	if p.cur().Kind != lexer.Ident {
		p.errorf(p.cur(), "expected package name, found %q", p.cur().Text)
		p.syncStatement()
		return nil
	}
	pkg.Name = p.next().Text
	if !p.acceptSymbol(";") {
		p.errorf(p.cur(), "expected ';' after package header")
		p.syncStatement()
	}

	for {
		switch {
		case p.atEOF():
			p.errorf(p.cur(), "missing endpackage for package %q", pkg.Name)
			return pkg
		case p.atKeyword("endpackage"):
			p.next()
			if p.acceptSymbol(":") && p.cur().Kind == lexer.Ident {
				p.next()
			}
			return pkg
		case p.atKeyword("parameter") || p.atKeyword("localparam"):
			pkg.Params = append(pkg.Params, p.parseParamDecl()...)
		default:
			p.next()
		}
	}
}
